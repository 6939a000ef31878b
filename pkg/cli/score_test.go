package cli

import (
	"encoding/json"
	"os"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchmarny/trustpulse/pkg/trust"
)

func TestCmdSimulate(t *testing.T) {
	state := trust.ContributorState{
		Contributor: "alice",
		Events: []trust.Event{
			{
				Type:         trust.EventApprove,
				Timestamp:    time.Now().UTC().Add(-48 * time.Hour).UnixMilli(),
				LinesChanged: 42,
				Labels:       []string{"bugfix"},
				PRNumber:     1,
			},
		},
	}

	b, err := json.Marshal(state)
	require.NoError(t, err)

	statePath := path.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(statePath, b, 0600))

	assert.NoError(t, cmdSimulate(testContext(t, "-file", statePath)))
}

func TestCmdSimulate_YAML(t *testing.T) {
	statePath := path.Join(t.TempDir(), "state.yaml")
	fixture := `contributor: alice
events:
  - type: approve
    timestamp: 1764600000000
    linesChanged: 42
    labels: [bugfix]
    prNumber: 1
`
	require.NoError(t, os.WriteFile(statePath, []byte(fixture), 0600))

	assert.NoError(t, cmdSimulate(testContext(t, "-file", statePath)))
}

func TestCmdSimulate_MissingFile(t *testing.T) {
	assert.Error(t, cmdSimulate(testContext(t, "-file", "no-such-state.json")))
}

func TestCmdSimulate_MalformedFile(t *testing.T) {
	statePath := path.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(statePath, []byte("not json"), 0600))

	assert.Error(t, cmdSimulate(testContext(t, "-file", statePath)))
}
