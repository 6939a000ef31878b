package cli

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	urfave "github.com/urfave/cli/v2"
)

func TestNewApp(t *testing.T) {
	app := newApp()
	require.NotNil(t, app)
	assert.Equal(t, "trustpulse", app.Name)

	names := make([]string, 0, len(app.Commands))
	for _, c := range app.Commands {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"auth", "import", "score", "history", "snapshot", "simulate"}, names)
}

func TestGetHomeDir(t *testing.T) {
	dir := getHomeDir()
	assert.NotEmpty(t, dir)
}

func TestEncode(t *testing.T) {
	assert.NoError(t, encode(map[string]int{"a": 1}))

	outputFormat = formatYAML
	t.Cleanup(func() { outputFormat = formatJSON })
	assert.NoError(t, encode(map[string]int{"a": 1}))
}

func testContext(t *testing.T, args ...string) *urfave.Context {
	t.Helper()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String(scoringConfigFlag.Name, "", "")
	fs.Bool(legacyFlag.Name, false, "")
	fs.String(stateFileFlag.Name, "", "")
	require.NoError(t, fs.Parse(args))

	return urfave.NewContext(newApp(), fs, nil)
}

func TestResolveScoringConfig_Default(t *testing.T) {
	cfg, err := resolveScoringConfig(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 35.0, cfg.DailyPointCap)
}

func TestResolveScoringConfig_Legacy(t *testing.T) {
	cfg, err := resolveScoringConfig(testContext(t, "-legacy"))
	require.NoError(t, err)
	assert.Equal(t, 50.0, cfg.DailyPointCap)
}

func TestResolveScoringConfig_MissingFile(t *testing.T) {
	_, err := resolveScoringConfig(testContext(t, "-config", "no-such-file.yaml"))
	assert.Error(t, err)
}
