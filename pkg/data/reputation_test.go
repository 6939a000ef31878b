package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchmarny/trustpulse/pkg/trust"
)

func TestGetActivityStats(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, SaveEvents(db, "org", "repo", []ImportedEvent{
		testEvent("alice", 1, trust.EventApprove, 1000),
		testEvent("alice", 2, trust.EventApprove, 2000),
		testEvent("bob", 3, trust.EventReject, 3000),
	}))

	stats, err := GetActivityStats(db, "org", "repo")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalEvents)
	assert.Equal(t, 2, stats.TotalContributors)
}

func TestGetActivityStats_Empty(t *testing.T) {
	db := setupTestDB(t)

	stats, err := GetActivityStats(db, "org", "repo")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEvents)
	assert.Zero(t, stats.TotalContributors)
}

func TestGetActivityStats_NilDB(t *testing.T) {
	_, err := GetActivityStats(nil, "org", "repo")
	assert.Error(t, err)
}

func TestGatherLocalSignals(t *testing.T) {
	db := setupTestDB(t)

	recent := time.Now().UTC().Add(-48 * time.Hour).UnixMilli()
	require.NoError(t, SaveEvents(db, "org", "repo", []ImportedEvent{
		testEvent("alice", 1, trust.EventApprove, recent),
		testEvent("bob", 2, trust.EventApprove, recent),
	}))

	stats, err := GetActivityStats(db, "org", "repo")
	require.NoError(t, err)

	s := gatherLocalSignals(db, "org", "repo", "alice", stats)
	assert.Equal(t, int64(1), s.Commits)
	assert.Equal(t, int64(2), s.TotalCommits)
	assert.Equal(t, 2, s.TotalContributors)
	assert.Equal(t, int64(2), s.LastCommitDays)
}

func TestComputeReputation_Bounded(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, SaveEvents(db, "org", "repo", []ImportedEvent{
		testEvent("alice", 1, trust.EventApprove, time.Now().UTC().UnixMilli()),
	}))

	stats, err := GetActivityStats(db, "org", "repo")
	require.NoError(t, err)

	rep := ComputeReputation(db, "org", "repo", "alice", stats)
	assert.GreaterOrEqual(t, rep, 0.0)
	assert.LessOrEqual(t, rep, 1.0)
}
