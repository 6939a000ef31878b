package data

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mchmarny/reputer/pkg/score"
)

const (
	selectContributorEventCountSQL = `SELECT COUNT(*) FROM trust_event
		WHERE org = ? AND repo = ? AND contributor = ?
	`

	selectTotalEventCountSQL = `SELECT COUNT(*) FROM trust_event
		WHERE org = ? AND repo = ?
	`

	selectTotalContributorCountSQL = `SELECT COUNT(DISTINCT contributor) FROM trust_event
		WHERE org = ? AND repo = ?
	`

	selectLastEventTimeSQL = `SELECT MAX(event_time) FROM trust_event
		WHERE org = ? AND repo = ? AND contributor = ?
	`
)

// ActivityStats holds repo-wide aggregates computed once per snapshot run
// and shared across per-contributor reputation calls.
type ActivityStats struct {
	TotalEvents       int64
	TotalContributors int
}

// GetActivityStats computes the repo-wide activity aggregates.
func GetActivityStats(db *sql.DB, org, repo string) (*ActivityStats, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	var s ActivityStats

	if err := db.QueryRow(selectTotalEventCountSQL, org, repo).Scan(&s.TotalEvents); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("counting total events: %w", err)
	}

	if err := db.QueryRow(selectTotalContributorCountSQL, org, repo).Scan(&s.TotalContributors); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("counting total contributors: %w", err)
	}

	return &s, nil
}

// ComputeReputation scores one contributor's account reputation from
// locally cached activity. No GitHub API calls.
func ComputeReputation(db *sql.DB, org, repo, contributor string, stats *ActivityStats) float64 {
	return score.Compute(gatherLocalSignals(db, org, repo, contributor, stats))
}

// gatherLocalSignals collects only DB-available signals.
func gatherLocalSignals(db *sql.DB, org, repo, contributor string, stats *ActivityStats) score.Signals {
	var s score.Signals

	var events int64
	if err := db.QueryRow(selectContributorEventCountSQL, org, repo, contributor).Scan(&events); err != nil && !errors.Is(err, sql.ErrNoRows) {
		slog.Debug("error counting contributor events", "contributor", contributor, "error", err)
	}
	s.Commits = events

	if stats != nil {
		s.TotalCommits = stats.TotalEvents
		s.TotalContributors = stats.TotalContributors
	}

	var lastMillis sql.NullInt64
	if err := db.QueryRow(selectLastEventTimeSQL, org, repo, contributor).Scan(&lastMillis); err != nil && !errors.Is(err, sql.ErrNoRows) {
		slog.Debug("error getting last event time", "contributor", contributor, "error", err)
	}
	if lastMillis.Valid && lastMillis.Int64 > 0 {
		last := time.UnixMilli(lastMillis.Int64).UTC()
		s.LastCommitDays = int64(time.Since(last).Hours() / 24)
	}

	return s
}
