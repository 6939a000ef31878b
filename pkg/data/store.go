package data

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mchmarny/trustpulse/pkg/trust"
)

const (
	upsertEventSQL = `INSERT INTO trust_event (
			org, repo, contributor, pr_number, pr_title, avatar_url,
			event_type, event_time, lines_changed, labels, review_severity
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(org, repo, pr_number) DO UPDATE SET
			contributor = excluded.contributor,
			pr_title = excluded.pr_title,
			avatar_url = excluded.avatar_url,
			event_type = excluded.event_type,
			event_time = excluded.event_time,
			lines_changed = excluded.lines_changed,
			labels = excluded.labels,
			review_severity = excluded.review_severity
	`

	selectEventsSQL = `SELECT contributor, pr_number, pr_title, avatar_url,
			event_type, event_time, lines_changed, labels, review_severity
		FROM trust_event
		WHERE org = ? AND repo = ?
		ORDER BY event_time ASC
	`

	selectContributorEventsSQL = `SELECT contributor, pr_number, pr_title, avatar_url,
			event_type, event_time, lines_changed, labels, review_severity
		FROM trust_event
		WHERE org = ? AND repo = ? AND contributor = ?
		ORDER BY event_time ASC
	`

	selectContributorsSQL = `SELECT DISTINCT contributor
		FROM trust_event
		WHERE org = ? AND repo = ?
		ORDER BY contributor ASC
	`
)

// ImportedEvent is one cached trust event with the display metadata the
// snapshot layer needs alongside the scoring input.
type ImportedEvent struct {
	Contributor string      `json:"contributor" yaml:"contributor"`
	AvatarURL   string      `json:"avatarUrl" yaml:"avatarUrl"`
	PRTitle     string      `json:"prTitle" yaml:"prTitle"`
	Event       trust.Event `json:"event" yaml:"event"`
}

// SaveEvents upserts a batch of imported events for one org/repo.
func SaveEvents(db *sql.DB, org, repo string, events []ImportedEvent) error {
	if db == nil {
		return errDBNotInitialized
	}
	if org == "" || repo == "" {
		return errors.New("org and repo are required")
	}
	if len(events) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting event tx: %w", err)
	}

	stmt, err := tx.Prepare(upsertEventSQL)
	if err != nil {
		rollbackTransaction(tx)
		return fmt.Errorf("preparing event upsert: %w", err)
	}

	for _, e := range events {
		_, err := stmt.Exec(
			org, repo, e.Contributor, e.Event.PRNumber, e.PRTitle, e.AvatarURL,
			string(e.Event.Type), e.Event.Timestamp, e.Event.LinesChanged,
			strings.Join(e.Event.Labels, ","), string(e.Event.ReviewSeverity),
		)
		if err != nil {
			rollbackTransaction(tx)
			return fmt.Errorf("upserting event for PR #%d: %w", e.Event.PRNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing event tx: %w", err)
	}

	return nil
}

// GetEvents returns every cached event for an org/repo, chronological.
func GetEvents(db *sql.DB, org, repo string) ([]ImportedEvent, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectEventsSQL, org, repo)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("querying events for %s/%s: %w", org, repo, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetContributorState assembles the scoring engine input for one
// contributor from the event cache.
func GetContributorState(db *sql.DB, org, repo, contributor string) (*trust.ContributorState, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if contributor == "" {
		return nil, errors.New("contributor is required")
	}

	rows, err := db.Query(selectContributorEventsSQL, org, repo, contributor)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("querying events for %s: %w", contributor, err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}

	state := &trust.ContributorState{
		Contributor: contributor,
		Events:      make([]trust.Event, 0, len(events)),
	}
	for _, e := range events {
		state.Events = append(state.Events, e.Event)
	}
	if len(state.Events) > 0 {
		state.CreatedAt = state.Events[0].Timestamp
	}

	return state, nil
}

// GetContributors lists distinct contributors with cached events.
func GetContributors(db *sql.DB, org, repo string) ([]string, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectContributorsSQL, org, repo)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("querying contributors for %s/%s: %w", org, repo, err)
	}
	defer rows.Close()

	list := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scanning contributor: %w", err)
		}
		list = append(list, c)
	}

	return list, rows.Err()
}

func scanEvents(rows *sql.Rows) ([]ImportedEvent, error) {
	list := make([]ImportedEvent, 0)
	for rows.Next() {
		var e ImportedEvent
		var eventType, labels, severity string
		if err := rows.Scan(
			&e.Contributor, &e.Event.PRNumber, &e.PRTitle, &e.AvatarURL,
			&eventType, &e.Event.Timestamp, &e.Event.LinesChanged,
			&labels, &severity,
		); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		e.Event.Type = trust.EventType(eventType)
		e.Event.ReviewSeverity = trust.ReviewSeverity(severity)
		if labels != "" {
			e.Event.Labels = strings.Split(labels, ",")
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
