package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/go-github/v83/github"
	"github.com/mchmarny/trustpulse/pkg/net"
	"github.com/mchmarny/trustpulse/pkg/trust"
)

const (
	pageSizeDefault    = 100
	rateLimitThreshold = 10

	// ImportAgeMonthsDefault bounds how far back the PR import reaches.
	ImportAgeMonthsDefault = 6

	reviewStateChangesRequested = "CHANGES_REQUESTED"
)

// severityMarkers maps inline review markers to severities, checked in
// order of seriousness so the strongest marker wins.
var severityMarkers = []struct {
	marker   string
	severity trust.ReviewSeverity
}{
	{"[severity:critical]", trust.SeverityCritical},
	{"[severity:major]", trust.SeverityMajor},
	{"[severity:minor]", trust.SeverityMinor},
	{"[severity:trivial]", trust.SeverityTrivial},
	{"[severity:normal]", trust.SeverityNormal},
}

// ImportResult summarizes one import run.
type ImportResult struct {
	Org      string `json:"org" yaml:"org"`
	Repo     string `json:"repo" yaml:"repo"`
	PRs      int    `json:"prs" yaml:"prs"`
	Imported int    `json:"imported" yaml:"imported"`
	Skipped  int    `json:"skipped" yaml:"skipped"`
}

// ImportEvents fetches closed pull requests with their reviews for one
// org/repo, classifies each into a trust event, and upserts the batch into
// the cache. Re-importing is idempotent.
func ImportEvents(ctx context.Context, db *sql.DB, token, owner, repo string, months int) (*ImportResult, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if owner == "" || repo == "" {
		return nil, errors.New("owner and repo are required")
	}
	if months < 1 {
		months = ImportAgeMonthsDefault
	}

	client := github.NewClient(net.GetOAuthClient(ctx, token))
	cutoff := time.Now().UTC().AddDate(0, -months, 0)

	slog.Info("importing closed PRs", "org", owner, "repo", repo, "since", cutoff.Format("2006-01-02"))

	res := &ImportResult{Org: owner, Repo: repo}
	batch := make([]ImportedEvent, 0)

	opts := &github.PullRequestListOptions{
		State:     "closed",
		Sort:      "created",
		Direction: "desc",
		ListOptions: github.ListOptions{
			PerPage: pageSizeDefault,
		},
	}

	for {
		pulls, resp, err := client.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing closed PRs for %s/%s: %w", owner, repo, err)
		}
		checkRateLimit(resp)

		done := false
		for _, pr := range pulls {
			if pr.GetCreatedAt().Time.Before(cutoff) {
				done = true
				break
			}

			res.PRs++
			ev, err := importPullRequest(ctx, client, owner, repo, pr.GetNumber())
			if err != nil {
				slog.Warn("skipping PR", "pr", pr.GetNumber(), "error", err)
				res.Skipped++
				continue
			}
			batch = append(batch, *ev)
		}

		if done || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if err := SaveEvents(db, owner, repo, batch); err != nil {
		return nil, fmt.Errorf("saving imported events: %w", err)
	}
	res.Imported = len(batch)

	slog.Info("import complete", "prs", res.PRs, "imported", res.Imported, "skipped", res.Skipped)

	return res, nil
}

// importPullRequest fetches one PR's detail and reviews and classifies it.
func importPullRequest(ctx context.Context, client *github.Client, owner, repo string, number int) (*ImportedEvent, error) {
	pr, resp, err := client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("getting PR #%d: %w", number, err)
	}
	checkRateLimit(resp)

	reviews, resp, err := client.PullRequests.ListReviews(ctx, owner, repo, number,
		&github.ListOptions{PerPage: pageSizeDefault})
	if err != nil {
		return nil, fmt.Errorf("listing reviews for PR #%d: %w", number, err)
	}
	checkRateLimit(resp)

	closedBy := ""
	if pr.MergedAt == nil {
		// The closer only matters for unmerged PRs (close vs selfClose);
		// it lives on the issue side of the API.
		issue, issueResp, issueErr := client.Issues.Get(ctx, owner, repo, number)
		if issueErr != nil {
			slog.Debug("error getting closer", "pr", number, "error", issueErr)
		} else {
			checkRateLimit(issueResp)
			closedBy = issue.GetClosedBy().GetLogin()
		}
	}

	return mapPullRequest(pr, reviews, closedBy), nil
}

// mapPullRequest classifies one closed PR into a trust event:
// merged is an approve, closed with a changes-requested review is a reject,
// otherwise a close or selfClose depending on who closed it.
func mapPullRequest(pr *github.PullRequest, reviews []*github.PullRequestReview, closedBy string) *ImportedEvent {
	author := pr.GetUser().GetLogin()

	hasChangesRequested := false
	for _, r := range reviews {
		if strings.EqualFold(r.GetState(), reviewStateChangesRequested) {
			hasChangesRequested = true
			break
		}
	}

	var eventType trust.EventType
	switch {
	case pr.MergedAt != nil:
		eventType = trust.EventApprove
	case hasChangesRequested:
		eventType = trust.EventReject
	case closedBy != "" && closedBy == author:
		eventType = trust.EventSelfClose
	default:
		eventType = trust.EventClose
	}

	ts := pr.GetClosedAt().Time
	if pr.MergedAt != nil {
		ts = pr.GetMergedAt().Time
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.GetName())
	}

	ev := trust.Event{
		Type:         eventType,
		Timestamp:    ts.UnixMilli(),
		LinesChanged: pr.GetAdditions() + pr.GetDeletions(),
		Labels:       labels,
		PRNumber:     pr.GetNumber(),
	}
	if eventType == trust.EventReject {
		ev.ReviewSeverity = detectSeverity(reviews)
	}

	return &ImportedEvent{
		Contributor: author,
		AvatarURL:   pr.GetUser().GetAvatarURL(),
		PRTitle:     pr.GetTitle(),
		Event:       ev,
	}
}

// detectSeverity scans review bodies for an inline severity marker.
func detectSeverity(reviews []*github.PullRequestReview) trust.ReviewSeverity {
	var sb strings.Builder
	for _, r := range reviews {
		sb.WriteString(strings.ToLower(r.GetBody()))
		sb.WriteString("\n")
	}
	bodies := sb.String()

	for _, m := range severityMarkers {
		if strings.Contains(bodies, m.marker) {
			return m.severity
		}
	}
	return ""
}

func checkRateLimit(resp *github.Response) {
	if resp == nil {
		return
	}

	if resp.Rate.Remaining > rateLimitThreshold {
		return
	}

	resetAt := resp.Rate.Reset.Time
	wait := time.Until(resetAt)
	if wait <= 0 {
		return
	}

	jitter := time.Duration(rand.IntN(2000)) * time.Millisecond
	total := wait + jitter

	slog.Info("rate limit approaching, waiting",
		"remaining", resp.Rate.Remaining,
		"reset_at", resetAt.Format(time.RFC3339),
		"wait", total.String(),
	)

	time.Sleep(total)
}
