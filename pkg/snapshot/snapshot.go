// Package snapshot assembles the full leaderboard payload for one repo:
// trust scores, history, streaks, badges, levels, and account reputation
// for every contributor with cached events.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mchmarny/trustpulse/pkg/badge"
	"github.com/mchmarny/trustpulse/pkg/data"
	"github.com/mchmarny/trustpulse/pkg/level"
	"github.com/mchmarny/trustpulse/pkg/trust"
)

const (
	scoreConcurrency = 8

	xpBaseWeight = 10
	xpLineDiv    = 100
	xpLineCap    = 1000
)

// Contributor is one scored leaderboard entry.
type Contributor struct {
	Login        string               `json:"login" yaml:"login"`
	AvatarURL    string               `json:"avatarUrl,omitempty" yaml:"avatarUrl,omitempty"`
	IsAgent      bool                 `json:"isAgent" yaml:"isAgent"`
	Score        float64              `json:"score" yaml:"score"`
	Tier         string               `json:"tier" yaml:"tier"`
	TierInfo     trust.Tier           `json:"tierInfo" yaml:"tierInfo"`
	Warnings     []string             `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Breakdown    trust.Breakdown      `json:"breakdown" yaml:"breakdown"`
	History      []trust.HistoryPoint `json:"history" yaml:"history"`
	Streak       trust.Streak         `json:"streak" yaml:"streak"`
	EventTotals  map[string]int       `json:"eventTotals" yaml:"eventTotals"`
	FirstEventAt string               `json:"firstEventAt,omitempty" yaml:"firstEventAt,omitempty"`
	LastEventAt  string               `json:"lastEventAt,omitempty" yaml:"lastEventAt,omitempty"`
	Badges       []badge.Earned       `json:"badges" yaml:"badges"`
	Levels       level.Stats          `json:"levels" yaml:"levels"`
	Class        level.ClassInfo      `json:"class" yaml:"class"`
	Reputation   float64              `json:"reputation" yaml:"reputation"`
}

// Stats aggregates the leaderboard.
type Stats struct {
	Contributors     int            `json:"contributors" yaml:"contributors"`
	Events           int            `json:"events" yaml:"events"`
	AvgScore         float64        `json:"avgScore" yaml:"avgScore"`
	TierDistribution map[string]int `json:"tierDistribution" yaml:"tierDistribution"`
}

// Snapshot is the generated leaderboard payload.
type Snapshot struct {
	GeneratedAt  string         `json:"generatedAt" yaml:"generatedAt"`
	Repo         string         `json:"repo" yaml:"repo"`
	ModelVersion string         `json:"modelVersion" yaml:"modelVersion"`
	Contributors []*Contributor `json:"contributors" yaml:"contributors"`
	Stats        Stats          `json:"stats" yaml:"stats"`
}

// Build scores every contributor with cached events for org/repo and
// assembles the leaderboard, highest score first.
func Build(ctx context.Context, db *sql.DB, org, repo string, cfg *trust.Config, now int64) (*Snapshot, error) {
	if db == nil {
		return nil, errors.New("database not initialized")
	}
	if org == "" || repo == "" {
		return nil, errors.New("org and repo are required")
	}
	if cfg == nil {
		cfg = trust.DefaultConfig()
	}
	if now == 0 {
		now = time.Now().UTC().UnixMilli()
	}

	events, err := data.GetEvents(db, org, repo)
	if err != nil {
		return nil, fmt.Errorf("loading events for %s/%s: %w", org, repo, err)
	}

	byContributor := make(map[string][]data.ImportedEvent)
	for _, e := range events {
		byContributor[e.Contributor] = append(byContributor[e.Contributor], e)
	}

	stats, err := data.GetActivityStats(db, org, repo)
	if err != nil {
		return nil, fmt.Errorf("loading activity stats for %s/%s: %w", org, repo, err)
	}

	logins := make([]string, 0, len(byContributor))
	for login := range byContributor {
		logins = append(logins, login)
	}
	sort.Strings(logins)

	contributors := make([]*Contributor, len(logins))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scoreConcurrency)

	for i, login := range logins {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			c := buildContributor(login, byContributor[login], cfg, now)

			mu.Lock()
			c.Reputation = data.ComputeReputation(db, org, repo, login, stats)
			contributors[i] = c
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scoring contributors for %s/%s: %w", org, repo, err)
	}

	sort.SliceStable(contributors, func(i, j int) bool {
		if contributors[i].Score != contributors[j].Score {
			return contributors[i].Score > contributors[j].Score
		}
		return contributors[i].Login < contributors[j].Login
	})

	s := &Snapshot{
		GeneratedAt:  time.UnixMilli(now).UTC().Format(time.RFC3339),
		Repo:         org + "/" + repo,
		ModelVersion: trust.ModelVersion,
		Contributors: contributors,
		Stats:        aggregate(contributors, cfg),
	}

	slog.Debug("snapshot built", "repo", s.Repo, "contributors", len(contributors))

	return s, nil
}

// Write serializes the snapshot as indented JSON at path.
func Write(path string, s *Snapshot) error {
	if s == nil {
		return errors.New("snapshot is nil")
	}

	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("writing snapshot to %s: %w", path, err)
	}

	return nil
}

func buildContributor(login string, events []data.ImportedEvent, cfg *trust.Config, now int64) *Contributor {
	state := trust.ContributorState{
		Contributor: login,
		Events:      make([]trust.Event, 0, len(events)),
	}
	for _, e := range events {
		state.Events = append(state.Events, e.Event)
	}
	if len(state.Events) > 0 {
		state.CreatedAt = state.Events[0].Timestamp
	}

	res := trust.Compute(state, cfg, now)

	c := &Contributor{
		Login:       login,
		IsAgent:     level.IsAgent(login),
		Score:       res.Score,
		Tier:        res.Tier,
		TierInfo:    res.TierInfo,
		Warnings:    res.Warnings,
		Breakdown:   res.Breakdown,
		History:     trust.ComputeHistory(state, cfg, now),
		Streak:      trust.CurrentStreak(state.Events),
		EventTotals: make(map[string]int),
	}

	if len(events) > 0 {
		c.AvatarURL = events[len(events)-1].AvatarURL
		c.FirstEventAt = time.UnixMilli(state.Events[0].Timestamp).UTC().Format(time.RFC3339)
		c.LastEventAt = time.UnixMilli(state.Events[len(state.Events)-1].Timestamp).UTC().Format(time.RFC3339)
	}

	var merged, bugs, reviewed int
	activities := make([]level.LabeledActivity, 0, len(events))
	for _, e := range events {
		c.EventTotals[string(e.Event.Type)]++

		if e.Event.ReviewSeverity != "" {
			reviewed++
		}

		if e.Event.Type != trust.EventApprove {
			continue
		}
		merged++
		if hasBugLabel(e.Event.Labels) {
			bugs++
		}
		activities = append(activities, level.LabeledActivity{
			Labels: e.Event.Labels,
			Weight: xpWeight(e.Event.LinesChanged),
		})
	}

	tagXP := level.ComputeTagXP(activities)
	c.Levels = level.ComputeStats(tagXP)
	c.Class = level.DetermineClass(tagXP, c.IsAgent)

	c.Badges = badge.Compute(badge.Input{
		MergedPRs:     merged,
		BugsClosed:    bugs,
		ReviewsGiven:  reviewed,
		LongestStreak: longestActiveDayStreak(state.Events),
		TotalLevel:    c.Levels.TotalLevel,
	})

	return c
}

func aggregate(contributors []*Contributor, cfg *trust.Config) Stats {
	s := Stats{
		Contributors:     len(contributors),
		TierDistribution: make(map[string]int, len(cfg.Tiers)),
	}
	for _, t := range cfg.Tiers {
		s.TierDistribution[t.Label] = 0
	}

	if len(contributors) == 0 {
		return s
	}

	var total float64
	for _, c := range contributors {
		total += c.Score
		s.TierDistribution[c.Tier]++
		for _, n := range c.EventTotals {
			s.Events += n
		}
	}
	s.AvgScore = math.Round(total/float64(len(contributors))*100) / 100

	return s
}

func hasBugLabel(labels []string) bool {
	for _, l := range labels {
		switch trust.NormalizeLabel(l) {
		case "bug", "bugfix", "critical-fix":
			return true
		}
	}
	return false
}

// xpWeight scales XP by contribution size, 10 to 20 points per event.
func xpWeight(lines int) int {
	if lines < 0 {
		lines = 0
	}
	if lines > xpLineCap {
		lines = xpLineCap
	}
	return xpBaseWeight + lines/xpLineDiv
}

// longestActiveDayStreak counts the longest run of consecutive UTC
// calendar days with at least one event.
func longestActiveDayStreak(events []trust.Event) int {
	if len(events) == 0 {
		return 0
	}

	days := make(map[int64]bool, len(events))
	for _, e := range events {
		days[e.Timestamp/(24*int64(time.Hour/time.Millisecond))] = true
	}

	keys := make([]int64, 0, len(days))
	for d := range days {
		keys = append(keys, d)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	longest, run := 1, 1
	for i := 1; i < len(keys); i++ {
		if keys[i] == keys[i-1]+1 {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 1
		}
	}
	return longest
}
