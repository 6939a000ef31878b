package trust

import (
	"sort"
	"strings"
)

// EventType is the outcome category of a reviewed/closed contribution.
type EventType string

const (
	// EventApprove is a merged pull request.
	EventApprove EventType = "approve"
	// EventReject is a pull request closed with a changes-requested review.
	EventReject EventType = "reject"
	// EventClose is a pull request closed unmerged by someone other than the author.
	EventClose EventType = "close"
	// EventSelfClose is a pull request closed unmerged by its own author.
	EventSelfClose EventType = "selfClose"
)

// ReviewSeverity qualifies how serious a rejection was.
type ReviewSeverity string

const (
	SeverityCritical ReviewSeverity = "critical"
	SeverityMajor    ReviewSeverity = "major"
	SeverityNormal   ReviewSeverity = "normal"
	SeverityMinor    ReviewSeverity = "minor"
	SeverityTrivial  ReviewSeverity = "trivial"
)

// Event is one reviewed or closed contribution. Timestamps are epoch
// milliseconds, the instant the event became final.
type Event struct {
	Type           EventType      `json:"type" yaml:"type"`
	Timestamp      int64          `json:"timestamp" yaml:"timestamp"`
	LinesChanged   int            `json:"linesChanged" yaml:"linesChanged"`
	Labels         []string       `json:"labels,omitempty" yaml:"labels,omitempty"`
	ReviewSeverity ReviewSeverity `json:"reviewSeverity,omitempty" yaml:"reviewSeverity,omitempty"`
	PRNumber       int            `json:"prNumber" yaml:"prNumber"`
}

// ContributorState is the full input for one contributor. Events may be in
// any order; the engine sorts before scoring. ManualAdjustment is a
// maintainer override, clamped to ±50 at scoring time.
type ContributorState struct {
	Contributor      string  `json:"contributor" yaml:"contributor"`
	CreatedAt        int64   `json:"createdAt" yaml:"createdAt"`
	Events           []Event `json:"events" yaml:"events"`
	ManualAdjustment float64 `json:"manualAdjustment,omitempty" yaml:"manualAdjustment,omitempty"`
}

// StreakType is the direction of a run of consecutive same-direction outcomes.
type StreakType string

const (
	StreakApprove  StreakType = "approve"
	StreakNegative StreakType = "negative"
	StreakNone     StreakType = ""
)

// Streak is a run of consecutive same-direction outcomes.
type Streak struct {
	Type   StreakType `json:"type" yaml:"type"`
	Length int        `json:"length" yaml:"length"`
}

// CurrentStreak returns the trailing streak for a contributor's events.
// Self-closes are neutral and skipped; the scan stops at the first
// direction change.
func CurrentStreak(events []Event) Streak {
	sorted := sortedByTime(events)

	s := Streak{Type: StreakNone}
	for i := len(sorted) - 1; i >= 0; i-- {
		var dir StreakType
		switch sorted[i].Type {
		case EventApprove:
			dir = StreakApprove
		case EventReject, EventClose:
			dir = StreakNegative
		default:
			continue
		}

		if s.Type == StreakNone {
			s.Type = dir
			s.Length = 1
			continue
		}
		if s.Type != dir {
			break
		}
		s.Length++
	}
	return s
}

// NormalizeLabel lowercases a label and collapses whitespace runs to hyphens
// so free-text labels match the category weight table.
func NormalizeLabel(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), "-")
}

func sortedByTime(events []Event) []Event {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})
	return sorted
}
