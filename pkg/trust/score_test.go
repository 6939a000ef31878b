package trust

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).UnixMilli()

func daysAgo(d float64) int64 {
	return testNow - int64(d*float64(dayMillis))
}

func approveEvent(pr int, ageDays float64, lines int, labels ...string) Event {
	return Event{
		Type:         EventApprove,
		Timestamp:    daysAgo(ageDays),
		LinesChanged: lines,
		Labels:       labels,
		PRNumber:     pr,
	}
}

func TestCompute_EmptyHistory(t *testing.T) {
	cfg := DefaultConfig()
	res := Compute(ContributorState{Contributor: "newbie"}, cfg, testNow)

	assert.Equal(t, cfg.InitialScore, res.Score)
	assert.Equal(t, "probationary", res.Tier)
	assert.Empty(t, res.Breakdown.EventDetails)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "No events recorded")
}

func TestCompute_NilConfigAndZeroNowDefaulted(t *testing.T) {
	res := Compute(ContributorState{}, nil, 0)
	assert.Equal(t, 35.0, res.Score)
	assert.Equal(t, "probationary", res.Tier)
}

func TestCompute_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	state := ContributorState{
		Contributor: "alice",
		Events: []Event{
			approveEvent(1, 30, 120, "feature"),
			{Type: EventReject, Timestamp: daysAgo(20), PRNumber: 2, ReviewSeverity: SeverityMajor},
			approveEvent(3, 10, 300, "core"),
			{Type: EventSelfClose, Timestamp: daysAgo(5), PRNumber: 4},
			approveEvent(5, 1, 42, "bugfix"),
		},
		ManualAdjustment: 3,
	}

	a := Compute(state, cfg, testNow)
	b := Compute(state, cfg, testNow)
	assert.Equal(t, a, b)
}

func TestCompute_Bounded(t *testing.T) {
	cfg := DefaultConfig()

	// Pile on strong positives.
	high := ContributorState{Contributor: "max", ManualAdjustment: 500}
	for i := 0; i < 80; i++ {
		high.Events = append(high.Events, approveEvent(i+1, float64(i+8), 400, "security"))
	}

	// And heavy negatives.
	low := ContributorState{Contributor: "min", ManualAdjustment: -500}
	for i := 0; i < 80; i++ {
		low.Events = append(low.Events, Event{
			Type:           EventReject,
			Timestamp:      daysAgo(float64(i + 8)),
			PRNumber:       i + 1,
			ReviewSeverity: SeverityCritical,
		})
	}

	for _, state := range []ContributorState{high, low} {
		res := Compute(state, cfg, testNow)
		assert.GreaterOrEqual(t, res.Score, cfg.MinScore, "contributor %s", state.Contributor)
		assert.LessOrEqual(t, res.Score, cfg.MaxScore, "contributor %s", state.Contributor)
	}
}

func TestCompute_GoldenSingleApprove(t *testing.T) {
	// One approve, 42 lines, bugfix label, 2 days old:
	// 12 * 0.5^(2/45) * 0.7 * 1.0 = 8.1452, score 43.15.
	state := ContributorState{
		Contributor: "sample",
		Events:      []Event{approveEvent(42, 2, 42, "bugfix")},
	}
	res := Compute(state, DefaultConfig(), testNow)

	assert.InDelta(t, 43.15, res.Score, 0.001)
	assert.Equal(t, "probationary", res.Tier)
	assert.Greater(t, res.Score, 35.0)
	assert.Empty(t, res.Warnings)

	require.Len(t, res.Breakdown.EventDetails, 1)
	d := res.Breakdown.EventDetails[0]
	assert.Equal(t, 12.0, d.BasePoints)
	assert.Equal(t, 0.7, d.ComplexityMultiplier)
	assert.Equal(t, 1.0, d.CategoryMultiplier)
	assert.Equal(t, 1.0, d.StreakMultiplier)
}

func TestCompute_DiminishingReturns(t *testing.T) {
	// Same-day, same-shape approvals: each successive one gets a strictly
	// smaller diminishing multiplier.
	state := ContributorState{Contributor: "grinder"}
	for i := 0; i < 5; i++ {
		state.Events = append(state.Events, approveEvent(i+1, 1, 20))
	}

	res := Compute(state, DefaultConfig(), testNow)
	require.Len(t, res.Breakdown.EventDetails, 5)

	for i := 1; i < 5; i++ {
		prev := res.Breakdown.EventDetails[i-1].DiminishingMultiplier
		cur := res.Breakdown.EventDetails[i].DiminishingMultiplier
		assert.Less(t, cur, prev, "approval %d should be worth less than %d", i+1, i)
	}

	// Second approval's combined weighted value is below the first's.
	assert.Less(t,
		res.Breakdown.EventDetails[1].FinalPoints,
		res.Breakdown.EventDetails[0].FinalPoints)
}

func TestCompute_RecencyHalfLife(t *testing.T) {
	cfg := DefaultConfig()

	res := Compute(ContributorState{
		Events: []Event{approveEvent(1, 45, 100)},
	}, cfg, testNow)
	require.Len(t, res.Breakdown.EventDetails, 1)
	assert.InDelta(t, 0.5, res.Breakdown.EventDetails[0].RecencyWeight, 0.0001)

	res = Compute(ContributorState{
		Events: []Event{approveEvent(1, 90, 100)},
	}, cfg, testNow)
	assert.InDelta(t, 0.25, res.Breakdown.EventDetails[0].RecencyWeight, 0.0001)
}

func TestCompute_DailyPointCap(t *testing.T) {
	cfg := DefaultConfig()

	// Two big same-day approvals: 12*1.3*1.8 = 28.08 uncapped each, well
	// over the 35 point daily cap combined.
	day := daysAgo(0.5)
	state := ContributorState{
		Contributor: "burst",
		Events: []Event{
			{Type: EventApprove, Timestamp: day, LinesChanged: 400, Labels: []string{"security"}, PRNumber: 1},
			{Type: EventApprove, Timestamp: day + 3600_000, LinesChanged: 400, Labels: []string{"security"}, PRNumber: 2},
		},
	}

	res := Compute(state, cfg, testNow)
	require.Len(t, res.Breakdown.EventDetails, 2)

	sum := res.Breakdown.EventDetails[0].FinalPoints + res.Breakdown.EventDetails[1].FinalPoints
	assert.InDelta(t, cfg.DailyPointCap, sum, 0.001)
	assert.Greater(t, res.Breakdown.EventDetails[1].CappedBy, 0.0)

	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "Daily cap hit") {
			found = true
		}
	}
	assert.True(t, found, "expected a daily cap warning, got %v", res.Warnings)
}

func TestCompute_DailyCapSeparateDays(t *testing.T) {
	// Same volume split across two UTC days stays uncapped.
	state := ContributorState{
		Events: []Event{
			approveEvent(1, 2, 400, "security"),
			approveEvent(2, 1, 400, "security"),
		},
	}
	res := Compute(state, DefaultConfig(), testNow)
	for _, d := range res.Breakdown.EventDetails {
		assert.Zero(t, d.CappedBy)
	}
	assert.Empty(t, res.Warnings)
}

func TestCompute_VelocityHardCap(t *testing.T) {
	cfg := DefaultConfig()

	// 26 approvals inside the 7 day window trips the hard cap (25): the
	// entire positive contribution is zeroed.
	state := ContributorState{Contributor: "flood"}
	for i := 0; i < 26; i++ {
		state.Events = append(state.Events, approveEvent(i+1, float64(i%6)+0.5, 10))
	}

	res := Compute(state, cfg, testNow)
	assert.Equal(t, cfg.InitialScore, res.Score)
	assert.Equal(t, 1.0, res.Breakdown.VelocityPenalty)

	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "VELOCITY HARD CAP") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCompute_VelocitySoftCap(t *testing.T) {
	cfg := DefaultConfig()

	// 12 approvals in window: 2 over the soft cap, multiplier 0.7.
	state := ContributorState{Contributor: "busy"}
	for i := 0; i < 12; i++ {
		state.Events = append(state.Events, approveEvent(i+1, float64(i%6)+0.5, 10))
	}

	res := Compute(state, cfg, testNow)
	assert.InDelta(t, 0.3, res.Breakdown.VelocityPenalty, 0.0001)

	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "Velocity warning") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCompute_VelocityPenaltySkipsNegativeTotals(t *testing.T) {
	cfg := DefaultConfig()

	// 12 rejects in the window: soft cap warning fires, but the penalty
	// multiplier never shrinks a negative aggregate.
	state := ContributorState{Contributor: "rough"}
	for i := 0; i < 12; i++ {
		state.Events = append(state.Events, Event{
			Type:      EventReject,
			Timestamp: daysAgo(float64(i%6) + 0.5),
			PRNumber:  i + 1,
		})
	}

	res := Compute(state, cfg, testNow)
	expected := clamp(cfg.InitialScore+res.Breakdown.RecencyWeightedPoints, cfg.MinScore, cfg.MaxScore)
	assert.InDelta(t, expected, res.Score, 0.001)
	assert.Greater(t, res.Breakdown.VelocityPenalty, 0.0)
}

func TestCompute_InactivityDecayInert(t *testing.T) {
	state := ContributorState{
		Events: []Event{approveEvent(1, 5, 300, "core")},
	}
	res := Compute(state, DefaultConfig(), testNow)
	assert.Zero(t, res.Breakdown.InactivityDecay)
}

func TestCompute_InactivityDecayActive(t *testing.T) {
	// Strong history, then 40 days of silence: 30 decay days at 0.005/day
	// pulls the score toward the target band.
	state := ContributorState{Contributor: "ghost"}
	for i := 0; i < 4; i++ {
		state.Events = append(state.Events, approveEvent(i+1, float64(40+i), 400, "security"))
	}

	res := Compute(state, DefaultConfig(), testNow)
	assert.Greater(t, res.Breakdown.InactivityDecay, 0.0)
	assert.GreaterOrEqual(t, res.Score, 40.0-0.01)
}

func TestCompute_Supersession(t *testing.T) {
	closeAt := daysAgo(3)

	state := ContributorState{
		Events: []Event{
			{Type: EventClose, Timestamp: closeAt, PRNumber: 7},
			{Type: EventApprove, Timestamp: closeAt + 2*3600_000, LinesChanged: 100, PRNumber: 8},
		},
	}
	res := Compute(state, DefaultConfig(), testNow)
	require.Len(t, res.Breakdown.EventDetails, 2)
	assert.Equal(t, -2.0, res.Breakdown.EventDetails[0].BasePoints)
}

func TestCompute_SupersessionWindowExpires(t *testing.T) {
	closeAt := daysAgo(5)

	state := ContributorState{
		Events: []Event{
			{Type: EventClose, Timestamp: closeAt, PRNumber: 7},
			{Type: EventApprove, Timestamp: closeAt + 25*3600_000, LinesChanged: 100, PRNumber: 8},
		},
	}
	res := Compute(state, DefaultConfig(), testNow)
	assert.Equal(t, -5.0, res.Breakdown.EventDetails[0].BasePoints)
}

func TestCompute_ManualAdjustmentClamped(t *testing.T) {
	state := ContributorState{
		Events:           []Event{approveEvent(1, 2, 100)},
		ManualAdjustment: 120,
	}
	res := Compute(state, DefaultConfig(), testNow)
	assert.Equal(t, 50.0, res.Breakdown.ManualAdjustment)

	state.ManualAdjustment = -120
	res = Compute(state, DefaultConfig(), testNow)
	assert.Equal(t, -50.0, res.Breakdown.ManualAdjustment)
}

func TestCompute_EventDetailsChronological(t *testing.T) {
	// Input deliberately out of order; breakdown must come back sorted with
	// one entry per event.
	state := ContributorState{
		Events: []Event{
			approveEvent(3, 1, 50),
			approveEvent(1, 30, 50),
			approveEvent(2, 15, 50),
		},
	}
	res := Compute(state, DefaultConfig(), testNow)
	require.Len(t, res.Breakdown.EventDetails, 3)
	assert.Equal(t, 1, res.Breakdown.EventDetails[0].PRNumber)
	assert.Equal(t, 2, res.Breakdown.EventDetails[1].PRNumber)
	assert.Equal(t, 3, res.Breakdown.EventDetails[2].PRNumber)
}

func TestCompute_StreakBonusAndBreak(t *testing.T) {
	state := ContributorState{
		Events: []Event{
			approveEvent(1, 9, 100),
			approveEvent(2, 8, 100),
			approveEvent(3, 7.5, 100),
			{Type: EventSelfClose, Timestamp: daysAgo(7.2), PRNumber: 4},
			approveEvent(5, 7.1, 100),
		},
	}
	res := Compute(state, DefaultConfig(), testNow)
	details := res.Breakdown.EventDetails
	require.Len(t, details, 5)

	assert.Equal(t, 1.0, details[0].StreakMultiplier)
	assert.InDelta(t, 1.08, details[1].StreakMultiplier, 0.0001)
	assert.InDelta(t, 1.16, details[2].StreakMultiplier, 0.0001)
	// Self-close broke the streak; the next approval starts over.
	assert.Equal(t, 1.0, details[4].StreakMultiplier)
}

func TestCompute_RejectionStreakCompounds(t *testing.T) {
	state := ContributorState{}
	for i := 0; i < 3; i++ {
		state.Events = append(state.Events, Event{
			Type:      EventReject,
			Timestamp: daysAgo(float64(10 - i)),
			PRNumber:  i + 1,
		})
	}
	res := Compute(state, DefaultConfig(), testNow)
	details := res.Breakdown.EventDetails

	assert.Equal(t, 1.0, details[0].StreakMultiplier)
	assert.InDelta(t, 1.15, details[1].StreakMultiplier, 0.0001)
	assert.InDelta(t, 1.30, details[2].StreakMultiplier, 0.0001)
}

func TestCompute_SeverityMultiplier(t *testing.T) {
	tests := []struct {
		severity ReviewSeverity
		want     float64
	}{
		{SeverityCritical, 1.8},
		{SeverityMajor, 1.3},
		{SeverityNormal, 1.0},
		{SeverityMinor, 0.5},
		{SeverityTrivial, 0.3},
		{"", 1.0},        // unspecified falls back to normal
		{"bananas", 1.0}, // unknown falls back to normal
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("severity_%s", tc.severity), func(t *testing.T) {
			state := ContributorState{
				Events: []Event{{
					Type:           EventReject,
					Timestamp:      daysAgo(1),
					PRNumber:       1,
					ReviewSeverity: tc.severity,
				}},
			}
			res := Compute(state, DefaultConfig(), testNow)
			assert.Equal(t, tc.want, res.Breakdown.EventDetails[0].SeverityMultiplier)
		})
	}
}

func TestCompute_PenaltyCategoryFloor(t *testing.T) {
	// A docs label (0.6) may not soften a rejection below the 0.8 floor.
	state := ContributorState{
		Events: []Event{{
			Type:      EventReject,
			Timestamp: daysAgo(0.5),
			Labels:    []string{"docs"},
			PRNumber:  1,
		}},
	}
	res := Compute(state, DefaultConfig(), testNow)
	d := res.Breakdown.EventDetails[0]

	assert.Equal(t, 0.6, d.CategoryMultiplier)
	// -6 * recency * 1.0 severity * 1.0 streak * 0.8 floor
	assert.InDelta(t, -6*d.RecencyWeight*0.8, d.FinalPoints, 0.001)
}

func TestComplexityMultiplier(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		lines int
		want  float64
	}{
		{0, 0.4},
		{10, 0.4},
		{11, 0.7},
		{50, 0.7},
		{150, 1.0},
		{500, 1.3},
		{1500, 1.5},
		{1501, 1.2}, // massive is a penalty relative to xlarge
		{-5, 0.4},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, complexityMultiplier(tc.lines, cfg), "lines=%d", tc.lines)
	}
}

func TestCategoryMultiplier(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 0.8, categoryMultiplier(nil, cfg))
	assert.Equal(t, 0.8, categoryMultiplier([]string{"mystery"}, cfg))
	assert.Equal(t, 1.8, categoryMultiplier([]string{"docs", "security"}, cfg))
	assert.Equal(t, 1.5, categoryMultiplier([]string{"Critical Fix"}, cfg))
	assert.Equal(t, 0.4, categoryMultiplier([]string{"AESTHETIC"}, cfg))
}

func TestTierFor_Boundaries(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		score float64
		want  string
	}{
		{100, "legendary"},
		{90, "legendary"},
		{89.99, "trusted"},
		{75, "trusted"},
		{60, "established"},
		{45, "contributing"},
		{35, "probationary"},
		{30, "probationary"},
		{15, "untested"},
		{14.99, "restricted"},
		{0, "restricted"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, TierFor(tc.score, cfg).Label, "score=%v", tc.score)
	}
}

func TestTierFor_AutoMerge(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, TierFor(95, cfg).AutoMerge)
	assert.False(t, TierFor(80, cfg).AutoMerge)
}
