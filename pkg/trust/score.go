package trust

import (
	"fmt"
	"log/slog"
	"math"
	"time"
)

const (
	dayMillis         = int64(24 * 60 * 60 * 1000)
	supersedeWindowMS = dayMillis

	// Maintainer overrides are bounded regardless of what callers pass in.
	manualAdjustmentLimit = 50.0
)

// EventBreakdown is the per-event audit trail: every multiplier applied to
// one event, in the order the engine applied them.
type EventBreakdown struct {
	PRNumber              int       `json:"prNumber" yaml:"prNumber"`
	Type                  EventType `json:"type" yaml:"type"`
	BasePoints            float64   `json:"basePoints" yaml:"basePoints"`
	DiminishingMultiplier float64   `json:"diminishingMultiplier" yaml:"diminishingMultiplier"`
	RecencyWeight         float64   `json:"recencyWeight" yaml:"recencyWeight"`
	DaysSinceEvent        float64   `json:"daysSinceEvent" yaml:"daysSinceEvent"`
	ComplexityMultiplier  float64   `json:"complexityMultiplier" yaml:"complexityMultiplier"`
	CategoryMultiplier    float64   `json:"categoryMultiplier" yaml:"categoryMultiplier"`
	StreakMultiplier      float64   `json:"streakMultiplier" yaml:"streakMultiplier"`
	SeverityMultiplier    float64   `json:"severityMultiplier" yaml:"severityMultiplier"`
	WeightedPoints        float64   `json:"weightedPoints" yaml:"weightedPoints"`
	CappedBy              float64   `json:"cappedBy,omitempty" yaml:"cappedBy,omitempty"`
	FinalPoints           float64   `json:"finalPoints" yaml:"finalPoints"`
}

// Breakdown aggregates the full audit trail for one scoring pass.
// EventDetails has exactly one entry per input event, chronological.
type Breakdown struct {
	RawPoints             float64          `json:"rawPoints" yaml:"rawPoints"`
	DiminishingFactor     float64          `json:"diminishingFactor" yaml:"diminishingFactor"`
	RecencyWeightedPoints float64          `json:"recencyWeightedPoints" yaml:"recencyWeightedPoints"`
	StreakMultiplier      float64          `json:"streakMultiplier" yaml:"streakMultiplier"`
	VelocityPenalty       float64          `json:"velocityPenalty" yaml:"velocityPenalty"`
	InactivityDecay       float64          `json:"inactivityDecay" yaml:"inactivityDecay"`
	ManualAdjustment      float64          `json:"manualAdjustment" yaml:"manualAdjustment"`
	EventDetails          []EventBreakdown `json:"eventDetails" yaml:"eventDetails"`
}

// Result is the output of one scoring pass.
type Result struct {
	Score     float64   `json:"score" yaml:"score"`
	Tier      string    `json:"tier" yaml:"tier"`
	TierInfo  Tier      `json:"tierInfo" yaml:"tierInfo"`
	Breakdown Breakdown `json:"breakdown" yaml:"breakdown"`
	Warnings  []string  `json:"warnings" yaml:"warnings"`
}

// Compute converts a contributor's event history into a bounded trust score,
// a tier, and a full audit trail. It is pure and deterministic: same state,
// config, and now yield bit-identical results. It never errors; malformed or
// empty input degrades to the initial score with a warning. now is epoch
// milliseconds. Safe for concurrent use, all accumulator state is local.
func Compute(state ContributorState, cfg *Config, now int64) *Result {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if now == 0 {
		now = time.Now().UTC().UnixMilli()
	}

	warnings := make([]string, 0)
	breakdown := Breakdown{
		StreakMultiplier: 1,
		EventDetails:     make([]EventBreakdown, 0, len(state.Events)),
	}

	if len(state.Events) == 0 {
		tier := TierFor(cfg.InitialScore, cfg)
		return &Result{
			Score:     cfg.InitialScore,
			Tier:      tier.Label,
			TierInfo:  tier,
			Breakdown: breakdown,
			Warnings:  []string{"No events recorded, using initial score"},
		}
	}

	sorted := sortedByTime(state.Events)
	superseded := supersededPRs(sorted)

	// Running state for the single forward pass.
	approvalCount := 0
	streak := Streak{Type: StreakNone}
	dailyPoints := make(map[string]float64)
	totalWeighted := 0.0
	rawPoints := 0.0
	lastStreakMult := 1.0

	for _, ev := range sorted {
		detail := EventBreakdown{
			PRNumber:              ev.PRNumber,
			Type:                  ev.Type,
			DiminishingMultiplier: 1,
			RecencyWeight:         1,
			ComplexityMultiplier:  1,
			CategoryMultiplier:    1,
			StreakMultiplier:      1,
			SeverityMultiplier:    1,
		}

		basePoints := cfg.BasePoints[ev.Type]
		if superseded[ev.PRNumber] && (ev.Type == EventClose || ev.Type == EventSelfClose) {
			// A close promptly followed by a merge is not a real rejection.
			basePoints = -2
		}
		detail.BasePoints = basePoints
		rawPoints += basePoints

		diminishing := 1.0
		if basePoints >= 0 {
			diminishing = 1 / (1 + cfg.DiminishingRate*math.Log(1+float64(approvalCount)))
			approvalCount++
		}
		detail.DiminishingMultiplier = round(diminishing, 4)

		daysSince := float64(now-ev.Timestamp) / float64(dayMillis)
		recency := math.Pow(0.5, daysSince/cfg.RecencyHalfLifeDays)
		detail.RecencyWeight = round(recency, 4)
		detail.DaysSinceEvent = round(daysSince, 1)

		complexity := complexityMultiplier(ev.LinesChanged, cfg)
		detail.ComplexityMultiplier = complexity

		category := categoryMultiplier(ev.Labels, cfg)
		detail.CategoryMultiplier = category

		streakMult := updateStreak(&streak, ev.Type, cfg)
		detail.StreakMultiplier = round(streakMult, 4)
		lastStreakMult = streakMult

		severity := severityMultiplier(ev, cfg)
		detail.SeverityMultiplier = severity

		var points float64
		if basePoints >= 0 {
			points = basePoints * diminishing * recency * complexity * category * streakMult
		} else {
			// Penalties skip complexity and diminishing returns, and the
			// category weight is floored so low-weight labels cannot soften
			// them below 80%.
			points = basePoints * recency * severity * streakMult * math.Max(category, 0.8)
		}
		detail.WeightedPoints = round(points, 4)

		if points > 0 {
			dateKey := time.UnixMilli(ev.Timestamp).UTC().Format("2006-01-02")
			dayTotal := dailyPoints[dateKey]
			remaining := math.Max(0, cfg.DailyPointCap-dayTotal)
			capped := math.Min(points, remaining)
			if capped < points {
				detail.CappedBy = round(points-capped, 4)
				warnings = append(warnings, fmt.Sprintf(
					"Daily cap hit on %s: PR #%d capped from %.2f to %.2f",
					dateKey, ev.PRNumber, points, capped))
			}
			dailyPoints[dateKey] = dayTotal + capped
			points = capped
		}

		detail.FinalPoints = round(points, 4)
		totalWeighted += points
		breakdown.EventDetails = append(breakdown.EventDetails, detail)
	}

	breakdown.RawPoints = round(rawPoints, 2)
	breakdown.DiminishingFactor = round(1/(1+cfg.DiminishingRate*math.Log(1+float64(approvalCount))), 4)
	breakdown.RecencyWeightedPoints = round(totalWeighted, 4)
	breakdown.StreakMultiplier = round(lastStreakMult, 4)

	// Velocity gate over the whole positive contribution, not per-event.
	windowStart := now - int64(cfg.Velocity.WindowDays)*dayMillis
	recent := 0
	for _, ev := range sorted {
		if ev.Timestamp >= windowStart {
			recent++
		}
	}

	velocityMult := 1.0
	switch {
	case recent > cfg.Velocity.HardCapPRs:
		velocityMult = 0
		warnings = append(warnings, fmt.Sprintf(
			"VELOCITY HARD CAP: %d PRs in %d days (limit: %d)",
			recent, cfg.Velocity.WindowDays, cfg.Velocity.HardCapPRs))
	case recent > cfg.Velocity.SoftCapPRs:
		excess := recent - cfg.Velocity.SoftCapPRs
		velocityMult = math.Max(0.1, 1-float64(excess)*cfg.Velocity.PenaltyPerExcess)
		warnings = append(warnings, fmt.Sprintf(
			"Velocity warning: %d PRs in %d days (soft cap: %d)",
			recent, cfg.Velocity.WindowDays, cfg.Velocity.SoftCapPRs))
	}
	breakdown.VelocityPenalty = round(1-velocityMult, 4)

	adjusted := totalWeighted
	if totalWeighted > 0 {
		adjusted = totalWeighted * velocityMult
	}

	score := cfg.InitialScore + adjusted

	// Inactivity decay: gentle pull toward the target band after the grace
	// period, never below the decay floor from inactivity alone.
	lastEvent := sorted[len(sorted)-1].Timestamp
	daysSinceLast := float64(now-lastEvent) / float64(dayMillis)
	if daysSinceLast > cfg.InactivityDecay.GracePeriodDays && score > cfg.InactivityDecay.DecayTarget {
		decayDays := daysSinceLast - cfg.InactivityDecay.GracePeriodDays
		decayAmount := decayDays * cfg.InactivityDecay.DecayRatePerDay
		target := cfg.InactivityDecay.DecayTarget
		maxDecay := score - math.Max(target, cfg.InactivityDecay.DecayFloor)
		actualDecay := math.Min(maxDecay, (score-target)*decayAmount)
		score -= actualDecay
		breakdown.InactivityDecay = round(actualDecay, 4)
	}

	if state.ManualAdjustment != 0 {
		adj := clamp(state.ManualAdjustment, -manualAdjustmentLimit, manualAdjustmentLimit)
		score += adj
		breakdown.ManualAdjustment = adj
	}

	score = round(clamp(score, cfg.MinScore, cfg.MaxScore), 2)
	tier := TierFor(score, cfg)

	slog.Debug("trust score computed",
		"contributor", state.Contributor,
		"events", len(sorted),
		"score", score,
		"tier", tier.Label)

	return &Result{
		Score:     score,
		Tier:      tier.Label,
		TierInfo:  tier,
		Breakdown: breakdown,
		Warnings:  warnings,
	}
}

// supersededPRs flags close/selfClose events followed by an approve within
// the supersession window. Events must already be sorted by time.
func supersededPRs(sorted []Event) map[int]bool {
	flagged := make(map[int]bool)
	for i, ev := range sorted {
		if ev.Type != EventClose && ev.Type != EventSelfClose {
			continue
		}
		for j := i + 1; j < len(sorted); j++ {
			next := sorted[j]
			if next.Timestamp-ev.Timestamp > supersedeWindowMS {
				break
			}
			if next.Type == EventApprove {
				flagged[ev.PRNumber] = true
				break
			}
		}
	}
	return flagged
}

func complexityMultiplier(linesChanged int, cfg *Config) float64 {
	if linesChanged < 0 {
		linesChanged = 0
	}
	for _, b := range cfg.ComplexityBuckets {
		if linesChanged <= b.MaxLines {
			return b.Multiplier
		}
	}
	return 1.0
}

// categoryMultiplier returns the maximum matched label weight, or the
// default weight when no label matches. Labels are normalized before lookup.
func categoryMultiplier(labels []string, cfg *Config) float64 {
	if len(labels) == 0 {
		return cfg.DefaultCategoryWeight
	}

	maxWeight := 0.0
	found := false
	for _, label := range labels {
		if w, ok := cfg.CategoryWeights[NormalizeLabel(label)]; ok {
			maxWeight = math.Max(maxWeight, w)
			found = true
		}
	}
	if !found {
		return cfg.DefaultCategoryWeight
	}
	return maxWeight
}

// updateStreak advances the running streak for one event and returns the
// multiplier that applies to it. Approvals extend or start an approve
// streak, rejects and closes extend or start a negative streak, and a
// self-close breaks both without starting a new one.
func updateStreak(s *Streak, t EventType, cfg *Config) float64 {
	switch t {
	case EventApprove:
		if s.Type == StreakApprove {
			s.Length++
		} else {
			s.Type = StreakApprove
			s.Length = 1
		}
		bonus := math.Min(float64(s.Length-1)*cfg.Streaks.ApprovalBonus, cfg.Streaks.ApprovalMaxBonus)
		return 1 + bonus

	case EventReject, EventClose:
		if s.Type == StreakNegative {
			s.Length++
		} else {
			s.Type = StreakNegative
			s.Length = 1
		}
		return math.Min(1+float64(s.Length-1)*cfg.Streaks.RejectionPenalty, cfg.Streaks.RejectionMaxPenalty)

	default:
		s.Type = StreakNone
		s.Length = 0
		return 1
	}
}

func severityMultiplier(ev Event, cfg *Config) float64 {
	if ev.Type != EventReject {
		return 1
	}
	sev := ev.ReviewSeverity
	if sev == "" {
		sev = cfg.DefaultReviewSeverity
	}
	if w, ok := cfg.ReviewSeverity[sev]; ok {
		return w
	}
	return cfg.ReviewSeverity[cfg.DefaultReviewSeverity]
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// round rounds to the given number of decimal places.
func round(n float64, decimals int) float64 {
	f := math.Pow(10, float64(decimals))
	return math.Round(n*f) / f
}
