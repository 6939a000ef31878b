package trust

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelVersion is the current trust scoring model version.
const ModelVersion = "1.0.0"

// ComplexityBucket maps a change-size ceiling to a multiplier. Buckets are
// evaluated in order; the first bucket whose MaxLines is not exceeded wins.
type ComplexityBucket struct {
	MaxLines   int     `json:"maxLines" yaml:"maxLines"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
	Label      string  `json:"label" yaml:"label"`
}

// Tier is one reputation band. Tiers are ordered descending by MinScore.
type Tier struct {
	MinScore    float64 `json:"minScore" yaml:"minScore"`
	Label       string  `json:"label" yaml:"label"`
	Description string  `json:"description" yaml:"description"`
	AutoMerge   bool    `json:"autoMerge" yaml:"autoMerge"`
}

// StreakConfig tunes the consecutive-outcome multipliers.
type StreakConfig struct {
	ApprovalBonus       float64 `json:"approvalBonus" yaml:"approvalBonus"`
	ApprovalMaxBonus    float64 `json:"approvalMaxBonus" yaml:"approvalMaxBonus"`
	RejectionPenalty    float64 `json:"rejectionPenalty" yaml:"rejectionPenalty"`
	RejectionMaxPenalty float64 `json:"rejectionMaxPenalty" yaml:"rejectionMaxPenalty"`
}

// DecayConfig tunes the inactivity pull-down toward the target band.
type DecayConfig struct {
	GracePeriodDays float64 `json:"gracePeriodDays" yaml:"gracePeriodDays"`
	DecayRatePerDay float64 `json:"decayRatePerDay" yaml:"decayRatePerDay"`
	DecayFloor      float64 `json:"decayFloor" yaml:"decayFloor"`
	DecayTarget     float64 `json:"decayTarget" yaml:"decayTarget"`
}

// VelocityConfig tunes the rolling-window event rate gate.
type VelocityConfig struct {
	WindowDays       int     `json:"windowDays" yaml:"windowDays"`
	SoftCapPRs       int     `json:"softCapPRs" yaml:"softCapPRs"`
	HardCapPRs       int     `json:"hardCapPRs" yaml:"hardCapPRs"`
	PenaltyPerExcess float64 `json:"penaltyPerExcess" yaml:"penaltyPerExcess"`
}

// Config holds every tunable of the scoring model. It is a plain value
// object with no behavior; construct one with DefaultConfig and pass it by
// reference into every engine call. The engine never mutates it.
type Config struct {
	BasePoints            map[EventType]float64      `json:"basePoints" yaml:"basePoints"`
	DiminishingRate       float64                    `json:"diminishingRate" yaml:"diminishingRate"`
	RecencyHalfLifeDays   float64                    `json:"recencyHalfLifeDays" yaml:"recencyHalfLifeDays"`
	ComplexityBuckets     []ComplexityBucket         `json:"complexityBuckets" yaml:"complexityBuckets"`
	CategoryWeights       map[string]float64         `json:"categoryWeights" yaml:"categoryWeights"`
	DefaultCategoryWeight float64                    `json:"defaultCategoryWeight" yaml:"defaultCategoryWeight"`
	Streaks               StreakConfig               `json:"streaks" yaml:"streaks"`
	InactivityDecay       DecayConfig                `json:"inactivityDecay" yaml:"inactivityDecay"`
	Velocity              VelocityConfig             `json:"velocity" yaml:"velocity"`
	ReviewSeverity        map[ReviewSeverity]float64 `json:"reviewSeverity" yaml:"reviewSeverity"`
	DefaultReviewSeverity ReviewSeverity             `json:"defaultReviewSeverity" yaml:"defaultReviewSeverity"`
	MinScore              float64                    `json:"minScore" yaml:"minScore"`
	MaxScore              float64                    `json:"maxScore" yaml:"maxScore"`
	InitialScore          float64                    `json:"initialScore" yaml:"initialScore"`
	DailyPointCap         float64                    `json:"dailyPointCap" yaml:"dailyPointCap"`
	Tiers                 []Tier                     `json:"tiers" yaml:"tiers"`
}

// DefaultConfig returns the canonical model tuning. Two historical variants
// of the model exist: this one (daily cap 35, unlabeled category weight 0.8,
// velocity caps 10/25) and the legacy dashboard tuning captured by
// LegacyDashboardConfig. Both are valid; pick explicitly.
func DefaultConfig() *Config {
	return &Config{
		BasePoints: map[EventType]float64{
			EventApprove:   12,
			EventReject:    -6,
			EventClose:     -5,
			EventSelfClose: -2,
		},
		DiminishingRate:     0.2,
		RecencyHalfLifeDays: 45,
		ComplexityBuckets: []ComplexityBucket{
			{MaxLines: 10, Multiplier: 0.4, Label: "trivial"},
			{MaxLines: 50, Multiplier: 0.7, Label: "small"},
			{MaxLines: 150, Multiplier: 1.0, Label: "medium"},
			{MaxLines: 500, Multiplier: 1.3, Label: "large"},
			{MaxLines: 1500, Multiplier: 1.5, Label: "xlarge"},
			{MaxLines: math.MaxInt, Multiplier: 1.2, Label: "massive"},
		},
		CategoryWeights: map[string]float64{
			"security":     1.8,
			"critical-fix": 1.5,
			"core":         1.3,
			"feature":      1.1,
			"bugfix":       1.0,
			"refactor":     0.9,
			"test":         0.8,
			"docs":         0.6,
			"chore":        0.5,
			"aesthetic":    0.4,
		},
		DefaultCategoryWeight: 0.8,
		Streaks: StreakConfig{
			ApprovalBonus:       0.08,
			ApprovalMaxBonus:    0.5,
			RejectionPenalty:    0.15,
			RejectionMaxPenalty: 2.5,
		},
		InactivityDecay: DecayConfig{
			GracePeriodDays: 10,
			DecayRatePerDay: 0.005,
			DecayFloor:      30,
			DecayTarget:     40,
		},
		Velocity: VelocityConfig{
			WindowDays:       7,
			SoftCapPRs:       10,
			HardCapPRs:       25,
			PenaltyPerExcess: 0.15,
		},
		ReviewSeverity: map[ReviewSeverity]float64{
			SeverityCritical: 1.8,
			SeverityMajor:    1.3,
			SeverityNormal:   1.0,
			SeverityMinor:    0.5,
			SeverityTrivial:  0.3,
		},
		DefaultReviewSeverity: SeverityNormal,
		MinScore:              0,
		MaxScore:              100,
		InitialScore:          35,
		DailyPointCap:         35,
		Tiers: []Tier{
			{MinScore: 90, Label: "legendary", Description: "Elite contributor, auto-merge eligible", AutoMerge: true},
			{MinScore: 75, Label: "trusted", Description: "Highly trusted, expedited review"},
			{MinScore: 60, Label: "established", Description: "Proven track record"},
			{MinScore: 45, Label: "contributing", Description: "Active contributor, standard review"},
			{MinScore: 30, Label: "probationary", Description: "Building trust, closer scrutiny"},
			{MinScore: 15, Label: "untested", Description: "New or low-activity contributor"},
			{MinScore: 0, Label: "restricted", Description: "Trust deficit, requires sponsor review"},
		},
	}
}

// LegacyDashboardConfig returns the tuning the original web dashboard
// shipped with. Kept for simulation and side-by-side comparison.
func LegacyDashboardConfig() *Config {
	c := DefaultConfig()
	c.DefaultCategoryWeight = 1.0
	c.DailyPointCap = 50
	c.Velocity.SoftCapPRs = 15
	c.Velocity.HardCapPRs = 40
	return c
}

// LoadConfig reads a YAML tuning file and layers it over DefaultConfig.
// Fields absent from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is required")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("unmarshalling config file %s: %w", path, err)
	}

	return c, nil
}

// TierFor returns the first tier whose MinScore does not exceed the score.
// The lowest tier is the fallback for anything below all thresholds.
func TierFor(score float64, cfg *Config) Tier {
	for _, t := range cfg.Tiers {
		if score >= t.MinScore {
			return t
		}
	}
	return cfg.Tiers[len(cfg.Tiers)-1]
}
