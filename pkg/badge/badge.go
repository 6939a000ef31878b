// Package badge computes achievement badges from contributor activity
// totals. Five badge types, each with three ranks and fixed thresholds.
package badge

import "math"

// Rank is a badge achievement level, lowest to highest.
type Rank string

const (
	RankBronze Rank = "bronze"
	RankSilver Rank = "silver"
	RankGold   Rank = "gold"
)

// Type identifies one badge family.
type Type string

const (
	TypeShipper    Type = "shipper"     // merged pull requests
	TypeBugFixer   Type = "bug-fixer"   // closed bug-labeled contributions
	TypeReviewer   Type = "reviewer"    // reviews given
	TypeStreak     Type = "streak"      // longest consecutive active days
	TypeAllRounder Type = "all-rounder" // total level across all tags
)

// Definition describes a badge family and its rank thresholds.
type Definition struct {
	Type        Type          `json:"type" yaml:"type"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description" yaml:"description"`
	Thresholds  map[Rank]int  `json:"thresholds" yaml:"thresholds"`
}

// Earned is one badge with progress toward the next rank.
type Earned struct {
	Type          Type    `json:"type" yaml:"type"`
	Rank          Rank    `json:"rank" yaml:"rank"`
	Name          string  `json:"name" yaml:"name"`
	Progress      float64 `json:"progress" yaml:"progress"` // 0-1 toward next rank, 1 at max
	CurrentValue  int     `json:"currentValue" yaml:"currentValue"`
	NextThreshold int     `json:"nextThreshold,omitempty" yaml:"nextThreshold,omitempty"`
}

// Input holds the activity totals badges are computed from.
type Input struct {
	MergedPRs     int
	BugsClosed    int
	ReviewsGiven  int
	LongestStreak int
	TotalLevel    int
}

// Definitions returns the badge table, fixed order.
func Definitions() []Definition {
	return []Definition{
		{
			Type:        TypeShipper,
			Name:        "Shipper",
			Description: "Merged pull requests",
			Thresholds:  map[Rank]int{RankBronze: 5, RankSilver: 25, RankGold: 100},
		},
		{
			Type:        TypeBugFixer,
			Name:        "Bug Fixer",
			Description: "Bug-labeled contributions closed",
			Thresholds:  map[Rank]int{RankBronze: 3, RankSilver: 15, RankGold: 50},
		},
		{
			Type:        TypeReviewer,
			Name:        "Reviewer",
			Description: "Reviews given",
			Thresholds:  map[Rank]int{RankBronze: 10, RankSilver: 50, RankGold: 200},
		},
		{
			Type:        TypeStreak,
			Name:        "Streak",
			Description: "Longest consecutive active days",
			Thresholds:  map[Rank]int{RankBronze: 7, RankSilver: 30, RankGold: 60},
		},
		{
			Type:        TypeAllRounder,
			Name:        "All Rounder",
			Description: "Total level across all tags",
			Thresholds:  map[Rank]int{RankBronze: 10, RankSilver: 30, RankGold: 50},
		},
	}
}

// rank order for highest-first threshold checks
var rankOrder = []Rank{RankGold, RankSilver, RankBronze}

// Compute returns all badge families with the earned rank and progress for
// the given totals. A family whose bronze threshold is not met comes back at
// bronze rank with progress toward it and IsEarned false.
func Compute(in Input) []Earned {
	values := map[Type]int{
		TypeShipper:    in.MergedPRs,
		TypeBugFixer:   in.BugsClosed,
		TypeReviewer:   in.ReviewsGiven,
		TypeStreak:     in.LongestStreak,
		TypeAllRounder: in.TotalLevel,
	}

	earned := make([]Earned, 0, len(values))
	for _, def := range Definitions() {
		value := values[def.Type]

		var got Rank
		for _, r := range rankOrder {
			if value >= def.Thresholds[r] {
				got = r
				break
			}
		}

		if got == "" {
			earned = append(earned, Earned{
				Type:          def.Type,
				Rank:          RankBronze,
				Name:          def.Name,
				Progress:      math.Min(1, float64(value)/float64(def.Thresholds[RankBronze])),
				CurrentValue:  value,
				NextThreshold: def.Thresholds[RankBronze],
			})
			continue
		}

		next := nextRank(got)
		e := Earned{
			Type:         def.Type,
			Rank:         got,
			Name:         def.Name,
			Progress:     1,
			CurrentValue: value,
		}
		if next != "" {
			e.NextThreshold = def.Thresholds[next]
			e.Progress = math.Min(1, float64(value)/float64(e.NextThreshold))
		}
		earned = append(earned, e)
	}

	return earned
}

// IsEarned reports whether the badge's bronze threshold has been met.
func IsEarned(e Earned) bool {
	for _, def := range Definitions() {
		if def.Type == e.Type {
			return e.CurrentValue >= def.Thresholds[RankBronze]
		}
	}
	return false
}

func nextRank(r Rank) Rank {
	switch r {
	case RankBronze:
		return RankSilver
	case RankSilver:
		return RankGold
	default:
		return ""
	}
}
