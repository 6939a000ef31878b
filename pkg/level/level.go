// Package level turns labeled contribution activity into per-tag XP, levels,
// and a dominant character class. The XP curve is the classic RuneScape
// formula, precomputed to level 99.
package level

import (
	"math"
	"sort"
	"strings"
)

const maxLevel = 99

// xpTable[i] is the total XP required for level i+1.
var xpTable = buildXPTable()

func buildXPTable() []int {
	table := make([]int, 0, maxLevel)
	table = append(table, 0) // level 1
	total := 0
	for lvl := 1; lvl < maxLevel; lvl++ {
		total += int(math.Floor(float64(lvl) + 150*math.Pow(2, float64(lvl)/10)))
		table = append(table, total/4)
	}
	return table
}

// TagCategory distinguishes repo-area tags from scoring-category tags.
type TagCategory string

const (
	CategoryArea TagCategory = "area"
	CategoryKind TagCategory = "category"
)

// Tag is one XP-earning label.
type Tag struct {
	ID       string      `json:"id" yaml:"id"`
	Name     string      `json:"name" yaml:"name"`
	Category TagCategory `json:"category" yaml:"category"`
}

// Tags returns every XP-earning tag, areas first.
func Tags() []Tag {
	return []Tag{
		{ID: "core", Name: "Core", Category: CategoryArea},
		{ID: "ui", Name: "UI", Category: CategoryArea},
		{ID: "connector", Name: "Connector", Category: CategoryArea},
		{ID: "plugins", Name: "Plugins", Category: CategoryArea},
		{ID: "docs", Name: "Docs", Category: CategoryArea},
		{ID: "tests", Name: "Tests", Category: CategoryArea},
		{ID: "ci", Name: "CI", Category: CategoryArea},
		{ID: "build", Name: "Build", Category: CategoryArea},
		{ID: "deploy", Name: "Deploy", Category: CategoryArea},
		{ID: "security", Name: "Security", Category: CategoryKind},
		{ID: "critical-fix", Name: "Critical Fix", Category: CategoryKind},
		{ID: "feature", Name: "Feature", Category: CategoryKind},
		{ID: "bugfix", Name: "Bugfix", Category: CategoryKind},
		{ID: "refactor", Name: "Refactor", Category: CategoryKind},
		{ID: "chore", Name: "Chore", Category: CategoryKind},
		{ID: "aesthetic", Name: "Aesthetic", Category: CategoryKind},
	}
}

// Progress is the level derived from an XP amount.
type Progress struct {
	Level        int     `json:"level" yaml:"level"`
	Fraction     float64 `json:"fraction" yaml:"fraction"` // 0-1 toward next level
	PointsToNext int     `json:"pointsToNext" yaml:"pointsToNext"`
}

// XPToLevel converts total XP into a level with progress toward the next.
func XPToLevel(xp int) Progress {
	level := 1
	for i := 1; i < len(xpTable); i++ {
		if xp >= xpTable[i] {
			level = i + 1
		} else {
			break
		}
	}

	if level >= maxLevel {
		return Progress{Level: maxLevel, Fraction: 1}
	}

	cur := xpTable[level-1]
	next := xpTable[level]
	span := next - cur
	if span < 1 {
		span = 1
	}
	frac := float64(xp-cur) / float64(span)
	return Progress{
		Level:        level,
		Fraction:     math.Min(1, math.Max(0, frac)),
		PointsToNext: next - xp,
	}
}

// TagScore is a leveled tag on one contributor.
type TagScore struct {
	TagID        string  `json:"tagId" yaml:"tagId"`
	XP           int     `json:"xp" yaml:"xp"`
	Level        int     `json:"level" yaml:"level"`
	Fraction     float64 `json:"fraction" yaml:"fraction"`
	PointsToNext int     `json:"pointsToNext" yaml:"pointsToNext"`
}

// Stats summarizes one contributor's levels across all tags.
type Stats struct {
	TotalLevel int        `json:"totalLevel" yaml:"totalLevel"`
	TotalXP    int        `json:"totalXp" yaml:"totalXp"`
	Tags       []TagScore `json:"tags" yaml:"tags"`
}

// LabeledActivity is one XP-earning event: its labels and a weight.
type LabeledActivity struct {
	Labels []string
	Weight int
}

// ComputeTagXP accumulates XP per tag: each matched label adds the event's
// weight to that tag. Labels are lowercased with spaces collapsed to hyphens
// before matching.
func ComputeTagXP(activities []LabeledActivity) map[string]int {
	tags := Tags()
	xp := make(map[string]int)

	for _, a := range activities {
		normalized := make(map[string]bool, len(a.Labels))
		for _, l := range a.Labels {
			normalized[normalizeLabel(l)] = true
		}
		for _, tag := range tags {
			if normalized[tag.ID] {
				xp[tag.ID] += a.Weight
			}
		}
	}
	return xp
}

// ComputeStats converts per-tag XP into leveled tag scores, sorted by XP
// descending. Tags with no XP are omitted.
func ComputeStats(tagXP map[string]int) Stats {
	s := Stats{Tags: make([]TagScore, 0, len(tagXP))}

	for _, tag := range Tags() {
		xp := tagXP[tag.ID]
		if xp <= 0 {
			continue
		}
		p := XPToLevel(xp)
		s.TotalLevel += p.Level
		s.TotalXP += xp
		s.Tags = append(s.Tags, TagScore{
			TagID:        tag.ID,
			XP:           xp,
			Level:        p.Level,
			Fraction:     p.Fraction,
			PointsToNext: p.PointsToNext,
		})
	}

	sort.SliceStable(s.Tags, func(i, j int) bool {
		return s.Tags[i].XP > s.Tags[j].XP
	})

	return s
}

func normalizeLabel(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), "-")
}
