package level

import (
	"sort"
	"strings"
)

// Class is a contributor archetype derived from dominant tag XP.
type Class string

const (
	ClassCoreDev   Class = "core-dev"
	ClassConnector Class = "connector"
	ClassDesigner  Class = "designer"
	ClassScribe    Class = "scribe"
	ClassGuardian  Class = "guardian"
	ClassInfra     Class = "infra"
	ClassMachine   Class = "machine"
	ClassAnon      Class = "anon"
)

// ClassInfo describes one character class.
type ClassInfo struct {
	ID          Class  `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

var classes = map[Class]ClassInfo{
	ClassCoreDev:   {ID: ClassCoreDev, Name: "Core Dev", Description: "Primary contributor to core and plugin systems"},
	ClassConnector: {ID: ClassConnector, Name: "Connector", Description: "Specializes in connector integrations"},
	ClassDesigner:  {ID: ClassDesigner, Name: "Designer", Description: "UI and aesthetic focus"},
	ClassScribe:    {ID: ClassScribe, Name: "Scribe", Description: "Documentation specialist"},
	ClassGuardian:  {ID: ClassGuardian, Name: "Guardian", Description: "Security, testing, and critical fixes"},
	ClassInfra:     {ID: ClassInfra, Name: "Infra", Description: "CI/CD, build, and deployment"},
	ClassMachine:   {ID: ClassMachine, Name: "Machine", Description: "Automated agent contributor"},
	ClassAnon:      {ID: ClassAnon, Name: "Anon", Description: "General contributor"},
}

var classByTag = map[string]Class{
	"core":         ClassCoreDev,
	"plugins":      ClassCoreDev,
	"plugin":       ClassCoreDev,
	"connector":    ClassConnector,
	"ui":           ClassDesigner,
	"aesthetic":    ClassDesigner,
	"docs":         ClassScribe,
	"documentation": ClassScribe,
	"security":     ClassGuardian,
	"critical-fix": ClassGuardian,
	"tests":        ClassGuardian,
	"test":         ClassGuardian,
	"ci":           ClassInfra,
	"build":        ClassInfra,
	"deploy":       ClassInfra,
}

// GetClass returns the class info for a given id, falling back to anon.
func GetClass(id Class) ClassInfo {
	if c, ok := classes[id]; ok {
		return c
	}
	return classes[ClassAnon]
}

// DetermineClass picks a character class from the dominant tag by XP.
// Agents are always machines; no XP means anon. Ties break on tag id so the
// result is deterministic.
func DetermineClass(tagXP map[string]int, isAgent bool) ClassInfo {
	if isAgent {
		return classes[ClassMachine]
	}
	if len(tagXP) == 0 {
		return classes[ClassAnon]
	}

	type entry struct {
		tag string
		xp  int
	}
	entries := make([]entry, 0, len(tagXP))
	for tag, xp := range tagXP {
		entries = append(entries, entry{tag, xp})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].xp != entries[j].xp {
			return entries[i].xp > entries[j].xp
		}
		return entries[i].tag < entries[j].tag
	})

	if c, ok := classByTag[entries[0].tag]; ok {
		return classes[c]
	}
	return classes[ClassAnon]
}

// knownAgents are username fragments of common automation accounts.
var knownAgents = []string{
	"dependabot",
	"renovate",
	"github-actions",
	"codecov",
}

// IsAgent reports whether a username looks like a bot account.
func IsAgent(username string) bool {
	lower := strings.ToLower(username)
	if strings.HasSuffix(lower, "[bot]") || strings.Contains(lower, "-bot") {
		return true
	}
	for _, a := range knownAgents {
		if strings.Contains(lower, a) {
			return true
		}
	}
	return false
}
