// Package insights shapes the flat memory-fact list served by the
// backend into the dashboard's derived views: project timelines, skill
// tags, focus highlights, and residual context.
//
// Classification runs four passes in a fixed order: projects, then
// skills, then focus, then everything else. Each pass only sees facts no
// earlier pass claimed, so the four buckets are pairwise disjoint and
// together cover the input. The ordering is a behavioral contract:
// swapping passes changes results (a "goal"-keyed project fact belongs
// to projects, not focus, because the project pass runs first).
package insights

import (
	"strings"
	"unicode"

	"github.com/synapticlabs/synaptic/internal/api"
)

// ProjectGroup aggregates every fact sharing a normalized project name.
// Groups are transient view models, rebuilt from scratch on every fetch.
type ProjectGroup struct {
	Name        string
	Description string
	Memories    []api.MemoryFact
	Milestones  []string
	Progress    int // 0..100
}

// Sections is the classified dashboard view.
type Sections struct {
	Projects []ProjectGroup
	Skills   []api.MemoryFact
	Focus    []api.MemoryFact
	Bio      []api.MemoryFact
}

// Rules are the string-heuristic tables the classifier matches against.
// They are data, not code, so deployments can extend the keyword lists
// without touching the passes.
type Rules struct {
	// Keys treated as too generic to name a project on their own.
	GenericProjectKeys []string
	// Skill pass: key substrings and technology names matched against
	// values, both case-insensitive.
	SkillKeyTerms []string
	Technologies  []string
	// Focus pass: key substrings, plus the importance cutoff for
	// project-category facts.
	FocusKeyTerms      []string
	FocusImportanceMin float64
	// Characters ending the first clause of a value when a project name
	// must be derived from free text, and the cap on that fallback name.
	ClauseSeparators string
	FallbackNameCap  int
	// Progress constants. A group with milestones always ends at
	// min(BaseProgress + MilestoneStep*n, 100); the milestone seed is
	// only visible for groups that never get a recompute, which cannot
	// happen (a milestone-seeded group has at least one milestone).
	BaseProgress          int
	MilestoneSeedProgress int
	MilestoneStep         int
}

// DefaultRules mirrors the product's dashboard heuristics.
func DefaultRules() Rules {
	return Rules{
		GenericProjectKeys: []string{"project", "name"},
		SkillKeyTerms:      []string{"stack", "tech", "language", "skill"},
		Technologies: []string{
			"python", "react", "typescript", "javascript", "node",
			"sql", "rust", "golang", "java", "c++",
		},
		FocusKeyTerms:         []string{"goal", "focus", "deadline"},
		FocusImportanceMin:    0.8,
		ClauseSeparators:      ".!,:",
		FallbackNameCap:       30,
		BaseProgress:          35,
		MilestoneSeedProgress: 50,
		MilestoneStep:         15,
	}
}

// Classify partitions facts into the four dashboard sections. It is a
// pure function: no I/O, no stored state, never panics on malformed
// keys. Empty input yields four empty sections.
func Classify(facts []api.MemoryFact, rules Rules) Sections {
	sections := Sections{
		Projects: []ProjectGroup{},
		Skills:   []api.MemoryFact{},
		Focus:    []api.MemoryFact{},
		Bio:      []api.MemoryFact{},
	}

	claimed := make([]bool, len(facts))

	// Pass 1: projects. Every project/project_milestone fact lands in
	// exactly one group, keyed by normalized name; first-seen order of
	// names is preserved.
	groupIdx := make(map[string]int)
	for i, f := range facts {
		if f.Category != api.CategoryProject && f.Category != api.CategoryProjectMilestone {
			continue
		}
		claimed[i] = true

		name := projectName(f, rules)
		milestone := IsMilestone(f)

		idx, ok := groupIdx[name]
		if !ok {
			g := ProjectGroup{
				Name:     name,
				Memories: []api.MemoryFact{f},
				Progress: rules.BaseProgress,
			}
			if milestone {
				g.Milestones = []string{f.Value}
				g.Progress = rules.MilestoneSeedProgress
			} else {
				g.Description = f.Value
				g.Milestones = []string{}
			}
			groupIdx[name] = len(sections.Projects)
			sections.Projects = append(sections.Projects, g)
			continue
		}

		g := &sections.Projects[idx]
		g.Memories = append(g.Memories, f)
		if milestone {
			g.Milestones = append(g.Milestones, f.Value)
		} else if g.Description == "" {
			// First non-milestone fact wins the description.
			g.Description = f.Value
		}
	}

	// Authoritative progress recompute: any group with milestones gets
	// the formula, overriding whichever seed it started from.
	for i := range sections.Projects {
		g := &sections.Projects[i]
		if n := len(g.Milestones); n > 0 {
			g.Progress = min(rules.BaseProgress+n*rules.MilestoneStep, 100)
		}
	}

	// Pass 2: skills.
	for i, f := range facts {
		if claimed[i] {
			continue
		}
		if f.Category != api.CategoryPersonal && f.Category != api.CategoryPreference {
			continue
		}
		if containsAny(f.Key, rules.SkillKeyTerms) || containsAny(f.Value, rules.Technologies) {
			claimed[i] = true
			sections.Skills = append(sections.Skills, f)
		}
	}

	// Pass 3: focus.
	for i, f := range facts {
		if claimed[i] {
			continue
		}
		if f.Category == api.CategoryPersonal {
			continue
		}
		if containsAny(f.Key, rules.FocusKeyTerms) ||
			(f.Importance > rules.FocusImportanceMin && f.Category == api.CategoryProject) {
			claimed[i] = true
			sections.Focus = append(sections.Focus, f)
		}
	}

	// Pass 4: everything else.
	for i, f := range facts {
		if !claimed[i] {
			sections.Bio = append(sections.Bio, f)
		}
	}

	return sections
}

// projectName derives the display name for a project fact. Keys like
// "project_apollo_milestone_2025-01-05" reduce to "Apollo"; keys with no
// usable structure fall back to the first clause of the value.
func projectName(f api.MemoryFact, rules Rules) string {
	base := strings.TrimPrefix(f.Key, "project_")
	if idx := strings.Index(base, "_milestone_"); idx >= 0 {
		base = base[:idx]
	}
	base = strings.ReplaceAll(base, "_", " ")

	if base == "" || isGenericKey(base, rules) {
		base = firstClause(f.Value, rules.ClauseSeparators)
		if r := []rune(base); len(r) > rules.FallbackNameCap {
			base = string(r[:rules.FallbackNameCap])
		}
	}

	return titleCase(base)
}

func isGenericKey(s string, rules Rules) bool {
	for _, g := range rules.GenericProjectKeys {
		if strings.EqualFold(s, g) {
			return true
		}
	}
	return false
}

// IsMilestone reports whether a fact marks project progress, either by
// category or by an embedded _milestone_ key segment.
func IsMilestone(f api.MemoryFact) bool {
	return f.Category == api.CategoryProjectMilestone || strings.Contains(f.Key, "_milestone_")
}

// firstClause cuts s at the first separator character.
func firstClause(s, separators string) string {
	if idx := strings.IndexAny(s, separators); idx >= 0 {
		return s[:idx]
	}
	return s
}

// titleCase uppercases the first rune and lowercases the rest. This is
// single-word normalization, deliberately not per-word: "ml pipeline"
// becomes "Ml pipeline".
func titleCase(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return string(unicode.ToUpper(r[0])) + strings.ToLower(string(r[1:]))
}

func containsAny(s string, terms []string) bool {
	lower := strings.ToLower(s)
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
