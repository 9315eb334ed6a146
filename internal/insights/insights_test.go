package insights

import (
	"fmt"
	"testing"

	"github.com/synapticlabs/synaptic/internal/api"
)

func fact(id, key, value, category string, importance float64) api.MemoryFact {
	return api.MemoryFact{
		ID:         id,
		Key:        key,
		Value:      value,
		Category:   category,
		Importance: importance,
	}
}

func TestClassify_Empty(t *testing.T) {
	s := Classify(nil, DefaultRules())
	if len(s.Projects) != 0 || len(s.Skills) != 0 || len(s.Focus) != 0 || len(s.Bio) != 0 {
		t.Errorf("empty input should yield four empty sections, got %+v", s)
	}
}

func TestClassify_ProjectGrouping(t *testing.T) {
	facts := []api.MemoryFact{
		fact("1", "project_apollo", "Build a rocket.", api.CategoryProject, 0.5),
		fact("2", "project_apollo_milestone_2025-01-05", "Engine test passed", api.CategoryProjectMilestone, 0.5),
	}

	s := Classify(facts, DefaultRules())

	if len(s.Projects) != 1 {
		t.Fatalf("projects = %d, want 1", len(s.Projects))
	}
	p := s.Projects[0]
	if p.Name != "Apollo" {
		t.Errorf("name = %q, want Apollo", p.Name)
	}
	if p.Description != "Build a rocket." {
		t.Errorf("description = %q, want %q", p.Description, "Build a rocket.")
	}
	if len(p.Milestones) != 1 || p.Milestones[0] != "Engine test passed" {
		t.Errorf("milestones = %v, want [Engine test passed]", p.Milestones)
	}
	if p.Progress != 50 {
		t.Errorf("progress = %d, want 50", p.Progress)
	}
	if len(p.Memories) != 2 {
		t.Errorf("memories = %d, want 2", len(p.Memories))
	}
}

func TestClassify_Progress(t *testing.T) {
	tests := []struct {
		milestones int
		want       int
	}{
		{0, 35},
		{1, 50},
		{3, 80},
		{10, 100},
	}

	for _, tt := range tests {
		facts := []api.MemoryFact{
			fact("base", "project_orion", "Crew capsule", api.CategoryProject, 0.5),
		}
		for i := 0; i < tt.milestones; i++ {
			facts = append(facts, fact(
				fmt.Sprintf("m%d", i),
				"project_orion_milestone_x",
				fmt.Sprintf("step %d", i),
				api.CategoryProjectMilestone, 0.5))
		}

		s := Classify(facts, DefaultRules())
		if len(s.Projects) != 1 {
			t.Fatalf("milestones=%d: projects = %d, want 1", tt.milestones, len(s.Projects))
		}
		if got := s.Projects[0].Progress; got != tt.want {
			t.Errorf("milestones=%d: progress = %d, want %d", tt.milestones, got, tt.want)
		}
	}
}

func TestClassify_MilestoneFirstSeedIsOverridden(t *testing.T) {
	// A group seeded by a milestone fact starts at 50, but the recompute
	// pass is authoritative: one milestone still means 50, two mean 65.
	facts := []api.MemoryFact{
		fact("1", "project_helios_milestone_2025-02-01", "Mirror aligned", api.CategoryProjectMilestone, 0.5),
		fact("2", "project_helios_milestone_2025-03-01", "First light", api.CategoryProjectMilestone, 0.5),
		fact("3", "project_helios", "Solar observatory.", api.CategoryProject, 0.5),
	}

	s := Classify(facts, DefaultRules())
	if len(s.Projects) != 1 {
		t.Fatalf("projects = %d, want 1", len(s.Projects))
	}
	p := s.Projects[0]
	if p.Progress != 65 {
		t.Errorf("progress = %d, want 65", p.Progress)
	}
	// Description arrives late but still wins since no earlier
	// non-milestone fact set it.
	if p.Description != "Solar observatory." {
		t.Errorf("description = %q, want %q", p.Description, "Solar observatory.")
	}
}

func TestClassify_FallbackNameFromValue(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  string
	}{
		{"project", "Garden redesign. Starting with the beds.", "Garden redesign"},
		{"project_name", "Learn sailing, then buy a boat", "Learn sailing"},
		{"project_", "Build a treehouse: phase one", "Build a treehouse"},
		// No separators and longer than 30 chars: truncated.
		{"name", "abcdefghijklmnopqrstuvwxyz0123456789", "Abcdefghijklmnopqrstuvwxyz0123"},
	}

	for _, tt := range tests {
		s := Classify([]api.MemoryFact{fact("1", tt.key, tt.value, api.CategoryProject, 0.5)}, DefaultRules())
		if len(s.Projects) != 1 {
			t.Fatalf("key=%q: projects = %d, want 1", tt.key, len(s.Projects))
		}
		got := s.Projects[0].Name
		want := titleCase(tt.want)
		if got != want {
			t.Errorf("key=%q: name = %q, want %q", tt.key, got, want)
		}
	}
}

func TestClassify_SkillDetection(t *testing.T) {
	tests := []struct {
		name  string
		f     api.MemoryFact
		skill bool
	}{
		{"key term stack", fact("1", "tech_stack", "Rust", api.CategoryPreference, 0.3), true},
		{"key term language", fact("2", "favorite_language", "Haskell", api.CategoryPersonal, 0.3), true},
		{"value technology", fact("3", "daily_driver", "I write golang all day", api.CategoryPreference, 0.3), true},
		{"wrong category", fact("4", "tech_stack", "Rust", api.CategoryEphemeral, 0.3), false},
		{"no signal", fact("5", "hometown", "Lisbon", api.CategoryPersonal, 0.3), false},
	}

	for _, tt := range tests {
		s := Classify([]api.MemoryFact{tt.f}, DefaultRules())
		got := len(s.Skills) == 1
		if got != tt.skill {
			t.Errorf("%s: skill = %v, want %v", tt.name, got, tt.skill)
		}
		if tt.skill && len(s.Bio) != 0 {
			t.Errorf("%s: skill fact leaked into bio", tt.name)
		}
	}
}

func TestClassify_FocusDetection(t *testing.T) {
	facts := []api.MemoryFact{
		fact("1", "q3_goal", "Ship the beta", api.CategoryPreference, 0.4),
		fact("2", "tax_deadline", "April 15", api.CategoryEphemeral, 0.4),
		// Personal facts are never focus, whatever the key says.
		fact("3", "life_goal", "Run a marathon", api.CategoryPersonal, 0.9),
	}

	s := Classify(facts, DefaultRules())
	if len(s.Focus) != 2 {
		t.Fatalf("focus = %d, want 2", len(s.Focus))
	}
	for _, f := range s.Focus {
		if f.ID == "3" {
			t.Error("personal fact claimed as focus")
		}
	}
	if len(s.Bio) != 1 || s.Bio[0].ID != "3" {
		t.Errorf("bio = %v, want the personal goal fact", s.Bio)
	}
}

func TestClassify_ProjectsClaimBeforeFocus(t *testing.T) {
	// A goal-keyed, high-importance project fact belongs to the project
	// pass; the focus pass must never see it.
	f := fact("1", "main_goal", "Ship v1", api.CategoryProject, 0.9)

	s := Classify([]api.MemoryFact{f}, DefaultRules())
	if len(s.Projects) != 1 {
		t.Fatalf("projects = %d, want 1", len(s.Projects))
	}
	if len(s.Focus) != 0 {
		t.Errorf("focus = %d, want 0 (project pass runs first)", len(s.Focus))
	}
	if s.Projects[0].Name != "Main goal" {
		t.Errorf("name = %q, want %q", s.Projects[0].Name, "Main goal")
	}
}

func TestClassify_BucketsPartitionInput(t *testing.T) {
	facts := []api.MemoryFact{
		fact("1", "project_apollo", "Build a rocket.", api.CategoryProject, 0.5),
		fact("2", "project_apollo_milestone_2025-01-05", "Engine test passed", api.CategoryProjectMilestone, 0.5),
		fact("3", "tech_stack", "Rust", api.CategoryPreference, 0.3),
		fact("4", "q3_goal", "Ship the beta", api.CategoryPreference, 0.4),
		fact("5", "name", "Ada", api.CategoryPersonal, 0.9),
		fact("6", "coffee_order", "flat white", api.CategoryPreference, 0.1),
		fact("7", "scratch_note", "call dentist", api.CategoryEphemeral, 0.1),
	}

	s := Classify(facts, DefaultRules())

	seen := map[string]int{}
	for _, p := range s.Projects {
		for _, m := range p.Memories {
			seen[m.ID]++
		}
	}
	for _, buckets := range [][]api.MemoryFact{s.Skills, s.Focus, s.Bio} {
		for _, m := range buckets {
			seen[m.ID]++
		}
	}

	if len(seen) != len(facts) {
		t.Errorf("union covers %d facts, want %d", len(seen), len(facts))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("fact %s appears in %d buckets, want 1", id, n)
		}
	}
}

func TestClassify_MalformedKeysNeverPanic(t *testing.T) {
	facts := []api.MemoryFact{
		fact("1", "", "", api.CategoryProject, 0),
		fact("2", "_milestone_", "", api.CategoryProject, 0),
		fact("3", "project_", "no separators here", api.CategoryProjectMilestone, 0),
		fact("4", "___", "x", api.CategoryProject, 0),
	}
	// Just must not panic and must keep the partition property.
	s := Classify(facts, DefaultRules())
	total := 0
	for _, p := range s.Projects {
		total += len(p.Memories)
	}
	if total != len(facts) {
		t.Errorf("project memories = %d, want %d", total, len(facts))
	}
}

func TestClassify_CustomRules(t *testing.T) {
	rules := DefaultRules()
	rules.SkillKeyTerms = append(rules.SkillKeyTerms, "toolchain")

	f := fact("1", "build_toolchain", "bazel", api.CategoryPreference, 0.2)
	s := Classify([]api.MemoryFact{f}, rules)
	if len(s.Skills) != 1 {
		t.Errorf("extended rules should classify toolchain key as skill, got %+v", s)
	}
}

func TestFormatKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"project_apollo_milestone_2025-01-05", "Jan 5, 2025"},
		{"project_x_milestone_123", "Milestone Update"},
		{"favorite_language", "Favorite Language"},
		{"name", "Name"},
		{"tech_stack", "Tech Stack"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := FormatKey(tt.key); got != tt.want {
			t.Errorf("FormatKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
