// Package render draws the terminal views: the knowledge dashboard,
// conversation lists, transcripts, and the profile card. All output
// goes through an injected writer so command tests can capture it.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/synapticlabs/synaptic/internal/api"
	"github.com/synapticlabs/synaptic/internal/insights"
	"github.com/synapticlabs/synaptic/internal/profile"
)

const (
	progressBarWidth   = 20
	maxMilestonesShown = 3
)

type Renderer struct {
	w io.Writer

	header  *color.Color
	section *color.Color
	accent  *color.Color
	dim     *color.Color
	errc    *color.Color
}

func New(w io.Writer) *Renderer {
	return &Renderer{
		w:       w,
		header:  color.New(color.FgCyan, color.Bold),
		section: color.New(color.FgBlue, color.Bold),
		accent:  color.New(color.FgGreen),
		dim:     color.New(color.FgHiBlack),
		errc:    color.New(color.FgRed, color.Bold),
	}
}

// Dashboard prints the classified memory sections in a fixed order:
// focus first, then projects, skills, and contextual preferences.
func (r *Renderer) Dashboard(s *insights.Sections) {
	total := len(s.Focus) + len(s.Skills) + len(s.Bio)
	for _, g := range s.Projects {
		total += len(g.Memories)
	}
	if total == 0 {
		r.dim.Fprintln(r.w, "Nothing here yet. Chat with the assistant and it will start remembering.")
		return
	}

	if len(s.Focus) > 0 {
		r.section.Fprintln(r.w, "Current Focus")
		for _, f := range s.Focus {
			fmt.Fprintf(r.w, "  • %s: %s\n", insights.FormatKey(f.Key), f.Value)
		}
		fmt.Fprintln(r.w)
	}

	if len(s.Projects) > 0 {
		r.section.Fprintln(r.w, "Projects")
		for _, g := range s.Projects {
			r.project(g)
		}
	}

	if len(s.Skills) > 0 {
		r.section.Fprintln(r.w, "Skills & Stack")
		for _, f := range s.Skills {
			if f.Value == "true" {
				fmt.Fprintf(r.w, "  • %s\n", insights.FormatKey(f.Key))
			} else {
				fmt.Fprintf(r.w, "  • %s: %s\n", insights.FormatKey(f.Key), f.Value)
			}
		}
		fmt.Fprintln(r.w)
	}

	if len(s.Bio) > 0 {
		r.section.Fprintln(r.w, "Contextual Preferences")
		for _, f := range s.Bio {
			fmt.Fprintf(r.w, "  • %s: %s\n", insights.FormatKey(f.Key), f.Value)
		}
		fmt.Fprintln(r.w)
	}
}

func (r *Renderer) project(g insights.ProjectGroup) {
	r.header.Fprintf(r.w, "  %s", g.Name)
	r.dim.Fprintf(r.w, "  %d Tracked\n", len(g.Memories))

	if g.Description != "" {
		fmt.Fprintf(r.w, "    %s\n", g.Description)
	}

	fmt.Fprintf(r.w, "    %s %d%%\n", progressBar(g.Progress), g.Progress)

	var milestones []api.MemoryFact
	for _, f := range g.Memories {
		if insights.IsMilestone(f) {
			milestones = append(milestones, f)
		}
	}
	overflow := 0
	if len(milestones) > maxMilestonesShown {
		overflow = len(milestones) - maxMilestonesShown
		milestones = milestones[:maxMilestonesShown]
	}
	for _, m := range milestones {
		r.accent.Fprintf(r.w, "    ✓ %s", insights.FormatKey(m.Key))
		fmt.Fprintf(r.w, "  %s\n", m.Value)
	}
	if overflow > 0 {
		r.dim.Fprintf(r.w, "    +%d more\n", overflow)
	}
	fmt.Fprintln(r.w)
}

func progressBar(pct int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * progressBarWidth / 100
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled) + "]"
}

// Conversations prints one line per conversation, newest first as
// delivered by the backend.
func (r *Renderer) Conversations(convs []api.Conversation) {
	if len(convs) == 0 {
		r.dim.Fprintln(r.w, "No conversations yet.")
		return
	}
	for _, c := range convs {
		marker := " "
		if c.IsFavourite {
			marker = "★"
		}
		title := c.Title
		if title == "" {
			title = "(untitled)"
		}
		r.accent.Fprintf(r.w, "%s %-12s", marker, relativeLabel(c.UpdatedAt, time.Now()))
		fmt.Fprintf(r.w, " %s", title)
		r.dim.Fprintf(r.w, "  %s", c.ID)
		if c.IsArchived {
			r.dim.Fprint(r.w, "  [archived]")
		}
		fmt.Fprintln(r.w)
	}
}

// relativeLabel parses a backend timestamp and compresses it. Raw
// strings the backend sends in an unexpected format pass through.
func relativeLabel(raw string, now time.Time) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return relativeDate(t, now)
}

// relativeDate compresses a timestamp the way the conversation sidebar
// does: "Now" within the last minute, "3H" within the last day,
// "Yesterday", then a short date.
func relativeDate(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Now"
	case d < 24*time.Hour:
		return fmt.Sprintf("%dH", int(d.Hours()))
	case isYesterday(t, now):
		return "Yesterday"
	default:
		return t.Format("Jan 2")
	}
}

func isYesterday(t, now time.Time) bool {
	y, m, d := now.AddDate(0, 0, -1).Date()
	ty, tm, td := t.Date()
	return ty == y && tm == m && td == d
}

// Transcript prints a conversation's messages oldest first.
func (r *Renderer) Transcript(title string, msgs []api.Message) {
	if title != "" {
		r.header.Fprintln(r.w, title)
		fmt.Fprintln(r.w)
	}
	for _, m := range msgs {
		if m.Role == "user" {
			r.accent.Fprint(r.w, "You")
		} else {
			r.header.Fprint(r.w, "Assistant")
		}
		if t, err := time.Parse(time.RFC3339, m.CreatedAt); err == nil {
			r.dim.Fprintf(r.w, "  %s\n", humanize.Time(t))
		} else {
			fmt.Fprintln(r.w)
		}
		fmt.Fprintf(r.w, "%s\n\n", m.Content)
	}
}

// Memories prints raw facts, one per line, for the memory list command.
func (r *Renderer) Memories(facts []api.MemoryFact) {
	if len(facts) == 0 {
		r.dim.Fprintln(r.w, "No memories stored.")
		return
	}
	for _, f := range facts {
		r.accent.Fprintf(r.w, "%-20s", f.Category)
		fmt.Fprintf(r.w, " %s = %s", f.Key, f.Value)
		r.dim.Fprintf(r.w, "  (%.2f, %s)\n", f.Importance, f.ID)
	}
}

// Profile prints the account card.
func (r *Renderer) Profile(p *profile.Profile) {
	r.header.Fprintln(r.w, p.Name)
	fmt.Fprintf(r.w, "  Email:  %s\n", p.Email)
	if p.AvatarURL != "" {
		fmt.Fprintf(r.w, "  Avatar: %s\n", p.AvatarURL)
	}
	r.dim.Fprintf(r.w, "  ID:     %s\n", p.ID)
}

// Answer prints an assistant reply in chat mode.
func (r *Renderer) Answer(text string) {
	r.header.Fprint(r.w, "Assistant: ")
	fmt.Fprintf(r.w, "%s\n", text)
}

// Error prints a user-facing error line.
func (r *Renderer) Error(err error) {
	r.errc.Fprintf(r.w, "Error: %v\n", err)
}
