package insights

import (
	"regexp"
	"strings"
	"time"
)

var milestoneDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// FormatKey renders a machine key as a human label. Milestone keys show
// their embedded date ("Jan 5, 2025") or "Milestone Update" when none is
// present; other keys become capitalized, space-joined words.
func FormatKey(key string) string {
	if strings.Contains(key, "_milestone_") {
		for _, part := range strings.Split(key, "_") {
			if !milestoneDatePattern.MatchString(part) {
				continue
			}
			d, err := time.Parse("2006-01-02", part)
			if err != nil {
				continue
			}
			return d.Format("Jan 2, 2006")
		}
		return "Milestone Update"
	}

	words := strings.Split(key, "_")
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

// capitalize uppercases only the first rune, leaving the rest alone.
func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
