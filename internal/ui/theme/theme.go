// Package theme holds the lipgloss styles used by the command line output.
package theme

import (
	"fmt"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/ars/internal/mastery"
)

// Color palette
var (
	Primary   = lipgloss.Color("#8B5CF6") // Vivid Purple
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F97316") // Orange
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	TextDim   = lipgloss.Color("#94A3B8") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Label = lipgloss.NewStyle().
		Foreground(TextDim).
		Width(22)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Good = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Bad = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)
)

// Queue reason tags
var (
	ReasonLeech = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	ReasonOverdue = lipgloss.NewStyle().
			Foreground(Accent)

	ReasonDueToday = lipgloss.NewStyle().
			Foreground(Secondary)
)

// Reason renders a queue reason tag.
func Reason(reason string) string {
	switch reason {
	case "leech":
		return ReasonLeech.Render(reason)
	case "overdue":
		return ReasonOverdue.Render(reason)
	default:
		return ReasonDueToday.Render(reason)
	}
}

// Level renders a mastery tier, brighter for higher tiers.
func Level(l mastery.Level) string {
	switch l {
	case mastery.LevelMastered, mastery.LevelPermanent:
		return Good.Render(string(l))
	case mastery.LevelKnown:
		return lipgloss.NewStyle().Foreground(Secondary).Render(string(l))
	case mastery.LevelFamiliar:
		return lipgloss.NewStyle().Foreground(Accent).Render(string(l))
	default:
		return Hint.Render(string(l))
	}
}

// Field renders an aligned "label value" line.
func Field(label string, value any) string {
	return Label.Render(label) + fmt.Sprint(value)
}
