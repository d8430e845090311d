package dashboard

import "github.com/charmbracelet/lipgloss"

// Palette mirrors the muted accent/highlight/danger scheme used across the
// pack's bubbletea dashboards, not any particular brand's colors.
const (
	colorAccent  = "86"  // cyan/green: headers, running tasks
	colorDone    = "42"  // green: completed tasks
	colorDanger  = "196" // red: failed/timed-out tasks
	colorMuted   = "241" // gray: skipped tasks, hints
	colorWarning = "208" // orange: discovered findings
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorAccent)).
			Padding(0, 1)

	runningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent))
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(colorDone))
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorDanger))
	skippedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))
	findingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarning))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted)).Italic(true)
)
