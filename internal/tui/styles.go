package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	primaryColor = lipgloss.Color("#7C3AED") // purple
	okColor      = lipgloss.Color("#10B981") // green
	mutedColor   = lipgloss.Color("#6B7280") // gray
	dangerColor  = lipgloss.Color("#EF4444") // red
	warnColor    = lipgloss.Color("#F59E0B") // yellow

	appStyle = lipgloss.NewStyle().Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	outputBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(primaryColor).
				Padding(0, 1)

	statusWorkingStyle = lipgloss.NewStyle().Foreground(warnColor)
	statusIdleStyle    = lipgloss.NewStyle().Foreground(okColor)
	statusErrorStyle   = lipgloss.NewStyle().Foreground(dangerColor)
	statusOfflineStyle = lipgloss.NewStyle().Foreground(mutedColor)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(1, 0, 0, 0)
)
