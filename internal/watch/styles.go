package watch

import "github.com/charmbracelet/lipgloss"

const (
	colorPrimary = "#7D56F4"
	colorSuccess = "#04B575"
	colorError   = "#FF0000"
	colorInfo    = "#626262"
	colorTrack   = "#3C3C3C"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorPrimary)).
			MarginBottom(1)

	FilledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorPrimary))

	TrackStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorTrack))

	StatusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorSuccess))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorError))

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorInfo))
)
