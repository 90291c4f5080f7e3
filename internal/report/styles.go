package report

import (
	"image/color"

	"charm.land/lipgloss/v2"
)

// palette holds the colors of the text report.
type palette struct {
	Success color.Color
	Error   color.Color
	Warning color.Color
	Muted   color.Color
}

var defaultPalette = palette{
	Success: lipgloss.Color("82"),  // green
	Error:   lipgloss.Color("196"), // red
	Warning: lipgloss.Color("214"), // orange
	Muted:   lipgloss.Color("240"), // dark gray
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).PaddingRight(2)
	cellStyle    = lipgloss.NewStyle().PaddingRight(2)
	successStyle = lipgloss.NewStyle().Foreground(defaultPalette.Success)
	errorStyle   = lipgloss.NewStyle().Foreground(defaultPalette.Error).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(defaultPalette.Warning)
	mutedStyle   = lipgloss.NewStyle().Foreground(defaultPalette.Muted)
)
