package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorTrace    = lipgloss.Color("#007acc")
	colorAnomaly  = lipgloss.Color("#dc2626")
	colorMarker   = lipgloss.Color("#6b7280")
	colorLabel    = lipgloss.Color("#a855f7")
	colorRecord   = lipgloss.Color("#dc2626")
	colorIdle     = lipgloss.Color("#4b5563")
	colorRising   = lipgloss.Color("#dc2626")
	colorFalling  = lipgloss.Color("#16a34a")
	colorStable   = lipgloss.Color("#3b82f6")
	colorDimmed   = lipgloss.Color("#8c8c8c")
	colorNoteText = lipgloss.Color("#c89a3a")
)

var (
	traceStyle   = lipgloss.NewStyle().Foreground(colorTrace)
	anomalyStyle = lipgloss.NewStyle().Foreground(colorAnomaly)
	markerStyle  = lipgloss.NewStyle().Foreground(colorMarker)
	currentStyle = lipgloss.NewStyle().Foreground(colorAnomaly).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(colorLabel).Bold(true)
	axisStyle    = lipgloss.NewStyle().Foreground(colorDimmed)

	titleStyle       = lipgloss.NewStyle().Bold(true)
	titleRecStyle    = titleStyle.Foreground(colorRecord)
	presetStyle      = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("#f9fafb")).Background(lipgloss.Color("#1e3a5f"))
	pendingStyle     = lipgloss.NewStyle().Foreground(colorNoteText)
	statusStyle      = lipgloss.NewStyle().Foreground(colorDimmed)
	statusErrorStyle = lipgloss.NewStyle().Foreground(colorAnomaly)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)
