package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorOn      = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#66bb6a"}
	colorStandby = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	colorSleep   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}
	colorWarn    = lipgloss.AdaptiveColor{Light: "#e65100", Dark: "#ffa726"}
	colorError   = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#1565c0", Dark: "#42a5f5"}
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	errorStyle    = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	nameStyle     = lipgloss.NewStyle().Width(18)
	addressStyle  = lipgloss.NewStyle().Faint(true).Width(20)
	actionOn      = lipgloss.NewStyle().Foreground(colorAccent)
	actionOff     = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	pendingStyle  = lipgloss.NewStyle().Italic(true)
	statusStyle   = lipgloss.NewStyle().Foreground(colorWarn).MarginTop(1)
	emptyStyle    = lipgloss.NewStyle().Faint(true)
	stateColWidth = 10
)

// stateStyle colours a power state label.
func stateStyle(label string) lipgloss.Style {
	base := lipgloss.NewStyle().Width(stateColWidth)
	switch label {
	case "On":
		return base.Foreground(colorOn)
	case "Standby", "Starting":
		return base.Foreground(colorStandby)
	case "Sleep":
		return base.Foreground(colorSleep)
	default:
		return base.Faint(true)
	}
}
