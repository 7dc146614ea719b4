package theme

import "github.com/charmbracelet/lipgloss"

// Color palette - dark theme inspired by Catppuccin Mocha
var (
	ColorBase     = lipgloss.Color("#1e1e2e")
	ColorSurface0 = lipgloss.Color("#313244")
	ColorSurface1 = lipgloss.Color("#45475a")
	ColorOverlay0 = lipgloss.Color("#6c7086")
	ColorText     = lipgloss.Color("#cdd6f4")
	ColorSubtext0 = lipgloss.Color("#a6adc8")

	ColorRed      = lipgloss.Color("#f38ba8")
	ColorGreen    = lipgloss.Color("#a6e3a1")
	ColorYellow   = lipgloss.Color("#f9e2af")
	ColorBlue     = lipgloss.Color("#89b4fa")
	ColorMauve    = lipgloss.Color("#cba6f7")
	ColorTeal     = lipgloss.Color("#94e2d5")
	ColorPeach    = lipgloss.Color("#fab387")
	ColorLavender = lipgloss.Color("#b4befe")
)

// Step status indicator styles
var (
	StepPending   = lipgloss.NewStyle().Foreground(ColorOverlay0).SetString("○")
	StepActive    = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true).SetString("◐")
	StepCompleted = lipgloss.NewStyle().Foreground(ColorGreen).Bold(true).SetString("●")
	StepError     = lipgloss.NewStyle().Foreground(ColorRed).Bold(true).SetString("✗")
)

// StepStatusIndicator returns a styled glyph for a timeline step status.
func StepStatusIndicator(status string) string {
	switch status {
	case "completed":
		return StepCompleted.String()
	case "active":
		return StepActive.String()
	case "error":
		return StepError.String()
	default:
		return StepPending.String()
	}
}

// StepStatusColor is the accent used for a step's label.
func StepStatusColor(status string) lipgloss.Color {
	switch status {
	case "completed":
		return ColorGreen
	case "active":
		return ColorYellow
	case "error":
		return ColorRed
	default:
		return ColorSubtext0
	}
}

// RunStatusColor colors the run-level status badge.
func RunStatusColor(status string) lipgloss.Color {
	switch status {
	case "pending":
		return ColorPeach
	case "running":
		return ColorBlue
	case "completed":
		return ColorGreen
	case "error":
		return ColorRed
	default:
		return ColorOverlay0
	}
}
