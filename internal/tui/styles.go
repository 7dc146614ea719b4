package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/agusx1211/mailflow/internal/theme"
)

// Panel border styles.
var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.ColorSurface1).
			Padding(0, 1)

	focusedPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(theme.ColorMauve).
				Padding(0, 1)
)

// Header and status bar.
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBase).
			Background(theme.ColorBlue).
			Padding(0, 2)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(theme.ColorSubtext0).
			Background(theme.ColorSurface0).
			Padding(0, 1)

	statusKeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorLavender).
			Background(theme.ColorSurface0)

	statusValueStyle = lipgloss.NewStyle().
				Foreground(theme.ColorSubtext0).
				Background(theme.ColorSurface0)
)

var (
	sectionTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(theme.ColorLavender)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorMauve).
			Width(9)

	valueStyle = lipgloss.NewStyle().
			Foreground(theme.ColorText)

	dimStyle = lipgloss.NewStyle().
			Foreground(theme.ColorOverlay0)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorTeal)

	unreadStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorText)

	chipStyle = lipgloss.NewStyle().
			Foreground(theme.ColorBase).
			Background(theme.ColorSurface1).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorRed)

	hintStyle = lipgloss.NewStyle().
			Foreground(theme.ColorPeach).
			Italic(true)

	starStyle      = lipgloss.NewStyle().Foreground(theme.ColorYellow)
	importantStyle = lipgloss.NewStyle().Foreground(theme.ColorRed).Bold(true)
)
