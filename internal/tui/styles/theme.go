package styles

import (
	"github.com/allbin/loraterm"
	"github.com/allbin/loraterm/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Header styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve).
			Background(colors.Surface0).
			Padding(0, 1)

	// Session state styles
	StateConnectedStyle = lipgloss.NewStyle().
				Foreground(colors.Green).
				Bold(true)

	StateDisconnectedStyle = lipgloss.NewStyle().
				Foreground(colors.Red).
				Bold(true)

	StateConnectingStyle = lipgloss.NewStyle().
				Foreground(colors.Yellow).
				Bold(true)

	StateAwaitingStyle = lipgloss.NewStyle().
				Foreground(colors.Peach).
				Bold(true)

	// Content area styles
	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colors.Surface1)

	// Input styles
	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(0, 1)

	// Error styles
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Red)

	// Table styles for the list command
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colors.Mauve)

	TableMatchStyle = lipgloss.NewStyle().
			Foreground(colors.Green)
)

// StateStyle returns the style used to render a session state.
func StateStyle(state loraterm.State) lipgloss.Style {
	switch state {
	case loraterm.StateConnected:
		return StateConnectedStyle
	case loraterm.StateConnecting:
		return StateConnectingStyle
	case loraterm.StateAwaitingPermission:
		return StateAwaitingStyle
	default:
		return StateDisconnectedStyle
	}
}

// StateIndicator returns the single-character glyph for a session state.
func StateIndicator(state loraterm.State) string {
	switch state {
	case loraterm.StateConnected:
		return "●"
	case loraterm.StateConnecting, loraterm.StateAwaitingPermission:
		return "◐"
	default:
		return "○"
	}
}
