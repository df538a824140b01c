package components

import (
	"fmt"

	"github.com/allbin/loraterm"
	"github.com/allbin/loraterm/internal/tui/colors"
	"github.com/allbin/loraterm/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
)

// LinkInfo describes how the session reaches the radio.
type LinkInfo struct {
	Backend     string // "usb" or "tty"
	VendorID    uint16
	ProductID   uint16
	InEndpoint  int
	OutEndpoint int
	BaudRate    int
}

func (li LinkInfo) String() string {
	if li.Backend == "tty" {
		return fmt.Sprintf("⚡ tty %04x:%04x %d baud", li.VendorID, li.ProductID, li.BaudRate)
	}
	return fmt.Sprintf("⚡ usb %04x:%04x ep%d↙ ep%d↗", li.VendorID, li.ProductID, li.InEndpoint, li.OutEndpoint)
}

type StatusBar struct {
	title  string
	device string
	state  loraterm.State
	status string
	err    error
	width  int
	link   LinkInfo
}

func NewStatusBar(title string, link LinkInfo) *StatusBar {
	return &StatusBar{
		title:  title,
		device: "no device",
		status: loraterm.StatusDisconnected,
		link:   link,
	}
}

// SetStatus records the latest status line of the session.
func (sb *StatusBar) SetStatus(status string, err error) {
	sb.status = status
	sb.err = err
}

func (sb *StatusBar) SetState(state loraterm.State) {
	sb.state = state
	if state == loraterm.StateConnected {
		sb.err = nil
	}
}

func (sb *StatusBar) SetDevice(d *loraterm.Descriptor) {
	if d == nil {
		sb.device = "no device"
		return
	}
	sb.device = d.String()
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

// View renders a single-line status bar with all session info
func (sb *StatusBar) View(inputMode string, timestamp string) string {
	terminalWidth := sb.width
	if terminalWidth <= 0 {
		terminalWidth = 80
	}

	// Section 1: Mode indicator (like NORMAL in nvim)
	modeBackground := colors.Blue
	if inputMode == "INSERT" {
		modeBackground = colors.Green
	}
	mode := lipgloss.NewStyle().
		Foreground(colors.Base).
		Background(modeBackground).
		Bold(true).
		Padding(0, 1).
		Render(inputMode)

	// Section 2: Device with state indicator
	device := lipgloss.NewStyle().
		Foreground(colors.Mauve).
		Bold(true).
		Padding(0, 1).
		Render(sb.device)

	indicatorStyle := styles.StateStyle(sb.state)
	glyph := styles.StateIndicator(sb.state)
	if sb.err != nil && sb.state == loraterm.StateDisconnected {
		glyph = "✗"
	}
	stateText := indicatorStyle.Render(glyph + " " + sb.state.String())

	// Section 3: Last status line
	statusStyle := lipgloss.NewStyle().Foreground(colors.Subtext1).Padding(0, 1)
	if sb.err != nil {
		statusStyle = statusStyle.Foreground(colors.Red)
	}
	status := statusStyle.Render(sb.status)

	// Section 4: Link details and time
	details := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Padding(0, 1).
		Render(sb.link.String())
	clock := lipgloss.NewStyle().
		Foreground(colors.Subtext1).
		Padding(0, 1).
		Render(timestamp)

	divider := lipgloss.NewStyle().
		Foreground(colors.Surface2).
		Padding(0, 1).
		Render("│")

	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, mode, device, stateText, divider, status)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, details, divider, clock)

	spacerWidth := terminalWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	return lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(terminalWidth).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}
