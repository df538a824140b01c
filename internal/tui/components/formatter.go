package components

import (
	"fmt"
	"strings"

	"github.com/allbin/loraterm"
	"github.com/allbin/loraterm/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
)

// EventMsg carries a session event into the bubbletea loop.
type EventMsg struct {
	loraterm.Event
}

type DisplayMode struct {
	ShowText bool
	ShowHex  bool
}

type Formatter struct {
	mode       DisplayMode
	timestamps bool
}

func NewFormatter() *Formatter {
	return &Formatter{
		mode:       DisplayMode{ShowText: true},
		timestamps: true,
	}
}

func (f *Formatter) DisplayMode() DisplayMode {
	return f.mode
}

func (f *Formatter) ToggleHex() {
	f.mode.ShowHex = !f.mode.ShowHex
}

func (f *Formatter) ToggleText() {
	f.mode.ShowText = !f.mode.ShowText
}

func (f *Formatter) ToggleTimestamps() {
	f.timestamps = !f.timestamps
}

// Indicator returns the styled stream marker of an event.
func Indicator(ev loraterm.Event) string {
	style := lipgloss.NewStyle().Bold(true)
	switch ev.Kind {
	case loraterm.EventReceived:
		return style.Foreground(colors.Sky).Render("↙ RX")
	case loraterm.EventTransmitted:
		return style.Foreground(colors.Peach).Render("↗ TX")
	default:
		if ev.Err != nil {
			return style.Foreground(colors.Red).Render("✗ --")
		}
		return style.Foreground(colors.Mauve).Render("● --")
	}
}

func (f *Formatter) Format(ev loraterm.Event) string {
	var parts []string

	if ev.Kind == loraterm.EventStatus {
		// status lines are always shown as text
		parts = append(parts, ev.Text)
	} else {
		if f.mode.ShowText {
			parts = append(parts, Printable(ev.Text))
		}
		if f.mode.ShowHex {
			parts = append(parts, fmt.Sprintf("HEX: % X", []byte(ev.Text)))
		}
		if !f.mode.ShowText && !f.mode.ShowHex {
			parts = append(parts, fmt.Sprintf("BYTES: %d", len(ev.Text)))
		}
	}

	line := fmt.Sprintf("%s: %s", Indicator(ev), strings.Join(parts, "  "))
	if !f.timestamps {
		return line
	}

	timestamp := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Render(fmt.Sprintf("[%s]", ev.Time.Format("15:04:05.000")))
	return timestamp + " " + line
}

func (f *Formatter) FormatAll(events []loraterm.Event) []string {
	formatted := make([]string, len(events))
	for i, ev := range events {
		formatted[i] = f.Format(ev)
	}
	return formatted
}

// Printable renders device text on one terminal line: a trailing line
// ending is dropped, inner ones become ⏎ and other control characters
// are shown as dots.
func Printable(text string) string {
	text = strings.TrimRight(text, "\r\n")
	text = strings.ReplaceAll(text, "\r\n", "⏎")

	var b strings.Builder
	for _, r := range text {
		switch {
		case r == '\n' || r == '\r':
			b.WriteString("⏎")
		case r == '\t':
			b.WriteString("    ")
		case r < 0x20 || r == 0x7f:
			b.WriteByte('.')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
