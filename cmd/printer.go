/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/allbin/loraterm"
	"github.com/charmbracelet/lipgloss"
)

var (
	rxStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	txStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// linePrinter is an Observer printing one prefixed line per device line.
// Received text is held until its line ends.
type linePrinter struct {
	mu         sync.Mutex
	w          io.Writer
	timestamps bool
	partial    strings.Builder
	received   int
}

var _ loraterm.Observer = (*linePrinter)(nil)

func newLinePrinter(w io.Writer, timestamps bool) *linePrinter {
	return &linePrinter{w: w, timestamps: timestamps}
}

func (p *linePrinter) prefix(label string, at time.Time) string {
	if !p.timestamps {
		return label + " "
	}
	return fmt.Sprintf("[%s] %s ", at.Format("15:04:05.000"), label)
}

// flushLocked prints a pending partial line
func (p *linePrinter) flushLocked(at time.Time) {
	if p.partial.Len() == 0 {
		return
	}
	fmt.Fprintln(p.w, p.prefix(rxStyle.Render("RX:"), at)+p.partial.String())
	p.partial.Reset()
}

func (p *linePrinter) OnStatus(ev loraterm.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushLocked(ev.Time)

	label := statusStyle.Render("--")
	if ev.Err != nil {
		label = errorStyle.Render("!!")
	}
	fmt.Fprintln(p.w, p.prefix(label, ev.Time)+ev.Text)
}

func (p *linePrinter) OnReceived(ev loraterm.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received += len(ev.Text)

	text := ev.Text
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			break
		}
		p.partial.WriteString(strings.TrimRight(text[:i], "\r"))
		fmt.Fprintln(p.w, p.prefix(rxStyle.Render("RX:"), ev.Time)+p.partial.String())
		p.partial.Reset()
		text = text[i+1:]
	}
	p.partial.WriteString(text)
}

func (p *linePrinter) OnTransmitted(ev loraterm.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushLocked(ev.Time)
	fmt.Fprintln(p.w, p.prefix(txStyle.Render("TX:"), ev.Time)+ev.Text)
}

// Flush prints any received text still waiting for a line ending.
func (p *linePrinter) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushLocked(time.Now())
}

// Received returns the number of bytes received so far
func (p *linePrinter) Received() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received
}
