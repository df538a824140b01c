package components

import (
	"strings"

	"github.com/allbin/loraterm"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

type Terminal struct {
	viewport  viewport.Model
	formatter *Formatter
	lines     []string
	follow    bool
}

func NewTerminal(width, height int) *Terminal {
	vp := viewport.New(width, height)
	return &Terminal{
		viewport:  vp,
		formatter: NewFormatter(),
		lines:     make([]string, 0),
		follow:    true,
	}
}

func (t *Terminal) SetSize(width, height int) {
	t.viewport.Width = width
	t.viewport.Height = height
}

func (t *Terminal) Width() int {
	return t.viewport.Width
}

func (t *Terminal) AddEvent(ev loraterm.Event) {
	t.lines = append(t.lines, t.formatter.Format(ev))
	t.render()
}

// Refresh re-renders every event, e.g. after a display mode change.
func (t *Terminal) Refresh(events []loraterm.Event) {
	t.lines = t.formatter.FormatAll(events)
	t.render()
}

func (t *Terminal) render() {
	t.viewport.SetContent(strings.Join(t.lines, "\n"))
	if t.follow {
		t.viewport.GotoBottom()
	}
}

func (t *Terminal) Clear() {
	t.lines = make([]string, 0)
	t.viewport.SetContent("")
	t.follow = true
}

func (t *Terminal) ScrollUp() {
	t.viewport.LineUp(1)
	t.follow = t.viewport.AtBottom()
}

func (t *Terminal) ScrollDown() {
	t.viewport.LineDown(1)
	t.follow = t.viewport.AtBottom()
}

func (t *Terminal) GotoTop() {
	t.viewport.GotoTop()
	t.follow = false
}

func (t *Terminal) GotoBottom() {
	t.viewport.GotoBottom()
	t.follow = true
}

func (t *Terminal) Formatter() *Formatter {
	return t.formatter
}

func (t *Terminal) Lines() []string {
	return t.lines
}

func (t *Terminal) Update(msg tea.Msg) (viewport.Model, tea.Cmd) {
	// Only pass certain message types to viewport to prevent it from consuming our key bindings
	switch msg.(type) {
	case tea.WindowSizeMsg, tea.MouseMsg:
		var cmd tea.Cmd
		t.viewport, cmd = t.viewport.Update(msg)
		t.follow = t.viewport.AtBottom()
		return t.viewport, cmd
	default:
		return t.viewport, nil
	}
}

func (t *Terminal) View() string {
	return t.viewport.View()
}
