package models

import (
	"context"
	"sync"

	"github.com/allbin/loraterm"
	"github.com/allbin/loraterm/internal/tui/components"
	tea "github.com/charmbracelet/bubbletea"
)

// InputMode represents the current input mode (vim-like)
type InputMode int

const (
	InputModeNormal InputMode = iota
	InputModeInsert
)

func (m InputMode) String() string {
	switch m {
	case InputModeInsert:
		return "INSERT"
	default:
		return "NORMAL"
	}
}

// maxEvents bounds the scrollback kept for re-rendering
const maxEvents = 5000

// StateMsg reports the session state after a user action completed.
type StateMsg struct {
	State  loraterm.State
	Device *loraterm.Descriptor
	Err    error
}

// SessionModel is the shared state of TUIs driving a loraterm.Session.
type SessionModel struct {
	session *loraterm.Session

	events []loraterm.Event
	ready  bool

	// Input mode (vim-like)
	mu        sync.RWMutex
	inputMode InputMode

	ctx    context.Context
	cancel context.CancelFunc
}

func NewSessionModel(session *loraterm.Session) *SessionModel {
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionModel{
		session:   session,
		events:    make([]loraterm.Event, 0),
		inputMode: InputModeNormal,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (m *SessionModel) Session() *loraterm.Session {
	return m.session
}

func (m *SessionModel) IsReady() bool {
	return m.ready
}

func (m *SessionModel) SetReady(ready bool) {
	m.ready = ready
}

func (m *SessionModel) Events() []loraterm.Event {
	return m.events
}

func (m *SessionModel) AddEvent(ev loraterm.Event) {
	m.events = append(m.events, ev)
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
}

func (m *SessionModel) ClearEvents() {
	m.events = make([]loraterm.Event, 0)
}

func (m *SessionModel) GetInputMode() InputMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inputMode
}

func (m *SessionModel) SetInputMode(mode InputMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputMode = mode
}

func (m *SessionModel) IsInInsertMode() bool {
	return m.GetInputMode() == InputModeInsert
}

// ToggleCmd connects or disconnects off the UI goroutine. Session calls
// block on observers, which feed back into the program.
func (m *SessionModel) ToggleCmd() tea.Cmd {
	return func() tea.Msg {
		err := m.session.Toggle(m.ctx)
		return m.stateMsg(err)
	}
}

// OpenCmd runs the connect flow once.
func (m *SessionModel) OpenCmd() tea.Cmd {
	return func() tea.Msg {
		err := m.session.Open(m.ctx)
		return m.stateMsg(err)
	}
}

// SendCmd writes one command line off the UI goroutine.
func (m *SessionModel) SendCmd(command string) tea.Cmd {
	return func() tea.Msg {
		err := m.session.Send(command)
		return m.stateMsg(err)
	}
}

func (m *SessionModel) stateMsg(err error) StateMsg {
	return StateMsg{
		State:  m.session.State(),
		Device: m.session.Device(),
		Err:    err,
	}
}

// Cleanup cancels pending user actions and closes the session.
func (m *SessionModel) Cleanup() error {
	m.cancel()
	return m.session.Close()
}

// Sender is the part of *tea.Program the forwarder needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Forwarder is a loraterm.Observer that turns events into bubbletea messages.
type Forwarder struct {
	mu     sync.Mutex
	target Sender
}

var _ loraterm.Observer = (*Forwarder)(nil)

// Attach sets the program events are forwarded to. Events before Attach
// are dropped.
func (f *Forwarder) Attach(target Sender) {
	f.mu.Lock()
	f.target = target
	f.mu.Unlock()
}

func (f *Forwarder) forward(ev loraterm.Event) {
	f.mu.Lock()
	target := f.target
	f.mu.Unlock()
	if target != nil {
		target.Send(components.EventMsg{Event: ev})
	}
}

func (f *Forwarder) OnStatus(ev loraterm.Event)      { f.forward(ev) }
func (f *Forwarder) OnReceived(ev loraterm.Event)    { f.forward(ev) }
func (f *Forwarder) OnTransmitted(ev loraterm.Event) { f.forward(ev) }
