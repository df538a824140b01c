package keys

import (
	"strconv"

	"github.com/charmbracelet/bubbles/key"
)

// QuickCommand binds a key to a fixed device command
type QuickCommand struct {
	Binding key.Binding
	Command string
}

// DefaultQuickCommands are the radio's common maintenance commands
var DefaultQuickCommands = []string{
	"get debug_info",
	"flash",
	"command set wifi_en 1",
	"command set status 1",
}

// ConnectKeys includes terminal keys plus session control and input
type ConnectKeys struct {
	TerminalKeys
	Enter      key.Binding
	Toggle     key.Binding
	Up         key.Binding
	Down       key.Binding
	GotoTop    key.Binding
	GotoBottom key.Binding
	Quick      []QuickCommand
}

func NewConnectKeys(quick []string) ConnectKeys {
	k := ConnectKeys{
		TerminalKeys: NewTerminalKeys(),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send command"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "connect/disconnect"),
		),
		Up: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "scroll up / history"),
		),
		Down: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "scroll down / history"),
		),
		GotoTop: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "goto top"),
		),
		GotoBottom: key.NewBinding(
			key.WithKeys("G"),
			key.WithHelp("G", "goto bottom"),
		),
	}

	// function keys F1..F12 in order
	for i, command := range quick {
		if i >= 12 {
			break
		}
		n := strconv.Itoa(i + 1)
		k.Quick = append(k.Quick, QuickCommand{
			Binding: key.NewBinding(
				key.WithKeys("f"+n),
				key.WithHelp("F"+n, command),
			),
			Command: command,
		})
	}
	return k
}

func (k ConnectKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Toggle, k.InsertMode, k.Enter, k.Quit}
}

func (k ConnectKeys) FullHelp() [][]key.Binding {
	quick := make([]key.Binding, 0, len(k.Quick))
	for _, q := range k.Quick {
		quick = append(quick, q.Binding)
	}
	return [][]key.Binding{
		{k.Toggle, k.InsertMode, k.Escape, k.Enter},
		{k.Clear, k.ToggleHex, k.ToggleText, k.ToggleTimestamps},
		{k.GotoTop, k.GotoBottom, k.Up, k.Down},
		quick,
		{k.Help, k.Quit},
	}
}
