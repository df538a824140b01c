/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/allbin/loraterm"
	"github.com/allbin/loraterm/internal/tui/components"
	"github.com/allbin/loraterm/internal/tui/keys"
	"github.com/allbin/loraterm/internal/tui/models"
	"github.com/allbin/loraterm/internal/tui/styles"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Open an interactive terminal to the radio",
	Long: `Open an interactive terminal to the LoRa radio.

The first matching USB device is located, access to it is requested if
needed, and the bulk endpoints are opened. Everything the radio writes is
shown as it arrives; commands are sent as newline-terminated lines.

Keys:
  i          type a command (enter sends, esc leaves insert mode)
  c          connect or disconnect
  F1-F4      get debug_info, flash, command set wifi_en 1, command set status 1
  h / a / t  toggle hex, text and timestamps
  x          clear the terminal
  ?          help
  q          quit

Example usage:
  loraterm connect
  loraterm connect --backend tty --baud 115200
  loraterm connect --log-file /tmp/loraterm.log --log-level debug
  loraterm connect --mqtt-broker tcp://localhost:1883`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		quick, _ := cmd.Flags().GetStringSlice("quick")
		autoConnect, _ := cmd.Flags().GetBool("auto-connect")

		if err := runConnectTUI(quick, autoConnect); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().StringSlice("quick", keys.DefaultQuickCommands, "Commands bound to F1, F2, ... (comma-separated)")
	connectCmd.Flags().Bool("auto-connect", true, "Connect as soon as the terminal starts")
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// connectModel represents the Bubble Tea model for the connect command
type connectModel struct {
	*models.SessionModel
	terminal    *components.Terminal
	statusBar   *components.StatusBar
	input       *components.Input
	help        help.Model
	keys        keys.ConnectKeys
	autoConnect bool
}

func runConnectTUI(quick []string, autoConnect bool) error {
	forwarder := &models.Forwarder{}

	// the TUI owns the terminal, console logging would corrupt it
	a, err := newApp(appOptions{
		quiet:         true,
		collaborators: true,
		observers:     []loraterm.Observer{forwarder},
	})
	if err != nil {
		return err
	}

	m := connectModel{
		SessionModel: models.NewSessionModel(a.session),
		terminal:     components.NewTerminal(0, 0), // Will be properly sized by WindowSizeMsg
		statusBar:    components.NewStatusBar("loraterm", a.link),
		input:        components.NewInput("Type a command and press Enter to send..."),
		help:         help.New(),
		keys:         keys.NewConnectKeys(quick),
		autoConnect:  autoConnect,
	}

	p := tea.NewProgram(&m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	forwarder.Attach(p)

	_, err = p.Run()

	// terminal teardown releases the link
	if cerr := m.Cleanup(); cerr != nil {
		a.log.Warn().Err(cerr).Msg("failed to close session")
	}
	if cerr := a.Close(); cerr != nil {
		a.log.Warn().Err(cerr).Msg("failed to release resources")
	}
	return err
}

func (m *connectModel) Init() tea.Cmd {
	if m.autoConnect {
		return tea.Batch(m.OpenCmd(), tick())
	}
	return tick()
}

func (m *connectModel) refreshSession() {
	session := m.Session()
	m.statusBar.SetState(session.State())
	m.statusBar.SetDevice(session.Device())
}

func (m *connectModel) send(command string) tea.Cmd {
	command = strings.TrimRight(command, "\r\n")
	if command == "" {
		return nil
	}
	return m.SendCmd(command)
}

func (m *connectModel) quickCommand(msg tea.KeyMsg) (tea.Cmd, bool) {
	for _, q := range m.keys.Quick {
		if key.Matches(msg, q.Binding) {
			return m.send(q.Command), true
		}
	}
	return nil, false
}

func (m *connectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Input area height (includes border)
		inputHeight := 3
		// Status bar is single line, content has a top border
		statusBarHeight := 1
		borderHeight := 1
		verticalMarginHeight := inputHeight + statusBarHeight + borderHeight
		if m.help.ShowAll {
			verticalMarginHeight += lipgloss.Height(m.help.View(m.keys))
		}

		m.terminal.SetSize(msg.Width, msg.Height-verticalMarginHeight)
		m.input.SetWidth(msg.Width)
		m.statusBar.SetWidth(msg.Width)
		m.help.Width = msg.Width
		if !m.IsReady() {
			m.SetReady(true)
			m.terminal.Refresh(m.Events())
		}

	case tickMsg:
		cmds = append(cmds, tick())

	case components.EventMsg:
		m.AddEvent(msg.Event)
		if m.IsReady() {
			m.terminal.AddEvent(msg.Event)
		}
		if msg.Kind == loraterm.EventStatus {
			m.statusBar.SetStatus(msg.Text, msg.Err)
			m.refreshSession()
		}

	case models.StateMsg:
		m.statusBar.SetState(msg.State)
		m.statusBar.SetDevice(msg.Device)

	case tea.KeyMsg:
		if cmd, ok := m.quickCommand(msg); ok {
			return m, cmd
		}

		// Handle mode-specific keys
		if m.IsInInsertMode() {
			switch {
			case msg.Type == tea.KeyCtrlC:
				return m, tea.Quit
			case key.Matches(msg, m.keys.Escape):
				m.SetInputMode(models.InputModeNormal)
				m.input.Blur()
				return m, nil
			case key.Matches(msg, m.keys.Enter):
				command := m.input.Value()
				if strings.TrimSpace(command) != "" {
					m.input.AddToHistory(command)
					m.input.SetValue("")
					cmds = append(cmds, m.send(command))
				}
				return m, tea.Batch(cmds...)
			case key.Matches(msg, m.keys.Up):
				m.input.NavigateHistoryUp()
				return m, nil
			case key.Matches(msg, m.keys.Down):
				m.input.NavigateHistoryDown()
				return m, nil
			}
		} else {
			// Normal mode - handle navigation and mode switching
			switch {
			case key.Matches(msg, m.keys.Quit):
				return m, tea.Quit

			case key.Matches(msg, m.keys.InsertMode):
				m.SetInputMode(models.InputModeInsert)
				m.input.Focus()
				return m, nil

			case key.Matches(msg, m.keys.Toggle):
				cmds = append(cmds, m.ToggleCmd())

			case key.Matches(msg, m.keys.Clear):
				m.ClearEvents()
				m.terminal.Clear()

			case key.Matches(msg, m.keys.Help):
				m.help.ShowAll = !m.help.ShowAll

			case key.Matches(msg, m.keys.ToggleHex):
				m.terminal.Formatter().ToggleHex()
				m.terminal.Refresh(m.Events())

			case key.Matches(msg, m.keys.ToggleText):
				m.terminal.Formatter().ToggleText()
				m.terminal.Refresh(m.Events())

			case key.Matches(msg, m.keys.ToggleTimestamps):
				m.terminal.Formatter().ToggleTimestamps()
				m.terminal.Refresh(m.Events())

			case key.Matches(msg, m.keys.Up):
				m.terminal.ScrollUp()

			case key.Matches(msg, m.keys.Down):
				m.terminal.ScrollDown()

			case key.Matches(msg, m.keys.GotoTop):
				m.terminal.GotoTop()

			case key.Matches(msg, m.keys.GotoBottom):
				m.terminal.GotoBottom()
			}
		}
	}

	// Update components (only update input in insert mode)
	var cmd tea.Cmd
	if m.IsInInsertMode() {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Update terminal viewport for window resize and mouse messages
	switch msg.(type) {
	case tea.WindowSizeMsg, tea.MouseMsg:
		_, cmd = m.terminal.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *connectModel) View() string {
	var content string
	if m.IsReady() {
		content = m.terminal.View()
	} else {
		content = "Initializing..."
	}

	connected := m.Session().State() == loraterm.StateConnected
	input := m.input.ViewWithMode(m.IsInInsertMode(), connected)

	timestamp := time.Now().Format("15:04:05")
	statusBar := m.statusBar.View(m.GetInputMode().String(), timestamp)

	sections := []string{
		styles.ContentBorderStyle.Render(content),
		input,
		statusBar,
	}
	if m.help.ShowAll {
		sections = append(sections, m.help.View(m.keys))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
