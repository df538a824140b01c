/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/allbin/loraterm"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [command...]",
	Short: "Send one command to the radio and print the reply",
	Long: `Connect to the radio, send a single command line and print whatever the
radio answers within the wait period, then disconnect.

The command can be provided as:
- Command line arguments: loraterm send get debug_info
- From stdin (pipe): echo "get debug_info" | loraterm send
- Interactive mode: loraterm send (prompts for input)

Example usage:
  loraterm send get debug_info
  loraterm send command set wifi_en 1 --wait 5s
  loraterm send flash --wait 0`,
	Run: func(cmd *cobra.Command, args []string) {
		var command string
		if len(args) > 0 {
			command = strings.Join(args, " ")
		} else {
			// Check if we have stdin data
			stat, err := os.Stdin.Stat()
			if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
				command = promptForCommand()
			} else {
				stdinData, err := io.ReadAll(os.Stdin)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error reading from stdin: %v\n", err)
					os.Exit(1)
				}
				command = strings.TrimRight(string(stdinData), "\r\n")
			}
		}

		if strings.TrimSpace(command) == "" {
			fmt.Fprintln(os.Stderr, "Error: nothing to send")
			os.Exit(1)
		}

		wait, _ := cmd.Flags().GetDuration("wait")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		if err := sendCommand(command, wait, timeout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().DurationP("wait", "w", 2*time.Second, "How long to print replies after sending")
	sendCmd.Flags().DurationP("timeout", "t", 30*time.Second, "Timeout for locating and opening the device")
}

func promptForCommand() string {
	promptStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99"))

	fmt.Print(promptStyle.Render("Enter command to send: "))

	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}

func sendCommand(command string, wait, timeout time.Duration) error {
	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("40")).
		Bold(true)

	printer := newLinePrinter(os.Stdout, false)
	lostWatch, lost := linkLostSignal()
	a, err := newApp(appOptions{
		observers: []loraterm.Observer{printer, lostWatch},
	})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.session.Open(ctx); err != nil {
		return err
	}

	if err := a.session.Send(command); err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("✗"), err)
	}

	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
		case <-lost:
			printer.Flush()
			return fmt.Errorf("%s %w", errorStyle.Render("✗"), loraterm.ErrLinkLost)
		}
	}
	printer.Flush()

	if err := a.session.Disconnect(); err != nil {
		return err
	}
	fmt.Printf("%s %d bytes received\n", successStyle.Render("✓"), printer.Received())
	return nil
}

// linkLostSignal returns an Observer whose channel fires once the session
// reports a lost link.
func linkLostSignal() (loraterm.Observer, <-chan struct{}) {
	lost := make(chan struct{}, 1)
	return loraterm.ObserverFunc(func(ev loraterm.Event) {
		if ev.Kind != loraterm.EventStatus || !errors.Is(ev.Err, loraterm.ErrLinkLost) {
			return
		}
		select {
		case lost <- struct{}{}:
		default:
		}
	}), lost
}
