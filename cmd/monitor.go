/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/allbin/loraterm"
	"github.com/spf13/cobra"
)

var (
	monitorReconnect  time.Duration
	monitorTimestamps bool
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Line-mode terminal without the full-screen interface",
	Long: `Connect to the radio and print everything it sends, one prefixed line per
line of output. Lines read from stdin are sent as commands. Press Ctrl+C to stop.

With --reconnect, monitor supervises the session from outside: it checks the
session state every interval and runs a fresh connect attempt whenever the
link is down. The library itself never retries; without --reconnect a lost
link ends the command with an error.

Output prefixes:
  RX:  text received from the radio
  TX:  command sent to the radio
  --   session status
  !!   session error

Examples:
  loraterm monitor
  loraterm monitor --reconnect 5s
  echo "get debug_info" | loraterm monitor
  loraterm monitor --mqtt-broker tcp://localhost:1883 --mqtt-topic lab/radio1`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printer := newLinePrinter(os.Stdout, monitorTimestamps)

		a, err := newApp(appOptions{
			collaborators: true,
			observers:     []loraterm.Observer{printer},
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		// Setup signal handler for Ctrl+C
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigChan
			fmt.Fprintln(os.Stderr, "\nStopping monitor...")
			cancel()
		}()

		if err := a.session.Open(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			if monitorReconnect <= 0 {
				a.Close()
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		go forwardLines(ctx, a.session, os.Stdin)

		if err := superviseSession(ctx, a.session, monitorReconnect); err != nil {
			a.Close()
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printer.Flush()
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().DurationVarP(&monitorReconnect, "reconnect", "r", 0,
		"Retry interval after the link is lost (0 = exit)")
	monitorCmd.Flags().BoolVarP(&monitorTimestamps, "timestamps", "t", true,
		"Prefix lines with the time they were received")
}

// forwardLines sends every line read from r until ctx ends or r is exhausted
func forwardLines(ctx context.Context, session *loraterm.Session, r *os.File) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		// failures are reported as status events
		_ = session.Send(line)
	}
}

// superviseSession blocks until ctx ends. When the link drops it returns an
// error, or reopens the session every interval if interval is positive.
func superviseSession(ctx context.Context, session *loraterm.Session, interval time.Duration) error {
	check := interval
	if check <= 0 {
		check = 250 * time.Millisecond
	}
	ticker := time.NewTicker(check)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if session.State() != loraterm.StateDisconnected {
			continue
		}
		if interval <= 0 {
			return loraterm.ErrLinkLost
		}
		// failures are reported through the observer, retry on the next tick
		_ = session.Open(ctx)
	}
}
