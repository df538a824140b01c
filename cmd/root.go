/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "loraterm",
	Short: "Terminal for LoRa radios behind a USB-serial bridge",
	Long: `loraterm talks to a LoRa radio module attached through a CP210x USB-serial
bridge. Commands are sent as newline-terminated text lines and everything the
radio writes back is shown as it arrives.

The device is found by its USB vendor and product ID, access is requested if
the device node is not yet readable, and the bulk endpoints are driven either
through libusb (--backend usb) or the kernel tty driver (--backend tty).

Configuration is read from flags, LORATERM_* environment variables and
$HOME/.config/loraterm/config.yaml, in that order of precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/loraterm/config.yaml)")

	// Device selection
	flags.String("backend", "usb", "Device backend: usb (libusb bulk endpoints) or tty (kernel serial driver)")
	flags.String("vendor-id", "0x10c4", "USB vendor ID to match (hex 0x... or decimal)")
	flags.String("product-id", "0xea60", "USB product ID to match (hex 0x... or decimal)")

	// USB link
	flags.Int("config-number", 1, "USB configuration number")
	flags.Int("interface", 0, "USB interface number")
	flags.Int("alt-setting", 0, "USB alternate setting")
	flags.Int("in-endpoint", 1, "Bulk IN endpoint number (1-15)")
	flags.Int("out-endpoint", 1, "Bulk OUT endpoint number (1-15)")

	// Transfers
	flags.Duration("read-timeout", 100*time.Millisecond, "Timeout of each inbound transfer")
	flags.Duration("write-timeout", 1000*time.Millisecond, "Timeout of each outbound transfer")
	flags.Duration("poll-interval", 100*time.Millisecond, "Pause between reads")
	flags.Int("read-buffer", 1024, "Inbound buffer size in bytes")
	flags.IntP("baud", "b", 115200, "Baud rate (tty backend only)")

	// Permissions
	flags.Duration("permission-timeout", 30*time.Second, "How long to wait for access to the device node")
	flags.String("action-tag", "loraterm.USB_PERMISSION", "Tag correlating permission requests and answers")

	// Logging
	flags.String("log-file", "", "Write JSON logs to this file")
	flags.String("log-level", "info", "Log level: trace, debug, info, warn, error")

	// Collaborators
	flags.String("mqtt-broker", "", "Relay events to this MQTT broker (e.g. tcp://localhost:1883)")
	flags.String("mqtt-topic", "loraterm", "MQTT topic root")
	flags.String("mqtt-username", "", "MQTT username")
	flags.String("mqtt-password", "", "MQTT password")
	flags.Bool("notify", false, "Show desktop notifications for link loss and permission changes")

	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig(cmd *cobra.Command) error {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "loraterm"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("LORATERM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// parseID accepts 0x-prefixed hex or decimal USB identifiers
func parseID(key string) (uint16, error) {
	raw := strings.TrimSpace(viper.GetString(key))
	id, err := strconv.ParseUint(raw, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return uint16(id), nil
}
