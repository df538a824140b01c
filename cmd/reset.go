/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/allbin/loraterm"
	"github.com/allbin/loraterm/internal/usb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the radio's USB bridge",
	Long: `Perform a USB-level reset on the first device matching the configured vendor
and product ID. This can recover a bridge that is hung or unresponsive without
physically unplugging it.

The device re-enumerates after the reset, so its bus address may change.
Write access to the device node is required (udev rule or sudo).

Examples:
  loraterm reset
  sudo loraterm reset --vendor-id 0x10c4 --product-id 0xea60`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		log, closeLog, err := newLogger(false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer closeLog()

		cfg, err := sessionConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		// reset always goes through libusb, whatever backend is configured
		backend := usb.New(usb.Options{
			ConfigNumber: viper.GetInt("config-number"),
			Interface:    viper.GetInt("interface"),
			AltSetting:   viper.GetInt("alt-setting"),
			InEndpoint:   cfg.InEndpoint,
			OutEndpoint:  cfg.OutEndpoint,
		}, log.With().Str("backend", "usb").Logger())
		defer backend.Close()

		d, err := loraterm.NewLocator(backend, cfg.VendorID, cfg.ProductID).Find()
		if err != nil {
			backend.Close()
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Resetting USB device: %s\n", d)
		if err := backend.Reset(*d); err != nil {
			backend.Close()
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if errors.Is(err, loraterm.ErrPermissionDenied) {
				fmt.Fprintf(os.Stderr, "No write access to %s (try sudo or a udev rule)\n", d.Path)
			}
			os.Exit(1)
		}

		fmt.Println("USB device reset successfully")
		fmt.Println("Device will re-enumerate (bus address may change)")
		fmt.Println("\nUse 'loraterm list' to see the updated device list")
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
