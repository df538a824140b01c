/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/allbin/loraterm"
	"github.com/allbin/loraterm/internal/tui/styles"
	"github.com/evertras/bubble-table/table"
	"github.com/spf13/cobra"
)

const (
	columnKeyPath    = "path"
	columnKeyVendor  = "vid"
	columnKeyProduct = "pid"
	columnKeyName    = "product"
	columnKeySerial  = "serial"
	columnKeyMatch   = "match"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List attached devices",
	Long: `List USB devices visible to the selected backend.

Only devices matching the configured vendor and product ID are shown unless
--all is given. Matching devices are marked in the last column.

Example usage:
  loraterm list
  loraterm list --all
  loraterm list --backend tty --all
  loraterm list --vendor-id 0x0403 --product-id 0x6001`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")
		plain, _ := cmd.Flags().GetBool("plain")

		a, err := newApp(appOptions{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		devices, err := a.backend.Enumerate()
		if err != nil && len(devices) == 0 {
			a.Close()
			fmt.Fprintf(os.Stderr, "Error listing devices: %v\n", err)
			os.Exit(1)
		}

		cfg := a.session.Config()
		locator := a.session.Locator()
		shown := filterDevices(devices, locator, all)
		if len(shown) == 0 {
			if all {
				fmt.Println("No devices found")
			} else {
				fmt.Printf("No devices found matching %04x:%04x (use --all to list everything)\n", cfg.VendorID, cfg.ProductID)
			}
			return
		}

		if plain {
			for _, d := range shown {
				fmt.Println(d.Path)
			}
			return
		}
		fmt.Printf("Found %d device(s):\n\n", len(shown))
		fmt.Println(renderDeviceTable(shown, locator))
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolP("all", "a", false, "Show every device, not only matching ones")
	listCmd.Flags().BoolP("plain", "p", false, "Print device paths only")
}

// filterDevices keeps matching devices unless all is set
func filterDevices(devices []loraterm.Descriptor, locator *loraterm.Locator, all bool) []loraterm.Descriptor {
	if all {
		return devices
	}
	var filtered []loraterm.Descriptor
	for _, d := range devices {
		if locator.Matches(d) {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

func deviceRows(devices []loraterm.Descriptor, locator *loraterm.Locator) []table.Row {
	rows := make([]table.Row, 0, len(devices))
	for _, d := range devices {
		match := ""
		if locator.Matches(d) {
			match = "✓"
		}
		rows = append(rows, table.NewRow(table.RowData{
			columnKeyPath:    d.Path,
			columnKeyVendor:  fmt.Sprintf("%04x", d.VendorID),
			columnKeyProduct: fmt.Sprintf("%04x", d.ProductID),
			columnKeyName:    d.Product,
			columnKeySerial:  d.Serial,
			columnKeyMatch:   table.NewStyledCell(match, styles.TableMatchStyle),
		}))
	}
	return rows
}

// renderDeviceTable renders the device list as a static table
func renderDeviceTable(devices []loraterm.Descriptor, locator *loraterm.Locator) string {
	columns := []table.Column{
		table.NewColumn(columnKeyPath, "Path", 24),
		table.NewColumn(columnKeyVendor, "VID", 6),
		table.NewColumn(columnKeyProduct, "PID", 6),
		table.NewColumn(columnKeyName, "Product", 32),
		table.NewColumn(columnKeySerial, "Serial", 18),
		table.NewColumn(columnKeyMatch, "Match", 7),
	}

	return table.New(columns).
		WithRows(deviceRows(devices, locator)).
		HeaderStyle(styles.TableHeaderStyle).
		View()
}
