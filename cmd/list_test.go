package cmd

import (
	"testing"

	"github.com/allbin/loraterm"
	"github.com/spf13/viper"
)

type staticBackend []loraterm.Descriptor

func (b staticBackend) Enumerate() ([]loraterm.Descriptor, error) {
	return b, nil
}

func (b staticBackend) Open(loraterm.Descriptor) (loraterm.Link, error) {
	return nil, loraterm.ErrConnectionFailed
}

var attached = staticBackend{
	{VendorID: 0x046d, ProductID: 0xc52b, Path: "/dev/bus/usb/001/002", Product: "Receiver"},
	{VendorID: 0x10c4, ProductID: 0xea60, Path: "/dev/bus/usb/001/004", Product: "CP2102 USB to UART Bridge Controller", Serial: "0001"},
}

func TestFilterDevices(t *testing.T) {
	locator := loraterm.NewLocator(attached, loraterm.DefaultVendorID, loraterm.DefaultProductID)

	tests := []struct {
		name     string
		all      bool
		expected int
	}{
		{"matching only", false, 1},
		{"all", true, 2},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := filterDevices(attached, locator, test.all)
			if len(got) != test.expected {
				t.Errorf("filterDevices() returned %d devices, expected %d", len(got), test.expected)
			}
		})
	}
}

func TestDeviceRows(t *testing.T) {
	locator := loraterm.NewLocator(attached, loraterm.DefaultVendorID, loraterm.DefaultProductID)
	rows := deviceRows(attached, locator)
	if len(rows) != 2 {
		t.Fatalf("deviceRows() returned %d rows, expected 2", len(rows))
	}
	if rows[1].Data[columnKeyVendor] != "10c4" || rows[1].Data[columnKeyPath] != "/dev/bus/usb/001/004" {
		t.Errorf("row data = %v", rows[1].Data)
	}
	if view := renderDeviceTable(attached, locator); view == "" {
		t.Error("renderDeviceTable() returned an empty view")
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		raw      string
		expected uint16
		wantErr  bool
	}{
		{"0x10c4", 0x10C4, false},
		{"0XEA60", 0xEA60, false},
		{"4292", 4292, false},
		{" 0x0403 ", 0x0403, false},
		{"0x10000", 0, true},
		{"cp210x", 0, true},
	}

	for _, test := range tests {
		viper.Set("vendor-id", test.raw)
		got, err := parseID("vendor-id")
		if (err != nil) != test.wantErr {
			t.Errorf("parseID(%q) error = %v, wantErr %v", test.raw, err, test.wantErr)
			continue
		}
		if got != test.expected {
			t.Errorf("parseID(%q) = %#x, expected %#x", test.raw, got, test.expected)
		}
	}
	viper.Set("vendor-id", "0x10c4")
}
