package loraterm

import (
	"fmt"
	"time"
)

// Descriptor identifies one attached device as seen by a Backend scan.
type Descriptor struct {
	VendorID  uint16
	ProductID uint16
	Bus       int
	Address   int
	Path      string // OS device node, e.g. /dev/bus/usb/001/004 or /dev/ttyUSB0
	Serial    string
	Product   string
}

func (d Descriptor) String() string {
	if d.Path == "" {
		return fmt.Sprintf("%04x:%04x", d.VendorID, d.ProductID)
	}
	return fmt.Sprintf("%04x:%04x@%s", d.VendorID, d.ProductID, d.Path)
}

// Same reports whether d and other refer to the same attached device.
func (d Descriptor) Same(other Descriptor) bool {
	return d.VendorID == other.VendorID &&
		d.ProductID == other.ProductID &&
		d.Bus == other.Bus &&
		d.Address == other.Address &&
		d.Path == other.Path
}

// Backend enumerates attached devices and opens links to them.
type Backend interface {
	// Enumerate returns the devices currently attached. It may return a
	// partial list together with an error.
	Enumerate() ([]Descriptor, error)
	// Open opens a bulk link to d.
	Open(d Descriptor) (Link, error)
}

// Link is an open channel to a device. Timeouts are reported as errors
// wrapping ErrTimeout; any other error is a hard I/O failure.
type Link interface {
	ReadBulk(buf []byte, timeout time.Duration) (int, error)
	WriteBulk(data []byte, timeout time.Duration) (int, error)
	Close() error
}
