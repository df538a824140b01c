package loraterm

import "fmt"

// Locator finds the first attached device matching a vendor/product pair.
type Locator struct {
	backend   Backend
	vendorID  uint16
	productID uint16
}

func NewLocator(backend Backend, vendorID, productID uint16) *Locator {
	return &Locator{
		backend:   backend,
		vendorID:  vendorID,
		productID: productID,
	}
}

// Matches reports whether d carries the configured signature.
func (l *Locator) Matches(d Descriptor) bool {
	return d.VendorID == l.vendorID && d.ProductID == l.productID
}

// Find scans the current enumeration. Every call re-scans; nothing is cached
// between calls.
func (l *Locator) Find() (*Descriptor, error) {
	devices, err := l.backend.Enumerate()
	for _, d := range devices {
		if l.Matches(d) {
			found := d
			return &found, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	return nil, ErrDeviceNotFound
}
