// Package usb talks to the radio's bulk endpoints directly through libusb.
package usb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allbin/loraterm"
	"github.com/google/gousb"
	"github.com/rs/zerolog"
)

// Options selects the interface that carries the bulk endpoints.
type Options struct {
	ConfigNumber int
	Interface    int
	AltSetting   int
	InEndpoint   int
	OutEndpoint  int
}

// DefaultOptions matches a CP210x single-port bridge.
func DefaultOptions() Options {
	return Options{
		ConfigNumber: 1,
		Interface:    0,
		AltSetting:   0,
		InEndpoint:   1,
		OutEndpoint:  1,
	}
}

// Backend enumerates and opens devices through a libusb context.
type Backend struct {
	ctx  *gousb.Context
	opts Options
	log  zerolog.Logger

	mu     sync.Mutex
	closed bool
}

var _ loraterm.Backend = (*Backend)(nil)

// New creates a backend with its own libusb context. Close releases it.
func New(opts Options, log zerolog.Logger) *Backend {
	ctx := gousb.NewContext()
	if log.GetLevel() <= zerolog.TraceLevel {
		ctx.Debug(3)
	}
	return &Backend{ctx: ctx, opts: opts, log: log}
}

// Close releases the libusb context.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.ctx.Close()
}

// DevicePath returns the usbfs node of a device.
func DevicePath(bus, address int) string {
	return fmt.Sprintf("/dev/bus/usb/%03d/%03d", bus, address)
}

func describe(desc *gousb.DeviceDesc) loraterm.Descriptor {
	return loraterm.Descriptor{
		VendorID:  uint16(desc.Vendor),
		ProductID: uint16(desc.Product),
		Bus:       desc.Bus,
		Address:   desc.Address,
		Path:      DevicePath(desc.Bus, desc.Address),
	}
}

// Enumerate lists every attached device without opening any of them.
func (b *Backend) Enumerate() ([]loraterm.Descriptor, error) {
	var found []loraterm.Descriptor
	devs, err := b.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		found = append(found, describe(desc))
		return false
	})
	for _, d := range devs {
		d.Close()
	}
	if err != nil {
		return found, classify(err)
	}
	return found, nil
}

// Open claims the configured interface of d and resolves its bulk endpoints.
func (b *Backend) Open(d loraterm.Descriptor) (loraterm.Link, error) {
	devs, err := b.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Bus == d.Bus && desc.Address == d.Address &&
			uint16(desc.Vendor) == d.VendorID && uint16(desc.Product) == d.ProductID
	})
	if len(devs) == 0 {
		if err != nil {
			return nil, classify(err)
		}
		return nil, loraterm.ErrDeviceNotFound
	}
	dev := devs[0]
	for _, extra := range devs[1:] {
		extra.Close()
	}

	l, err := b.claim(dev)
	if err != nil {
		dev.Close()
		return nil, err
	}

	if serial, err := dev.SerialNumber(); err == nil {
		l.serial = serial
	}
	b.log.Debug().
		Str("device", d.String()).
		Str("serial", l.serial).
		Int("config", b.opts.ConfigNumber).
		Int("interface", b.opts.Interface).
		Msg("interface claimed")
	return l, nil
}

func (b *Backend) claim(dev *gousb.Device) (*link, error) {
	// the kernel cp210x driver owns the interface until detached
	if err := dev.SetAutoDetach(true); err != nil {
		return nil, fmt.Errorf("auto detach: %w", classify(err))
	}

	cfg, err := dev.Config(b.opts.ConfigNumber)
	if err != nil {
		return nil, fmt.Errorf("config %d: %w", b.opts.ConfigNumber, classify(err))
	}

	intf, err := cfg.Interface(b.opts.Interface, b.opts.AltSetting)
	if err != nil {
		cfg.Close()
		return nil, fmt.Errorf("interface %d.%d: %w", b.opts.Interface, b.opts.AltSetting, classify(err))
	}

	in, err := intf.InEndpoint(b.opts.InEndpoint)
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, fmt.Errorf("in endpoint %d: %w", b.opts.InEndpoint, classify(err))
	}

	out, err := intf.OutEndpoint(b.opts.OutEndpoint)
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, fmt.Errorf("out endpoint %d: %w", b.opts.OutEndpoint, classify(err))
	}

	return &link{dev: dev, cfg: cfg, intf: intf, in: in, out: out}, nil
}

// link is an open bulk channel. Transfers on one direction are never
// issued concurrently by the session, so no locking is needed here.
type link struct {
	dev    *gousb.Device
	cfg    *gousb.Config
	intf   *gousb.Interface
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint
	serial string

	closeOnce sync.Once
	closeErr  error
}

func (l *link) ReadBulk(buf []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n, err := l.in.ReadContext(ctx, buf)
	if err != nil {
		return n, classify(err)
	}
	return n, nil
}

func (l *link) WriteBulk(data []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n, err := l.out.WriteContext(ctx, data)
	if err != nil {
		return n, classify(err)
	}
	return n, nil
}

// Close releases the interface, then the configuration, then the device.
func (l *link) Close() error {
	l.closeOnce.Do(func() {
		l.intf.Close()
		l.closeErr = errors.Join(l.cfg.Close(), l.dev.Close())
	})
	return l.closeErr
}

// classify maps libusb failures onto the session's sentinels.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gousb.TransferTimedOut),
		errors.Is(err, gousb.TransferCancelled),
		errors.Is(err, gousb.ErrorTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", loraterm.ErrTimeout, err)
	case errors.Is(err, gousb.ErrorAccess):
		return fmt.Errorf("%w: %w", loraterm.ErrPermissionDenied, err)
	case errors.Is(err, gousb.ErrorNoDevice), errors.Is(err, gousb.TransferNoDevice):
		return fmt.Errorf("%w: %w", loraterm.ErrDeviceNotFound, err)
	default:
		return err
	}
}
