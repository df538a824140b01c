// Package tty reaches the radio through the kernel's USB-serial driver
// (/dev/ttyUSB*, /dev/ttyACM*) instead of claiming the interface.
package tty

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/allbin/loraterm"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultBaudRate is the CP210x factory rate used by the radio firmware.
const DefaultBaudRate = 115200

// Options configures the tty backend
type Options struct {
	BaudRate  int
	SysfsRoot string // normally /sys
}

func DefaultOptions() Options {
	return Options{
		BaudRate:  DefaultBaudRate,
		SysfsRoot: "/sys",
	}
}

// Backend enumerates serial ports and opens them as links.
type Backend struct {
	opts Options
	log  zerolog.Logger

	// overridable in tests
	listPorts func() ([]*enumerator.PortDetails, error)
	openPort  func(name string, mode *serial.Mode) (serial.Port, error)
}

var _ loraterm.Backend = (*Backend)(nil)

func New(opts Options, log zerolog.Logger) *Backend {
	if opts.BaudRate == 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.SysfsRoot == "" {
		opts.SysfsRoot = "/sys"
	}
	return &Backend{
		opts:      opts,
		log:       log,
		listPorts: enumerator.GetDetailedPortsList,
		openPort:  serial.Open,
	}
}

// Enumerate lists USB serial ports. Ports without USB metadata are skipped.
func (b *Backend) Enumerate() ([]loraterm.Descriptor, error) {
	ports, err := b.listPorts()
	if err != nil {
		return nil, classify(err)
	}

	var found []loraterm.Descriptor
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		vid, err := parseID(p.VID)
		if err != nil {
			b.log.Debug().Str("port", p.Name).Str("vid", p.VID).Msg("skipping port with bad vendor id")
			continue
		}
		pid, err := parseID(p.PID)
		if err != nil {
			b.log.Debug().Str("port", p.Name).Str("pid", p.PID).Msg("skipping port with bad product id")
			continue
		}

		name := filepath.Base(p.Name)
		d := loraterm.Descriptor{
			VendorID:  vid,
			ProductID: pid,
			Path:      p.Name,
			Serial:    p.SerialNumber,
			Product:   p.Product,
		}
		d.Bus, d.Address = usbLocation(b.opts.SysfsRoot, name)
		if d.Product == "" {
			d.Product = describePort(name)
		}
		found = append(found, d)
	}
	return found, nil
}

// Open opens the tty node of d at the configured baud rate, 8N1.
func (b *Backend) Open(d loraterm.Descriptor) (loraterm.Link, error) {
	if d.Path == "" {
		return nil, loraterm.ErrDeviceNotFound
	}
	mode := &serial.Mode{
		BaudRate: b.opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := b.openPort(d.Path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Path, classify(err))
	}
	b.log.Debug().Str("port", d.Path).Int("baud", b.opts.BaudRate).Msg("port opened")
	return &link{port: p, readTimeout: -1}, nil
}

// parseID parses the hex identifiers reported by the enumerator.
func parseID(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// describePort provides a human-readable description for a tty node name
func describePort(name string) string {
	switch {
	case strings.HasPrefix(name, "ttyUSB"):
		return "USB Serial Port"
	case strings.HasPrefix(name, "ttyACM"):
		return "USB CDC/ACM Device"
	case strings.HasPrefix(name, "cu."), strings.HasPrefix(name, "tty."):
		return "USB Serial Port"
	case strings.HasPrefix(name, "COM"):
		return "COM Port"
	default:
		return "Serial Port"
	}
}

type link struct {
	port serial.Port

	// readTimeout caches the last value handed to SetReadTimeout
	readTimeout time.Duration

	// pending is a write that outlived its timeout
	mu      sync.Mutex
	pending chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func (l *link) ReadBulk(buf []byte, timeout time.Duration) (int, error) {
	if timeout != l.readTimeout {
		if err := l.port.SetReadTimeout(timeout); err != nil {
			return 0, classify(err)
		}
		l.readTimeout = timeout
	}
	n, err := l.port.Read(buf)
	if err != nil {
		return n, classify(err)
	}
	if n == 0 {
		return 0, loraterm.ErrTimeout
	}
	return n, nil
}

// WriteBulk bounds a blocking write. A write that times out keeps running
// in the background and later writes fail until it completes.
func (l *link) WriteBulk(data []byte, timeout time.Duration) (int, error) {
	l.mu.Lock()
	if l.pending != nil {
		select {
		case <-l.pending:
			l.pending = nil
		default:
			l.mu.Unlock()
			return 0, fmt.Errorf("previous write still pending: %w", loraterm.ErrTimeout)
		}
	}
	l.mu.Unlock()

	type result struct {
		n   int
		err error
	}
	done := make(chan struct{})
	res := make(chan result, 1)
	go func() {
		n, err := l.port.Write(data)
		res <- result{n, err}
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-res:
		if r.err != nil {
			return r.n, classify(r.err)
		}
		return r.n, nil
	case <-timer.C:
		l.mu.Lock()
		l.pending = done
		l.mu.Unlock()
		return 0, loraterm.ErrTimeout
	}
}

func (l *link) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.port.Close()
	})
	return l.closeErr
}

// classify maps serial port failures onto the session's sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	code, ok := portErrorCode(err)
	if !ok {
		return err
	}
	switch code {
	case serial.PortNotFound, serial.InvalidSerialPort:
		return fmt.Errorf("%w: %w", loraterm.ErrDeviceNotFound, err)
	case serial.PermissionDenied:
		return fmt.Errorf("%w: %w", loraterm.ErrPermissionDenied, err)
	default:
		return err
	}
}

func portErrorCode(err error) (serial.PortErrorCode, bool) {
	var ptr *serial.PortError
	if errors.As(err, &ptr) {
		return ptr.Code(), true
	}
	var val serial.PortError
	if errors.As(err, &val) {
		return val.Code(), true
	}
	return 0, false
}
