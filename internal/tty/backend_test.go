package tty

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/allbin/loraterm"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// fakePort implements the parts of serial.Port the link uses.
type fakePort struct {
	serial.Port

	reads    [][]byte
	timeouts []time.Duration
	written  []byte
	block    chan struct{}
	closed   bool
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeouts = append(p.timeouts, t)
	return nil
}

func (p *fakePort) Read(buf []byte) (int, error) {
	if len(p.reads) == 0 {
		return 0, nil
	}
	n := copy(buf, p.reads[0])
	p.reads = p.reads[1:]
	return n, nil
}

func (p *fakePort) Write(data []byte) (int, error) {
	if p.block != nil {
		<-p.block
	}
	p.written = append(p.written, data...)
	return len(data), nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestParseID(t *testing.T) {
	tests := []struct {
		input    string
		expected uint16
		wantErr  bool
	}{
		{"10C4", 0x10C4, false},
		{"ea60", 0xEA60, false},
		{"0x0403", 0x0403, false},
		{" 6001\n", 0x6001, false},
		{"", 0, true},
		{"zzzz", 0, true},
		{"12345", 0, true},
	}

	for _, test := range tests {
		got, err := parseID(test.input)
		if (err != nil) != test.wantErr {
			t.Errorf("parseID(%q) error = %v, wantErr %v", test.input, err, test.wantErr)
		}
		if err == nil && got != test.expected {
			t.Errorf("parseID(%q) = %#04x, expected %#04x", test.input, got, test.expected)
		}
	}
}

func TestDescribePort(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"ttyUSB0", "USB Serial Port"},
		{"ttyACM0", "USB CDC/ACM Device"},
		{"cu.SLAB_USBtoUART", "USB Serial Port"},
		{"COM3", "COM Port"},
		{"ttyS0", "Serial Port"},
	}

	for _, test := range tests {
		if got := describePort(test.name); got != test.expected {
			t.Errorf("describePort(%s) = %s, expected %s", test.name, got, test.expected)
		}
	}
}

// mockSysfs builds class/tty/<name>/device -> devices/usb1/1-2/1-2:1.0/<name>
func mockSysfs(t *testing.T, name, busnum, devnum string) string {
	t.Helper()
	root := t.TempDir()

	devicePath := filepath.Join(root, "devices", "usb1", "1-2")
	ttyPath := filepath.Join(devicePath, "1-2:1.0", name)
	classPath := filepath.Join(root, "class", "tty", name)

	for _, dir := range []string{ttyPath, classPath} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}
	files := map[string]string{"busnum": busnum, "devnum": devnum, "idVendor": "10c4", "idProduct": "ea60"}
	for file, content := range files {
		if err := os.WriteFile(filepath.Join(devicePath, file), []byte(content+"\n"), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", file, err)
		}
	}
	if err := os.Symlink(ttyPath, filepath.Join(classPath, "device")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}
	return root
}

func TestUSBLocation(t *testing.T) {
	root := mockSysfs(t, "ttyUSB0", "1", "4")

	bus, address := usbLocation(root, "ttyUSB0")
	if bus != 1 || address != 4 {
		t.Errorf("usbLocation() = %d/%d, expected 1/4", bus, address)
	}

	// missing ports resolve to zeros instead of failing
	bus, address = usbLocation(root, "ttyUSB9")
	if bus != 0 || address != 0 {
		t.Errorf("usbLocation(missing) = %d/%d, expected 0/0", bus, address)
	}
}

func TestReadSysfsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "serial")
	if err := os.WriteFile(path, []byte("  0001  \n"), 0644); err != nil {
		t.Fatal(err)
	}

	if got := readSysfsFile(path); got != "0001" {
		t.Errorf("readSysfsFile() = %q, expected %q", got, "0001")
	}
	if got := readSysfsFile(filepath.Join(dir, "missing")); got != "" {
		t.Errorf("readSysfsFile(missing) = %q, expected empty", got)
	}
}

func TestEnumerate(t *testing.T) {
	root := mockSysfs(t, "ttyUSB0", "1", "4")
	b := New(Options{SysfsRoot: root}, zerolog.Nop())
	b.listPorts = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyS0"},
			{Name: "/dev/ttyUSB0", IsUSB: true, VID: "10C4", PID: "EA60", SerialNumber: "0001"},
			{Name: "/dev/ttyUSB1", IsUSB: true, VID: "bogus", PID: "6001"},
			{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043", Product: "Arduino Uno"},
		}, nil
	}

	devices, err := b.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("Enumerate returned %d devices, expected 2: %+v", len(devices), devices)
	}

	radio := devices[0]
	if radio.VendorID != 0x10C4 || radio.ProductID != 0xEA60 {
		t.Errorf("signature = %04x:%04x", radio.VendorID, radio.ProductID)
	}
	if radio.Bus != 1 || radio.Address != 4 {
		t.Errorf("location = %d/%d, expected 1/4", radio.Bus, radio.Address)
	}
	if radio.Serial != "0001" || radio.Product != "USB Serial Port" {
		t.Errorf("metadata = %q/%q", radio.Serial, radio.Product)
	}
	if devices[1].Product != "Arduino Uno" {
		t.Errorf("Product = %q, expected enumerator value", devices[1].Product)
	}

	loc := loraterm.NewLocator(b, loraterm.DefaultVendorID, loraterm.DefaultProductID)
	d, err := loc.Find()
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if d.Path != "/dev/ttyUSB0" {
		t.Errorf("Find() = %s, expected /dev/ttyUSB0", d.Path)
	}
}

func TestOpen(t *testing.T) {
	port := &fakePort{}
	var gotMode *serial.Mode
	b := New(DefaultOptions(), zerolog.Nop())
	b.openPort = func(name string, mode *serial.Mode) (serial.Port, error) {
		gotMode = mode
		return port, nil
	}

	link, err := b.Open(loraterm.Descriptor{Path: "/dev/ttyUSB0"})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if gotMode.BaudRate != DefaultBaudRate || gotMode.DataBits != 8 {
		t.Errorf("mode = %+v", gotMode)
	}

	if err := link.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := link.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if !port.closed {
		t.Error("port not closed")
	}

	if _, err := b.Open(loraterm.Descriptor{}); !errors.Is(err, loraterm.ErrDeviceNotFound) {
		t.Errorf("Open(no path) error = %v, expected ErrDeviceNotFound", err)
	}
}

func TestOpenFailure(t *testing.T) {
	b := New(DefaultOptions(), zerolog.Nop())
	b.openPort = func(string, *serial.Mode) (serial.Port, error) {
		return nil, errors.New("device busy")
	}
	if _, err := b.Open(loraterm.Descriptor{Path: "/dev/ttyUSB0"}); err == nil {
		t.Error("Open succeeded on a failing port")
	}
}

func TestLinkRead(t *testing.T) {
	port := &fakePort{reads: [][]byte{[]byte("OK\r\n")}}
	l := &link{port: port, readTimeout: -1}
	buf := make([]byte, 64)

	n, err := l.ReadBulk(buf, 100*time.Millisecond)
	if err != nil || string(buf[:n]) != "OK\r\n" {
		t.Fatalf("ReadBulk = %q, %v", buf[:n], err)
	}

	// nothing pending reads as a timeout
	n, err = l.ReadBulk(buf, 100*time.Millisecond)
	if n != 0 || !loraterm.IsTimeout(err) {
		t.Errorf("ReadBulk on idle port = %d, %v; expected timeout", n, err)
	}

	if len(port.timeouts) != 1 {
		t.Errorf("SetReadTimeout called %d times, expected 1", len(port.timeouts))
	}
}

func TestLinkWriteTimeout(t *testing.T) {
	port := &fakePort{block: make(chan struct{})}
	l := &link{port: port, readTimeout: -1}

	_, err := l.WriteBulk([]byte("flash\n"), 10*time.Millisecond)
	if !loraterm.IsTimeout(err) {
		t.Fatalf("WriteBulk error = %v, expected timeout", err)
	}

	// a second write is refused while the first is stuck
	if _, err := l.WriteBulk([]byte("flash\n"), 10*time.Millisecond); !loraterm.IsTimeout(err) {
		t.Errorf("second WriteBulk error = %v, expected timeout", err)
	}

	close(port.block)
	deadline := time.Now().Add(time.Second)
	for {
		n, err := l.WriteBulk([]byte("get debug_info\n"), 100*time.Millisecond)
		if err == nil {
			if n != len("get debug_info\n") {
				t.Errorf("WriteBulk wrote %d bytes", n)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("WriteBulk still failing after unblock: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
}
