package loraterm

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type readResult struct {
	data []byte
	err  error
}

// fakeLink serves scripted reads and records writes.
type fakeLink struct {
	reads chan readResult

	mu       sync.Mutex
	writes   [][]byte
	writeErr error
	writeN   int // when > 0, truncates every write
	closed   bool

	readCalls    atomic.Int32
	readsClosed  atomic.Int32 // reads issued after Close
	closeCalls   atomic.Int32
	inTransfer   atomic.Int32
	overlapped   atomic.Bool
	inWrite      atomic.Int32
	writesMixed  atomic.Bool
	writeDelay   time.Duration
}

func newFakeLink() *fakeLink {
	return &fakeLink{reads: make(chan readResult, 16)}
}

func (l *fakeLink) ReadBulk(buf []byte, timeout time.Duration) (int, error) {
	l.readCalls.Add(1)
	if l.inTransfer.Add(1) > 1 {
		l.overlapped.Store(true)
	}
	defer l.inTransfer.Add(-1)

	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		l.readsClosed.Add(1)
		return 0, errors.New("read on closed link")
	}

	select {
	case r := <-l.reads:
		n := copy(buf, r.data)
		return n, r.err
	case <-time.After(timeout):
		return 0, fmt.Errorf("ep1: %w", ErrTimeout)
	}
}

func (l *fakeLink) WriteBulk(data []byte, timeout time.Duration) (int, error) {
	if l.inWrite.Add(1) > 1 {
		l.writesMixed.Store(true)
	}
	defer l.inWrite.Add(-1)
	time.Sleep(l.writeDelay)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writeErr != nil {
		return 0, l.writeErr
	}
	l.writes = append(l.writes, append([]byte(nil), data...))
	if l.writeN > 0 && l.writeN < len(data) {
		return l.writeN, nil
	}
	return len(data), nil
}

func (l *fakeLink) Close() error {
	l.closeCalls.Add(1)
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

func (l *fakeLink) Writes() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]byte(nil), l.writes...)
}

func (l *fakeLink) IsClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// fakeBackend hands out fakeLinks for a fixed device list.
type fakeBackend struct {
	mu        sync.Mutex
	devices   []Descriptor
	enumErr   error
	openErr   error
	links     []*fakeLink
	openCount int
	enumCount int
	nextLink  *fakeLink
	enumDelay time.Duration
}

func (b *fakeBackend) Enumerate() ([]Descriptor, error) {
	time.Sleep(b.enumDelay)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enumCount++
	return append([]Descriptor(nil), b.devices...), b.enumErr
}

func (b *fakeBackend) Open(d Descriptor) (Link, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.openCount++
	link := b.nextLink
	b.nextLink = nil
	if link == nil {
		link = newFakeLink()
	}
	b.links = append(b.links, link)
	return link, nil
}

func (b *fakeBackend) Link(i int) *fakeLink {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.links[i]
}

func (b *fakeBackend) Opened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.openCount
}

// manualAuthorizer records requests; the test answers them.
type manualAuthorizer struct {
	mu        sync.Mutex
	granted   bool
	requests  []Descriptor
	deliver   func(PermissionEvent)
	requested chan struct{}
	err       error
}

func newManualAuthorizer() *manualAuthorizer {
	return &manualAuthorizer{requested: make(chan struct{}, 4)}
}

func (a *manualAuthorizer) HasPermission(Descriptor) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.granted
}

func (a *manualAuthorizer) RequestPermission(d Descriptor, tag string, deliver func(PermissionEvent)) error {
	a.mu.Lock()
	if a.err != nil {
		a.mu.Unlock()
		return a.err
	}
	a.requests = append(a.requests, d)
	a.deliver = deliver
	a.mu.Unlock()
	a.requested <- struct{}{}
	return nil
}

func (a *manualAuthorizer) answer(ev PermissionEvent) {
	a.mu.Lock()
	deliver := a.deliver
	a.mu.Unlock()
	deliver(ev)
}

// recorder collects every event it observes.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) add(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) OnStatus(ev Event)      { r.add(ev) }
func (r *recorder) OnReceived(ev Event)    { r.add(ev) }
func (r *recorder) OnTransmitted(ev Event) { r.add(ev) }

func (r *recorder) Kind(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) Statuses() []string {
	var out []string
	for _, ev := range r.Kind(EventStatus) {
		out = append(out, ev.Text)
	}
	return out
}

func (r *recorder) Received() string {
	var text string
	for _, ev := range r.Kind(EventReceived) {
		text += ev.Text
	}
	return text
}

var radio = Descriptor{
	VendorID:  DefaultVendorID,
	ProductID: DefaultProductID,
	Bus:       1,
	Address:   4,
	Path:      "/dev/bus/usb/001/004",
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := NewConfig(
		WithReadTimeout(5*time.Millisecond),
		WithPollInterval(time.Millisecond),
		WithWriteTimeout(50*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
