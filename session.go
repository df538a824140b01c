package loraterm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status lines reported to observers.
const (
	StatusConnected       = "Connected to USB device"
	StatusDisconnected    = "Disconnected"
	StatusNotFound        = "No compatible USB device found"
	StatusOpenFailed      = "Cannot open USB device"
	StatusNotConnected    = "Not connected"
	StatusDenied          = "USB permission denied"
	StatusAwaiting        = "Waiting for USB permission..."
	StatusAbandoned       = "USB permission request abandoned"
	StatusScanFailed      = "Cannot enumerate USB devices"
	StatusSessionClosed   = "Session closed"
	statusLinkLostPattern = "Link lost: %v"
	statusSendFailed      = "Send failed: %v"
)

// SessionOption configures a Session
type SessionOption func(*Session)

// WithObserver sets the collaborator that receives session events
func WithObserver(o Observer) SessionOption {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithAuthorizer sets the authorizer consulted before opening a device
func WithAuthorizer(a Authorizer) SessionOption {
	return func(s *Session) {
		if a != nil {
			s.auth = a
		}
	}
}

// WithLogger sets the structured logger
func WithLogger(l zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.log = l
	}
}

// Session owns the single link to the radio and everything that touches it.
type Session struct {
	cfg      Config
	backend  Backend
	auth     Authorizer
	locator  *Locator
	gate     *PermissionGate
	observer Observer
	log      zerolog.Logger

	lifetime context.Context
	shutdown context.CancelFunc

	// transition serializes connect and disconnect
	transition sync.Mutex
	// sending serializes outbound transfers
	sending sync.Mutex

	mu       sync.RWMutex
	state    State
	link     Link
	device   *Descriptor
	stopRead context.CancelFunc
	readDone chan struct{}
	// pending Open calls, cancelled by Disconnect
	attempts map[*attempt]struct{}
}

type attempt struct {
	cancel context.CancelFunc
}

func NewSession(backend Backend, cfg Config, opts ...SessionOption) *Session {
	lifetime, shutdown := context.WithCancel(context.Background())
	s := &Session{
		cfg:      cfg,
		backend:  backend,
		auth:     GrantAll,
		observer: NopObserver{},
		log:      zerolog.Nop(),
		lifetime: lifetime,
		shutdown: shutdown,
		attempts: make(map[*attempt]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.locator = NewLocator(backend, cfg.VendorID, cfg.ProductID)
	s.gate = NewPermissionGate(s.auth, cfg.ActionTag)
	s.gate.SetLogger(s.log)
	return s
}

// State returns the current session state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Device returns the device of the current or last session, if any
func (s *Session) Device() *Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.device == nil {
		return nil
	}
	d := *s.device
	return &d
}

func (s *Session) Config() Config {
	return s.cfg
}

// Locator returns the locator the session scans with
func (s *Session) Locator() *Locator {
	return s.locator
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()

	if prev != state {
		s.log.Debug().
			Str("from", prev.String()).
			Str("to", state.String()).
			Msg("session state changed")
	}
}

func (s *Session) status(text string, err error) {
	ev := Event{
		Kind:   EventStatus,
		Text:   text,
		Source: "session",
		Err:    err,
		Time:   time.Now(),
	}
	if err != nil {
		s.log.Warn().Err(err).Msg(text)
	} else {
		s.log.Info().Msg(text)
	}
	s.observer.OnStatus(ev)
}

// Open runs the full connect flow: locate the device, obtain permission,
// connect. Every failure leaves the session disconnected. A Disconnect at
// any point before the link is opened abandons the attempt.
func (s *Session) Open(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.lifetime, cancel)
	defer stop()

	// registered before taking transition so Disconnect can reach a scan
	// or permission wait in progress
	a := &attempt{cancel: cancel}
	s.mu.Lock()
	s.attempts[a] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.attempts, a)
		s.mu.Unlock()
	}()

	s.transition.Lock()
	defer s.transition.Unlock()

	if s.lifetime.Err() != nil {
		err := fmt.Errorf("%w: %s", ErrConnectionFailed, StatusSessionClosed)
		s.status(StatusSessionClosed, err)
		return err
	}
	if s.State() != StateDisconnected {
		return ErrAlreadyConnected
	}
	if err := ctx.Err(); err != nil {
		s.status(StatusAbandoned, err)
		return err
	}

	d, err := s.locator.Find()
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			s.status(StatusNotFound, err)
		} else {
			s.status(StatusScanFailed, err)
		}
		return err
	}
	if err := ctx.Err(); err != nil {
		s.status(StatusAbandoned, err)
		return err
	}

	s.mu.Lock()
	s.device = d
	s.mu.Unlock()
	s.setState(StateAwaitingPermission)

	if !s.auth.HasPermission(*d) {
		s.status(StatusAwaiting, nil)
	}
	err = s.gate.Request(ctx, *d)
	if err == nil {
		// a grant racing a Disconnect must not open the link
		err = ctx.Err()
	}

	if err != nil {
		s.setState(StateDisconnected)
		if errors.Is(err, ErrPermissionDenied) {
			s.status(StatusDenied, err)
		} else {
			s.status(StatusAbandoned, err)
		}
		return err
	}

	return s.connectLocked(d)
}

// Connect opens a link to an already authorized device and starts the
// reader. A nil device fails with ErrDeviceNotFound.
func (s *Session) Connect(d *Descriptor) error {
	s.transition.Lock()
	defer s.transition.Unlock()

	if d == nil {
		s.status(StatusNotFound, ErrDeviceNotFound)
		return ErrDeviceNotFound
	}
	if s.lifetime.Err() != nil {
		err := fmt.Errorf("%w: %s", ErrConnectionFailed, StatusSessionClosed)
		s.status(StatusSessionClosed, err)
		return err
	}
	if s.State() != StateDisconnected {
		return ErrAlreadyConnected
	}
	return s.connectLocked(d)
}

func (s *Session) connectLocked(d *Descriptor) error {
	if d == nil {
		s.setState(StateDisconnected)
		s.status(StatusNotFound, ErrDeviceNotFound)
		return ErrDeviceNotFound
	}

	s.setState(StateConnecting)
	link, err := s.backend.Open(*d)
	if err != nil {
		s.setState(StateDisconnected)
		err = fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		s.status(StatusOpenFailed, err)
		return err
	}

	readCtx, stopRead := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.link = link
	s.device = d
	s.stopRead = stopRead
	s.readDone = done
	s.mu.Unlock()
	s.setState(StateConnected)

	s.log.Info().
		Str("device", d.String()).
		Int("in_endpoint", s.cfg.InEndpoint).
		Int("out_endpoint", s.cfg.OutEndpoint).
		Msg("link opened")
	s.status(StatusConnected, nil)

	go s.runReader(readCtx, link, d.String(), done)
	return nil
}

// Disconnect stops the reader, releases the link and returns to
// StateDisconnected. It is a no-op when already disconnected.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	for a := range s.attempts {
		a.cancel()
	}
	s.mu.Unlock()

	s.transition.Lock()
	defer s.transition.Unlock()

	if s.teardown() {
		s.status(StatusDisconnected, nil)
	}
	return nil
}

// Toggle disconnects an active or pending session, otherwise opens one.
func (s *Session) Toggle(ctx context.Context) error {
	if s.State() != StateDisconnected {
		return s.Disconnect()
	}
	return s.Open(ctx)
}

// Close is the terminal teardown: it always releases the link and makes
// later connect attempts fail.
func (s *Session) Close() error {
	s.shutdown()
	return s.Disconnect()
}

// teardown must be called with transition held. It reports whether a link
// was released.
func (s *Session) teardown() bool {
	s.mu.Lock()
	if s.link == nil {
		s.mu.Unlock()
		s.setState(StateDisconnected)
		return false
	}
	stop, done := s.stopRead, s.readDone
	s.mu.Unlock()
	s.setState(StateDisconnected)

	// the link stays open until the reader has issued its last transfer
	stop()
	<-done

	s.mu.Lock()
	link := s.link
	s.link = nil
	s.stopRead = nil
	s.readDone = nil
	s.mu.Unlock()

	if err := link.Close(); err != nil {
		s.log.Warn().Err(err).Msg("failed to close link")
	}
	s.log.Info().Msg("link released")
	return true
}

// linkLost tears down the session after a hard I/O error on link. It does
// nothing when link has already been released.
func (s *Session) linkLost(link Link, cause error) {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.RLock()
	current := s.link
	s.mu.RUnlock()
	if current == nil || current != link {
		return
	}

	s.teardown()
	s.status(fmt.Sprintf(statusLinkLostPattern, cause), fmt.Errorf("%w: %w", ErrLinkLost, cause))
}

// Send writes one command line to the device. The transmitted echo is
// emitted whether or not the transfer succeeds.
func (s *Session) Send(command string) error {
	s.mu.RLock()
	if s.state != StateConnected || s.link == nil {
		s.mu.RUnlock()
		s.status(StatusNotConnected, ErrNotConnected)
		return ErrNotConnected
	}
	link := s.link
	w := writer{link: link, endpoint: s.cfg.OutEndpoint, timeout: s.cfg.WriteTimeout}
	s.sending.Lock()
	err := w.write(command)
	s.sending.Unlock()
	s.mu.RUnlock()

	s.observer.OnTransmitted(Event{
		Kind:   EventTransmitted,
		Text:   command,
		Source: "local",
		Time:   time.Now(),
	})

	if err != nil {
		var te *TransferError
		if errors.As(err, &te) && !te.Timeout() && !errors.Is(te.Err, ErrShortTransfer) {
			s.linkLost(link, err)
		} else {
			s.status(fmt.Sprintf(statusSendFailed, err), err)
		}
		return err
	}

	s.log.Debug().Str("command", command).Msg("command sent")
	return nil
}
