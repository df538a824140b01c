package loraterm

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// PermissionEvent is the asynchronous answer to a permission request.
type PermissionEvent struct {
	Tag     string
	Device  Descriptor
	Granted bool
}

// Authorizer grants the process access to a device node.
type Authorizer interface {
	// HasPermission reports whether d can be opened right now.
	HasPermission(d Descriptor) bool
	// RequestPermission starts a one-shot request. The answer must be
	// handed to deliver exactly once, from any goroutine, at any time.
	RequestPermission(d Descriptor, tag string, deliver func(PermissionEvent)) error
}

type grantAll struct{}

func (grantAll) HasPermission(Descriptor) bool { return true }

func (grantAll) RequestPermission(d Descriptor, tag string, deliver func(PermissionEvent)) error {
	deliver(PermissionEvent{Tag: tag, Device: d, Granted: true})
	return nil
}

// GrantAll is the Authorizer for platforms where opening needs no grant.
var GrantAll Authorizer = grantAll{}

// PermissionGate turns Authorizer callbacks into a blocking request with
// action-tag validation.
type PermissionGate struct {
	auth   Authorizer
	tag    string
	log    zerolog.Logger
	events chan PermissionEvent

	mu      sync.Mutex
	pending *Descriptor
}

func NewPermissionGate(auth Authorizer, tag string) *PermissionGate {
	if auth == nil {
		auth = GrantAll
	}
	return &PermissionGate{
		auth:   auth,
		tag:    tag,
		log:    zerolog.Nop(),
		events: make(chan PermissionEvent, 1),
	}
}

// SetLogger replaces the gate's logger.
func (g *PermissionGate) SetLogger(l zerolog.Logger) {
	g.log = l
}

// Request resolves to nil when access to d is granted and to
// ErrPermissionDenied when it is refused. It returns ctx.Err() if ctx ends
// first; a late answer is then discarded by Deliver.
func (g *PermissionGate) Request(ctx context.Context, d Descriptor) error {
	if g.auth.HasPermission(d) {
		return nil
	}

	g.mu.Lock()
	target := d
	g.pending = &target
	// drain an answer left over from an abandoned request
	select {
	case <-g.events:
	default:
	}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.pending = nil
		g.mu.Unlock()
	}()

	g.log.Debug().Str("device", d.String()).Str("tag", g.tag).Msg("requesting device permission")
	if err := g.auth.RequestPermission(d, g.tag, g.Deliver); err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	select {
	case ev := <-g.events:
		if !ev.Granted {
			return ErrPermissionDenied
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver is the permission event handler. Events with a foreign tag, with
// no request outstanding, or for another device are dropped.
func (g *PermissionGate) Deliver(ev PermissionEvent) {
	if ev.Tag != g.tag {
		g.log.Debug().Str("tag", ev.Tag).Msg("ignoring permission event with foreign tag")
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil || !g.pending.Same(ev.Device) {
		g.log.Debug().Str("device", ev.Device.String()).Msg("ignoring stale permission event")
		return
	}
	g.pending = nil

	select {
	case g.events <- ev:
	default:
	}
}
