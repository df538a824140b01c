// Package notify raises desktop notifications for session events that need
// the operator's attention.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allbin/loraterm"
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

const (
	busName    = "org.freedesktop.Notifications"
	objectPath = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyCall = busName + ".Notify"
)

// Urgency hint values of org.freedesktop.Notifications
const (
	UrgencyLow      byte = 0
	UrgencyNormal   byte = 1
	UrgencyCritical byte = 2
)

// notification is one message for the desktop.
type notification struct {
	Summary string
	Body    string
	Urgency byte
}

type poster interface {
	post(n notification) error
}

// Notifier is a loraterm.Observer that forwards selected status events.
type Notifier struct {
	post poster
	log  zerolog.Logger
}

var _ loraterm.Observer = (*Notifier)(nil)

// New connects to the session bus.
func New(log zerolog.Logger) (*Notifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &Notifier{post: &dbusPoster{conn: conn}, log: log}, nil
}

// Close releases the bus connection.
func (n *Notifier) Close() error {
	if p, ok := n.post.(*dbusPoster); ok {
		return p.conn.Close()
	}
	return nil
}

func (n *Notifier) OnStatus(ev loraterm.Event) {
	note, ok := classify(ev)
	if !ok {
		return
	}
	go func() {
		if err := n.post.post(note); err != nil {
			n.log.Debug().Err(err).Str("summary", note.Summary).Msg("notification failed")
		}
	}()
}

func (n *Notifier) OnReceived(loraterm.Event)    {}
func (n *Notifier) OnTransmitted(loraterm.Event) {}

// classify picks the status events worth interrupting the operator for.
func classify(ev loraterm.Event) (notification, bool) {
	switch {
	case errors.Is(ev.Err, loraterm.ErrLinkLost):
		return notification{Summary: "LoRa link lost", Body: ev.Text, Urgency: UrgencyCritical}, true
	case errors.Is(ev.Err, loraterm.ErrPermissionDenied):
		return notification{Summary: "USB permission denied", Body: ev.Text, Urgency: UrgencyNormal}, true
	case ev.Err == nil && ev.Text == loraterm.StatusAwaiting:
		return notification{
			Summary: "USB permission required",
			Body:    "Grant access to the radio's device node to continue.",
			Urgency: UrgencyNormal,
		}, true
	case ev.Err == nil && ev.Text == loraterm.StatusConnected:
		return notification{Summary: "LoRa radio connected", Body: ev.Text, Urgency: UrgencyLow}, true
	default:
		return notification{}, false
	}
}

type dbusPoster struct {
	conn *dbus.Conn
}

func (p *dbusPoster) post(n notification) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(n.Urgency),
	}
	obj := p.conn.Object(busName, objectPath)
	call := obj.CallWithContext(ctx, notifyCall, 0,
		"loraterm",      // app_name
		uint32(0),       // replaces_id
		"network-radio", // app_icon
		n.Summary,
		n.Body,
		[]string{},
		hints,
		int32(-1), // server default expiry
	)
	return call.Err
}
