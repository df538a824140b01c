package loraterm

import "time"

// EventKind distinguishes the three streams delivered to an Observer.
type EventKind int

const (
	EventStatus EventKind = iota
	EventReceived
	EventTransmitted
)

func (k EventKind) String() string {
	switch k {
	case EventStatus:
		return "STATUS"
	case EventReceived:
		return "RX"
	case EventTransmitted:
		return "TX"
	default:
		return "UNKNOWN"
	}
}

// Event is a single line-oriented notification from the session.
type Event struct {
	Kind   EventKind
	Text   string
	Source string
	Err    error // set on failure status events
	Time   time.Time
}

// Observer receives session events. Methods are called synchronously from
// the goroutine that produced the event and must not block for long.
type Observer interface {
	OnStatus(ev Event)
	OnReceived(ev Event)
	OnTransmitted(ev Event)
}

// Observers fans every event out to each member in order.
type Observers []Observer

func (o Observers) OnStatus(ev Event) {
	for _, obs := range o {
		obs.OnStatus(ev)
	}
}

func (o Observers) OnReceived(ev Event) {
	for _, obs := range o {
		obs.OnReceived(ev)
	}
}

func (o Observers) OnTransmitted(ev Event) {
	for _, obs := range o {
		obs.OnTransmitted(ev)
	}
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) OnStatus(Event)      {}
func (NopObserver) OnReceived(Event)    {}
func (NopObserver) OnTransmitted(Event) {}

// ObserverFunc adapts a single function to all three streams.
type ObserverFunc func(ev Event)

func (f ObserverFunc) OnStatus(ev Event)      { f(ev) }
func (f ObserverFunc) OnReceived(ev Event)    { f(ev) }
func (f ObserverFunc) OnTransmitted(ev Event) { f(ev) }
