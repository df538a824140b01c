package loraterm

// State is the lifecycle state of a Session.
type State int

const (
	StateDisconnected State = iota
	StateAwaitingPermission
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateAwaitingPermission:
		return "AWAITING PERMISSION"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}
