package stream

// State is the connection state of a Manager.
type State int

const (
	// StateDisconnected is the initial state and the state after giving up.
	StateDisconnected State = iota
	// StateConnecting means a credential lookup or transport open is in flight.
	StateConnecting
	// StateConnected means the stream is open and being read.
	StateConnected
	// StateError is transient: it is immediately followed by a scheduled
	// reconnect or by StateDisconnected.
	StateError
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Active reports whether Connect would be a no-op in this state.
func (s State) Active() bool {
	return s == StateConnecting || s == StateConnected
}
