package client

// State is the session state. Transitions are strictly forward,
// except that StateClosing is reachable from any state.
type State uint8

// Session states.
const (
	StateDisconnected State = iota
	StateConnected
	StateAuthenticated
	StateStreaming
	StateClosing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}
