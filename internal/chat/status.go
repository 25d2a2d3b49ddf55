package chat

// Status is the phase of the connection lifecycle.
type Status int

const (
	// StatusDisconnected is the initial state and the state after Stop or a channel closure.
	StatusDisconnected Status = iota
	// StatusConnecting means Start is waiting for the channel to be established.
	StatusConnecting
	// StatusConnected means the channel is live and Send is allowed.
	StatusConnected
	// StatusFailed means the last establishment attempt failed. It is left only by an explicit Start or Stop.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}
