package session

import "errors"

// State of the live voice session
type State int

const (
	Idle State = iota
	Connecting
	Live
	Closing
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Live:
		return "live"
	case Closing:
		return "closing"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Active reports whether a session is holding resources in this state
func (s State) Active() bool {
	return s == Connecting || s == Live || s == Closing
}

var (
	ErrSessionActive    = errors.New("a live session is already active")
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrSessionEnded     = errors.New("live session ended before it was ready")
	ErrBusy             = errors.New("a text request is already in flight")
	ErrLiveActive       = errors.New("text input is disabled while a live session is active")
	ErrEmptyMessage     = errors.New("message is empty")
)
