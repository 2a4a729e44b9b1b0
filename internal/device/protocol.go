package device

import "github.com/lexiqai/eva-gateway/internal/tools"

// Event names exchanged with the device over the WebSocket
const (
	// gateway -> device
	EventMicRequest  = "mic_request"
	EventMicRelease  = "mic_release"
	EventInputClose  = "input_close"
	EventPlay        = "play"
	EventCancel      = "cancel"
	EventOutputClose = "output_close"
	EventState       = "state"
	EventMessage     = "message"
	EventTask        = "task"

	// device -> gateway
	EventMic = "mic"
)

// Event is one JSON text message. Microphone audio travels separately as
// binary messages of float32 little-endian samples.
type Event struct {
	Event string `json:"event"`

	// mic answer
	Granted    bool `json:"granted,omitempty"`
	SampleRate int  `json:"sampleRate,omitempty"`

	// playback
	Unit       uint64 `json:"unit,omitempty"`
	StartMs    int64  `json:"startMs,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
	Audio      string `json:"audio,omitempty"` // base64 PCM16LE

	// session feed
	State     string      `json:"state,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
	Role      string      `json:"role,omitempty"`
	Text      string      `json:"text,omitempty"`
	Task      *tools.Task `json:"task,omitempty"`
}

// StateEvent reports a session state change
func StateEvent(state, sessionID string) Event {
	return Event{Event: EventState, State: state, SessionID: sessionID}
}

// MessageEvent reports a message appended to the conversation log
func MessageEvent(role, text string) Event {
	return Event{Event: EventMessage, Role: role, Text: text}
}

// TaskEvent reports a created task
func TaskEvent(t tools.Task) Event {
	return Event{Event: EventTask, Task: &t}
}
