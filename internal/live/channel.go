package live

import (
	"context"
	"errors"
	"io"

	"github.com/gorilla/websocket"
	"github.com/lexiqai/eva-gateway/internal/audio"
	"github.com/lexiqai/eva-gateway/internal/tools"
	"google.golang.org/genai"
)

// ErrClosed is returned once the channel has been closed locally
var ErrClosed = errors.New("live channel closed")

// Setup is sent once when the channel opens
type Setup struct {
	SystemInstruction string
	Declarations      []*genai.FunctionDeclaration
}

// ServerMessage is one inbound unit from the remote model
type ServerMessage struct {
	Audio        [][]byte // PCM16LE mono payloads in part order
	ToolCalls    []tools.Request
	Interrupted  bool
	TurnComplete bool
	GoAway       bool
}

// ToolResponse answers exactly one tool call, keyed by its id
type ToolResponse struct {
	ID       string
	Name     string
	Response map[string]any
}

// Channel is an open duplex connection. Sends are only ever made from one
// goroutine; Receive from another.
type Channel interface {
	SendAudio(audio.Frame) error
	SendToolResponse(ToolResponse) error
	Receive() (*ServerMessage, error)
	Close() error
}

// Dialer opens a Channel; Dial returns once the remote side is ready
type Dialer interface {
	Dial(ctx context.Context, setup Setup) (Channel, error)
}

// IsCleanClose reports whether err marks an orderly remote shutdown
func IsCleanClose(err error) bool {
	if err == nil {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure)
}

// IsUnexpectedClose reports whether err is a connection loss rather than a
// close handshake
func IsUnexpectedClose(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	return websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
