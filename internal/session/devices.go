package session

import (
	"context"

	"github.com/lexiqai/eva-gateway/internal/playback"
)

// Input is an open microphone. Capture delivers fixed-size frames of float
// samples in [-1,1] to fn until the input is stopped.
type Input interface {
	SampleRate() int
	Capture(fn func(samples []float32)) error
	StopTracks() error
	Close() error
}

// Output is an audio rendering context with its own clock
type Output interface {
	playback.Renderer
	Close() error
}

// Devices acquires the audio hardware for one session. OpenInput suspends
// until the user answers the permission prompt and returns an error wrapping
// ErrPermissionDenied on refusal.
type Devices interface {
	OpenInput(ctx context.Context, frameSize int) (Input, error)
	OpenOutput(ctx context.Context, sampleRate int) (Output, error)
}
