package audio

import (
	"sync/atomic"

	"github.com/lexiqai/eva-gateway/internal/observability"
)

// Frame is one captured chunk of mono PCM16LE audio, raw and wire-encoded.
type Frame struct {
	Seq        uint64
	SampleRate int
	PCM        []byte
	Data       string // base64 of PCM
}

// MIMEType is the media type announced alongside the frame on the wire
func (f Frame) MIMEType() string {
	return CaptureMIMEType(f.SampleRate)
}

// FrameSink takes captured frames. TrySendFrame must not block; it returns
// false when the frame was not accepted.
type FrameSink interface {
	TrySendFrame(Frame) bool
}

// CaptureConfig describes the capture cadence and rates
type CaptureConfig struct {
	FrameSize int // samples per cadence tick at InputRate
	InputRate int // rate the device delivers samples at
	WireRate  int // rate sent to the model
}

type sinkRef struct{ sink FrameSink }

// CaptureEncoder turns raw device buffers into wire frames and pushes them to
// the attached sink. Process is called from the device callback once per
// cadence tick and never blocks.
type CaptureEncoder struct {
	cfg  CaptureConfig
	sink atomic.Pointer[sinkRef]
	seq  atomic.Uint64
}

// NewCaptureEncoder creates an encoder; zero fields take the package defaults
func NewCaptureEncoder(cfg CaptureConfig) *CaptureEncoder {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = DefaultFrameSize
	}
	if cfg.WireRate <= 0 {
		cfg.WireRate = CaptureSampleRate
	}
	if cfg.InputRate <= 0 {
		cfg.InputRate = cfg.WireRate
	}
	return &CaptureEncoder{cfg: cfg}
}

// Config returns the effective capture configuration
func (e *CaptureEncoder) Config() CaptureConfig {
	return e.cfg
}

// Attach starts forwarding frames to sink
func (e *CaptureEncoder) Attach(sink FrameSink) {
	if sink == nil {
		e.sink.Store(nil)
		return
	}
	e.sink.Store(&sinkRef{sink: sink})
}

// Detach stops forwarding; later frames are dropped
func (e *CaptureEncoder) Detach() {
	e.sink.Store(nil)
}

// Process encodes one tick of samples and hands the frame to the sink.
// It reports whether the frame was accepted.
func (e *CaptureEncoder) Process(samples []float32) bool {
	if len(samples) == 0 {
		return false
	}

	ref := e.sink.Load()
	if ref == nil {
		observability.RecordFrameDropped("not_ready")
		return false
	}

	frame := e.Encode(samples)
	if !ref.sink.TrySendFrame(frame) {
		observability.RecordFrameDropped("backpressure")
		return false
	}
	observability.RecordFrameSent(len(frame.PCM))
	return true
}

// Encode resamples to the wire rate, quantizes to PCM16LE and base64-encodes
func (e *CaptureEncoder) Encode(samples []float32) Frame {
	wire := Resample(samples, e.cfg.InputRate, e.cfg.WireRate)
	observability.RecordInputLevel(CalculateRMS(wire))

	pcm := FloatToPCM16(wire)
	return Frame{
		Seq:        e.seq.Add(1),
		SampleRate: e.cfg.WireRate,
		PCM:        pcm,
		Data:       EncodeBase64(pcm),
	}
}
