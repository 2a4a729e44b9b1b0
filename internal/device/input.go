package device

import (
	"errors"
	"sync"

	"github.com/lexiqai/eva-gateway/internal/audio"
	"github.com/lexiqai/eva-gateway/internal/observability"
)

var errInputStopped = errors.New("microphone input stopped")

// Input is the device microphone. Binary audio from the device is reframed
// into fixed-size frames before it reaches the capture callback.
type Input struct {
	conn      *deviceConn
	rate      int
	frameSize int

	mu        sync.Mutex
	buf       *audio.RingBuffer
	frame     []byte
	capture   func([]float32)
	stopped   bool
	closeOnce sync.Once
}

func newInput(c *deviceConn, rate, frameSize int) *Input {
	if frameSize <= 0 {
		frameSize = audio.DefaultFrameSize
	}
	frameBytes := frameSize * 4
	return &Input{
		conn:      c,
		rate:      rate,
		frameSize: frameSize,
		buf:       audio.NewRingBuffer(frameBytes * 8),
		frame:     make([]byte, frameBytes),
	}
}

// SampleRate is the rate the device captures at
func (i *Input) SampleRate() int {
	return i.rate
}

// Capture starts delivering frames to fn
func (i *Input) Capture(fn func(samples []float32)) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.stopped {
		return errInputStopped
	}
	i.capture = fn
	return nil
}

// write is called from the connection reader with raw float32LE bytes
func (i *Input) write(data []byte) {
	i.mu.Lock()
	if i.stopped || i.capture == nil {
		i.mu.Unlock()
		return
	}
	observability.RecordAudioBytes("in", len(data))
	if n := i.buf.Write(data); n < len(data) {
		observability.RecordFrameDropped("overflow")
		i.conn.logger.Warn().Int("dropped", len(data)-n).Msg("Microphone buffer overflow")
	}

	var frames [][]float32
	for i.buf.ReadFull(i.frame) {
		samples, err := audio.DecodeFloat32LE(i.frame)
		if err != nil {
			continue
		}
		frames = append(frames, samples)
	}
	fn := i.capture
	i.mu.Unlock()

	for _, samples := range frames {
		fn(samples)
	}
}

// StopTracks stops delivery and tells the device to release the microphone
func (i *Input) StopTracks() error {
	i.mu.Lock()
	if i.stopped {
		i.mu.Unlock()
		return nil
	}
	i.stopped = true
	i.capture = nil
	i.buf.Clear()
	i.mu.Unlock()

	if !i.conn.alive() {
		return nil
	}
	return i.conn.sendOrFail(Event{Event: EventMicRelease})
}

// Close detaches the input from the device
func (i *Input) Close() error {
	var err error
	i.closeOnce.Do(func() {
		i.mu.Lock()
		i.stopped = true
		i.capture = nil
		i.mu.Unlock()

		i.conn.detachInput(i)
		if i.conn.alive() {
			err = i.conn.sendOrFail(Event{Event: EventInputClose})
		}
	})
	return err
}
