package device

import (
	"errors"
	"sync"
	"time"

	"github.com/lexiqai/eva-gateway/internal/audio"
	"github.com/lexiqai/eva-gateway/internal/observability"
	"github.com/lexiqai/eva-gateway/internal/playback"
)

var errOutputClosed = errors.New("audio output closed")

// Output is a playback context on the device. Its clock starts when it is
// opened; units finish when their end time on that clock has passed.
type Output struct {
	conn       *deviceConn
	sampleRate int
	opened     time.Time

	mu     sync.Mutex
	timers map[uint64]*time.Timer
	closed bool
}

func newOutput(c *deviceConn, sampleRate int) *Output {
	return &Output{
		conn:       c,
		sampleRate: sampleRate,
		opened:     time.Now(),
		timers:     make(map[uint64]*time.Timer),
	}
}

// Now is the output clock
func (o *Output) Now() time.Duration {
	return time.Since(o.opened)
}

// Play sends unit to the device and arms its completion
func (o *Output) Play(unit *playback.Unit, done func()) (playback.Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, errOutputClosed
	}

	err := o.conn.sendOrFail(Event{
		Event:      EventPlay,
		Unit:       unit.ID,
		StartMs:    unit.Start.Milliseconds(),
		DurationMs: unit.Buffer.Duration.Milliseconds(),
		SampleRate: unit.Buffer.SampleRate,
		Audio:      audio.EncodeBase64(unit.PCM),
	})
	if err != nil {
		return nil, err
	}
	observability.RecordAudioBytes("out", len(unit.PCM))

	id := unit.ID
	delay := unit.End() - o.Now()
	if delay < 0 {
		delay = 0
	}
	o.timers[id] = time.AfterFunc(delay, func() {
		o.mu.Lock()
		_, pending := o.timers[id]
		delete(o.timers, id)
		o.mu.Unlock()
		if pending {
			done()
		}
	})
	return &playHandle{output: o, id: id}, nil
}

func (o *Output) cancel(id uint64) {
	o.mu.Lock()
	t, ok := o.timers[id]
	delete(o.timers, id)
	closed := o.closed
	o.mu.Unlock()

	if !ok {
		return
	}
	t.Stop()
	if !closed {
		o.conn.send(Event{Event: EventCancel, Unit: id})
	}
}

// Close stops every pending unit and closes the context on the device
func (o *Output) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	for id, t := range o.timers {
		t.Stop()
		delete(o.timers, id)
	}
	o.mu.Unlock()

	if !o.conn.alive() {
		return nil
	}
	return o.conn.sendOrFail(Event{Event: EventOutputClose})
}

type playHandle struct {
	output *Output
	id     uint64
}

func (h *playHandle) Cancel() {
	h.output.cancel(h.id)
}
