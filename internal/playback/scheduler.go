package playback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lexiqai/eva-gateway/internal/audio"
	"github.com/lexiqai/eva-gateway/internal/observability"
	"github.com/rs/zerolog"
)

// ErrRenderer is returned when the output context refuses a unit
var ErrRenderer = errors.New("playback: renderer refused unit")

// ErrStopped is returned by Schedule once Stop has run
var ErrStopped = errors.New("playback: scheduler stopped")

// Buffer is decoded mono audio ready for the output context
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
	Duration   time.Duration
}

// Unit is one scheduled piece of synthesized audio
type Unit struct {
	ID     uint64
	Buffer Buffer
	PCM    []byte        // original PCM16LE payload
	Start  time.Duration // position on the output clock

	handle Handle
}

// End is the output clock position where the unit stops playing
func (u *Unit) End() time.Duration {
	return u.Start + u.Buffer.Duration
}

// Handle cancels a unit that the renderer has accepted
type Handle interface {
	Cancel()
}

// Renderer is the audio output context. Now reports the output clock; Play
// starts unit at unit.Start and calls done once it has finished playing.
// done may be called from any goroutine, including synchronously from Play.
type Renderer interface {
	Now() time.Duration
	Play(unit *Unit, done func()) (Handle, error)
}

// Scheduler lays synthesized audio out back to back on the output clock.
// next is the end of the most recently scheduled unit and is only written by
// Schedule and Stop. A stopped scheduler accepts no further units.
type Scheduler struct {
	renderer   Renderer
	sampleRate int
	logger     zerolog.Logger

	// playMu is held across renderer.Play so Stop never returns while a
	// unit is being handed to the renderer
	playMu sync.Mutex

	mu      sync.Mutex
	next    time.Duration
	active  map[uint64]*Unit
	seq     uint64
	gen     uint64
	stopped bool
}

// NewScheduler creates a scheduler that decodes payloads at sampleRate
func NewScheduler(renderer Renderer, sampleRate int, logger zerolog.Logger) *Scheduler {
	if sampleRate <= 0 {
		sampleRate = audio.PlaybackSampleRate
	}
	return &Scheduler{
		renderer:   renderer,
		sampleRate: sampleRate,
		logger:     logger.With().Str("component", "playback").Logger(),
		active:     make(map[uint64]*Unit),
	}
}

// Decode converts PCM16LE mono into a playable buffer
func Decode(pcm []byte, sampleRate int) (Buffer, error) {
	samples, err := audio.PCM16ToFloat(pcm)
	if err != nil {
		return Buffer{}, fmt.Errorf("decode playback payload: %w", err)
	}
	return Buffer{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   1,
		Duration:   time.Duration(len(samples)) * time.Second / time.Duration(sampleRate),
	}, nil
}

// ScheduleBase64 decodes a wire payload and schedules it
func (s *Scheduler) ScheduleBase64(payload string) (*Unit, error) {
	pcm, err := audio.DecodeBase64(payload)
	if err != nil {
		observability.RecordDecodeFailure()
		s.logger.Warn().Err(err).Msg("Dropping undecodable audio payload")
		return nil, fmt.Errorf("decode playback payload: %w", err)
	}
	return s.Schedule(pcm)
}

// Schedule decodes pcm and queues it to start at max(next, clock).
// A payload that fails to decode is dropped and leaves the timeline untouched.
func (s *Scheduler) Schedule(pcm []byte) (*Unit, error) {
	buf, err := Decode(pcm, s.sampleRate)
	if err != nil {
		observability.RecordDecodeFailure()
		s.logger.Warn().Err(err).Int("bytes", len(pcm)).Msg("Dropping undecodable audio payload")
		return nil, err
	}

	now := s.renderer.Now()

	s.playMu.Lock()
	defer s.playMu.Unlock()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrStopped
	}
	start := s.next
	if now > start {
		start = now
	}
	s.seq++
	unit := &Unit{ID: s.seq, Buffer: buf, PCM: pcm, Start: start}
	s.next = unit.End()
	s.active[unit.ID] = unit
	gen := s.gen
	s.mu.Unlock()

	observability.RecordUnitScheduled(len(pcm), start-now)

	handle, err := s.renderer.Play(unit, func() { s.finish(unit.ID, gen) })
	if err != nil {
		s.finish(unit.ID, gen)
		s.logger.Error().Err(err).Uint64("unit", unit.ID).Msg("Output context refused unit")
		return nil, fmt.Errorf("%w: %v", ErrRenderer, err)
	}

	s.mu.Lock()
	if _, ok := s.active[unit.ID]; ok {
		unit.handle = handle
	}
	s.mu.Unlock()

	s.logger.Debug().
		Uint64("unit", unit.ID).
		Dur("start", start).
		Dur("duration", buf.Duration).
		Msg("Scheduled playback unit")
	return unit, nil
}

func (s *Scheduler) finish(id, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	delete(s.active, id)
}

// Stop cancels every active unit, rewinds the timeline to zero and refuses
// later units. It waits for a unit already being handed to the renderer.
// Safe to call repeatedly.
func (s *Scheduler) Stop() {
	s.playMu.Lock()
	s.mu.Lock()
	units := s.active
	s.active = make(map[uint64]*Unit)
	s.next = 0
	s.gen++
	s.stopped = true
	s.mu.Unlock()
	s.playMu.Unlock()

	for _, u := range units {
		if u.handle != nil {
			u.handle.Cancel()
		}
	}
	if len(units) > 0 {
		s.logger.Debug().Int("units", len(units)).Msg("Cancelled active playback")
	}
}

// NextStartTime returns the end of the most recently scheduled unit
func (s *Scheduler) NextStartTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Active returns the number of units scheduled but not yet finished
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
