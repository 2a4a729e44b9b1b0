package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lexiqai/eva-gateway/internal/audio"
	"github.com/lexiqai/eva-gateway/internal/live"
	"github.com/lexiqai/eva-gateway/internal/observability"
	"github.com/lexiqai/eva-gateway/internal/playback"
	"github.com/rs/zerolog"
)

// liveSession holds the resources of one live session. Resources are
// attached as they are acquired; once torn, nothing new may be attached.
type liveSession struct {
	id      string
	logger  zerolog.Logger
	metrics *observability.SessionMetrics
	cancel  context.CancelFunc
	once    sync.Once

	mu        sync.Mutex
	torn      bool
	input     Input
	output    Output
	scheduler *playback.Scheduler
	encoder   *audio.CaptureEncoder
	transport *live.Transport
}

func (s *liveSession) attach(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.torn {
		return false
	}
	fn()
	return true
}

func (s *liveSession) markTorn() {
	s.mu.Lock()
	s.torn = true
	s.mu.Unlock()
}

func (s *liveSession) isTorn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.torn
}

// release frees everything the session holds. Every step runs even when an
// earlier one failed or panicked.
func (s *liveSession) release() error {
	s.mu.Lock()
	in, out := s.input, s.output
	sched, enc, tr := s.scheduler, s.encoder, s.transport
	s.mu.Unlock()

	var errs []error
	step := func(name string, fn func() error) {
		defer func() {
			if r := recover(); r != nil {
				errs = append(errs, fmt.Errorf("%s panicked: %v", name, r))
			}
		}()
		if err := fn(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if enc != nil {
		enc.Detach()
	}
	if tr != nil {
		step("close channel", tr.Close)
	}
	if in != nil {
		step("stop tracks", in.StopTracks)
	}
	if sched != nil {
		step("stop playback", func() error {
			sched.Stop()
			return nil
		})
	}
	if in != nil {
		step("close input", in.Close)
	}
	if out != nil {
		step("close output", out.Close)
	}
	return errors.Join(errs...)
}
