package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lexiqai/eva-gateway/internal/audio"
	"github.com/lexiqai/eva-gateway/internal/observability"
	"github.com/lexiqai/eva-gateway/internal/playback"
	"github.com/lexiqai/eva-gateway/internal/tools"
	"github.com/rs/zerolog"
)

// AudioScheduler plays inbound synthesized audio
type AudioScheduler interface {
	Schedule(pcm []byte) (*playback.Unit, error)
}

// ToolDispatcher executes inbound tool calls
type ToolDispatcher interface {
	Dispatch(tools.Request) tools.Result
}

// Handler is told when the channel opens and when it ends. OnClose gets nil
// for an orderly remote close and the cause otherwise. A close started by
// Transport.Close is not reported.
type Handler interface {
	OnOpen()
	OnClose(err error)
}

// Config tunes a Transport
type Config struct {
	QueueSize int // captured frames waiting for the writer
	Logger    zerolog.Logger
}

// Transport owns one live channel: a writer goroutine drains captured frames
// and tool responses, a reader goroutine routes inbound messages.
type Transport struct {
	dialer     Dialer
	scheduler  AudioScheduler
	dispatcher ToolDispatcher
	handler    Handler
	logger     zerolog.Logger

	frames    chan audio.Frame
	responses chan ToolResponse
	done      chan struct{}

	mu        sync.Mutex
	ch        Channel
	dialing   bool
	closed    bool
	open      atomic.Bool
	local     atomic.Bool
	closeOnce sync.Once
	endOnce   sync.Once
	wg        sync.WaitGroup
}

// NewTransport wires a transport to its collaborators
func NewTransport(dialer Dialer, scheduler AudioScheduler, dispatcher ToolDispatcher, handler Handler, cfg Config) *Transport {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	return &Transport{
		dialer:     dialer,
		scheduler:  scheduler,
		dispatcher: dispatcher,
		handler:    handler,
		logger:     cfg.Logger.With().Str("component", "live").Logger(),
		frames:     make(chan audio.Frame, cfg.QueueSize),
		responses:  make(chan ToolResponse, 16),
		done:       make(chan struct{}),
	}
}

// Connect dials the channel, starts the writer and reader and reports OnOpen.
// It suspends until the remote side is ready or ctx is done.
func (t *Transport) Connect(ctx context.Context, setup Setup) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.dialing || t.ch != nil {
		t.mu.Unlock()
		return errors.New("live channel already connected")
	}
	t.dialing = true
	t.mu.Unlock()

	ch, err := t.dialer.Dial(ctx, setup)
	if err != nil {
		return fmt.Errorf("dial live channel: %w", err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		ch.Close()
		return ErrClosed
	}
	t.ch = ch
	t.mu.Unlock()

	t.open.Store(true)
	t.wg.Add(2)
	go t.writeLoop(ch)
	t.handler.OnOpen()
	go t.readLoop(ch)

	t.logger.Info().Msg("Live channel open")
	return nil
}

// TrySendFrame queues a captured frame without blocking. It returns false
// when the channel is not open or the queue is full.
func (t *Transport) TrySendFrame(f audio.Frame) bool {
	if !t.open.Load() {
		return false
	}
	select {
	case t.frames <- f:
		return true
	default:
		return false
	}
}

// Open reports whether frames are currently accepted
func (t *Transport) Open() bool {
	return t.open.Load()
}

// Close shuts the channel down. It is idempotent, never reports to the
// handler and does not wait for the reader.
func (t *Transport) Close() error {
	t.local.Store(true)
	return t.shutdown()
}

// Wait blocks until the writer and reader have exited
func (t *Transport) Wait() {
	t.wg.Wait()
}

func (t *Transport) shutdown() error {
	var err error
	t.closeOnce.Do(func() {
		t.open.Store(false)

		t.mu.Lock()
		t.closed = true
		ch := t.ch
		t.mu.Unlock()

		close(t.done)
		if ch != nil {
			err = ch.Close()
		}
	})
	return err
}

// end runs once, for whichever loop stops first
func (t *Transport) end(err error) {
	t.endOnce.Do(func() {
		t.shutdown()
		if t.local.Load() {
			t.logger.Debug().Msg("Live channel closed locally")
			return
		}

		if IsCleanClose(err) {
			t.logger.Info().Msg("Live channel closed by remote")
			t.handler.OnClose(nil)
			return
		}

		kind := "channel_error"
		if IsUnexpectedClose(err) {
			kind = "unexpected_close"
		}
		observability.RecordError(kind, "live")
		t.logger.Error().Err(err).Str("close_type", kind).Msg("Live channel failed")
		t.handler.OnClose(err)
	})
}

func (t *Transport) writeLoop(ch Channel) {
	defer t.wg.Done()
	for {
		// tool responses go ahead of queued audio
		select {
		case <-t.done:
			return
		case r := <-t.responses:
			if err := ch.SendToolResponse(r); err != nil {
				t.end(fmt.Errorf("send tool response: %w", err))
				return
			}
			continue
		default:
		}

		select {
		case <-t.done:
			return
		case r := <-t.responses:
			if err := ch.SendToolResponse(r); err != nil {
				t.end(fmt.Errorf("send tool response: %w", err))
				return
			}
		case f := <-t.frames:
			if err := ch.SendAudio(f); err != nil {
				t.end(fmt.Errorf("send audio: %w", err))
				return
			}
		}
	}
}

func (t *Transport) readLoop(ch Channel) {
	defer t.wg.Done()
	for {
		msg, err := ch.Receive()
		if err != nil {
			t.end(err)
			return
		}
		t.handle(msg)
	}
}

func (t *Transport) handle(msg *ServerMessage) {
	if msg == nil {
		return
	}

	for _, pcm := range msg.Audio {
		// failures are logged and counted by the scheduler
		t.scheduler.Schedule(pcm)
	}

	for _, req := range msg.ToolCalls {
		res := t.dispatcher.Dispatch(req)
		observability.RecordToolCall(req.Name, string(res.Status), "live")
		t.respond(ToolResponse{ID: req.ID, Name: req.Name, Response: res.Wire()})
	}

	if msg.Interrupted {
		t.logger.Debug().Msg("Model turn interrupted")
	}
	if msg.GoAway {
		t.logger.Warn().Msg("Remote announced channel shutdown")
	}
}

func (t *Transport) respond(r ToolResponse) {
	select {
	case t.responses <- r:
	case <-t.done:
		t.logger.Warn().Str("call_id", r.ID).Msg("Dropping tool response, channel closed")
	}
}
