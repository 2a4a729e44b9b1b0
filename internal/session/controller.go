package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lexiqai/eva-gateway/internal/audio"
	"github.com/lexiqai/eva-gateway/internal/chat"
	"github.com/lexiqai/eva-gateway/internal/live"
	"github.com/lexiqai/eva-gateway/internal/observability"
	"github.com/lexiqai/eva-gateway/internal/playback"
	"github.com/lexiqai/eva-gateway/internal/roster"
	"github.com/lexiqai/eva-gateway/internal/tools"
	"github.com/rs/zerolog"
)

// ChatService answers typed messages
type ChatService interface {
	Send(ctx context.Context, userText string, history []chat.Message, members []roster.Member) chat.Reply
}

// RosterSource provides the current team roster
type RosterSource interface {
	Members() []roster.Member
}

// Config tunes the controller
type Config struct {
	CaptureFrameSize   int
	CaptureSampleRate  int
	PlaybackSampleRate int
	QueueSize          int
	ConnectTimeout     time.Duration
}

// Deps are the collaborators the controller drives
type Deps struct {
	Devices    Devices
	Dialer     live.Dialer
	Dispatcher live.ToolDispatcher
	Chat       ChatService
	Roster     RosterSource
	Logger     zerolog.Logger
}

// Controller owns the session state machine, the conversation log and the
// single live session. All exported methods are safe for concurrent use.
type Controller struct {
	cfg  Config
	deps Deps

	logger zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	current  *liveSession
	messages []chat.Message
	busy     bool

	listenersMu   sync.RWMutex
	onState       []func(State)
	onMessage     []func(chat.Message)
	onTaskCreated []func(tools.Task)
}

// NewController creates an idle controller whose log holds the greeting
func NewController(cfg Config, deps Deps) *Controller {
	if cfg.CaptureSampleRate <= 0 {
		cfg.CaptureSampleRate = audio.CaptureSampleRate
	}
	if cfg.PlaybackSampleRate <= 0 {
		cfg.PlaybackSampleRate = audio.PlaybackSampleRate
	}
	if cfg.CaptureFrameSize <= 0 {
		cfg.CaptureFrameSize = audio.DefaultFrameSize
	}

	c := &Controller{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With().Str("component", "session").Logger(),
		now:    time.Now,
		state:  Idle,
	}
	c.messages = []chat.Message{chat.GreetingMessage(c.now())}
	return c
}

// State returns the current session state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the id of the current live session, if any
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.id
}

// Messages returns a copy of the conversation log
func (c *Controller) Messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Message(nil), c.messages...)
}

// OnStateChange registers fn for every state transition
func (c *Controller) OnStateChange(fn func(State)) {
	c.listenersMu.Lock()
	c.onState = append(c.onState, fn)
	c.listenersMu.Unlock()
}

// OnMessage registers fn for every message appended to the log
func (c *Controller) OnMessage(fn func(chat.Message)) {
	c.listenersMu.Lock()
	c.onMessage = append(c.onMessage, fn)
	c.listenersMu.Unlock()
}

// OnTaskCreated registers fn for every task created on either path
func (c *Controller) OnTaskCreated(fn func(tools.Task)) {
	c.listenersMu.Lock()
	c.onTaskCreated = append(c.onTaskCreated, fn)
	c.listenersMu.Unlock()
}

// TaskCreated implements tools.TaskSink
func (c *Controller) TaskCreated(t tools.Task) {
	c.listenersMu.RLock()
	fns := slices.Clone(c.onTaskCreated)
	c.listenersMu.RUnlock()
	for _, fn := range fns {
		fn(t)
	}
}

// StartLiveSession acquires the microphone and output, opens the live
// channel and returns once the session is live or has failed. A failed
// start leaves the controller Errored, or Idle when it was stopped.
func (c *Controller) StartLiveSession(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.state.Active() {
		c.mu.Unlock()
		cancel()
		return ErrSessionActive
	}
	id := observability.NewCorrelationID()
	sess := &liveSession{
		id: id,
		logger: c.logger.With().
			Str("session_id", id).
			Str("correlation_id", id).
			Logger(),
		metrics: observability.NewSessionMetrics(id),
		cancel:  cancel,
	}
	c.current = sess
	c.state = Connecting
	c.mu.Unlock()
	c.notifyState(Connecting)

	sess.metrics.RecordSessionStart()
	sess.logger.Info().Msg("Starting live session")

	if err := c.open(ctx, sess); err != nil {
		if sess.isTorn() {
			return ErrSessionEnded
		}
		if errors.Is(err, ErrPermissionDenied) {
			sess.logger.Warn().Err(err).Msg("Microphone access refused")
		} else {
			sess.metrics.RecordError("start_failed", "session")
			sess.logger.Error().Err(err).Msg("Failed to start live session")
		}
		c.teardown(sess, Errored)
		return err
	}
	if sess.isTorn() {
		return ErrSessionEnded
	}
	return nil
}

// open acquires the session resources in order and connects the channel
func (c *Controller) open(ctx context.Context, sess *liveSession) error {
	in, err := c.deps.Devices.OpenInput(ctx, c.cfg.CaptureFrameSize)
	if err != nil {
		return fmt.Errorf("open microphone: %w", err)
	}
	if !sess.attach(func() { sess.input = in }) {
		in.StopTracks()
		in.Close()
		return ErrSessionEnded
	}

	out, err := c.deps.Devices.OpenOutput(ctx, c.cfg.PlaybackSampleRate)
	if err != nil {
		return fmt.Errorf("open audio output: %w", err)
	}
	if !sess.attach(func() { sess.output = out }) {
		out.Close()
		return ErrSessionEnded
	}

	scheduler := playback.NewScheduler(out, c.cfg.PlaybackSampleRate, sess.logger)
	encoder := audio.NewCaptureEncoder(audio.CaptureConfig{
		FrameSize: c.cfg.CaptureFrameSize,
		InputRate: in.SampleRate(),
		WireRate:  c.cfg.CaptureSampleRate,
	})
	transport := live.NewTransport(c.deps.Dialer, scheduler, c.deps.Dispatcher,
		sessionHandler{c: c, sess: sess},
		live.Config{QueueSize: c.cfg.QueueSize, Logger: sess.logger})
	if !sess.attach(func() {
		sess.scheduler = scheduler
		sess.encoder = encoder
		sess.transport = transport
	}) {
		return ErrSessionEnded
	}

	dialCtx := ctx
	if c.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}

	var members []roster.Member
	if c.deps.Roster != nil {
		members = c.deps.Roster.Members()
	}
	setup := live.Setup{
		SystemInstruction: roster.SystemInstruction(members),
		Declarations:      tools.Declarations(),
	}
	if err := transport.Connect(dialCtx, setup); err != nil {
		return fmt.Errorf("connect live channel: %w", err)
	}
	return nil
}

// sessionHandler binds transport events to one session instance so a late
// event from an old session cannot touch a newer one
type sessionHandler struct {
	c    *Controller
	sess *liveSession
}

func (h sessionHandler) OnOpen() {
	h.c.onOpen(h.sess)
}

func (h sessionHandler) OnClose(err error) {
	if err != nil {
		h.c.teardown(h.sess, Errored)
		return
	}
	h.c.teardown(h.sess, Idle)
}

func (c *Controller) onOpen(sess *liveSession) {
	if !c.transition(sess, Connecting, Live) {
		return
	}
	sess.logger.Info().Msg("Live session open")

	sess.mu.Lock()
	in, enc, tr := sess.input, sess.encoder, sess.transport
	torn := sess.torn
	sess.mu.Unlock()
	if torn {
		return
	}

	enc.Attach(tr)
	if err := in.Capture(func(samples []float32) {
		enc.Process(samples)
	}); err != nil {
		sess.metrics.RecordError("capture_failed", "session")
		sess.logger.Error().Err(err).Msg("Failed to start microphone capture")
		c.teardown(sess, Errored)
	}
}

// StopLiveSession tears down the current session and returns the resulting
// state. Calling it with no session is a no-op.
func (c *Controller) StopLiveSession() State {
	c.mu.Lock()
	sess := c.current
	c.mu.Unlock()

	if sess != nil {
		sess.logger.Info().Msg("Stopping live session")
		c.teardown(sess, Idle)
	}
	return c.State()
}

// teardown is the single exit path of a session. Concurrent callers block
// until the first one finishes, so every caller returns after release.
func (c *Controller) teardown(sess *liveSession, target State) {
	sess.once.Do(func() {
		// torn before cancel so an aborted start sees it
		sess.markTorn()
		sess.cancel()
		c.closing(sess)

		if err := sess.release(); err != nil {
			sess.metrics.RecordError("release_failed", "session")
			sess.logger.Warn().Err(err).Msg("Session resources released with errors")
		}
		sess.metrics.RecordSessionEnd()

		c.mu.Lock()
		owned := c.current == sess
		if owned {
			c.current = nil
			c.state = target
		}
		c.mu.Unlock()

		if owned {
			c.notifyState(target)
		}
		sess.logger.Info().Str("state", target.String()).Msg("Live session ended")
	})
}

// transition moves sess from one state to another. It reports false when
// sess is no longer current or the state has moved on.
func (c *Controller) transition(sess *liveSession, from, to State) bool {
	c.mu.Lock()
	if c.current != sess || c.state != from {
		c.mu.Unlock()
		return false
	}
	c.state = to
	c.mu.Unlock()

	c.notifyState(to)
	return true
}

func (c *Controller) closing(sess *liveSession) {
	c.mu.Lock()
	if c.current != sess {
		c.mu.Unlock()
		return
	}
	c.state = Closing
	c.mu.Unlock()
	c.notifyState(Closing)
}

func (c *Controller) notifyState(s State) {
	observability.RecordStateTransition(s.String())

	c.listenersMu.RLock()
	fns := slices.Clone(c.onState)
	c.listenersMu.RUnlock()
	for _, fn := range fns {
		fn(s)
	}
}

// SendTextMessage submits text on the text path and returns the reply shown
// to the user. The log always gains one user and one model message.
func (c *Controller) SendTextMessage(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}

	c.mu.Lock()
	if c.state.Active() {
		c.mu.Unlock()
		return "", ErrLiveActive
	}
	if c.busy {
		c.mu.Unlock()
		return "", ErrBusy
	}
	c.busy = true
	history := append([]chat.Message(nil), c.messages...)
	userMsg := chat.Message{Role: chat.RoleUser, Text: text, Timestamp: c.now()}
	c.messages = append(c.messages, userMsg)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()
	c.notifyMessage(userMsg)

	var members []roster.Member
	if c.deps.Roster != nil {
		members = c.deps.Roster.Members()
	}
	reply := c.deps.Chat.Send(ctx, text, history, members)

	c.mu.Lock()
	c.messages = append(c.messages, reply.Message)
	c.mu.Unlock()
	c.notifyMessage(reply.Message)

	return reply.Message.Text, nil
}

func (c *Controller) notifyMessage(m chat.Message) {
	c.listenersMu.RLock()
	fns := slices.Clone(c.onMessage)
	c.listenersMu.RUnlock()
	for _, fn := range fns {
		fn(m)
	}
}
