package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lexiqai/eva-gateway/internal/observability"
	"github.com/lexiqai/eva-gateway/internal/session"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20

	// rate assumed when the device does not report one
	defaultInputRate = 48000
)

var (
	// ErrNoDevice is returned when no device is connected
	ErrNoDevice = errors.New("no audio device connected")

	errMicPending = errors.New("microphone request already pending")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The device is the local UI shell; origin is not validated
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Hub bridges the single audio device to the session controller. It
// implements session.Devices.
type Hub struct {
	queueSize int
	logger    zerolog.Logger

	mu           sync.Mutex
	conn         *deviceConn
	onDisconnect []func()
}

// NewHub creates a hub; queueSize bounds the events waiting for the writer
func NewHub(queueSize int, logger zerolog.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Hub{
		queueSize: queueSize,
		logger:    logger.With().Str("component", "device").Logger(),
	}
}

// OnDisconnect registers fn to run whenever the device goes away
func (h *Hub) OnDisconnect(fn func()) {
	h.mu.Lock()
	h.onDisconnect = append(h.onDisconnect, fn)
	h.mu.Unlock()
}

// Connected reports whether a device is attached
func (h *Hub) Connected() bool {
	return h.current() != nil
}

// Publish pushes ev to the device; it is dropped when none is connected
func (h *Hub) Publish(ev Event) {
	if c := h.current(); c != nil {
		c.send(ev)
	}
}

// Handler is the entry point for device WebSocket connections
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied to the client
			h.logger.Error().Err(err).Msg("Failed to upgrade device connection")
			return
		}

		conn := newDeviceConn(ws, h.queueSize, h.logger)
		if !h.register(conn) {
			h.logger.Warn().Str("remote", r.RemoteAddr).Msg("Rejecting second device connection")
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "device already connected"),
				time.Now().Add(writeWait))
			ws.Close()
			return
		}

		conn.logger.Info().Str("remote", r.RemoteAddr).Msg("Device connected")
		go conn.writeLoop()
		conn.readLoop()

		h.unregister(conn)
		conn.close()
		conn.logger.Info().Msg("Device disconnected")

		h.mu.Lock()
		fns := slices.Clone(h.onDisconnect)
		h.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	}
}

func (h *Hub) register(c *deviceConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn != nil {
		return false
	}
	h.conn = c
	return true
}

func (h *Hub) unregister(c *deviceConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == c {
		h.conn = nil
	}
}

func (h *Hub) current() *deviceConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn
}

// OpenInput asks the device for the microphone and waits for the answer
func (h *Hub) OpenInput(ctx context.Context, frameSize int) (session.Input, error) {
	c := h.current()
	if c == nil {
		return nil, ErrNoDevice
	}

	reply := make(chan Event, 1)
	c.mu.Lock()
	if c.micReply != nil {
		c.mu.Unlock()
		return nil, errMicPending
	}
	c.micReply = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.micReply = nil
		c.mu.Unlock()
	}()

	if !c.send(Event{Event: EventMicRequest}) {
		return nil, ErrNoDevice
	}

	select {
	case ev := <-reply:
		if !ev.Granted {
			return nil, session.ErrPermissionDenied
		}
		rate := ev.SampleRate
		if rate <= 0 {
			rate = defaultInputRate
		}
		in := newInput(c, rate, frameSize)
		c.mu.Lock()
		c.input = in
		c.mu.Unlock()
		c.logger.Info().Int("sample_rate", rate).Msg("Microphone granted")
		return in, nil
	case <-c.done:
		return nil, ErrNoDevice
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OpenOutput opens a playback context on the device
func (h *Hub) OpenOutput(ctx context.Context, sampleRate int) (session.Output, error) {
	c := h.current()
	if c == nil {
		return nil, ErrNoDevice
	}
	return newOutput(c, sampleRate), nil
}

// deviceConn is one attached device. Only writeLoop writes to ws.
type deviceConn struct {
	id     string
	ws     *websocket.Conn
	logger zerolog.Logger

	out        chan Event
	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once

	mu       sync.Mutex
	micReply chan Event
	input    *Input
}

func newDeviceConn(ws *websocket.Conn, queueSize int, logger zerolog.Logger) *deviceConn {
	id := observability.NewCorrelationID()
	return &deviceConn{
		id:         id,
		ws:         ws,
		logger:     logger.With().Str("device_id", id).Logger(),
		out:        make(chan Event, queueSize),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

// send queues ev without blocking
func (c *deviceConn) send(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- ev:
		return true
	default:
		c.logger.Warn().Str("event", ev.Event).Msg("Device queue full, dropping event")
		return false
	}
}

func (c *deviceConn) alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *deviceConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		<-c.writerDone
		c.ws.Close()
	})
}

func (c *deviceConn) readLoop() {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("Device read error")
			}
			return
		}

		switch kind {
		case websocket.BinaryMessage:
			c.mu.Lock()
			in := c.input
			c.mu.Unlock()
			if in != nil {
				in.write(data)
			}
		case websocket.TextMessage:
			c.handleEvent(data)
		}
	}
}

func (c *deviceConn) handleEvent(data []byte) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		c.logger.Error().Err(err).Msg("Failed to parse device event")
		return
	}

	switch ev.Event {
	case EventMic:
		c.mu.Lock()
		reply := c.micReply
		c.mu.Unlock()
		if reply == nil {
			c.logger.Warn().Msg("Unsolicited microphone answer")
			return
		}
		select {
		case reply <- ev:
		default:
		}
	default:
		c.logger.Debug().Str("event", ev.Event).Msg("Ignoring device event")
	}
}

func (c *deviceConn) writeLoop() {
	defer close(c.writerDone)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(ev); err != nil {
				c.logger.Error().Err(err).Str("event", ev.Event).Msg("Error sending event to device")
				observability.RecordError("device_send_error", "device")
				c.ws.Close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.ws.Close()
				return
			}
		case <-c.done:
			c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *deviceConn) detachInput(in *Input) {
	c.mu.Lock()
	if c.input == in {
		c.input = nil
	}
	c.mu.Unlock()
}

func (c *deviceConn) sendOrFail(ev Event) error {
	if !c.send(ev) {
		return fmt.Errorf("send %s: %w", ev.Event, ErrNoDevice)
	}
	return nil
}
