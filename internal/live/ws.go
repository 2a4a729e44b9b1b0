package live

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lexiqai/eva-gateway/internal/audio"
)

const wsWriteTimeout = 10 * time.Second

// WSDialer speaks the plain JSON protocol to a WebSocket endpoint, such as a
// relay in front of the model.
type WSDialer struct {
	URL    string
	Model  string
	Header http.Header
	Dialer *websocket.Dialer
}

// Dial connects, sends the setup message and waits for setupComplete
func (d *WSDialer) Dial(ctx context.Context, setup Setup) (Channel, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", d.URL, err)
	}

	ch := &wsChannel{conn: conn}
	if err := ch.write(ClientMessage{Setup: &SetupMessage{
		Model:             d.Model,
		SystemInstruction: setup.SystemInstruction,
		Tools:             setup.Declarations,
	}}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send setup: %w", err)
	}

	if err := awaitReady(ctx, conn, func() (bool, error) {
		var msg WireServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return false, err
		}
		return msg.SetupComplete != nil, nil
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("await setup: %w", err)
	}
	return ch, nil
}

// awaitReady reads until ready reports true; ctx cancellation closes the
// read by expiring the deadline
func awaitReady(ctx context.Context, conn *websocket.Conn, ready func() (bool, error)) error {
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})

	for {
		ok, err := ready()
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if ok {
			if !stop() {
				// deadline already expired by cancellation
				return ctx.Err()
			}
			return nil
		}
	}
}

type wsChannel struct {
	conn      *websocket.Conn
	closeOnce sync.Once
}

func (c *wsChannel) write(msg ClientMessage) error {
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *wsChannel) SendAudio(f audio.Frame) error {
	return c.write(MediaMessage(f))
}

func (c *wsChannel) SendToolResponse(r ToolResponse) error {
	return c.write(ResponseMessage(r))
}

func (c *wsChannel) Receive() (*ServerMessage, error) {
	var msg WireServerMessage
	if err := c.conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	return msg.ServerMessage(), nil
}

// Close sends a close frame and drops the connection
func (c *wsChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}
