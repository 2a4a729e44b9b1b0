package live

import (
	"context"
	"fmt"
	"sync"

	"github.com/lexiqai/eva-gateway/internal/audio"
	"github.com/lexiqai/eva-gateway/internal/tools"
	"google.golang.org/genai"
)

// GeminiDialer opens live sessions on the Gemini Live API
type GeminiDialer struct {
	client *genai.Client
	model  string
}

// NewGeminiDialer creates a dialer for model
func NewGeminiDialer(client *genai.Client, model string) *GeminiDialer {
	return &GeminiDialer{client: client, model: model}
}

// Dial implements Dialer. It returns after the setupComplete message.
func (d *GeminiDialer) Dial(ctx context.Context, setup Setup) (Channel, error) {
	sess, err := d.client.Live.Connect(ctx, d.model, &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SystemInstruction:  genai.NewContentFromText(setup.SystemInstruction, genai.RoleUser),
		Tools:              []*genai.Tool{{FunctionDeclarations: setup.Declarations}},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini live connect: %w", err)
	}

	ch := &geminiChannel{sess: sess}
	ready := make(chan error, 1)
	go func() {
		for {
			msg, err := sess.Receive()
			if err != nil {
				ready <- err
				return
			}
			if msg.SetupComplete != nil {
				ready <- nil
				return
			}
		}
	}()

	select {
	case err := <-ready:
		if err != nil {
			ch.Close()
			return nil, fmt.Errorf("gemini live setup: %w", err)
		}
		return ch, nil
	case <-ctx.Done():
		// unblocks the pending Receive
		ch.Close()
		return nil, ctx.Err()
	}
}

type geminiChannel struct {
	sess      *genai.Session
	closeOnce sync.Once
	closeErr  error
}

func (c *geminiChannel) SendAudio(f audio.Frame) error {
	return c.sess.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: f.PCM, MIMEType: f.MIMEType()},
	})
}

func (c *geminiChannel) SendToolResponse(r ToolResponse) error {
	return c.sess.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: []*genai.FunctionResponse{{
			ID:       r.ID,
			Name:     r.Name,
			Response: r.Response,
		}},
	})
}

func (c *geminiChannel) Receive() (*ServerMessage, error) {
	msg, err := c.sess.Receive()
	if err != nil {
		return nil, err
	}
	return fromLiveServerMessage(msg), nil
}

func (c *geminiChannel) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.sess.Close()
	})
	return c.closeErr
}

// fromLiveServerMessage keeps every inline audio part and every function call
func fromLiveServerMessage(msg *genai.LiveServerMessage) *ServerMessage {
	out := &ServerMessage{}
	if msg == nil {
		return out
	}
	if sc := msg.ServerContent; sc != nil {
		out.Interrupted = sc.Interrupted
		out.TurnComplete = sc.TurnComplete
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p == nil || p.InlineData == nil || len(p.InlineData.Data) == 0 {
					continue
				}
				out.Audio = append(out.Audio, p.InlineData.Data)
			}
		}
	}
	if msg.ToolCall != nil {
		for _, fc := range msg.ToolCall.FunctionCalls {
			if fc == nil {
				continue
			}
			out.ToolCalls = append(out.ToolCalls, tools.RequestFromFunctionCall(fc))
		}
	}
	out.GoAway = msg.GoAway != nil
	return out
}
