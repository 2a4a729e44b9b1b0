package live

import (
	"github.com/lexiqai/eva-gateway/internal/audio"
	"github.com/lexiqai/eva-gateway/internal/observability"
	"github.com/lexiqai/eva-gateway/internal/tools"
	"google.golang.org/genai"
)

// Wire messages of the plain WebSocket protocol. Client frames carry exactly
// one of the fields.
type ClientMessage struct {
	Setup             *SetupMessage     `json:"setup,omitempty"`
	Media             *MediaChunk       `json:"media,omitempty"`
	FunctionResponses *FunctionResponse `json:"functionResponses,omitempty"`
}

type SetupMessage struct {
	Model             string                       `json:"model,omitempty"`
	SystemInstruction string                       `json:"systemInstruction"`
	Tools             []*genai.FunctionDeclaration `json:"tools"`
}

type MediaChunk struct {
	Data     string `json:"data"` // base64 PCM16LE
	MIMEType string `json:"mimeType"`
}

type FunctionResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type WireServerMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *ServerContent `json:"serverContent,omitempty"`
	ToolCall      *ToolCall      `json:"toolCall,omitempty"`
	GoAway        *struct{}      `json:"goAway,omitempty"`
}

type ServerContent struct {
	ModelTurn    *ModelTurn `json:"modelTurn,omitempty"`
	Interrupted  bool       `json:"interrupted,omitempty"`
	TurnComplete bool       `json:"turnComplete,omitempty"`
}

type ModelTurn struct {
	Parts []Part `json:"parts"`
}

type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

type InlineData struct {
	Data     string `json:"data"` // base64 PCM16LE
	MIMEType string `json:"mimeType"`
}

type ToolCall struct {
	FunctionCalls []FunctionCall `json:"functionCalls"`
}

type FunctionCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// MediaMessage encodes a captured frame
func MediaMessage(f audio.Frame) ClientMessage {
	data := f.Data
	if data == "" {
		data = audio.EncodeBase64(f.PCM)
	}
	return ClientMessage{Media: &MediaChunk{Data: data, MIMEType: f.MIMEType()}}
}

// ResponseMessage encodes a tool response
func ResponseMessage(r ToolResponse) ClientMessage {
	return ClientMessage{FunctionResponses: &FunctionResponse{ID: r.ID, Name: r.Name, Response: r.Response}}
}

// ServerMessage converts a wire message. Audio parts that are not valid base64
// are dropped.
func (m *WireServerMessage) ServerMessage() *ServerMessage {
	out := &ServerMessage{GoAway: m.GoAway != nil}
	if sc := m.ServerContent; sc != nil {
		out.Interrupted = sc.Interrupted
		out.TurnComplete = sc.TurnComplete
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p.InlineData == nil {
					continue
				}
				pcm, err := audio.DecodeBase64(p.InlineData.Data)
				if err != nil {
					observability.RecordDecodeFailure()
					continue
				}
				out.Audio = append(out.Audio, pcm)
			}
		}
	}
	if m.ToolCall != nil {
		for _, fc := range m.ToolCall.FunctionCalls {
			out.ToolCalls = append(out.ToolCalls, tools.Request{ID: fc.ID, Name: fc.Name, Args: fc.Args})
		}
	}
	return out
}
