package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lexiqai/eva-gateway/internal/resilience"
	"github.com/lexiqai/eva-gateway/internal/tools"
	"google.golang.org/genai"
)

// GeminiGenerator implements Generator with the Gemini models API
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiGenerator creates a generator for model
func NewGeminiGenerator(client *genai.Client, model string, temperature float32) *GeminiGenerator {
	return &GeminiGenerator{
		client:      client,
		model:       model,
		temperature: temperature,
	}
}

// Generate implements Generator
func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	temp := g.temperature
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemInstruction, genai.RoleUser),
		Tools:             []*genai.Tool{tools.Tool()},
		Temperature:       &temp,
	}

	res, err := g.client.Models.GenerateContent(ctx, g.model, buildContents(req), cfg)
	if err != nil {
		return nil, classifyError(err)
	}
	return responseFromGenai(res), nil
}

func buildContents(req GenerateRequest) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	return append(contents, genai.NewContentFromText(req.UserText, genai.RoleUser))
}

// responseFromGenai keeps the first candidate's text and function calls
func responseFromGenai(res *genai.GenerateContentResponse) *GenerateResponse {
	out := &GenerateResponse{}
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return out
	}
	var text strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			out.Calls = append(out.Calls, tools.RequestFromFunctionCall(part.FunctionCall))
		}
	}
	out.Text = text.String()
	return out
}

// classifyError marks rate limiting and server-side failures as retryable
func classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError {
			return resilience.NewRetryableError(fmt.Errorf("gemini generate content: %w", err))
		}
	}
	return fmt.Errorf("gemini generate content: %w", err)
}
