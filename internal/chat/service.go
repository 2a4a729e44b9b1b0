package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lexiqai/eva-gateway/internal/observability"
	"github.com/lexiqai/eva-gateway/internal/resilience"
	"github.com/lexiqai/eva-gateway/internal/roster"
	"github.com/lexiqai/eva-gateway/internal/tools"
	"github.com/rs/zerolog"
)

// GenerateRequest is one single-shot request to the remote model
type GenerateRequest struct {
	SystemInstruction string
	History           []Message
	UserText          string
}

// GenerateResponse is the model's free text plus its function calls, in order
type GenerateResponse struct {
	Text  string
	Calls []tools.Request
}

// Generator issues text requests to the remote model
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// ToolDispatcher runs function calls from a response
type ToolDispatcher interface {
	Dispatch(tools.Request) tools.Result
}

// Reply is what a submission produces. Message is always set and is the one
// model turn to append to the log.
type Reply struct {
	Text     string // cleaned primary text
	Feedback string // one fragment per function call
	Message  Message
	Results  []tools.Result
	Failed   bool
}

// Options tune the service
type Options struct {
	Timeout time.Duration
	Retry   *resilience.RetryConfig
	Breaker *resilience.CircuitBreaker
	Logger  zerolog.Logger
}

// Service is the text request/response path
type Service struct {
	gen        Generator
	dispatcher ToolDispatcher
	timeout    time.Duration
	retry      *resilience.RetryConfig
	breaker    *resilience.CircuitBreaker
	logger     zerolog.Logger
	now        func() time.Time
}

// NewService creates the text path around gen
func NewService(gen Generator, dispatcher ToolDispatcher, opts Options) *Service {
	retry := opts.Retry
	if retry == nil {
		retry = &resilience.RetryConfig{MaxAttempts: 1}
	}
	return &Service{
		gen:        gen,
		dispatcher: dispatcher,
		timeout:    opts.Timeout,
		retry:      retry,
		breaker:    opts.Breaker,
		logger:     opts.Logger.With().Str("component", "chat").Logger(),
		now:        time.Now,
	}
}

// Send issues one request for userText with the tail of history as context.
// It never fails: remote errors come back as the fallback message.
func (s *Service) Send(ctx context.Context, userText string, history []Message, members []roster.Member) Reply {
	start := time.Now()
	req := GenerateRequest{
		SystemInstruction: roster.SystemInstruction(members),
		History:           RecentHistory(history),
		UserText:          strings.TrimSpace(userText),
	}

	resp, err := s.generate(ctx, req)
	observability.RecordTextRequest(err == nil, time.Since(start))
	if err != nil {
		observability.RecordError("text_request", "chat")
		s.logger.Error().Err(err).Int("history", len(req.History)).Msg("Text request failed")
		return Reply{
			Message: Message{Role: RoleModel, Text: FallbackMessage, Timestamp: s.now()},
			Failed:  true,
		}
	}

	reply := Reply{Text: CleanText(resp.Text)}
	var feedback strings.Builder
	for _, call := range resp.Calls {
		res := s.dispatcher.Dispatch(call)
		observability.RecordToolCall(call.Name, string(res.Status), "text")
		reply.Results = append(reply.Results, res)
		feedback.WriteString(feedbackFor(call, res))
	}
	reply.Feedback = feedback.String()
	reply.Message = Message{Role: RoleModel, Text: reply.Text + reply.Feedback, Timestamp: s.now()}

	s.logger.Debug().
		Int("history", len(req.History)).
		Int("calls", len(resp.Calls)).
		Dur("latency", time.Since(start)).
		Msg("Text request completed")
	return reply
}

func (s *Service) generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var resp *GenerateResponse
	attempt := func(ctx context.Context) error {
		r, err := s.gen.Generate(ctx, req)
		if err != nil {
			return err
		}
		if r == nil {
			return errors.New("empty response from model")
		}
		resp = r
		return nil
	}

	call := func() error {
		return resilience.Retry(ctx, attempt, s.retry, resilience.IsRetryableNetworkError)
	}
	var err error
	if s.breaker != nil {
		err = s.breaker.Call(call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}
