package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lexiqai/eva-gateway/internal/resilience"
	"github.com/lexiqai/eva-gateway/internal/roster"
	"github.com/lexiqai/eva-gateway/internal/tools"
	"github.com/rs/zerolog"
)

type fakeGenerator struct {
	requests []GenerateRequest
	resp     *GenerateResponse
	errs     []error // returned in order, then resp
}

func (g *fakeGenerator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	g.requests = append(g.requests, req)
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		return nil, err
	}
	return g.resp, nil
}

type taskRecorder struct {
	tasks []tools.Task
}

func (r *taskRecorder) TaskCreated(t tools.Task) {
	r.tasks = append(r.tasks, t)
}

func newTestService(gen Generator, opts Options) (*Service, *taskRecorder) {
	rec := &taskRecorder{}
	opts.Logger = zerolog.Nop()
	return NewService(gen, tools.NewDispatcher(rec, zerolog.Nop()), opts), rec
}

func conversation(n int) []Message {
	msgs := make([]Message, n)
	for i := range msgs {
		role := RoleUser
		if i%2 == 0 {
			role = RoleModel
		}
		msgs[i] = Message{Role: role, Text: fmt.Sprintf("message %d", i)}
	}
	return msgs
}

func TestSend_BoundedHistory(t *testing.T) {
	for _, n := range []int{0, 3, 6, 7, 50} {
		t.Run(fmt.Sprintf("%d prior messages", n), func(t *testing.T) {
			gen := &fakeGenerator{resp: &GenerateResponse{Text: "ok"}}
			svc, _ := newTestService(gen, Options{})

			svc.Send(context.Background(), "hello", conversation(n), nil)

			if len(gen.requests) != 1 {
				t.Fatalf("Expected exactly 1 request, got %d", len(gen.requests))
			}
			sent := gen.requests[0].History
			want := n
			if want > HistoryLimit {
				want = HistoryLimit
			}
			if len(sent) != want {
				t.Fatalf("Expected %d history messages, got %d", want, len(sent))
			}
			if n > 0 && sent[len(sent)-1].Text != fmt.Sprintf("message %d", n-1) {
				t.Errorf("Expected most recent message last, got '%s'", sent[len(sent)-1].Text)
			}
			if gen.requests[0].UserText != "hello" {
				t.Errorf("Expected user text 'hello', got '%s'", gen.requests[0].UserText)
			}
		})
	}
}

func TestSend_RosterInInstruction(t *testing.T) {
	gen := &fakeGenerator{resp: &GenerateResponse{Text: "ok"}}
	svc, _ := newTestService(gen, Options{})

	svc.Send(context.Background(), "hi", nil, []roster.Member{{Name: "Ana", Role: "Designer"}})

	if !strings.Contains(gen.requests[0].SystemInstruction, "Ana (Designer)") {
		t.Error("Expected roster in the system instruction")
	}
}

func TestSend_FunctionCallsAndFeedback(t *testing.T) {
	gen := &fakeGenerator{resp: &GenerateResponse{
		Text: "**EVA:** Directive processed.",
		Calls: []tools.Request{
			{Name: tools.NameDelegateTask, Args: map[string]any{"title": "Prepare report", "employee_name": "joão silva"}},
			{Name: tools.NameCreateTask, Args: map[string]any{"title": "Dentist"}},
			{Name: tools.NameCreateTask, Args: map[string]any{}},
		},
	}}
	svc, rec := newTestService(gen, Options{})

	reply := svc.Send(context.Background(), "do things", nil, nil)

	if reply.Failed {
		t.Fatal("Expected successful reply")
	}
	if reply.Text != "Directive processed." {
		t.Errorf("Expected cleaned text, got '%s'", reply.Text)
	}
	if len(rec.tasks) != 2 {
		t.Fatalf("Expected 2 tasks created, got %d", len(rec.tasks))
	}
	if len(reply.Results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(reply.Results))
	}

	delegation := strings.Index(reply.Feedback, "Recipient: João Silva")
	agenda := strings.Index(reply.Feedback, `"Dentist" added to your routine.`)
	rejected := strings.Index(reply.Feedback, "COMMAND REJECTED")
	if delegation < 0 || agenda < 0 || rejected < 0 {
		t.Fatalf("Missing feedback fragment in %q", reply.Feedback)
	}
	if !(delegation < agenda && agenda < rejected) {
		t.Error("Expected feedback fragments in call order")
	}
	if reply.Message.Text != reply.Text+reply.Feedback {
		t.Error("Expected message text to be the cleaned text followed by feedback")
	}
	if reply.Message.Role != RoleModel {
		t.Errorf("Expected model role, got %s", reply.Message.Role)
	}
}

func TestSend_FailureFallback(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("invalid argument")}}
	svc, rec := newTestService(gen, Options{})

	reply := svc.Send(context.Background(), "hello", nil, nil)

	if !reply.Failed {
		t.Error("Expected failed reply")
	}
	if reply.Message.Text != FallbackMessage {
		t.Errorf("Expected fallback message, got '%s'", reply.Message.Text)
	}
	if len(rec.tasks) != 0 {
		t.Error("Expected no tasks on failure")
	}
}

func TestSend_RetriesTransientErrors(t *testing.T) {
	gen := &fakeGenerator{
		errs: []error{errors.New("connection reset by peer")},
		resp: &GenerateResponse{Text: "recovered"},
	}
	svc, _ := newTestService(gen, Options{Retry: &resilience.RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        time.Millisecond,
		BackoffMultiplier: 1,
	}})

	reply := svc.Send(context.Background(), "hello", nil, nil)

	if reply.Failed || reply.Text != "recovered" {
		t.Errorf("Expected recovered reply, got %+v", reply)
	}
	if len(gen.requests) != 2 {
		t.Errorf("Expected 2 attempts, got %d", len(gen.requests))
	}
}

func TestSend_OpenBreakerFallsBack(t *testing.T) {
	breaker := resilience.NewCircuitBreaker("gemini_text_test", 1, time.Hour)
	breaker.RecordResult(false)

	gen := &fakeGenerator{resp: &GenerateResponse{Text: "never"}}
	svc, _ := newTestService(gen, Options{Breaker: breaker})

	reply := svc.Send(context.Background(), "hello", nil, nil)

	if !reply.Failed {
		t.Error("Expected fallback while the breaker is open")
	}
	if len(gen.requests) != 0 {
		t.Errorf("Expected no request while the breaker is open, got %d", len(gen.requests))
	}
}

func TestSend_NilResponse(t *testing.T) {
	svc, _ := newTestService(&fakeGenerator{}, Options{})

	if reply := svc.Send(context.Background(), "hello", nil, nil); !reply.Failed {
		t.Error("Expected fallback for an empty response")
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"**Agenda updated**", "Agenda updated"},
		{"EVA: Command transmitted.", "Command transmitted."},
		{"Assistente Évora:  Done", "Done"},
		{"  plain text  ", "plain text"},
		{"Meeting at 14:00", "Meeting at 14:00"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanText(tt.in); got != tt.want {
			t.Errorf("CleanText(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestRecentHistory(t *testing.T) {
	msgs := conversation(10)
	recent := RecentHistory(msgs)
	if len(recent) != HistoryLimit {
		t.Fatalf("Expected %d messages, got %d", HistoryLimit, len(recent))
	}
	if recent[0].Text != "message 4" {
		t.Errorf("Expected 'message 4' first, got '%s'", recent[0].Text)
	}
}
