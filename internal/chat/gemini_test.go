package chat

import (
	"errors"
	"testing"

	"github.com/lexiqai/eva-gateway/internal/resilience"
	"google.golang.org/genai"
)

func TestBuildContents(t *testing.T) {
	contents := buildContents(GenerateRequest{
		History: []Message{
			{Role: RoleModel, Text: Greeting},
			{Role: RoleUser, Text: "earlier"},
		},
		UserText: "now",
	})

	if len(contents) != 3 {
		t.Fatalf("Expected 3 contents, got %d", len(contents))
	}
	if contents[0].Role != genai.RoleModel || contents[1].Role != genai.RoleUser {
		t.Errorf("Unexpected roles: %s, %s", contents[0].Role, contents[1].Role)
	}
	last := contents[2]
	if last.Role != genai.RoleUser || last.Parts[0].Text != "now" {
		t.Errorf("Expected user turn last, got %s %q", last.Role, last.Parts[0].Text)
	}
}

func TestResponseFromGenai(t *testing.T) {
	res := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking", Thought: true},
				{Text: "Agenda "},
				{FunctionCall: &genai.FunctionCall{Name: "create_task", Args: map[string]any{"title": "A"}}},
				{Text: "updated."},
				{FunctionCall: &genai.FunctionCall{Name: "delegate_task", Args: map[string]any{"title": "B"}}},
			}},
		}},
	}

	out := responseFromGenai(res)
	if out.Text != "Agenda updated." {
		t.Errorf("Expected 'Agenda updated.', got '%s'", out.Text)
	}
	if len(out.Calls) != 2 || out.Calls[0].Name != "create_task" || out.Calls[1].Name != "delegate_task" {
		t.Errorf("Unexpected calls: %+v", out.Calls)
	}
	if out.Calls[0].ID != "" {
		t.Error("Expected text-path calls to carry no id")
	}

	if empty := responseFromGenai(&genai.GenerateContentResponse{}); empty.Text != "" || len(empty.Calls) != 0 {
		t.Error("Expected empty response for no candidates")
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"rate limited", genai.APIError{Code: 429, Message: "quota"}, true},
		{"server error", genai.APIError{Code: 503}, true},
		{"bad request", genai.APIError{Code: 400, Message: "bad"}, false},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resilience.IsRetryable(classifyError(tt.err)); got != tt.retryable {
				t.Errorf("Expected retryable=%v, got %v", tt.retryable, got)
			}
		})
	}
}
