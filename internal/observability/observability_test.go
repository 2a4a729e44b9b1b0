package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthCheckHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheckHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got '%s'", ct)
	}
	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if status.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", status.Status)
	}
}

func TestReadinessHandler_NotReady(t *testing.T) {
	checks := map[string]HealthCheckFunc{
		"gemini": func(ctx context.Context) (bool, error) { return true, nil },
		"device": func(ctx context.Context) (bool, error) { return false, errors.New("no device connected") },
	}

	rec := httptest.NewRecorder()
	ReadinessHandler(checks)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rec.Code)
	}
	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if status.Dependencies["device"].Message != "no device connected" {
		t.Errorf("Expected device failure message, got '%s'", status.Dependencies["device"].Message)
	}
	if status.Dependencies["gemini"].Status != "healthy" {
		t.Errorf("Expected gemini healthy, got '%s'", status.Dependencies["gemini"].Status)
	}
}

func TestGRPCHealth_Refresh(t *testing.T) {
	healthy := true
	g := NewGRPCHealth(map[string]HealthCheckFunc{
		"gemini": func(ctx context.Context) (bool, error) { return healthy, nil },
	}, 0)

	if got := g.Refresh(context.Background()); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("Expected SERVING, got %v", got)
	}

	healthy = false
	if got := g.Refresh(context.Background()); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("Expected NOT_SERVING, got %v", got)
	}

	resp, err := g.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "eva.gateway"})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("Expected NOT_SERVING from health service, got %v", resp.GetStatus())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "debug"},
		{"WARN", "warn"},
		{"", "info"},
		{"bogus", "info"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in).String(); got != tt.want {
				t.Errorf("Expected level %s, got %s", tt.want, got)
			}
		})
	}
}
