package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Live session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eva_live_sessions_active",
		Help: "Number of live voice sessions currently connecting or live",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eva_live_sessions_total",
		Help: "Total number of live voice sessions started",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eva_live_session_duration_seconds",
		Help:    "Duration of live voice sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	})

	sessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eva_session_state_transitions_total",
		Help: "Session state transitions by target state",
	}, []string{"state"})

	// Capture metrics
	framesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eva_audio_frames_sent_total",
		Help: "Captured audio frames handed to the live channel",
	})

	framesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eva_audio_frames_dropped_total",
		Help: "Captured audio frames dropped before reaching the live channel",
	}, []string{"reason"})

	inputLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eva_audio_input_rms",
		Help: "RMS level of the most recent captured frame (0..1)",
	})

	// Playback metrics
	unitsScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eva_playback_units_scheduled_total",
		Help: "Synthesized audio units scheduled for playback",
	})

	playbackLag = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eva_playback_queue_seconds",
		Help:    "Distance between the output clock and a unit's scheduled start",
		Buckets: []float64{0, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	decodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eva_playback_decode_failures_total",
		Help: "Inbound audio payloads that could not be decoded",
	})

	// Tool call metrics
	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eva_tool_calls_total",
		Help: "Tool calls dispatched by name, status and path",
	}, []string{"name", "status", "path"})

	// Text path metrics
	textRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eva_text_requests_total",
		Help: "Total number of text requests",
	}, []string{"status"})

	textLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eva_text_request_latency_seconds",
		Help:    "Text request latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eva_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "eva_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eva_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eva_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"
)

// SessionMetrics tracks metrics for a single live session
type SessionMetrics struct {
	sessionID string
	startTime time.Time
	ended     bool
	mu        sync.Mutex
}

// NewSessionMetrics creates a new metrics tracker for a live session
func NewSessionMetrics(sessionID string) *SessionMetrics {
	return &SessionMetrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a live session
func (m *SessionMetrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a live session; repeated calls are ignored
func (m *SessionMetrics) RecordSessionEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return
	}
	m.ended = true
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordError records an error
func (m *SessionMetrics) RecordError(errorType, component string) {
	RecordError(errorType, component)
}

// RecordAudioBytes records audio bytes exchanged with the device
func RecordAudioBytes(direction string, bytes int) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// RecordStateTransition counts a session state change
func RecordStateTransition(state string) {
	sessionTransitions.WithLabelValues(state).Inc()
}

// RecordFrameSent counts a captured frame accepted by the channel
func RecordFrameSent(bytes int) {
	framesSent.Inc()
	audioBytesProcessed.WithLabelValues("out").Add(float64(bytes))
}

// RecordFrameDropped counts a captured frame that never reached the channel
func RecordFrameDropped(reason string) {
	framesDropped.WithLabelValues(reason).Inc()
}

// RecordInputLevel stores the RMS level of the latest captured frame
func RecordInputLevel(rms float64) {
	inputLevel.Set(rms)
}

// RecordUnitScheduled counts a playback unit and how far ahead of the clock it starts
func RecordUnitScheduled(bytes int, queued time.Duration) {
	unitsScheduled.Inc()
	playbackLag.Observe(queued.Seconds())
	audioBytesProcessed.WithLabelValues("in").Add(float64(bytes))
}

// RecordDecodeFailure counts an inbound payload that could not be decoded
func RecordDecodeFailure() {
	decodeFailures.Inc()
}

// RecordToolCall counts a dispatched tool call
func RecordToolCall(name, status, path string) {
	toolCalls.WithLabelValues(name, status, path).Inc()
}

// RecordTextRequest records the outcome and latency of a text request
func RecordTextRequest(success bool, latency time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	textRequests.WithLabelValues(status).Inc()
	textLatency.Observe(latency.Seconds())
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
