package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/lexiqai/eva-gateway/internal/chat"
	"github.com/lexiqai/eva-gateway/internal/device"
	"github.com/lexiqai/eva-gateway/internal/observability"
	"github.com/lexiqai/eva-gateway/internal/roster"
	"github.com/lexiqai/eva-gateway/internal/session"
	"github.com/lexiqai/eva-gateway/internal/tools"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 64 << 10

// Controller is the control surface the API drives
type Controller interface {
	StartLiveSession(ctx context.Context) error
	StopLiveSession() session.State
	State() session.State
	SessionID() string
	SendTextMessage(ctx context.Context, text string) (string, error)
	Messages() []chat.Message
}

// RosterStore reads and replaces the team roster
type RosterStore interface {
	Members() []roster.Member
	Replace([]roster.Member)
}

// TaskLog keeps the tasks created since the process started
type TaskLog struct {
	mu    sync.RWMutex
	tasks []tools.Task
}

// Add records t; it is registered as the task-created callback
func (l *TaskLog) Add(t tools.Task) {
	l.mu.Lock()
	l.tasks = append(l.tasks, t)
	l.mu.Unlock()
}

// List returns the tasks in creation order
func (l *TaskLog) List() []tools.Task {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]tools.Task{}, l.tasks...)
}

// Server exposes the controller over HTTP
type Server struct {
	ctrl   Controller
	roster RosterStore
	tasks  *TaskLog
	logger zerolog.Logger
}

// NewServer creates the API server
func NewServer(ctrl Controller, rs RosterStore, tasks *TaskLog, logger zerolog.Logger) *Server {
	if tasks == nil {
		tasks = &TaskLog{}
	}
	return &Server{
		ctrl:   ctrl,
		roster: rs,
		tasks:  tasks,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Register mounts the API routes on mux
func (s *Server) Register(mux *http.ServeMux) {
	mux.Handle("POST /v1/session/start", s.logged(s.handleStart))
	mux.Handle("POST /v1/session/stop", s.logged(s.handleStop))
	mux.Handle("GET /v1/session", s.logged(s.handleSession))
	mux.Handle("POST /v1/chat", s.logged(s.handleChat))
	mux.Handle("GET /v1/chat/messages", s.logged(s.handleMessages))
	mux.Handle("GET /v1/roster", s.logged(s.handleGetRoster))
	mux.Handle("PUT /v1/roster", s.logged(s.handlePutRoster))
	mux.Handle("GET /v1/tasks", s.logged(s.handleTasks))
}

type sessionResponse struct {
	State     string `json:"state"`
	SessionID string `json:"sessionId,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type chatRequest struct {
	Text string `json:"text"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type rosterBody struct {
	Members []roster.Member `json:"members"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.StartLiveSession(r.Context()); err != nil {
		writeError(w, startStatus(err), err)
		return
	}
	s.writeSession(w)
}

func startStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionActive), errors.Is(err, session.ErrSessionEnded):
		return http.StatusConflict
	case errors.Is(err, session.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, device.ErrNoDevice):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusServiceUnavailable
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.ctrl.StopLiveSession()
	s.writeSession(w)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.writeSession(w)
}

func (s *Server) writeSession(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, sessionResponse{
		State:     s.ctrl.State().String(),
		SessionID: s.ctrl.SessionID(),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	reply, err := s.ctrl.SendTextMessage(r.Context(), req.Text)
	switch {
	case errors.Is(err, session.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrLiveActive):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
	}
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Messages())
}

func (s *Server) handleGetRoster(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rosterBody{Members: s.roster.Members()})
}

func (s *Server) handlePutRoster(w http.ResponseWriter, r *http.Request) {
	var body rosterBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.roster.Replace(body.Members)
	s.logger.Info().Int("members", len(body.Members)).Msg("Roster replaced")
	writeJSON(w, http.StatusOK, rosterBody{Members: s.roster.Members()})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tasks.List())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

// statusRecorder captures the response code for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logged(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := observability.WithCorrelationID(r.Header.Get("X-Request-ID"))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		h(rec, r)

		event := logger.Debug()
		if rec.status >= http.StatusInternalServerError {
			event = logger.Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
