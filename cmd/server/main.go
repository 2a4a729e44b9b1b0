package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexiqai/eva-gateway/internal/api"
	"github.com/lexiqai/eva-gateway/internal/chat"
	"github.com/lexiqai/eva-gateway/internal/config"
	"github.com/lexiqai/eva-gateway/internal/device"
	"github.com/lexiqai/eva-gateway/internal/live"
	"github.com/lexiqai/eva-gateway/internal/observability"
	"github.com/lexiqai/eva-gateway/internal/resilience"
	"github.com/lexiqai/eva-gateway/internal/roster"
	"github.com/lexiqai/eva-gateway/internal/session"
	"github.com/lexiqai/eva-gateway/internal/tools"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/genai"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("live_model", cfg.GeminiLiveModel).
		Str("text_model", cfg.GeminiTextModel).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("EVA gateway starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.GeminiAPIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1beta"},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	members, err := roster.Parse(cfg.TeamRoster)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid TEAM_ROSTER")
	}
	team := roster.NewStore(members)

	// Tasks from either path reach the controller's listeners
	var ctrl *session.Controller
	dispatcher := tools.NewDispatcher(tools.TaskSinkFunc(func(t tools.Task) {
		ctrl.TaskCreated(t)
	}), logger)

	breaker := resilience.NewCircuitBreaker("gemini_text", cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second)
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.RetryMaxAttempts
	retry.InitialBackoff = time.Duration(cfg.RetryInitialBackoff) * time.Millisecond

	chatService := chat.NewService(
		chat.NewGeminiGenerator(client, cfg.GeminiTextModel, cfg.TextTemperature),
		dispatcher,
		chat.Options{
			Timeout: time.Duration(cfg.TextTimeout) * time.Second,
			Retry:   retry,
			Breaker: breaker,
			Logger:  logger,
		},
	)

	var dialer live.Dialer = live.NewGeminiDialer(client, cfg.GeminiLiveModel)
	if cfg.LiveEndpoint != "" {
		dialer = &live.WSDialer{URL: cfg.LiveEndpoint, Model: cfg.GeminiLiveModel}
		logger.Info().Str("endpoint", cfg.LiveEndpoint).Msg("Using plain WebSocket live endpoint")
	}

	hub := device.NewHub(0, logger)

	ctrl = session.NewController(session.Config{
		CaptureFrameSize:   cfg.CaptureFrameSize,
		CaptureSampleRate:  cfg.CaptureSampleRate,
		PlaybackSampleRate: cfg.PlaybackSampleRate,
		QueueSize:          cfg.OutboundQueueSize,
		ConnectTimeout:     time.Duration(cfg.ConnectTimeout) * time.Second,
	}, session.Deps{
		Devices:    hub,
		Dialer:     dialer,
		Dispatcher: dispatcher,
		Chat:       chatService,
		Roster:     team,
		Logger:     logger,
	})

	tasks := &api.TaskLog{}
	ctrl.OnTaskCreated(tasks.Add)
	ctrl.OnTaskCreated(func(t tools.Task) { hub.Publish(device.TaskEvent(t)) })
	ctrl.OnStateChange(func(s session.State) {
		hub.Publish(device.StateEvent(s.String(), ctrl.SessionID()))
	})
	ctrl.OnMessage(func(m chat.Message) {
		hub.Publish(device.MessageEvent(string(m.Role), m.Text))
	})
	// losing the device ends the session it was feeding
	hub.OnDisconnect(func() { ctrl.StopLiveSession() })

	// Create HTTP server
	mux := http.NewServeMux()
	mux.HandleFunc("/device", hub.Handler())
	api.NewServer(ctrl, team, tasks, logger).Register(mux)

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	checks := map[string]observability.HealthCheckFunc{
		"gemini": func(ctx context.Context) (bool, error) {
			_, err := client.Models.Get(ctx, cfg.GeminiTextModel, nil)
			if err != nil {
				return false, err
			}
			return true, nil
		},
		"breaker": func(ctx context.Context) (bool, error) {
			state, _, failures, _ := breaker.GetStats()
			if state == resilience.StateOpen {
				return false, fmt.Errorf("text circuit breaker is open after %d failures", failures)
			}
			return true, nil
		},
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	if cfg.GRPCHealthPort != "" {
		grpcHealth := observability.NewGRPCHealth(checks, 15*time.Second)
		go func() {
			addr := fmt.Sprintf(":%s", cfg.GRPCHealthPort)
			logger.Info().Str("addr", addr).Msg("gRPC health service listening")
			if err := grpcHealth.Serve(ctx, addr); err != nil {
				logger.Error().Err(err).Msg("gRPC health service stopped")
			}
		}()
	}

	// WriteTimeout is left unset: session start waits for the user and the
	// device connection is long-lived
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("device_endpoint", fmt.Sprintf("ws://localhost:%s/device", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	ctrl.StopLiveSession()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
