package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the EVA gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Optional gRPC health endpoint; empty disables it
	GRPCHealthPort string `envconfig:"GRPC_HEALTH_PORT" default:""`

	// Gemini configuration
	GeminiAPIKey    string  `envconfig:"GEMINI_API_KEY" required:"true"`
	GeminiLiveModel string  `envconfig:"GEMINI_LIVE_MODEL" default:"gemini-2.5-flash-native-audio-preview-12-2025"`
	GeminiTextModel string  `envconfig:"GEMINI_TEXT_MODEL" default:"gemini-3-flash-preview"`
	TextTemperature float32 `envconfig:"TEXT_TEMPERATURE" default:"0.1"`
	TextTimeout     int     `envconfig:"TEXT_TIMEOUT" default:"30"`     // seconds
	ConnectTimeout  int     `envconfig:"CONNECT_TIMEOUT" default:"15"` // seconds, live channel open

	// Plain JSON WebSocket endpoint for the live channel; empty uses the Gemini Live API
	LiveEndpoint string `envconfig:"LIVE_ENDPOINT" default:""`

	// Audio configuration
	CaptureSampleRate  int `envconfig:"CAPTURE_SAMPLE_RATE" default:"16000"`  // Wire rate sent to the model
	CaptureFrameSize   int `envconfig:"CAPTURE_FRAME_SIZE" default:"4096"`    // Samples per captured frame
	PlaybackSampleRate int `envconfig:"PLAYBACK_SAMPLE_RATE" default:"24000"` // Rate of synthesized audio
	OutboundQueueSize  int `envconfig:"OUTBOUND_QUEUE_SIZE" default:"32"`     // Frames waiting for the channel writer

	// Team roster seed, "Name:Role;Name:Role"
	TeamRoster string `envconfig:"TEAM_ROSTER" default:""`

	// Resilience configuration (text path only; the live channel never retries)
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"2"`             // Maximum attempts per text request
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"200"`        // Initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the values envconfig cannot express
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.CaptureSampleRate <= 0 || c.PlaybackSampleRate <= 0 {
		return fmt.Errorf("sample rates must be positive")
	}
	if c.CaptureFrameSize <= 0 {
		return fmt.Errorf("CAPTURE_FRAME_SIZE must be positive")
	}
	if c.OutboundQueueSize <= 0 {
		return fmt.Errorf("OUTBOUND_QUEUE_SIZE must be positive")
	}
	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
