package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`

	// Storage
	DBPath string `envconfig:"DB_PATH" default:"pace-engine.db"`

	// Auth (inbound boundary — tokens are issued elsewhere)
	JWTSigningKey string `envconfig:"JWT_SIGNING_KEY"`

	// Anthropic text generation
	AnthropicAPIKey string        `envconfig:"ANTHROPIC_API_KEY"`
	AIModel         string        `envconfig:"AI_MODEL" default:"claude-sonnet-4-5-20250929"`
	AIMaxTokens     int           `envconfig:"AI_MAX_TOKENS" default:"1024"`
	AITemperature   float64       `envconfig:"AI_TEMPERATURE" default:"0.7"`
	AITimeout       time.Duration `envconfig:"AI_TIMEOUT" default:"15s"`

	// Retry policy for the external generation call
	AIRetryAttempts int           `envconfig:"AI_RETRY_ATTEMPTS" default:"2"`
	AIRetryBackoff  time.Duration `envconfig:"AI_RETRY_BACKOFF" default:"500ms"`
	AIRetryMaxDelay time.Duration `envconfig:"AI_RETRY_MAX_DELAY" default:"10s"`

	// Circuit breaker for the external generation call
	BreakerFailureThreshold int           `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"5"`
	BreakerSuccessThreshold int           `envconfig:"BREAKER_SUCCESS_THRESHOLD" default:"2"`
	BreakerCooldown         time.Duration `envconfig:"BREAKER_COOLDOWN" default:"30s"`

	// Engine behavior
	SnapshotWindowDays int           `envconfig:"SNAPSHOT_WINDOW_DAYS" default:"7"`
	SnapshotMaxAge     time.Duration `envconfig:"SNAPSHOT_MAX_AGE" default:"24h"`
	SuggestionLimit    int           `envconfig:"SUGGESTION_LIMIT" default:"3"`
}

// AIEnabled returns true if an Anthropic API key is configured. Without it the
// engine still runs, serving static fallback copy only.
func (c *Config) AIEnabled() bool {
	return c.AnthropicAPIKey != ""
}

// Validate checks settings that would otherwise fail deep inside the engine.
func (c *Config) Validate() error {
	if c.SnapshotWindowDays <= 0 {
		return fmt.Errorf("SNAPSHOT_WINDOW_DAYS must be positive, got %d", c.SnapshotWindowDays)
	}
	if c.AIRetryAttempts < 1 {
		return fmt.Errorf("AI_RETRY_ATTEMPTS must be at least 1, got %d", c.AIRetryAttempts)
	}
	if c.SuggestionLimit < 1 {
		return fmt.Errorf("SUGGESTION_LIMIT must be at least 1, got %d", c.SuggestionLimit)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
