package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pace-labs/pace-engine/internal/ai"
	"github.com/pace-labs/pace-engine/internal/config"
	"github.com/pace-labs/pace-engine/internal/experiment"
	"github.com/pace-labs/pace-engine/internal/health"
	"github.com/pace-labs/pace-engine/internal/metrics"
	"github.com/pace-labs/pace-engine/internal/resilience"
	"github.com/pace-labs/pace-engine/internal/server"
	"github.com/pace-labs/pace-engine/internal/state"
	"github.com/pace-labs/pace-engine/internal/store"
	"github.com/pace-labs/pace-engine/internal/suggestion"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Str("db_path", cfg.DBPath).
		Bool("ai_enabled", cfg.AIEnabled()).
		Msg("starting pace engine")

	// Storage
	st, err := store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	// Prompt catalog; seed the built-in templates on first boot
	prompts := ai.NewPromptService(st, logger)
	if err := prompts.SeedDefaults(); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed prompt templates")
	}

	// Model backend (optional — fallback copy serves when disabled)
	var client ai.Client
	if cfg.AIEnabled() {
		client = ai.NewAnthropicClient(cfg.AnthropicAPIKey, logger, ai.WithModel(cfg.AIModel))
		logger.Info().Str("model", cfg.AIModel).Msg("Anthropic client initialized")
	} else {
		client = ai.NewDisabledClient()
		logger.Info().Msg("ANTHROPIC_API_KEY not set — serving static fallback copy only")
	}

	breakers := resilience.NewBreakerRegistry(resilience.BreakerConfig{
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		Cooldown:         cfg.BreakerCooldown,
	})

	m := metrics.New()

	resolver := ai.NewResolver(st, logger)
	copygen := ai.NewGenerator(client, resolver, st, breakers, m, ai.GeneratorConfig{
		MaxTokens:   cfg.AIMaxTokens,
		Temperature: cfg.AITemperature,
		Timeout:     cfg.AITimeout,
		Retry: resilience.RetryConfig{
			MaxAttempts: cfg.AIRetryAttempts,
			BaseDelay:   cfg.AIRetryBackoff,
			MaxDelay:    cfg.AIRetryMaxDelay,
			Jitter:      true,
		},
	}, logger)

	// Engine core
	calculator := state.NewCalculator(st, m, logger)
	suggestions := suggestion.NewService(
		st,
		calculator,
		suggestion.NewGenerator(st, copygen, m, logger),
		suggestion.NewApplier(st, logger),
		suggestion.Config{
			WindowDays:     cfg.SnapshotWindowDays,
			SnapshotMaxAge: cfg.SnapshotMaxAge,
			Limit:          cfg.SuggestionLimit,
		},
		m,
		logger,
	)
	experiments := experiment.NewService(st, logger)
	assigner := experiment.NewAssigner(st, logger)

	// Health checker
	checker := health.NewChecker(logger)
	checker.Register("store", health.StoreCheck(st))

	srv := server.NewServer(server.ServerConfig{
		ListenAddr: cfg.ListenAddr,
		Auth:       server.AuthConfig{SigningKey: cfg.JWTSigningKey},
	},
		server.NewHandlers(calculator, suggestions, copygen, assigner, logger),
		server.NewAdminHandlers(prompts, experiments, st, logger),
		checker, m, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("http server error")
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		if err := srv.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("http server shutdown error")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("forced shutdown after timeout")
	}

	logger.Info().Msg("pace engine stopped")
}
