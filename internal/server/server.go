package server

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/pace-labs/pace-engine/internal/health"
	"github.com/pace-labs/pace-engine/internal/metrics"
	"github.com/pace-labs/pace-engine/internal/requestid"
)

// ServerConfig holds the HTTP surface configuration.
type ServerConfig struct {
	ListenAddr string
	Auth       AuthConfig
}

// Server is the engine's Fiber application.
type Server struct {
	app    *fiber.App
	config ServerConfig
	logger zerolog.Logger
}

// NewServer builds the app: middleware, user routes, admin routes, probes.
func NewServer(cfg ServerConfig, h *Handlers, admin *AdminHandlers, checker *health.Checker, m *metrics.Metrics, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	s := &Server{
		app:    app,
		config: cfg,
		logger: logger.With().Str("component", "server").Logger(),
	}

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))

	// A caller-supplied X-Request-ID follows the request; otherwise one is
	// generated.
	app.Use(func(c *fiber.Ctx) error {
		reqID := c.Get("X-Request-ID")
		if reqID == "" {
			_, reqID = requestid.Ensure(c.Context())
		}
		c.Set("X-Request-ID", reqID)
		c.Locals("request_id", reqID)
		return c.Next()
	})

	app.Use(NewAuthMiddleware(cfg.Auth, logger))

	// Request logging and metrics. Probes stay out of both.
	app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()

		m.RecordRequest(c.Method(), c.Route().Path, strconv.Itoa(status), time.Since(start).Seconds())
		logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("request_id", requestIDOf(c)).
			Msg("request")
		return err
	})

	startTime := time.Now()
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"uptime": time.Since(startTime).String(),
		})
	})
	app.Get("/readyz", func(c *fiber.Ctx) error {
		results := checker.RunAll(c.Context())
		for _, status := range results {
			if status == health.StatusDown {
				return c.Status(fiber.StatusServiceUnavailable).
					JSON(fiber.Map{"status": "not_ready", "checks": results})
			}
		}
		return c.JSON(fiber.Map{"status": "ready", "checks": results})
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	v1 := app.Group("/api/v1")

	v1.Post("/state/compute", h.ComputeState)
	v1.Get("/state/latest", h.LatestState)
	v1.Get("/state/history", h.StateHistory)

	v1.Post("/tasks/microsteps/draft", h.DraftMicrosteps)
	v1.Get("/experiments/:key/variant", h.ExperimentVariant)

	v1.Get("/suggestions", h.FetchSuggestions)
	v1.Get("/suggestions/history", h.SuggestionHistory)
	v1.Get("/suggestions/stats", h.SuggestionStats)
	v1.Get("/suggestions/:id", h.GetSuggestion)
	v1.Post("/suggestions/:id/respond", h.RespondSuggestion)

	adm := v1.Group("/admin", requireAdmin())
	adm.Post("/prompts", admin.CreatePromptVersion)
	adm.Get("/prompts", admin.ListPromptVersions)
	adm.Post("/prompts/:id/activate", admin.ActivatePromptVersion)
	adm.Get("/ai-logs", admin.ListGenerationLogs)
	adm.Post("/experiments", admin.CreateExperiment)
	adm.Post("/experiments/:id/variants", admin.AddExperimentVariant)
	adm.Post("/experiments/:id/start", admin.StartExperiment)
	adm.Post("/experiments/:id/pause", admin.PauseExperiment)
	adm.Post("/experiments/:id/complete", admin.CompleteExperiment)
	adm.Get("/experiments/:key/summary", admin.ExperimentSummary)

	return s
}

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	s.logger.Info().Str("addr", addr).Msg("http server starting")
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("http server shutting down")
	return s.app.Shutdown()
}

// App exposes the Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func requestIDOf(c *fiber.Ctx) string {
	id, _ := c.Locals("request_id").(string)
	return id
}

func errorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		detail := err.Error()
		if code == fiber.StatusInternalServerError {
			detail = "An internal error occurred"
		}
		return c.Status(code).JSON(ProblemDetail{
			Type:     "internal_error",
			Title:    "Internal Server Error",
			Status:   code,
			Detail:   detail,
			Instance: c.Path(),
		})
	}
}
