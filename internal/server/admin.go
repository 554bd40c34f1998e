package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/pace-labs/pace-engine/internal/ai"
	"github.com/pace-labs/pace-engine/internal/experiment"
	"github.com/pace-labs/pace-engine/internal/store"
)

// AdminHandlers serves the operator surface: prompt versioning, experiments
// and the AI generation log.
type AdminHandlers struct {
	prompts     *ai.PromptService
	experiments *experiment.Service
	store       *store.Store
	logger      zerolog.Logger
}

// NewAdminHandlers creates the admin handler set.
func NewAdminHandlers(prompts *ai.PromptService, experiments *experiment.Service, s *store.Store, logger zerolog.Logger) *AdminHandlers {
	return &AdminHandlers{
		prompts:     prompts,
		experiments: experiments,
		store:       s,
		logger:      logger.With().Str("component", "admin-handlers").Logger(),
	}
}

// CreatePromptVersion handles POST /api/v1/admin/prompts.
func (h *AdminHandlers) CreatePromptVersion(c *fiber.Ctx) error {
	var req CreatePromptVersionRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}
	if req.Variant == "" {
		req.Variant = "default"
	}

	v, err := h.prompts.CreateVersion(req.TemplateKey, req.Version, req.Variant,
		req.SystemText, req.UserText, ownerID(c), req.Notes)
	if err != nil {
		return errorProblem(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"version": v})
}

// ActivatePromptVersion handles POST /api/v1/admin/prompts/:id/activate.
func (h *AdminHandlers) ActivatePromptVersion(c *fiber.Ctx) error {
	if err := h.prompts.Activate(c.Params("id")); err != nil {
		return errorProblem(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// ListPromptVersions handles GET /api/v1/admin/prompts.
func (h *AdminHandlers) ListPromptVersions(c *fiber.Ctx) error {
	versions, err := h.prompts.List(c.Query("templateKey"))
	if err != nil {
		return errorProblem(c, err)
	}
	return c.JSON(fiber.Map{"versions": versions})
}

// ListGenerationLogs handles GET /api/v1/admin/ai-logs.
func (h *AdminHandlers) ListGenerationLogs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit")
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	logs, err := h.store.ListGenerationLogs(c.Query("ownerId"), limit)
	if err != nil {
		return errorProblem(c, err)
	}
	return c.JSON(fiber.Map{"logs": logs})
}

// CreateExperiment handles POST /api/v1/admin/experiments.
func (h *AdminHandlers) CreateExperiment(c *fiber.Ctx) error {
	var req CreateExperimentRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	exp, err := h.experiments.Create(req.Key, req.Name, req.Description)
	if err != nil {
		return errorProblem(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"experiment": exp})
}

// AddExperimentVariant handles POST /api/v1/admin/experiments/:id/variants.
func (h *AdminHandlers) AddExperimentVariant(c *fiber.Ctx) error {
	var req AddVariantRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	v, err := h.experiments.AddVariant(c.Params("id"), req.Key, req.Name, req.Weight, string(req.ConfigJSON))
	if err != nil {
		return errorProblem(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"variant": v})
}

// StartExperiment handles POST /api/v1/admin/experiments/:id/start.
func (h *AdminHandlers) StartExperiment(c *fiber.Ctx) error {
	if err := h.experiments.Start(c.Params("id")); err != nil {
		return errorProblem(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// PauseExperiment handles POST /api/v1/admin/experiments/:id/pause.
func (h *AdminHandlers) PauseExperiment(c *fiber.Ctx) error {
	if err := h.experiments.Pause(c.Params("id")); err != nil {
		return errorProblem(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// CompleteExperiment handles POST /api/v1/admin/experiments/:id/complete.
func (h *AdminHandlers) CompleteExperiment(c *fiber.Ctx) error {
	if err := h.experiments.Complete(c.Params("id")); err != nil {
		return errorProblem(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// ExperimentSummary handles GET /api/v1/admin/experiments/:key/summary.
func (h *AdminHandlers) ExperimentSummary(c *fiber.Ctx) error {
	summary, err := h.experiments.Summarize(c.Params("key"))
	if err != nil {
		return errorProblem(c, err)
	}
	return c.JSON(summary)
}
