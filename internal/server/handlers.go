package server

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/pace-labs/pace-engine/internal/ai"
	perrors "github.com/pace-labs/pace-engine/internal/errors"
	"github.com/pace-labs/pace-engine/internal/experiment"
	"github.com/pace-labs/pace-engine/internal/state"
	"github.com/pace-labs/pace-engine/internal/store"
	"github.com/pace-labs/pace-engine/internal/suggestion"
)

// Handlers holds the engine services behind the HTTP surface.
type Handlers struct {
	calculator  *state.Calculator
	suggestions *suggestion.Service
	copygen     *ai.Generator
	assigner    *experiment.Assigner
	logger      zerolog.Logger
}

// NewHandlers creates the user-facing handler set.
func NewHandlers(calc *state.Calculator, suggestions *suggestion.Service, copygen *ai.Generator, assigner *experiment.Assigner, logger zerolog.Logger) *Handlers {
	return &Handlers{
		calculator:  calc,
		suggestions: suggestions,
		copygen:     copygen,
		assigner:    assigner,
		logger:      logger.With().Str("component", "handlers").Logger(),
	}
}

// errorProblem maps engine sentinel errors onto HTTP problem responses.
func errorProblem(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, perrors.ErrNotFound):
		return problemResponse(c, fiber.StatusNotFound, "not_found", "Not Found", err.Error())
	case errors.Is(err, perrors.ErrAlreadyResponded):
		return problemResponse(c, fiber.StatusConflict, "already_responded", "Conflict", err.Error())
	case errors.Is(err, perrors.ErrInvalidInput):
		return problemResponse(c, fiber.StatusBadRequest, "invalid_input", "Bad Request", err.Error())
	case errors.Is(err, perrors.ErrNotImplemented):
		return problemResponse(c, fiber.StatusNotImplemented, "not_implemented", "Not Implemented", err.Error())
	case errors.Is(err, perrors.ErrDenied):
		return problemResponse(c, fiber.StatusForbidden, "denied", "Forbidden", err.Error())
	case errors.Is(err, perrors.ErrUnavailable), errors.Is(err, perrors.ErrCircuitOpen):
		return problemResponse(c, fiber.StatusServiceUnavailable, "unavailable", "Service Unavailable", err.Error())
	default:
		return problemResponse(c, fiber.StatusInternalServerError, "internal_error", "Internal Server Error",
			"An internal error occurred")
	}
}

func snapshotResponse(snap *store.StateSnapshot) SnapshotResponse {
	return SnapshotResponse{
		ID:                snap.ID,
		WindowDays:        snap.WindowDays,
		PrimaryState:      snap.PrimaryState,
		PrimaryConfidence: snap.PrimaryConfidence,
		Scores:            rawOrNull(snap.ScoresJSON),
		TopSignals:        rawOrNull(snap.TopSignalsJSON),
		SelfReport:        rawOrNull(snap.SelfReportJSON),
		CreatedAt:         snap.CreatedAt,
	}
}

// ComputeState handles POST /api/v1/state/compute.
func (h *Handlers) ComputeState(c *fiber.Ctx) error {
	var req ComputeStateRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	var selfReport *state.SelfReport
	if len(req.SelfReport) > 0 {
		selfReport = &state.SelfReport{}
		if err := json.Unmarshal(req.SelfReport, selfReport); err != nil {
			return problemResponse(c, fiber.StatusBadRequest,
				"invalid_self_report", "Bad Request", "Invalid self report: "+err.Error())
		}
	}

	snap, err := h.calculator.Compute(ownerID(c), req.WindowDays, selfReport)
	if err != nil {
		return errorProblem(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(snapshotResponse(snap))
}

// LatestState handles GET /api/v1/state/latest.
func (h *Handlers) LatestState(c *fiber.Ctx) error {
	snap, err := h.calculator.Latest(ownerID(c))
	if err != nil {
		return errorProblem(c, err)
	}
	if snap == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"not_found", "Not Found", "No snapshot computed yet")
	}
	return c.JSON(snapshotResponse(snap))
}

// StateHistory handles GET /api/v1/state/history.
func (h *Handlers) StateHistory(c *fiber.Ctx) error {
	snaps, err := h.calculator.History(ownerID(c), c.QueryInt("limit"))
	if err != nil {
		return errorProblem(c, err)
	}
	out := make([]SnapshotResponse, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, snapshotResponse(snap))
	}
	return c.JSON(fiber.Map{"history": out})
}

// FetchSuggestions handles GET /api/v1/suggestions.
func (h *Handlers) FetchSuggestions(c *fiber.Ctx) error {
	res, err := h.suggestions.Fetch(c.Context(), ownerID(c),
		c.QueryInt("limit"), c.QueryBool("forceCompute"))
	if err != nil {
		return errorProblem(c, err)
	}
	return c.JSON(fiber.Map{
		"suggestions": res.Suggestions,
		"snapshot":    snapshotResponse(res.Snapshot),
	})
}

// GetSuggestion handles GET /api/v1/suggestions/:id.
func (h *Handlers) GetSuggestion(c *fiber.Ctx) error {
	event, err := h.suggestions.Get(c.Params("id"), ownerID(c))
	if err != nil {
		return errorProblem(c, err)
	}
	return c.JSON(suggestionEventResponse(event))
}

// RespondSuggestion handles POST /api/v1/suggestions/:id/respond. ACCEPTED
// runs the applier before the response is recorded.
func (h *Handlers) RespondSuggestion(c *fiber.Ctx) error {
	var req RespondRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	err := h.suggestions.Respond(c.Params("id"), ownerID(c), req.Response, string(req.ResponsePayload))
	if err != nil {
		return errorProblem(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// SuggestionHistory handles GET /api/v1/suggestions/history.
func (h *Handlers) SuggestionHistory(c *fiber.Ctx) error {
	events, err := h.suggestions.History(ownerID(c),
		c.QueryInt("limit"), c.QueryBool("includeIgnored"))
	if err != nil {
		return errorProblem(c, err)
	}
	out := make([]SuggestionEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, suggestionEventResponse(e))
	}
	return c.JSON(fiber.Map{"history": out})
}

// SuggestionStats handles GET /api/v1/suggestions/stats.
func (h *Handlers) SuggestionStats(c *fiber.Ctx) error {
	stats, err := h.suggestions.Stats(ownerID(c))
	if err != nil {
		return errorProblem(c, err)
	}
	return c.JSON(fiber.Map{"stats": stats})
}

// DraftMicrosteps handles POST /api/v1/tasks/microsteps/draft. Drafts small
// steps for a task title; degrades to the static split when generation is
// unavailable.
func (h *Handlers) DraftMicrosteps(c *fiber.Ctx) error {
	var req DraftMicrostepsRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}
	if req.TaskTitle == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_input", "Bad Request", "taskTitle is required")
	}

	steps := h.copygen.GenerateMicrostepDraft(c.Context(), ownerID(c), req.TaskTitle, req.TaskDescription)
	return c.JSON(fiber.Map{"microSteps": steps})
}

// ExperimentVariant handles GET /api/v1/experiments/:key/variant. The first
// read buckets the owner; later reads return the sticky assignment.
func (h *Handlers) ExperimentVariant(c *fiber.Ctx) error {
	key := c.Params("key")
	variant, err := h.assigner.Assign(ownerID(c), key)
	if err != nil {
		return errorProblem(c, err)
	}
	return c.JSON(fiber.Map{"experiment": key, "variant": variant})
}

func suggestionEventResponse(e *store.SuggestionEvent) SuggestionEventResponse {
	return SuggestionEventResponse{
		EventID:     e.ID,
		Type:        e.SuggestionType,
		Title:       e.Title,
		Message:     e.Message,
		Options:     rawOrNull(e.OptionsJSON),
		Payload:     rawOrNull(e.PayloadJSON),
		Context:     e.Context,
		StateType:   e.StateType,
		StateScore:  e.StateScore,
		Response:    e.Response,
		RespondedAt: e.RespondedAt,
		CreatedAt:   e.CreatedAt,
	}
}
