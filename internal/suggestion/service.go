package suggestion

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/pace-labs/pace-engine/internal/errors"
	"github.com/pace-labs/pace-engine/internal/metrics"
	"github.com/pace-labs/pace-engine/internal/state"
	"github.com/pace-labs/pace-engine/internal/store"
)

// defaultHistoryLimit bounds history reads when the caller passes none.
const defaultHistoryLimit = 20

// Config tunes the fetch flow.
type Config struct {
	WindowDays     int           // trailing signal window for recomputed snapshots
	SnapshotMaxAge time.Duration // how old the latest snapshot may be before recompute
	Limit          int           // suggestions per fetch when the caller passes none
}

// DefaultConfig mirrors the production fetch behavior.
func DefaultConfig() Config {
	return Config{
		WindowDays:     state.DefaultWindowDays,
		SnapshotMaxAge: 24 * time.Hour,
		Limit:          DefaultLimit,
	}
}

// Service is the user-facing suggestion surface: fetch, respond, apply,
// history and stats.
type Service struct {
	store      *store.Store
	calculator *state.Calculator
	generator  *Generator
	applier    *Applier
	cfg        Config
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewService wires the suggestion service. Zero Config fields fall back to
// the defaults.
func NewService(s *store.Store, calc *state.Calculator, gen *Generator, applier *Applier, cfg Config, m *metrics.Metrics, logger zerolog.Logger) *Service {
	def := DefaultConfig()
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = def.WindowDays
	}
	if cfg.SnapshotMaxAge <= 0 {
		cfg.SnapshotMaxAge = def.SnapshotMaxAge
	}
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	return &Service{
		store:      s,
		calculator: calc,
		generator:  gen,
		applier:    applier,
		cfg:        cfg,
		metrics:    m,
		logger:     logger.With().Str("component", "suggestion-service").Logger(),
	}
}

// FetchResult pairs generated suggestions with the snapshot they came from.
type FetchResult struct {
	Suggestions []*Suggestion        `json:"suggestions"`
	Snapshot    *store.StateSnapshot `json:"snapshot"`
}

// Fetch generates up to limit suggestions for the owner. The latest snapshot
// is reused when fresh; a missing or stale one (older than the configured
// max age) is recomputed first, as is any fetch with forceCompute set.
func (s *Service) Fetch(ctx context.Context, ownerID string, limit int, forceCompute bool) (*FetchResult, error) {
	if limit <= 0 {
		limit = s.cfg.Limit
	}

	snap, err := s.calculator.Latest(ownerID)
	if err != nil {
		return nil, err
	}

	if forceCompute || state.IsStale(snap, s.cfg.SnapshotMaxAge) {
		snap, err = s.calculator.Compute(ownerID, s.cfg.WindowDays, nil)
		if err != nil {
			return nil, err
		}
	}

	suggestions := s.generator.Generate(ctx, ownerID, snap, limit)
	if suggestions == nil {
		suggestions = []*Suggestion{}
	}
	return &FetchResult{Suggestions: suggestions, Snapshot: snap}, nil
}

// Get returns one event, ownership checked.
func (s *Service) Get(eventID, ownerID string) (*store.SuggestionEvent, error) {
	event, err := s.store.GetSuggestionEvent(eventID)
	if err != nil {
		return nil, err
	}
	if event == nil || event.OwnerID != ownerID {
		return nil, fmt.Errorf("suggestion %s: %w", eventID, perrors.ErrNotFound)
	}
	return event, nil
}

// Respond records the owner's response to an event. ACCEPTED runs the
// applier first: if the mutation fails, no response is recorded and the user
// can retry. Every event takes at most one response.
func (s *Service) Respond(eventID, ownerID, response, responsePayloadJSON string) error {
	switch response {
	case store.ResponseAccepted, store.ResponseDismissed, store.ResponsePostponed, store.ResponseIgnoredTimeout:
	default:
		return fmt.Errorf("unknown response %q: %w", response, perrors.ErrInvalidInput)
	}

	if response == store.ResponseAccepted {
		if err := s.applier.Apply(eventID, ownerID, responsePayloadJSON); err != nil {
			return err
		}
		s.metrics.RecordResponse(response)
		return nil
	}

	event, err := s.Get(eventID, ownerID)
	if err != nil {
		return err
	}
	if event.Response != "" {
		return perrors.ErrAlreadyResponded
	}
	if err := s.store.RecordResponse(eventID, response, responsePayloadJSON); err != nil {
		return err
	}
	s.metrics.RecordResponse(response)
	return nil
}

// History returns the owner's suggestions, newest first. Ignored (timeout)
// events are hidden unless includeIgnored is set.
func (s *Service) History(ownerID string, limit int, includeIgnored bool) ([]*store.SuggestionEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultHistoryLimit
	}
	return s.store.ListSuggestionHistory(ownerID, limit, includeIgnored)
}

// Stats aggregates the owner's response counts and rates.
type Stats struct {
	Total          int     `json:"total"`
	Accepted       int     `json:"accepted"`
	Dismissed      int     `json:"dismissed"`
	Postponed      int     `json:"postponed"`
	Ignored        int     `json:"ignored"`
	AcceptanceRate float64 `json:"acceptanceRate"`
	DismissalRate  float64 `json:"dismissalRate"`
}

// Stats returns the owner's suggestion response statistics.
func (s *Service) Stats(ownerID string) (*Stats, error) {
	raw, err := s.store.GetSuggestionStats(ownerID)
	if err != nil {
		return nil, err
	}
	out := &Stats{
		Total:     raw.Total,
		Accepted:  raw.Accepted,
		Dismissed: raw.Dismissed,
		Postponed: raw.Postponed,
		Ignored:   raw.Ignored,
	}
	if raw.Total > 0 {
		out.AcceptanceRate = float64(raw.Accepted) / float64(raw.Total)
		out.DismissalRate = float64(raw.Dismissed) / float64(raw.Total)
	}
	return out, nil
}
