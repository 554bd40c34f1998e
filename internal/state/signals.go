// Package state computes behavioral-state snapshots from stored activity.
// Signals are extracted over a trailing window, scored against per-state rule
// ladders, and the winning state is persisted as an immutable snapshot.
package state

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/pace-labs/pace-engine/internal/errors"
	"github.com/pace-labs/pace-engine/internal/store"
)

// Signals is everything the scoring rules look at. The self-report fields are
// optional: nil means the owner reported nothing, and the rules skip them.
type Signals struct {
	CompletionRate    float64 `json:"completionRate"`
	OverdueCount      int     `json:"overdueCount"`
	PostponeCount     int     `json:"postponeCount"`
	InactiveDays      int     `json:"inactiveDays"`
	RejectRate        float64 `json:"suggestionRejectRate"`
	ActiveVisionCount int     `json:"activeVisionCount"`
	WeekTaskCount     int     `json:"weekTaskCount"`

	Capacity   *int `json:"capacity,omitempty"`
	Stress     *int `json:"stress,omitempty"`
	Clarity    *int `json:"clarity,omitempty"`
	Efficacy   *int `json:"efficacy,omitempty"`
	Motivation *int `json:"motivation,omitempty"`
	Annoyance  *int `json:"annoyance,omitempty"`
}

// SelfReport is the optional 0-10 self-assessment attached to a computation.
type SelfReport struct {
	Capacity   *int `json:"capacity,omitempty"`
	Stress     *int `json:"stress,omitempty"`
	Clarity    *int `json:"clarity,omitempty"`
	Efficacy   *int `json:"efficacy,omitempty"`
	Motivation *int `json:"motivation,omitempty"`
	Annoyance  *int `json:"annoyance,omitempty"`
}

// Validate checks every present field is on the 0-10 scale.
func (r *SelfReport) Validate() error {
	check := func(name string, v *int) error {
		if v != nil && (*v < 0 || *v > 10) {
			return fmt.Errorf("self report field %s out of range: %d: %w", name, *v, perrors.ErrInvalidInput)
		}
		return nil
	}
	for _, f := range []struct {
		name string
		v    *int
	}{
		{"capacity", r.Capacity}, {"stress", r.Stress}, {"clarity", r.Clarity},
		{"efficacy", r.Efficacy}, {"motivation", r.Motivation}, {"annoyance", r.Annoyance},
	} {
		if err := check(f.name, f.v); err != nil {
			return err
		}
	}
	return nil
}

// Extractor derives signals from the store.
type Extractor struct {
	store  *store.Store
	logger zerolog.Logger
}

// NewExtractor creates a signal extractor.
func NewExtractor(s *store.Store, logger zerolog.Logger) *Extractor {
	return &Extractor{store: s, logger: logger.With().Str("component", "signals").Logger()}
}

// Extract computes the owner's signals over the trailing window ending at now.
//
// Two edge rules keep new users quiet: with zero tasks in the window the
// completion rate is 1.0 (nothing planned, nothing failed), and with no task
// activity at all inactiveDays is 0.
func (e *Extractor) Extract(ownerID string, windowDays int, now time.Time) (*Signals, error) {
	windowStart := now.AddDate(0, 0, -windowDays).UnixMilli()
	nowMs := now.UnixMilli()

	tasksInWindow, err := e.store.CountTasksCreatedSince(ownerID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to count window tasks: %w", err)
	}
	completed, err := e.store.CountCompletedCreatedSince(ownerID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to count completed tasks: %w", err)
	}
	completionRate := 1.0
	if tasksInWindow > 0 {
		completionRate = float64(completed) / float64(tasksInWindow)
	}

	overdue, err := e.store.CountOverdueTasks(ownerID, nowMs)
	if err != nil {
		return nil, fmt.Errorf("failed to count overdue tasks: %w", err)
	}

	postpones, err := e.store.SumPostponeCounts(ownerID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to sum postpone counts: %w", err)
	}

	lastActivity, hasActivity, err := e.store.LastTaskActivity(ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get last activity: %w", err)
	}
	inactiveDays := 0
	if hasActivity {
		inactiveDays = int((nowMs - lastActivity) / (24 * time.Hour).Milliseconds())
		if inactiveDays < 0 {
			inactiveDays = 0
		}
	}

	responded, err := e.store.CountRespondedSince(ownerID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to count responded suggestions: %w", err)
	}
	rejected, err := e.store.CountRejectedSince(ownerID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to count rejected suggestions: %w", err)
	}
	rejectRate := 0.0
	if responded > 0 {
		rejectRate = float64(rejected) / float64(responded)
	}

	visions, err := e.store.CountActiveVisions(ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count visions: %w", err)
	}

	weekTasks, err := e.store.CountWeekTasks(ownerID, store.WeekStart(now))
	if err != nil {
		return nil, fmt.Errorf("failed to count week tasks: %w", err)
	}

	sig := &Signals{
		CompletionRate:    completionRate,
		OverdueCount:      overdue,
		PostponeCount:     postpones,
		InactiveDays:      inactiveDays,
		RejectRate:        rejectRate,
		ActiveVisionCount: visions,
		WeekTaskCount:     weekTasks,
	}

	e.logger.Debug().
		Str("owner_id", ownerID).
		Float64("completion_rate", completionRate).
		Int("overdue", overdue).
		Int("postpones", postpones).
		Int("inactive_days", inactiveDays).
		Float64("reject_rate", rejectRate).
		Msg("extracted signals")

	return sig, nil
}

// Merge overlays present self-report fields onto the extracted signals.
func (s *Signals) Merge(r *SelfReport) {
	if r == nil {
		return
	}
	if r.Capacity != nil {
		s.Capacity = r.Capacity
	}
	if r.Stress != nil {
		s.Stress = r.Stress
	}
	if r.Clarity != nil {
		s.Clarity = r.Clarity
	}
	if r.Efficacy != nil {
		s.Efficacy = r.Efficacy
	}
	if r.Motivation != nil {
		s.Motivation = r.Motivation
	}
	if r.Annoyance != nil {
		s.Annoyance = r.Annoyance
	}
}
