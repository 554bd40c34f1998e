package experiment

import (
	"fmt"

	"github.com/rs/zerolog"

	perrors "github.com/pace-labs/pace-engine/internal/errors"
	"github.com/pace-labs/pace-engine/internal/store"
)

// Service is the admin surface for managing experiments.
type Service struct {
	store  *store.Store
	logger zerolog.Logger
}

// NewService creates an experiment admin service.
func NewService(s *store.Store, logger zerolog.Logger) *Service {
	return &Service{store: s, logger: logger.With().Str("component", "experiment-admin").Logger()}
}

// Create registers a new experiment in DRAFT status. Keys are unique.
func (s *Service) Create(key, name, description string) (*store.Experiment, error) {
	if key == "" || name == "" {
		return nil, fmt.Errorf("experiment key and name are required: %w", perrors.ErrInvalidInput)
	}
	existing, err := s.store.GetExperimentByKey(key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("experiment key already exists: %s: %w", key, perrors.ErrInvalidInput)
	}

	exp := &store.Experiment{Key: key, Name: name, Description: description}
	if err := s.store.CreateExperiment(exp); err != nil {
		return nil, err
	}
	s.logger.Info().Str("experiment", key).Msg("created experiment")
	return exp, nil
}

// AddVariant attaches a weighted variant to an experiment that has not
// started yet.
func (s *Service) AddVariant(experimentID, key, name string, weight int, configJSON string) (*store.ExperimentVariant, error) {
	if key == "" || weight < 0 || weight > 100 {
		return nil, fmt.Errorf("variant key required and weight must be 0-100: %w", perrors.ErrInvalidInput)
	}
	exp, err := s.store.GetExperiment(experimentID)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, perrors.ErrNotFound
	}
	if exp.Status != store.ExperimentStatusDraft {
		return nil, fmt.Errorf("variants can only be added in DRAFT: %w", perrors.ErrInvalidInput)
	}

	v := &store.ExperimentVariant{ExperimentID: experimentID, Key: key, Name: name, Weight: weight, ConfigJSON: configJSON}
	if err := s.store.AddVariant(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Start transitions an experiment to RUNNING. Variant weights must sum to
// exactly 100, otherwise bucketing would leave owners unreachable or
// double-covered.
func (s *Service) Start(experimentID string) error {
	exp, err := s.store.GetExperiment(experimentID)
	if err != nil {
		return err
	}
	if exp == nil {
		return perrors.ErrNotFound
	}

	variants, err := s.store.ListVariants(experimentID)
	if err != nil {
		return err
	}
	total := 0
	for _, v := range variants {
		total += v.Weight
	}
	if total != 100 {
		return fmt.Errorf("variant weights must sum to 100, got %d: %w", total, perrors.ErrInvalidInput)
	}

	if err := s.store.UpdateExperimentStatus(experimentID, store.ExperimentStatusRunning); err != nil {
		return err
	}
	s.logger.Info().Str("experiment", exp.Key).Msg("started experiment")
	return nil
}

// Pause suspends a running experiment. Existing assignments keep serving.
func (s *Service) Pause(experimentID string) error {
	return s.store.UpdateExperimentStatus(experimentID, store.ExperimentStatusPaused)
}

// Complete ends an experiment permanently.
func (s *Service) Complete(experimentID string) error {
	return s.store.UpdateExperimentStatus(experimentID, store.ExperimentStatusCompleted)
}

// VariantSummary is one variant with its live assignment count.
type VariantSummary struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Weight      int    `json:"weight"`
	Assignments int    `json:"assignments"`
}

// Summary describes an experiment and the distribution of its assignments.
type Summary struct {
	Experiment *store.Experiment `json:"experiment"`
	Variants   []VariantSummary  `json:"variants"`
	Total      int               `json:"totalAssignments"`
}

// Summarize reports an experiment's variants and assignment counts.
func (s *Service) Summarize(experimentKey string) (*Summary, error) {
	exp, err := s.store.GetExperimentByKey(experimentKey)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, perrors.ErrNotFound
	}

	variants, err := s.store.ListVariants(exp.ID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountAssignmentsByVariant(exp.ID)
	if err != nil {
		return nil, err
	}

	out := &Summary{Experiment: exp}
	for _, v := range variants {
		n := counts[v.Key]
		out.Total += n
		out.Variants = append(out.Variants, VariantSummary{
			Key: v.Key, Name: v.Name, Weight: v.Weight, Assignments: n,
		})
	}
	return out, nil
}
