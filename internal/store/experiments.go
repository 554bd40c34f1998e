package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Experiment statuses.
const (
	ExperimentStatusDraft     = "DRAFT"
	ExperimentStatusRunning   = "RUNNING"
	ExperimentStatusPaused    = "PAUSED"
	ExperimentStatusCompleted = "COMPLETED"
)

// Experiment is a named A/B test.
type Experiment struct {
	ID          string
	Key         string
	Name        string
	Description string
	Status      string
	StartedAt   int64 // unix ms, 0 = not started
	EndedAt     int64
	CreatedAt   int64
}

// ExperimentVariant is one arm of an experiment with an integer weight.
type ExperimentVariant struct {
	ID           string
	ExperimentID string
	Key          string
	Name         string
	Weight       int
	ConfigJSON   string // nullable
	CreatedAt    int64
}

// ExperimentAssignment permanently binds an owner to a variant.
type ExperimentAssignment struct {
	ID           string
	ExperimentID string
	OwnerID      string
	VariantKey   string
	AssignedAt   int64
}

// CreateExperiment persists a new experiment in DRAFT status.
func (s *Store) CreateExperiment(e *Experiment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}
	if e.Status == "" {
		e.Status = ExperimentStatusDraft
	}

	_, err := s.db.Exec(`INSERT INTO experiments (id, key, name, description, status, started_at, ended_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Key, e.Name, nullStr(e.Description), e.Status,
		nullInt(e.StartedAt), nullInt(e.EndedAt), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create experiment: %w", err)
	}
	return nil
}

// GetExperimentByKey retrieves an experiment by key, nil when not found.
func (s *Store) GetExperimentByKey(key string) (*Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getExperiment(`SELECT id, key, name, description, status, started_at, ended_at, created_at
		FROM experiments WHERE key = ?`, key)
}

// GetExperiment retrieves an experiment by ID, nil when not found.
func (s *Store) GetExperiment(id string) (*Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getExperiment(`SELECT id, key, name, description, status, started_at, ended_at, created_at
		FROM experiments WHERE id = ?`, id)
}

func (s *Store) getExperiment(query string, arg any) (*Experiment, error) {
	e := &Experiment{}
	var desc sql.NullString
	var started, ended sql.NullInt64
	err := s.db.QueryRow(query, arg).
		Scan(&e.ID, &e.Key, &e.Name, &desc, &e.Status, &started, &ended, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}
	e.Description = desc.String
	e.StartedAt = started.Int64
	e.EndedAt = ended.Int64
	return e, nil
}

// AddVariant persists a new variant of an experiment.
func (s *Store) AddVariant(v *ExperimentVariant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt == 0 {
		v.CreatedAt = time.Now().UnixMilli()
	}

	_, err := s.db.Exec(`INSERT INTO experiment_variants (id, experiment_id, key, name, weight, config_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.ExperimentID, v.Key, v.Name, v.Weight, nullStr(v.ConfigJSON), v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add variant: %w", err)
	}
	return nil
}

// ListVariants returns an experiment's variants in creation order. The order
// is fixed: bucketing walks it accumulating weights.
func (s *Store) ListVariants(experimentID string) ([]*ExperimentVariant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, experiment_id, key, name, weight, config_json, created_at
		FROM experiment_variants WHERE experiment_id = ? ORDER BY created_at ASC, key ASC`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list variants: %w", err)
	}
	defer rows.Close()

	var out []*ExperimentVariant
	for rows.Next() {
		v := &ExperimentVariant{}
		var cfg sql.NullString
		if err := rows.Scan(&v.ID, &v.ExperimentID, &v.Key, &v.Name, &v.Weight, &cfg, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		v.ConfigJSON = cfg.String
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating variants: %w", err)
	}
	return out, nil
}

// UpdateExperimentStatus transitions an experiment, stamping started/ended.
func (s *Store) UpdateExperimentStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	var query string
	switch status {
	case ExperimentStatusRunning:
		query = `UPDATE experiments SET status = ?, started_at = ? WHERE id = ?`
	case ExperimentStatusCompleted:
		query = `UPDATE experiments SET status = ?, ended_at = ? WHERE id = ?`
	default:
		res, err := s.db.Exec(`UPDATE experiments SET status = ? WHERE id = ?`, status, id)
		return checkExperimentUpdate(res, err, id)
	}

	res, err := s.db.Exec(query, status, now, id)
	return checkExperimentUpdate(res, err, id)
}

func checkExperimentUpdate(res sql.Result, err error, id string) error {
	if err != nil {
		return fmt.Errorf("failed to update experiment status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("experiment not found: %s", id)
	}
	return nil
}

// ListRunningExperiments returns all RUNNING experiments.
func (s *Store) ListRunningExperiments() ([]*Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, key, name, description, status, started_at, ended_at, created_at
		FROM experiments WHERE status = ?`, ExperimentStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("failed to list running experiments: %w", err)
	}
	defer rows.Close()

	var out []*Experiment
	for rows.Next() {
		e := &Experiment{}
		var desc sql.NullString
		var started, ended sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Key, &e.Name, &desc, &e.Status, &started, &ended, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		e.Description = desc.String
		e.StartedAt = started.Int64
		e.EndedAt = ended.Int64
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating experiments: %w", err)
	}
	return out, nil
}

// GetAssignment returns the owner's persisted assignment for an experiment,
// nil when none exists.
func (s *Store) GetAssignment(experimentID, ownerID string) (*ExperimentAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a := &ExperimentAssignment{}
	err := s.db.QueryRow(`SELECT id, experiment_id, owner_id, variant_key, assigned_at
		FROM experiment_assignments WHERE experiment_id = ? AND owner_id = ?`,
		experimentID, ownerID).
		Scan(&a.ID, &a.ExperimentID, &a.OwnerID, &a.VariantKey, &a.AssignedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

// SaveAssignment persists a new owner-variant binding.
func (s *Store) SaveAssignment(a *ExperimentAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AssignedAt == 0 {
		a.AssignedAt = time.Now().UnixMilli()
	}

	_, err := s.db.Exec(`INSERT INTO experiment_assignments (id, experiment_id, owner_id, variant_key, assigned_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.ExperimentID, a.OwnerID, a.VariantKey, a.AssignedAt)
	if err != nil {
		return fmt.Errorf("failed to save assignment: %w", err)
	}
	return nil
}

// CountAssignmentsByVariant returns assignment counts keyed by variant key.
func (s *Store) CountAssignmentsByVariant(experimentID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT variant_key, COUNT(*) FROM experiment_assignments
		WHERE experiment_id = ? GROUP BY variant_key`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("failed to count assignments: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("failed to scan assignment count: %w", err)
		}
		out[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignment counts: %w", err)
	}
	return out, nil
}
