package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StateSnapshot is an immutable record of one behavioral-state computation.
type StateSnapshot struct {
	ID                string
	OwnerID           string
	WindowDays        int
	ScoresJSON        string
	PrimaryState      string
	PrimaryConfidence int
	TopSignalsJSON    string
	SelfReportJSON    string // nullable
	CreatedAt         int64
}

const snapshotColumns = `id, owner_id, window_days, scores_json, primary_state,
	primary_confidence, top_signals_json, self_report_json, created_at`

// SaveSnapshot persists a newly computed snapshot. Snapshots are never updated.
func (s *Store) SaveSnapshot(snap *StateSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.CreatedAt == 0 {
		snap.CreatedAt = time.Now().UnixMilli()
	}

	_, err := s.db.Exec(`INSERT INTO state_snapshots (`+snapshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.OwnerID, snap.WindowDays, snap.ScoresJSON, snap.PrimaryState,
		snap.PrimaryConfidence, snap.TopSignalsJSON, nullStr(snap.SelfReportJSON), snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the owner's most recent snapshot, nil when none.
func (s *Store) LatestSnapshot(ownerID string) (*StateSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+snapshotColumns+` FROM state_snapshots
		WHERE owner_id = ? ORDER BY created_at DESC LIMIT 1`, ownerID)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return snap, nil
}

// SnapshotHistory returns up to limit snapshots, newest first.
func (s *Store) SnapshotHistory(ownerID string, limit int) ([]*StateSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT `+snapshotColumns+` FROM state_snapshots
		WHERE owner_id = ? ORDER BY created_at DESC LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot history: %w", err)
	}
	defer rows.Close()

	var out []*StateSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return out, nil
}

// GetSnapshot retrieves a snapshot by ID. Returns nil when not found.
func (s *Store) GetSnapshot(id string) (*StateSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+snapshotColumns+` FROM state_snapshots WHERE id = ?`, id)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return snap, nil
}

func scanSnapshot(row rowScanner) (*StateSnapshot, error) {
	snap := &StateSnapshot{}
	var selfReport sql.NullString
	err := row.Scan(&snap.ID, &snap.OwnerID, &snap.WindowDays, &snap.ScoresJSON,
		&snap.PrimaryState, &snap.PrimaryConfidence, &snap.TopSignalsJSON,
		&selfReport, &snap.CreatedAt)
	if err != nil {
		return nil, err
	}
	snap.SelfReportJSON = selfReport.String
	return snap, nil
}
