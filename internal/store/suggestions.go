package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	perrors "github.com/pace-labs/pace-engine/internal/errors"
)

// Suggestion responses.
const (
	ResponseAccepted       = "ACCEPTED"
	ResponseDismissed      = "DISMISSED"
	ResponsePostponed      = "POSTPONED"
	ResponseIgnoredTimeout = "IGNORED_TIMEOUT"
)

// SuggestionEvent is one surfaced suggestion and its (at most one) response.
type SuggestionEvent struct {
	ID                  string
	OwnerID             string
	SuggestionType      string
	StateType           string // nullable
	StateScore          int
	Context             string
	PayloadJSON         string
	SnapshotID          string // nullable
	Title               string
	Message             string
	OptionsJSON         string
	Response            string // nullable; set at most once
	ResponsePayloadJSON string // nullable
	RespondedAt         int64  // unix ms, 0 = not responded
	CreatedAt           int64
}

// SuggestionStats aggregates an owner's response history.
type SuggestionStats struct {
	Total     int
	Accepted  int
	Dismissed int
	Postponed int
	Ignored   int
}

const suggestionColumns = `id, owner_id, suggestion_type, state_type, state_score,
	context, payload_json, snapshot_id, title, message, options_json,
	response, response_payload_json, responded_at, created_at`

// SaveSuggestionEvent persists a newly generated suggestion event.
func (s *Store) SaveSuggestionEvent(e *SuggestionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}

	_, err := s.db.Exec(`INSERT INTO suggestion_events (`+suggestionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.SuggestionType, nullStr(e.StateType), e.StateScore,
		e.Context, e.PayloadJSON, nullStr(e.SnapshotID), e.Title, e.Message, e.OptionsJSON,
		nullStr(e.Response), nullStr(e.ResponsePayloadJSON), nullInt(e.RespondedAt), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save suggestion event: %w", err)
	}
	return nil
}

// GetSuggestionEvent retrieves an event by ID. Returns nil when not found.
func (s *Store) GetSuggestionEvent(id string) (*SuggestionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+suggestionColumns+` FROM suggestion_events WHERE id = ?`, id)
	e, err := scanSuggestion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get suggestion event: %w", err)
	}
	return e, nil
}

// RecordResponse records the event's response exactly once. A second call for
// the same event fails with ErrAlreadyResponded; the guard is the SQL
// predicate, so concurrent responders cannot both win.
func (s *Store) RecordResponse(eventID, response, responsePayloadJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE suggestion_events
		SET response = ?, response_payload_json = ?, responded_at = ?
		WHERE id = ? AND response IS NULL`,
		response, nullStr(responsePayloadJSON), time.Now().UnixMilli(), eventID)
	if err != nil {
		return fmt.Errorf("failed to record response: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		var exists int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM suggestion_events WHERE id = ?`, eventID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check suggestion event: %w", err)
		}
		if exists == 0 {
			return perrors.ErrNotFound
		}
		return perrors.ErrAlreadyResponded
	}
	return nil
}

// CountRespondedSince counts responded suggestions created at or after since.
func (s *Store) CountRespondedSince(ownerID string, since int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM suggestion_events
		WHERE owner_id = ? AND created_at >= ? AND response IS NOT NULL`,
		ownerID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count responded suggestions: %w", err)
	}
	return n, nil
}

// CountRejectedSince counts dismissed-or-ignored suggestions created at or
// after since.
func (s *Store) CountRejectedSince(ownerID string, since int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM suggestion_events
		WHERE owner_id = ? AND created_at >= ? AND response IN (?, ?)`,
		ownerID, since, ResponseDismissed, ResponseIgnoredTimeout).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count rejected suggestions: %w", err)
	}
	return n, nil
}

// ListSuggestionHistory returns up to limit events, newest first. Ignored
// (timeout) events are excluded unless includeIgnored is set.
func (s *Store) ListSuggestionHistory(ownerID string, limit int, includeIgnored bool) ([]*SuggestionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + suggestionColumns + ` FROM suggestion_events WHERE owner_id = ?`
	args := []any{ownerID}
	if !includeIgnored {
		query += ` AND (response IS NULL OR response != ?)`
		args = append(args, ResponseIgnoredTimeout)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestion history: %w", err)
	}
	defer rows.Close()

	var out []*SuggestionEvent
	for rows.Next() {
		e, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan suggestion event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suggestion events: %w", err)
	}
	return out, nil
}

// GetSuggestionStats aggregates the owner's response counts.
func (s *Store) GetSuggestionStats(ownerID string) (*SuggestionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &SuggestionStats{}
	err := s.db.QueryRow(`SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN response = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN response = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN response = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN response = ? THEN 1 ELSE 0 END), 0)
		FROM suggestion_events WHERE owner_id = ?`,
		ResponseAccepted, ResponseDismissed, ResponsePostponed, ResponseIgnoredTimeout, ownerID).
		Scan(&stats.Total, &stats.Accepted, &stats.Dismissed, &stats.Postponed, &stats.Ignored)
	if err != nil {
		return nil, fmt.Errorf("failed to get suggestion stats: %w", err)
	}
	return stats, nil
}

func scanSuggestion(row rowScanner) (*SuggestionEvent, error) {
	e := &SuggestionEvent{}
	var stateType, snapshotID, response, responsePayload sql.NullString
	var respondedAt sql.NullInt64

	err := row.Scan(&e.ID, &e.OwnerID, &e.SuggestionType, &stateType, &e.StateScore,
		&e.Context, &e.PayloadJSON, &snapshotID, &e.Title, &e.Message, &e.OptionsJSON,
		&response, &responsePayload, &respondedAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	e.StateType = stateType.String
	e.SnapshotID = snapshotID.String
	e.Response = response.String
	e.ResponsePayloadJSON = responsePayload.String
	e.RespondedAt = respondedAt.Int64
	return e, nil
}
