package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UpsertWeeklyPlan returns the id of the owner's weekly plan container for
// weekStart, creating it if missing.
func (s *Store) UpsertWeeklyPlan(ownerID, weekStart string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	err := s.db.QueryRow(`SELECT id FROM weekly_plans WHERE owner_id = ? AND week_start = ?`,
		ownerID, weekStart).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to look up weekly plan: %w", err)
	}

	id = uuid.NewString()
	_, err = s.db.Exec(`INSERT INTO weekly_plans (id, owner_id, week_start, created_at) VALUES (?, ?, ?, ?)`,
		id, ownerID, weekStart, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to create weekly plan: %w", err)
	}
	return id, nil
}

// UpsertDailyPlan returns the id of the owner's daily plan container for date,
// creating it if missing.
func (s *Store) UpsertDailyPlan(ownerID, date string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	err := s.db.QueryRow(`SELECT id FROM daily_plans WHERE owner_id = ? AND plan_date = ?`,
		ownerID, date).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to look up daily plan: %w", err)
	}

	id = uuid.NewString()
	_, err = s.db.Exec(`INSERT INTO daily_plans (id, owner_id, plan_date, created_at) VALUES (?, ?, ?, ?)`,
		id, ownerID, date, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to create daily plan: %w", err)
	}
	return id, nil
}
