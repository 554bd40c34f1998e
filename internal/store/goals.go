package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// QuarterGoal represents a quarterly goal in the database.
type QuarterGoal struct {
	ID        string
	OwnerID   string
	VisionID  string // nullable
	Title     string
	Year      int
	Cadence   string // Q1..Q4
	Archived  bool
	CreatedAt int64
	UpdatedAt int64
}

// GoalTaskCount pairs a goal with its open-task count.
type GoalTaskCount struct {
	Goal      *QuarterGoal
	OpenTasks int
}

// SaveGoal inserts or updates a quarter goal.
func (s *Store) SaveGoal(g *QuarterGoal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().UnixMilli()
	if g.CreatedAt == 0 {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	_, err := s.db.Exec(`
	INSERT OR REPLACE INTO quarter_goals (id, owner_id, vision_id, title, year, cadence, archived, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.OwnerID, nullStr(g.VisionID), g.Title, g.Year, g.Cadence, boolInt(g.Archived), g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save goal: %w", err)
	}
	return nil
}

// CountQuarterGoals counts non-archived goals in the given quarter.
func (s *Store) CountQuarterGoals(ownerID string, year int, cadence string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM quarter_goals
		WHERE owner_id = ? AND year = ? AND cadence = ? AND archived = 0`,
		ownerID, year, cadence).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count quarter goals: %w", err)
	}
	return n, nil
}

// ListQuarterGoalsWithTaskCounts returns the quarter's non-archived goals with
// their open-task counts, most-tasked first.
func (s *Store) ListQuarterGoalsWithTaskCounts(ownerID string, year int, cadence string) ([]*GoalTaskCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
	SELECT g.id, g.owner_id, g.vision_id, g.title, g.year, g.cadence, g.archived, g.created_at, g.updated_at,
	       (SELECT COUNT(*) FROM tasks t
	        WHERE t.quarter_goal_id = g.id AND t.status NOT IN (?, ?)) AS open_tasks
	FROM quarter_goals g
	WHERE g.owner_id = ? AND g.year = ? AND g.cadence = ? AND g.archived = 0
	ORDER BY open_tasks DESC, g.created_at ASC`,
		TaskStatusDone, TaskStatusCancelled, ownerID, year, cadence)
	if err != nil {
		return nil, fmt.Errorf("failed to list quarter goals: %w", err)
	}
	defer rows.Close()

	var out []*GoalTaskCount
	for rows.Next() {
		g := &QuarterGoal{}
		var vision sql.NullString
		var archived, openTasks int
		if err := rows.Scan(&g.ID, &g.OwnerID, &vision, &g.Title, &g.Year, &g.Cadence, &archived, &g.CreatedAt, &g.UpdatedAt, &openTasks); err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		g.VisionID = vision.String
		g.Archived = archived != 0
		out = append(out, &GoalTaskCount{Goal: g, OpenTasks: openTasks})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating goals: %w", err)
	}
	return out, nil
}

// ListGoalsForVision returns up to limit non-archived goals tied to a vision,
// newest first.
func (s *Store) ListGoalsForVision(visionID string, limit int) ([]*QuarterGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, owner_id, vision_id, title, year, cadence, archived, created_at, updated_at
		FROM quarter_goals
		WHERE vision_id = ? AND archived = 0
		ORDER BY created_at DESC LIMIT ?`, visionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals for vision: %w", err)
	}
	defer rows.Close()

	var out []*QuarterGoal
	for rows.Next() {
		g := &QuarterGoal{}
		var vision sql.NullString
		var archived int
		if err := rows.Scan(&g.ID, &g.OwnerID, &vision, &g.Title, &g.Year, &g.Cadence, &archived, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		g.VisionID = vision.String
		g.Archived = archived != 0
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating goals: %w", err)
	}
	return out, nil
}
