package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task statuses. DONE and CANCELLED are terminal.
const (
	TaskStatusTodo       = "TODO"
	TaskStatusInProgress = "IN_PROGRESS"
	TaskStatusDone       = "DONE"
	TaskStatusCancelled  = "CANCELLED"
)

// Origin types for tasks created by the engine itself.
const (
	OriginSuggestion = "GENERATED_FROM_SUGGESTION"
)

// Task represents a task in the database.
type Task struct {
	ID               string
	OwnerID          string
	Title            string
	Status           string
	Priority         int
	EffortMin        int    // minutes, 0 = unset
	DueAt            int64  // unix ms, 0 = no due date
	PostponeCount    int
	QuarterGoalID    string // nullable
	PlannedWeekStart string // date string, nullable
	WeeklyPlanID     string // nullable
	PlannedDate      string // date string, nullable
	DailyPlanID      string // nullable
	OriginType       string // nullable
	OriginID         string // nullable
	CreatedAt        int64  // unix ms
	UpdatedAt        int64  // unix ms
}

const taskColumns = `id, owner_id, title, status, priority, effort_min, due_at,
	postpone_count, quarter_goal_id, planned_week_start, weekly_plan_id,
	planned_date, daily_plan_id, origin_type, origin_id, created_at, updated_at`

// SaveTask inserts or updates a task.
func (s *Store) SaveTask(t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UnixMilli()
	if t.CreatedAt == 0 {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	query := `
	INSERT OR REPLACE INTO tasks (` + taskColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		t.ID, t.OwnerID, t.Title, t.Status, t.Priority,
		nullInt(int64(t.EffortMin)), nullInt(t.DueAt), t.PostponeCount,
		nullStr(t.QuarterGoalID), nullStr(t.PlannedWeekStart), nullStr(t.WeeklyPlanID),
		nullStr(t.PlannedDate), nullStr(t.DailyPlanID),
		nullStr(t.OriginType), nullStr(t.OriginID),
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID. Returns nil when not found.
func (s *Store) GetTask(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	t := &Task{}
	var effort, due sql.NullInt64
	var goal, week, wplan, pdate, dplan, otype, oid sql.NullString

	err := row.Scan(
		&t.ID, &t.OwnerID, &t.Title, &t.Status, &t.Priority, &effort, &due,
		&t.PostponeCount, &goal, &week, &wplan, &pdate, &dplan, &otype, &oid,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if effort.Valid {
		t.EffortMin = int(effort.Int64)
	}
	if due.Valid {
		t.DueAt = due.Int64
	}
	t.QuarterGoalID = goal.String
	t.PlannedWeekStart = week.String
	t.WeeklyPlanID = wplan.String
	t.PlannedDate = pdate.String
	t.DailyPlanID = dplan.String
	t.OriginType = otype.String
	t.OriginID = oid.String
	return t, nil
}

func (s *Store) queryTasks(query string, args ...any) ([]*Task, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// CountTasksCreatedSince counts an owner's tasks created at or after since.
func (s *Store) CountTasksCreatedSince(ownerID string, since int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countTasks(`SELECT COUNT(*) FROM tasks WHERE owner_id = ? AND created_at >= ?`, ownerID, since)
}

// CountCompletedCreatedSince counts completed tasks created at or after since.
func (s *Store) CountCompletedCreatedSince(ownerID string, since int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countTasks(`SELECT COUNT(*) FROM tasks WHERE owner_id = ? AND created_at >= ? AND status = ?`,
		ownerID, since, TaskStatusDone)
}

// CountOverdueTasks counts non-terminal tasks due strictly before now.
func (s *Store) CountOverdueTasks(ownerID string, now int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countTasks(`SELECT COUNT(*) FROM tasks
		WHERE owner_id = ? AND status IN (?, ?) AND due_at IS NOT NULL AND due_at < ?`,
		ownerID, TaskStatusTodo, TaskStatusInProgress, now)
}

// SumPostponeCounts sums postpone counters of tasks updated at or after since.
// A multi-postpone task contributes its full counter.
func (s *Store) SumPostponeCounts(ownerID string, since int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum sql.NullInt64
	err := s.db.QueryRow(`SELECT SUM(postpone_count) FROM tasks
		WHERE owner_id = ? AND updated_at >= ? AND postpone_count > 0`,
		ownerID, since).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum postpone counts: %w", err)
	}
	return int(sum.Int64), nil
}

// LastTaskActivity returns the most recent task update time for the owner.
// ok is false when the owner has no tasks at all.
func (s *Store) LastTaskActivity(ownerID string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(updated_at) FROM tasks WHERE owner_id = ?`, ownerID).Scan(&last)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get last task activity: %w", err)
	}
	return last.Int64, last.Valid, nil
}

// CountWeekTasks counts non-done tasks planned for the given week.
func (s *Store) CountWeekTasks(ownerID, weekStart string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countTasks(`SELECT COUNT(*) FROM tasks
		WHERE owner_id = ? AND planned_week_start = ? AND status != ?`,
		ownerID, weekStart, TaskStatusDone)
}

// ListWeekTasks returns non-terminal tasks planned for the given week,
// lowest priority first, then oldest first.
func (s *Store) ListWeekTasks(ownerID, weekStart string) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryTasks(`SELECT `+taskColumns+` FROM tasks
		WHERE owner_id = ? AND planned_week_start = ? AND status NOT IN (?, ?)
		ORDER BY priority ASC, created_at ASC`,
		ownerID, weekStart, TaskStatusDone, TaskStatusCancelled)
}

// FindMostPostponedTask returns the open task with the highest postpone count
// at or above min, least recently touched first. Nil when none qualifies.
func (s *Store) FindMostPostponedTask(ownerID string, min int) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks, err := s.queryTasks(`SELECT `+taskColumns+` FROM tasks
		WHERE owner_id = ? AND status IN (?, ?) AND postpone_count >= ?
		ORDER BY postpone_count DESC, updated_at ASC LIMIT 1`,
		ownerID, TaskStatusTodo, TaskStatusInProgress, min)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return tasks[0], nil
}

// ListEasyTasks returns open tasks with effort at or below maxEffortMin,
// highest priority first, shortest first.
func (s *Store) ListEasyTasks(ownerID string, maxEffortMin, limit int) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryTasks(`SELECT `+taskColumns+` FROM tasks
		WHERE owner_id = ? AND status IN (?, ?) AND effort_min IS NOT NULL AND effort_min <= ?
		ORDER BY priority DESC, effort_min ASC LIMIT ?`,
		ownerID, TaskStatusTodo, TaskStatusInProgress, maxEffortMin, limit)
}

// MoveTasksToWeek re-plans the given tasks into the week starting weekStart.
func (s *Store) MoveTasksToWeek(ownerID string, taskIDs []string, weekStart, weeklyPlanID string) error {
	if len(taskIDs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	query := `UPDATE tasks SET planned_week_start = ?, weekly_plan_id = ?, updated_at = ?
		WHERE owner_id = ? AND id IN (` + placeholders(len(taskIDs)) + `)`
	args := []any{weekStart, weeklyPlanID, now, ownerID}
	for _, id := range taskIDs {
		args = append(args, id)
	}

	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to move tasks to week: %w", err)
	}
	return nil
}

// AssignTasksToDay adds the given tasks to the daily plan for date.
func (s *Store) AssignTasksToDay(ownerID string, taskIDs []string, date, dailyPlanID string) error {
	if len(taskIDs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	query := `UPDATE tasks SET planned_date = ?, daily_plan_id = ?, updated_at = ?
		WHERE owner_id = ? AND id IN (` + placeholders(len(taskIDs)) + `)`
	args := []any{date, dailyPlanID, now, ownerID}
	for _, id := range taskIDs {
		args = append(args, id)
	}

	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to assign tasks to day: %w", err)
	}
	return nil
}

// ClearPlanningForGoals removes week and day assignments from non-terminal
// tasks belonging to the given goals.
func (s *Store) ClearPlanningForGoals(ownerID string, goalIDs []string) error {
	if len(goalIDs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	query := `UPDATE tasks
		SET planned_week_start = NULL, weekly_plan_id = NULL,
		    planned_date = NULL, daily_plan_id = NULL, updated_at = ?
		WHERE owner_id = ? AND status NOT IN (?, ?)
		  AND quarter_goal_id IN (` + placeholders(len(goalIDs)) + `)`
	args := []any{now, ownerID, TaskStatusDone, TaskStatusCancelled}
	for _, id := range goalIDs {
		args = append(args, id)
	}

	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to clear planning for goals: %w", err)
	}
	return nil
}

// ReplaceTaskWithSteps cancels the original task and creates all replacement
// step tasks in a single transaction: either everything happens or nothing.
func (s *Store) ReplaceTaskWithSteps(originalID string, steps []*Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	res, err := tx.Exec(`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND status NOT IN (?, ?)`,
		TaskStatusCancelled, now, originalID, TaskStatusDone, TaskStatusCancelled)
	if err != nil {
		return fmt.Errorf("failed to cancel original task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("original task not found or already terminal: %s", originalID)
	}

	for _, t := range steps {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		t.CreatedAt = now
		t.UpdatedAt = now
		_, err := tx.Exec(`INSERT INTO tasks (`+taskColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.OwnerID, t.Title, t.Status, t.Priority,
			nullInt(int64(t.EffortMin)), nullInt(t.DueAt), t.PostponeCount,
			nullStr(t.QuarterGoalID), nullStr(t.PlannedWeekStart), nullStr(t.WeeklyPlanID),
			nullStr(t.PlannedDate), nullStr(t.DailyPlanID),
			nullStr(t.OriginType), nullStr(t.OriginID),
			t.CreatedAt, t.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create step task: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit microstep transaction: %w", err)
	}
	return nil
}

func (s *Store) countTasks(query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return n, nil
}

func placeholders(n int) string {
	out := make([]byte, 0, 2*n)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
