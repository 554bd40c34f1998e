package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkTask(t *testing.T, s *Store, task *Task) *Task {
	t.Helper()
	if task.Status == "" {
		task.Status = TaskStatusTodo
	}
	require.NoError(t, s.SaveTask(task))
	return task
}

func TestSaveTask_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	task := mkTask(t, s, &Task{
		OwnerID:       "owner-1",
		Title:         "write report",
		Priority:      2,
		EffortMin:     45,
		DueAt:         time.Now().Add(24 * time.Hour).UnixMilli(),
		PostponeCount: 1,
	})

	got, err := s.GetTask(task.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "write report", got.Title)
	assert.Equal(t, TaskStatusTodo, got.Status)
	assert.Equal(t, 45, got.EffortMin)
	assert.Equal(t, 1, got.PostponeCount)
	assert.Empty(t, got.QuarterGoalID)
}

func TestGetTask_NotFound(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetTask("no-such-task")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCountOverdueTasks(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UnixMilli()
	past := now - 1000
	future := now + 100000

	mkTask(t, s, &Task{OwnerID: "o", Title: "overdue", DueAt: past})
	mkTask(t, s, &Task{OwnerID: "o", Title: "overdue done", Status: TaskStatusDone, DueAt: past})
	mkTask(t, s, &Task{OwnerID: "o", Title: "overdue cancelled", Status: TaskStatusCancelled, DueAt: past})
	mkTask(t, s, &Task{OwnerID: "o", Title: "future", DueAt: future})
	mkTask(t, s, &Task{OwnerID: "o", Title: "no due"})
	mkTask(t, s, &Task{OwnerID: "other", Title: "other owner", DueAt: past})

	n, err := s.CountOverdueTasks("o", now)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only non-terminal past-due tasks of the owner count")
}

func TestLastTaskActivity_NoTasks(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.LastTaskActivity("empty-owner")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindMostPostponedTask(t *testing.T) {
	s := newTestStore(t)

	mkTask(t, s, &Task{OwnerID: "o", Title: "once", PostponeCount: 1})
	worst := mkTask(t, s, &Task{OwnerID: "o", Title: "worst", PostponeCount: 5})
	mkTask(t, s, &Task{OwnerID: "o", Title: "done but worse", Status: TaskStatusDone, PostponeCount: 9})

	got, err := s.FindMostPostponedTask("o", 3)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, worst.ID, got.ID)

	none, err := s.FindMostPostponedTask("o", 6)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestListWeekTasks_OrderAndFilter(t *testing.T) {
	s := newTestStore(t)
	week := "2026-08-24"

	lo := mkTask(t, s, &Task{OwnerID: "o", Title: "low", Priority: 1, PlannedWeekStart: week})
	hi := mkTask(t, s, &Task{OwnerID: "o", Title: "high", Priority: 5, PlannedWeekStart: week})
	mkTask(t, s, &Task{OwnerID: "o", Title: "done", Status: TaskStatusDone, Priority: 1, PlannedWeekStart: week})
	mkTask(t, s, &Task{OwnerID: "o", Title: "elsewhere", Priority: 1, PlannedWeekStart: "2026-08-31"})

	tasks, err := s.ListWeekTasks("o", week)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, lo.ID, tasks[0].ID, "lowest priority first")
	assert.Equal(t, hi.ID, tasks[1].ID)
}

func TestMoveTasksToWeek(t *testing.T) {
	s := newTestStore(t)
	task := mkTask(t, s, &Task{OwnerID: "o", Title: "deferred", PlannedWeekStart: "2026-08-24"})

	planID, err := s.UpsertWeeklyPlan("o", "2026-08-31")
	require.NoError(t, err)
	require.NoError(t, s.MoveTasksToWeek("o", []string{task.ID}, "2026-08-31", planID))

	got, err := s.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-31", got.PlannedWeekStart)
	assert.Equal(t, planID, got.WeeklyPlanID)
}

func TestReplaceTaskWithSteps(t *testing.T) {
	s := newTestStore(t)
	orig := mkTask(t, s, &Task{OwnerID: "o", Title: "big task", PostponeCount: 4})

	steps := []*Task{
		{OwnerID: "o", Title: "big task - 準備", Status: TaskStatusTodo, EffortMin: 15, OriginType: OriginSuggestion, OriginID: "evt-1"},
		{OwnerID: "o", Title: "big task - 実行", Status: TaskStatusTodo, EffortMin: 30, OriginType: OriginSuggestion, OriginID: "evt-1"},
		{OwnerID: "o", Title: "big task - 完了", Status: TaskStatusTodo, EffortMin: 15, OriginType: OriginSuggestion, OriginID: "evt-1"},
	}
	require.NoError(t, s.ReplaceTaskWithSteps(orig.ID, steps))

	got, err := s.GetTask(orig.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusCancelled, got.Status)

	for _, step := range steps {
		created, err := s.GetTask(step.ID)
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, OriginSuggestion, created.OriginType)
	}
}

func TestReplaceTaskWithSteps_TerminalOriginal(t *testing.T) {
	s := newTestStore(t)
	orig := mkTask(t, s, &Task{OwnerID: "o", Title: "already done", Status: TaskStatusDone})

	step := &Task{OwnerID: "o", Title: "step", Status: TaskStatusTodo}
	err := s.ReplaceTaskWithSteps(orig.ID, []*Task{step})
	require.Error(t, err)

	// Nothing from the failed transaction should be visible.
	created, err := s.GetTask(step.ID)
	require.NoError(t, err)
	assert.Nil(t, created)
}

func TestUpsertWeeklyPlan_Idempotent(t *testing.T) {
	s := newTestStore(t)

	first, err := s.UpsertWeeklyPlan("o", "2026-08-24")
	require.NoError(t, err)
	second, err := s.UpsertWeeklyPlan("o", "2026-08-24")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := s.UpsertWeeklyPlan("o", "2026-08-31")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestWeekStart(t *testing.T) {
	// 2026-08-26 is a Wednesday, week starts Monday 2026-08-24.
	wed := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-08-24", WeekStart(wed))

	// Sunday belongs to the preceding Monday.
	sun := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-08-24", WeekStart(sun))

	mon := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-08-24", WeekStart(mon))

	next, err := NextWeekStart("2026-08-24")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-31", next)
}
