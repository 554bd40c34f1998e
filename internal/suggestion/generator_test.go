package suggestion

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pace-labs/pace-engine/internal/ai"
	"github.com/pace-labs/pace-engine/internal/metrics"
	"github.com/pace-labs/pace-engine/internal/resilience"
	"github.com/pace-labs/pace-engine/internal/state"
	"github.com/pace-labs/pace-engine/internal/store"
)

// offlineClient always fails, pushing copy generation onto static fallbacks.
type offlineClient struct{}

func (offlineClient) Complete(context.Context, ai.Request) (*ai.Response, error) {
	return nil, errors.New("model unavailable")
}

func (offlineClient) ModelID() string { return "test-model" }

type fixture struct {
	store     *store.Store
	calc      *state.Calculator
	generator *Generator
	applier   *Applier
	service   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.New(os.Stderr)
	s, err := store.New(filepath.Join(t.TempDir(), "engine.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	m := metrics.New()
	copygen := ai.NewGenerator(offlineClient{}, ai.NewResolver(s, logger), s,
		resilience.NewBreakerRegistry(resilience.DefaultBreakerConfig()),
		m, ai.DefaultGeneratorConfig(), logger)

	calc := state.NewCalculator(s, m, logger)
	gen := NewGenerator(s, copygen, m, logger)
	applier := NewApplier(s, logger)
	return &fixture{
		store:     s,
		calc:      calc,
		generator: gen,
		applier:   applier,
		service:   NewService(s, calc, gen, applier, DefaultConfig(), m, logger),
	}
}

func (f *fixture) snapshot(t *testing.T, ownerID, primaryState string, confidence int) *store.StateSnapshot {
	t.Helper()
	snap := &store.StateSnapshot{
		OwnerID:           ownerID,
		WindowDays:        7,
		ScoresJSON:        "{}",
		PrimaryState:      primaryState,
		PrimaryConfidence: confidence,
		TopSignalsJSON:    "[]",
	}
	require.NoError(t, f.store.SaveSnapshot(snap))
	return snap
}

func (f *fixture) weekTasks(t *testing.T, ownerID string, n int) []*store.Task {
	t.Helper()
	week := store.WeekStart(time.Now())
	tasks := make([]*store.Task, 0, n)
	for i := 0; i < n; i++ {
		task := &store.Task{
			OwnerID:          ownerID,
			Title:            "task",
			Status:           store.TaskStatusTodo,
			Priority:         10 + i*10,
			PlannedWeekStart: week,
		}
		require.NoError(t, f.store.SaveTask(task))
		tasks = append(tasks, task)
	}
	return tasks
}

func TestGenerate_QuietOwnerYieldsNothing(t *testing.T) {
	f := newFixture(t)

	snap, err := f.calc.Compute("owner-1", 7, nil)
	require.NoError(t, err)
	assert.Equal(t, state.StateNormal, snap.PrimaryState)

	got := f.generator.Generate(context.Background(), "owner-1", snap, 3)
	assert.Empty(t, got)
}

func TestGenerate_PlanReduce(t *testing.T) {
	f := newFixture(t)
	snap := f.snapshot(t, "owner-1", state.StateOverload, 65)
	f.weekTasks(t, "owner-1", 12)

	got := f.generator.Generate(context.Background(), "owner-1", snap, 3)
	require.Len(t, got, 1)

	s := got[0]
	assert.Equal(t, TypePlanReduce, s.Type)
	assert.Equal(t, ContextHome, s.Context)
	assert.Equal(t, state.StateOverload, s.StateType)
	assert.Equal(t, 65, s.StateScore)
	// The model is offline, so the static fallback copy is served.
	assert.Equal(t, "タスクを整理してみませんか？", s.Title)
	require.Len(t, s.Options, 2)
	assert.Equal(t, "ACCEPT", s.Options[0].Key)
	assert.Equal(t, "来週に回す", s.Options[0].Label)

	payload, ok := s.Payload.(PlanReducePayload)
	require.True(t, ok)
	assert.Len(t, payload.Candidates, 4, "a third of twelve tasks")
	assert.Equal(t, 8, payload.RecommendedKeepCount)
	assert.Equal(t, store.WeekStart(time.Now()), payload.TargetWeekStart)
	// Candidates come from the low-priority end of the week.
	assert.Equal(t, "low_priority", payload.Candidates[0].Reason)
	assert.Equal(t, ActionDeferToNextWeek, payload.Candidates[0].SuggestedAction)

	// The event is persisted with the payload round-tripped as JSON.
	event, err := f.store.GetSuggestionEvent(s.EventID)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, snap.ID, event.SnapshotID)
	var stored PlanReducePayload
	require.NoError(t, json.Unmarshal([]byte(event.PayloadJSON), &stored))
	assert.Equal(t, payload, stored)
}

func TestGenerate_PlanReduceNeedsTenTasks(t *testing.T) {
	f := newFixture(t)
	snap := f.snapshot(t, "owner-1", state.StateOverload, 65)
	f.weekTasks(t, "owner-1", 9)

	got := f.generator.Generate(context.Background(), "owner-1", snap, 3)
	assert.Empty(t, got)
}

func TestGenerate_TaskMicrostep(t *testing.T) {
	f := newFixture(t)
	snap := f.snapshot(t, "owner-1", state.StateStuck, 55)

	task := &store.Task{
		OwnerID:       "owner-1",
		Title:         "レポート作成",
		Status:        store.TaskStatusTodo,
		PostponeCount: 4,
	}
	require.NoError(t, f.store.SaveTask(task))

	got := f.generator.Generate(context.Background(), "owner-1", snap, 3)
	require.Len(t, got, 1)

	s := got[0]
	assert.Equal(t, TypeTaskMicrostep, s.Type)
	assert.Equal(t, ContextTaskList, s.Context)
	assert.Equal(t, "タスクを小さく分けてみませんか？", s.Title)
	assert.Contains(t, s.Message, "レポート作成")
	assert.Contains(t, s.Message, "4回延期")

	payload, ok := s.Payload.(TaskMicrostepPayload)
	require.True(t, ok)
	assert.Equal(t, task.ID, payload.OriginalTaskID)
	require.Len(t, payload.MicroSteps, 3)
	assert.Equal(t, "レポート作成 - Step 1: 準備", payload.MicroSteps[0].Title)
	assert.Equal(t, 30, payload.MicroSteps[1].EffortMin)
	assert.Equal(t, 3, payload.MicroSteps[2].Order)
}

func TestGenerate_BuildersNoOpOnStateMismatch(t *testing.T) {
	f := newFixture(t)
	// OVERLOAD, but with a heavily postponed task that would trigger
	// TASK_MICROSTEP under STUCK.
	snap := f.snapshot(t, "owner-1", state.StateOverload, 65)
	require.NoError(t, f.store.SaveTask(&store.Task{
		OwnerID: "owner-1", Title: "t", Status: store.TaskStatusTodo, PostponeCount: 5,
	}))

	got := f.generator.Generate(context.Background(), "owner-1", snap, 3)
	for _, s := range got {
		assert.NotEqual(t, TypeTaskMicrostep, s.Type)
	}
}

func TestGenerate_PriorityFocus(t *testing.T) {
	f := newFixture(t)
	snap := f.snapshot(t, "owner-1", state.StatePlanOverload, 70)

	year, cadence := store.CurrentQuarter(time.Now())
	busy := &store.QuarterGoal{OwnerID: "owner-1", Title: "忙しいゴール", Year: year, Cadence: cadence}
	idle := &store.QuarterGoal{OwnerID: "owner-1", Title: "静かなゴール", Year: year, Cadence: cadence}
	require.NoError(t, f.store.SaveGoal(busy))
	require.NoError(t, f.store.SaveGoal(idle))
	for i := 0; i < 3; i++ {
		require.NoError(t, f.store.SaveTask(&store.Task{
			OwnerID: "owner-1", Title: "t", Status: store.TaskStatusTodo, QuarterGoalID: busy.ID,
		}))
	}

	got := f.generator.Generate(context.Background(), "owner-1", snap, 3)
	require.Len(t, got, 1)

	s := got[0]
	assert.Equal(t, TypePriorityFocus, s.Type)
	assert.Equal(t, ContextGoalDetail, s.Context)
	assert.Contains(t, s.Message, "忙しいゴール")

	payload, ok := s.Payload.(PriorityFocusPayload)
	require.True(t, ok)
	assert.Equal(t, busy.ID, payload.RecommendedGoalID)
	assert.Equal(t, []string{idle.ID}, payload.OtherGoalIDs)
	assert.Contains(t, payload.Reason, "3個のタスク")
}

func TestGenerate_MotivationRemind(t *testing.T) {
	f := newFixture(t)
	snap := f.snapshot(t, "owner-1", state.StateLowMotivation, 40)

	vision := &store.VisionCard{OwnerID: "owner-1", Title: "健康的な生活", WhyNote: "家族と長く過ごしたいから"}
	require.NoError(t, f.store.SaveVision(vision))
	goal := &store.QuarterGoal{OwnerID: "owner-1", VisionID: vision.ID, Title: "週3回運動", Year: 2026, Cadence: "Q3"}
	require.NoError(t, f.store.SaveGoal(goal))

	got := f.generator.Generate(context.Background(), "owner-1", snap, 3)
	require.Len(t, got, 1)

	s := got[0]
	assert.Equal(t, TypeMotivationRemind, s.Type)
	assert.Equal(t, ContextVisionBoard, s.Context)
	assert.Equal(t, "目指している理由を思い出してみませんか？", s.Title)
	assert.Contains(t, s.Message, "家族と長く過ごしたいから")

	payload, ok := s.Payload.(MotivationRemindPayload)
	require.True(t, ok)
	assert.Equal(t, vision.ID, payload.VisionID)
	require.Len(t, payload.RelatedGoals, 1)
	assert.Equal(t, "週3回運動", payload.RelatedGoals[0].Title)
}

func TestGenerate_LimitStopsDriver(t *testing.T) {
	f := newFixture(t)
	snap := f.snapshot(t, "owner-1", state.StateOverload, 65)
	f.weekTasks(t, "owner-1", 12)

	year, cadence := store.CurrentQuarter(time.Now())
	require.NoError(t, f.store.SaveGoal(&store.QuarterGoal{OwnerID: "owner-1", Title: "g1", Year: year, Cadence: cadence}))
	require.NoError(t, f.store.SaveGoal(&store.QuarterGoal{OwnerID: "owner-1", Title: "g2", Year: year, Cadence: cadence}))

	got := f.generator.Generate(context.Background(), "owner-1", snap, 1)
	require.Len(t, got, 1)
	assert.Equal(t, TypePlanReduce, got[0].Type, "highest-priority builder wins the single slot")

	got = f.generator.Generate(context.Background(), "owner-1", snap, 3)
	require.Len(t, got, 2)
	assert.Equal(t, TypePlanReduce, got[0].Type)
	assert.Equal(t, TypePriorityFocus, got[1].Type)
}

func TestFetch_ConfigIsHonored(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, f.calc, f.generator, f.applier,
		Config{WindowDays: 14, SnapshotMaxAge: time.Minute, Limit: 1},
		metrics.New(), zerolog.Nop())

	// A fresh owner's snapshot is computed over the configured window.
	res, err := svc.Fetch(context.Background(), "owner-win", 0, false)
	require.NoError(t, err)
	assert.Equal(t, 14, res.Snapshot.WindowDays)

	// Both PLAN_REDUCE and PRIORITY_FOCUS are eligible, but an unbounded
	// fetch is capped at the configured limit.
	f.snapshot(t, "owner-1", state.StateOverload, 65)
	f.weekTasks(t, "owner-1", 12)
	year, cadence := store.CurrentQuarter(time.Now())
	require.NoError(t, f.store.SaveGoal(&store.QuarterGoal{OwnerID: "owner-1", Title: "g1", Year: year, Cadence: cadence}))
	require.NoError(t, f.store.SaveGoal(&store.QuarterGoal{OwnerID: "owner-1", Title: "g2", Year: year, Cadence: cadence}))

	res, err = svc.Fetch(context.Background(), "owner-1", 0, false)
	require.NoError(t, err)
	require.Len(t, res.Suggestions, 1)
	assert.Equal(t, TypePlanReduce, res.Suggestions[0].Type)
}

func TestFetch_RecomputesMissingSnapshot(t *testing.T) {
	f := newFixture(t)

	res, err := f.service.Fetch(context.Background(), "owner-1", 3, false)
	require.NoError(t, err)
	require.NotNil(t, res.Snapshot)
	assert.Equal(t, state.StateNormal, res.Snapshot.PrimaryState)
	assert.Empty(t, res.Suggestions)

	// A fresh snapshot is reused on the next fetch.
	res2, err := f.service.Fetch(context.Background(), "owner-1", 3, false)
	require.NoError(t, err)
	assert.Equal(t, res.Snapshot.ID, res2.Snapshot.ID)

	// forceCompute always produces a new one.
	res3, err := f.service.Fetch(context.Background(), "owner-1", 3, true)
	require.NoError(t, err)
	assert.NotEqual(t, res.Snapshot.ID, res3.Snapshot.ID)
}
