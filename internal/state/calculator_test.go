package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pace-labs/pace-engine/internal/metrics"
	"github.com/pace-labs/pace-engine/internal/store"
)

func newTestCalculator(t *testing.T) (*Calculator, *store.Store) {
	t.Helper()
	logger := zerolog.New(os.Stderr)
	s, err := store.New(filepath.Join(t.TempDir(), "engine.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewCalculator(s, metrics.New(), logger), s
}

func TestCompute_FreshOwnerIsNormal(t *testing.T) {
	calc, _ := newTestCalculator(t)

	snap, err := calc.Compute("new-owner", 7, nil)
	require.NoError(t, err)

	assert.Equal(t, StateNormal, snap.PrimaryState)
	assert.Zero(t, snap.PrimaryConfidence)
	assert.Equal(t, "[]", snap.TopSignalsJSON)
	assert.Empty(t, snap.SelfReportJSON)

	var scores map[string]Score
	require.NoError(t, json.Unmarshal([]byte(snap.ScoresJSON), &scores))
	assert.Len(t, scores, len(AllStates), "full score map is stored even for NORMAL")
}

func TestCompute_ZeroWindowDefaultsToSeven(t *testing.T) {
	calc, s := newTestCalculator(t)
	past := time.Now().Add(-time.Hour).UnixMilli()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveTask(&store.Task{
			OwnerID: "o", Title: "overdue", Status: store.TaskStatusTodo, DueAt: past,
		}))
	}

	snap, err := calc.Compute("o", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultWindowDays, snap.WindowDays)
	assert.Equal(t, StateOverload, snap.PrimaryState, "the week of signals is still extracted")

	snap, err = calc.Compute("o", -3, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultWindowDays, snap.WindowDays)
}

func TestCompute_OverloadedOwner(t *testing.T) {
	calc, s := newTestCalculator(t)
	past := time.Now().Add(-time.Hour).UnixMilli()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveTask(&store.Task{
			OwnerID: "o", Title: "overdue", Status: store.TaskStatusTodo, DueAt: past,
		}))
	}

	snap, err := calc.Compute("o", 7, nil)
	require.NoError(t, err)

	// 5 overdue (+30) and 0/5 completion (+20).
	assert.Equal(t, StateOverload, snap.PrimaryState)
	assert.Equal(t, 50, snap.PrimaryConfidence)

	var topSignals []string
	require.NoError(t, json.Unmarshal([]byte(snap.TopSignalsJSON), &topSignals))
	assert.Contains(t, topSignals, "overdue_tasks_high")
	assert.Contains(t, topSignals, "completion_rate_low")
}

func TestCompute_SelfReportMergedAndPersisted(t *testing.T) {
	calc, _ := newTestCalculator(t)

	report := &SelfReport{Motivation: intp(2)}
	snap, err := calc.Compute("o", 7, report)
	require.NoError(t, err)

	assert.Equal(t, StateLowMotivation, snap.PrimaryState)
	assert.Equal(t, 40, snap.PrimaryConfidence)
	assert.Contains(t, snap.SelfReportJSON, `"motivation":2`)
}

func TestCompute_RejectsBadSelfReport(t *testing.T) {
	calc, _ := newTestCalculator(t)

	_, err := calc.Compute("o", 7, &SelfReport{Stress: intp(42)})
	require.Error(t, err)

	snap, err := calc.Latest("o")
	require.NoError(t, err)
	assert.Nil(t, snap, "nothing persisted on validation failure")
}

func TestHistory_NewestFirst(t *testing.T) {
	calc, _ := newTestCalculator(t)

	first, err := calc.Compute("o", 7, nil)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := calc.Compute("o", 7, nil)
	require.NoError(t, err)

	history, err := calc.History("o", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)

	latest, err := calc.Latest("o")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestIsStale(t *testing.T) {
	assert.True(t, IsStale(nil, time.Hour))

	fresh := &store.StateSnapshot{CreatedAt: time.Now().UnixMilli()}
	assert.False(t, IsStale(fresh, time.Hour))

	old := &store.StateSnapshot{CreatedAt: time.Now().Add(-2 * time.Hour).UnixMilli()}
	assert.True(t, IsStale(old, time.Hour))
}
