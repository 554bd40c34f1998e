package ai

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pace-labs/pace-engine/internal/metrics"
	"github.com/pace-labs/pace-engine/internal/resilience"
	"github.com/pace-labs/pace-engine/internal/store"
)

// fakeClient returns queued responses in order, then repeats the last one.
type fakeClient struct {
	responses []string
	errs      []error
	calls     int
	requests  []Request
}

func (f *fakeClient) Complete(_ context.Context, req Request) (*Response, error) {
	i := f.calls
	f.calls++
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	if i < 0 {
		return nil, errors.New("no responses queued")
	}
	return &Response{Text: f.responses[i]}, nil
}

func (f *fakeClient) ModelID() string { return "test-model" }

func newTestGenerator(t *testing.T, client Client) (*Generator, *store.Store) {
	t.Helper()
	logger := zerolog.New(os.Stderr)
	s, err := store.New(filepath.Join(t.TempDir(), "engine.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	prompts := NewPromptService(s, logger)
	require.NoError(t, prompts.SeedDefaults())

	gen := NewGenerator(client, NewResolver(s, logger), s,
		resilience.NewBreakerRegistry(resilience.DefaultBreakerConfig()),
		metrics.New(), DefaultGeneratorConfig(), logger)
	return gen, s
}

func lastLog(t *testing.T, s *store.Store) *store.AiGenerationLog {
	t.Helper()
	logs, err := s.ListGenerationLogs("", 1)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	return logs[0]
}

func TestGenerateSuggestionCopy_HappyPath(t *testing.T) {
	client := &fakeClient{responses: []string{
		"```json\n{\"title\": \"タスクを整理してみませんか？\", \"message\": \"少し減らすと進めやすくなるかもしれません。\"}\n```",
	}}
	gen, s := newTestGenerator(t, client)

	got := gen.GenerateSuggestionCopy(context.Background(), "owner-1", "PLAN_REDUCE",
		map[string]any{"stateType": "OVERLOAD", "stateScore": 65})

	assert.Equal(t, "タスクを整理してみませんか？", got.Title)
	assert.Equal(t, 1, client.calls)

	entry := lastLog(t, s)
	assert.True(t, entry.ValidationOK)
	assert.False(t, entry.RepairUsed)
	assert.False(t, entry.FallbackUsed)
	assert.NotEmpty(t, entry.PromptVersionID)
	assert.Equal(t, GenTypeSuggestionCopy, entry.GenType)

	// The rendered prompt carries the substituted state.
	require.Len(t, client.requests, 1)
	assert.Contains(t, client.requests[0].User, "OVERLOAD")
	assert.Contains(t, client.requests[0].User, "PLAN_REDUCE")
	assert.NotContains(t, client.requests[0].User, "{{stateType}}")
}

func TestGenerateSuggestionCopy_RepairRecovers(t *testing.T) {
	client := &fakeClient{responses: []string{
		`{"title": "今すぐやるのが絶対です", "message": "必ずやりましょう"}`,
		`{"title": "やってみませんか？", "message": "少しずつ進められるかもしれません。"}`,
	}}
	gen, s := newTestGenerator(t, client)

	got := gen.GenerateSuggestionCopy(context.Background(), "owner-1", "PLAN_REDUCE", nil)

	assert.Equal(t, "やってみませんか？", got.Title)
	assert.Equal(t, 2, client.calls, "exactly one repair attempt")

	entry := lastLog(t, s)
	assert.True(t, entry.RepairUsed)
	assert.True(t, entry.ValidationOK)
	assert.False(t, entry.FallbackUsed)
	assert.NotEmpty(t, entry.ViolationsJSON)

	// The repair call runs cooler and shorter.
	require.Len(t, client.requests, 2)
	assert.Equal(t, repairMaxTokens, client.requests[1].MaxTokens)
	assert.Equal(t, repairTemperature, client.requests[1].Temperature)
}

func TestGenerateSuggestionCopy_RepairStillViolatingFallsBack(t *testing.T) {
	client := &fakeClient{responses: []string{
		`{"title": "絶対やる", "message": "必ずやりましょう"}`,
		`{"title": "まだ絶対です", "message": "直ちにやりましょう"}`,
	}}
	gen, s := newTestGenerator(t, client)

	got := gen.GenerateSuggestionCopy(context.Background(), "owner-1", "PLAN_REDUCE", nil)

	assert.Equal(t, "タスクを整理してみませんか？", got.Title, "static fallback for PLAN_REDUCE")
	entry := lastLog(t, s)
	assert.True(t, entry.RepairUsed)
	assert.True(t, entry.FallbackUsed)
	assert.False(t, entry.ValidationOK)
}

func TestGenerateSuggestionCopy_ClientErrorFallsBack(t *testing.T) {
	client := &fakeClient{errs: []error{errors.New("boom"), errors.New("boom")}}
	gen, s := newTestGenerator(t, client)

	got := gen.GenerateSuggestionCopy(context.Background(), "owner-1", "TASK_MICROSTEP", nil)

	assert.Equal(t, "小さなステップに分けてみませんか？", got.Title)
	entry := lastLog(t, s)
	assert.True(t, entry.FallbackUsed)
	assert.False(t, entry.RepairUsed)
}

func TestGenerateSuggestionCopy_SchemaViolationFallsBack(t *testing.T) {
	client := &fakeClient{responses: []string{`{"title": "", "message": "本文"}`}}
	gen, s := newTestGenerator(t, client)

	got := gen.GenerateSuggestionCopy(context.Background(), "owner-1", "PLAN_REDUCE", nil)

	assert.Equal(t, "タスクを整理してみませんか？", got.Title)
	assert.True(t, lastLog(t, s).FallbackUsed)
}

func TestGenerateSuggestionCopy_LogsEvenWithoutActivePrompt(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	s, err := store.New(filepath.Join(t.TempDir(), "engine.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	// No seeding: resolution fails, fallback is served, and the attempt is
	// still logged with no version id.
	gen := NewGenerator(&fakeClient{}, NewResolver(s, logger), s,
		resilience.NewBreakerRegistry(resilience.DefaultBreakerConfig()),
		metrics.New(), DefaultGeneratorConfig(), logger)

	got := gen.GenerateSuggestionCopy(context.Background(), "owner-1", "PLAN_REDUCE", nil)
	assert.Equal(t, "タスクを整理してみませんか？", got.Title)

	entry := lastLog(t, s)
	assert.True(t, entry.FallbackUsed)
	assert.Empty(t, entry.PromptVersionID)
}

func TestGenerateMicrostepDraft_FallbackSteps(t *testing.T) {
	// No TASK_MICROSTEP_DRAFT prompt is seeded, so resolution fails and the
	// static split is returned.
	gen, s := newTestGenerator(t, &fakeClient{})

	steps := gen.GenerateMicrostepDraft(context.Background(), "owner-1", "レポート作成", "")
	require.Len(t, steps, 3)
	assert.Equal(t, "レポート作成 - 準備", steps[0].Title)
	assert.Equal(t, 30, steps[1].EffortMin)
	assert.Equal(t, 3, steps[2].Order)

	entry := lastLog(t, s)
	assert.Equal(t, GenTypeTaskDraft, entry.GenType)
	assert.True(t, entry.FallbackUsed)
}
