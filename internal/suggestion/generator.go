package suggestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pace-labs/pace-engine/internal/ai"
	"github.com/pace-labs/pace-engine/internal/metrics"
	"github.com/pace-labs/pace-engine/internal/state"
	"github.com/pace-labs/pace-engine/internal/store"
)

// DefaultLimit is the number of suggestions produced per fetch when the
// caller does not ask for a specific count.
const DefaultLimit = 3

// Generation thresholds.
const (
	minWeekTasksForReduce = 10 // PLAN_REDUCE needs this many planned tasks
	minPostponesForSplit  = 3  // TASK_MICROSTEP targets tasks postponed this often
	minGoalsForFocus      = 2  // PRIORITY_FOCUS needs competing goals
	minInactiveDaysResume = 5  // RESUME_SUPPORT needs this much silence
	maxEasyTaskEffortMin  = 30
	maxResumeTasks        = 3
	maxRelatedGoals       = 3
	lowPriorityThreshold  = 30
)

// Generator produces suggestions from a state snapshot. Builders run in a
// fixed priority order; each independently re-checks its precondition state
// and returns nothing when it does not apply.
type Generator struct {
	store   *store.Store
	copygen *ai.Generator
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewGenerator wires a suggestion generator.
func NewGenerator(s *store.Store, copygen *ai.Generator, m *metrics.Metrics, logger zerolog.Logger) *Generator {
	return &Generator{
		store:   s,
		copygen: copygen,
		metrics: m,
		logger:  logger.With().Str("component", "suggestion-generator").Logger(),
	}
}

type builder struct {
	typ   string
	build func(ctx context.Context, ownerID string, snap *store.StateSnapshot) (*Suggestion, error)
}

// Generate runs the builders against the snapshot and returns up to limit
// suggestions. Generation is best-effort: a failing builder is logged and
// skipped, never surfaced to the caller.
func (g *Generator) Generate(ctx context.Context, ownerID string, snap *store.StateSnapshot, limit int) []*Suggestion {
	if limit <= 0 {
		limit = DefaultLimit
	}

	builders := []builder{
		{TypePlanReduce, g.buildPlanReduce},
		{TypeTaskMicrostep, g.buildTaskMicrostep},
		{TypePriorityFocus, g.buildPriorityFocus},
		{TypeMotivationRemind, g.buildMotivationRemind},
		{TypeResumeSupport, g.buildResumeSupport},
	}

	var out []*Suggestion
	for _, b := range builders {
		if len(out) >= limit {
			break
		}
		s, err := b.build(ctx, ownerID, snap)
		if err != nil {
			g.logger.Warn().Err(err).
				Str("owner_id", ownerID).
				Str("suggestion_type", b.typ).
				Msg("suggestion builder failed, skipping")
			continue
		}
		if s == nil {
			continue
		}
		out = append(out, s)
		g.metrics.RecordSuggestion(b.typ)
	}
	return out
}

// persist stores the event and fills in the DTO's event id.
func (g *Generator) persist(s *Suggestion, ownerID string, snap *store.StateSnapshot, payload any) (*Suggestion, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	optionsJSON, err := json.Marshal(s.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal options: %w", err)
	}

	event := &store.SuggestionEvent{
		OwnerID:        ownerID,
		SuggestionType: s.Type,
		StateType:      snap.PrimaryState,
		StateScore:     snap.PrimaryConfidence,
		Context:        s.Context,
		PayloadJSON:    string(payloadJSON),
		SnapshotID:     snap.ID,
		Title:          s.Title,
		Message:        s.Message,
		OptionsJSON:    string(optionsJSON),
	}
	if err := g.store.SaveSuggestionEvent(event); err != nil {
		return nil, err
	}

	s.EventID = event.ID
	s.Payload = payload
	s.StateType = snap.PrimaryState
	s.StateScore = snap.PrimaryConfidence
	return s, nil
}

func (g *Generator) buildPlanReduce(ctx context.Context, ownerID string, snap *store.StateSnapshot) (*Suggestion, error) {
	if snap.PrimaryState != state.StateOverload && snap.PrimaryState != state.StatePlanOverload {
		return nil, nil
	}

	weekStart := store.WeekStart(time.Now())
	tasks, err := g.store.ListWeekTasks(ownerID, weekStart)
	if err != nil {
		return nil, err
	}
	if len(tasks) < minWeekTasksForReduce {
		return nil, nil
	}

	// The week list is lowest priority first, so the first third is the
	// natural set to push out.
	candidateCount := len(tasks) / 3
	candidates := make([]ReduceCandidate, 0, candidateCount)
	for _, t := range tasks[:candidateCount] {
		reason := "reduce_load"
		if t.Priority < lowPriorityThreshold {
			reason = "low_priority"
		}
		candidates = append(candidates, ReduceCandidate{
			TaskID:          t.ID,
			Reason:          reason,
			SuggestedAction: ActionDeferToNextWeek,
		})
	}

	payload := PlanReducePayload{
		TargetWeekStart:      weekStart,
		Candidates:           candidates,
		RecommendedKeepCount: len(tasks) - candidateCount,
	}

	genCopy := g.copygen.GenerateSuggestionCopy(ctx, ownerID, TypePlanReduce, map[string]any{
		"stateType":            snap.PrimaryState,
		"stateScore":           snap.PrimaryConfidence,
		"taskCount":            len(tasks),
		"candidatesCount":      candidateCount,
		"recommendedKeepCount": payload.RecommendedKeepCount,
	})

	options := copyOptions(genCopy)
	if len(options) == 0 {
		options = []Option{
			{Key: "ACCEPT", Label: "来週に回す", Description: "選択したタスクを来週に移動します"},
			{Key: "KEEP_AS_IS", Label: "このままで大丈夫", Description: "今週のままにします"},
		}
	}

	return g.persist(&Suggestion{
		Type:    TypePlanReduce,
		Title:   genCopy.Title,
		Message: genCopy.Message,
		Options: options,
		Context: ContextHome,
	}, ownerID, snap, payload)
}

func (g *Generator) buildTaskMicrostep(_ context.Context, ownerID string, snap *store.StateSnapshot) (*Suggestion, error) {
	if snap.PrimaryState != state.StateStuck {
		return nil, nil
	}

	task, err := g.store.FindMostPostponedTask(ownerID, minPostponesForSplit)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}

	payload := TaskMicrostepPayload{
		OriginalTaskID: task.ID,
		OriginalTitle:  task.Title,
		MicroSteps: []MicroStep{
			{Title: task.Title + " - Step 1: 準備", EffortMin: 15, Order: 1},
			{Title: task.Title + " - Step 2: 実行", EffortMin: 30, Order: 2},
			{Title: task.Title + " - Step 3: 完了", EffortMin: 15, Order: 3},
		},
	}

	return g.persist(&Suggestion{
		Type:  TypeTaskMicrostep,
		Title: "タスクを小さく分けてみませんか？",
		Message: fmt.Sprintf("「%s」は%d回延期されています。小さなステップに分けることで、進めやすくなるかもしれません。",
			task.Title, task.PostponeCount),
		Options: []Option{
			{Key: "ACCEPT", Label: "分解する", Description: "3つのステップに分けます"},
			{Key: "DISMISS", Label: "今はしない"},
		},
		Context: ContextTaskList,
	}, ownerID, snap, payload)
}

func (g *Generator) buildPriorityFocus(_ context.Context, ownerID string, snap *store.StateSnapshot) (*Suggestion, error) {
	if snap.PrimaryState != state.StateOverload && snap.PrimaryState != state.StatePlanOverload {
		return nil, nil
	}

	year, cadence := store.CurrentQuarter(time.Now())
	goals, err := g.store.ListQuarterGoalsWithTaskCounts(ownerID, year, cadence)
	if err != nil {
		return nil, err
	}
	if len(goals) < minGoalsForFocus {
		return nil, nil
	}

	top := goals[0]
	otherIDs := make([]string, 0, len(goals)-1)
	for _, gc := range goals[1:] {
		otherIDs = append(otherIDs, gc.Goal.ID)
	}

	payload := PriorityFocusPayload{
		RecommendedGoalID:    top.Goal.ID,
		RecommendedGoalTitle: top.Goal.Title,
		OtherGoalIDs:         otherIDs,
		Reason:               fmt.Sprintf("%d個のタスクがあり、最も進行中です", top.OpenTasks),
	}

	return g.persist(&Suggestion{
		Type:  TypePriorityFocus,
		Title: "1つのゴールに集中してみませんか？",
		Message: fmt.Sprintf("今四半期は%d個のゴールがあります。「%s」に集中することで、進めやすくなるかもしれません。",
			len(goals), top.Goal.Title),
		Options: []Option{
			{Key: "ACCEPT", Label: "このゴールに集中する", Description: "他のゴールのタスクを一時停止します"},
			{Key: "KEEP_ALL", Label: "全て続ける"},
		},
		Context: ContextGoalDetail,
	}, ownerID, snap, payload)
}

func (g *Generator) buildMotivationRemind(_ context.Context, ownerID string, snap *store.StateSnapshot) (*Suggestion, error) {
	if snap.PrimaryState != state.StateLowMotivation && snap.PrimaryState != state.StateStuck {
		return nil, nil
	}

	vision, err := g.store.FindVisionWithWhyNote(ownerID)
	if err != nil {
		return nil, err
	}
	if vision == nil {
		return nil, nil
	}

	goals, err := g.store.ListGoalsForVision(vision.ID, maxRelatedGoals)
	if err != nil {
		return nil, err
	}
	related := make([]RelatedGoal, 0, len(goals))
	for _, goal := range goals {
		related = append(related, RelatedGoal{ID: goal.ID, Title: goal.Title})
	}

	payload := MotivationRemindPayload{
		VisionID:     vision.ID,
		VisionTitle:  vision.Title,
		WhyNote:      vision.WhyNote,
		RelatedGoals: related,
	}

	return g.persist(&Suggestion{
		Type:  TypeMotivationRemind,
		Title: "目指している理由を思い出してみませんか？",
		Message: fmt.Sprintf("「%s」について、こんな想いがありました：\n\n「%s」",
			vision.Title, vision.WhyNote),
		Options: []Option{
			{Key: "ACKNOWLEDGE", Label: "思い出しました"},
			{Key: "UPDATE_WHY", Label: "更新する", Description: "Why noteを見直します"},
		},
		Context: ContextVisionBoard,
	}, ownerID, snap, payload)
}

func (g *Generator) buildResumeSupport(_ context.Context, ownerID string, snap *store.StateSnapshot) (*Suggestion, error) {
	if snap.PrimaryState != state.StateStuck {
		return nil, nil
	}

	last, ok, err := g.store.LastTaskActivity(ownerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	inactiveDays := int(time.Since(time.UnixMilli(last)).Hours() / 24)
	if inactiveDays < minInactiveDaysResume {
		return nil, nil
	}

	tasks, err := g.store.ListEasyTasks(ownerID, maxEasyTaskEffortMin, maxResumeTasks)
	if err != nil {
		return nil, err
	}
	suggested := make([]SuggestedTask, 0, len(tasks))
	for _, t := range tasks {
		reason := "短時間で完了できそうです"
		if t.EffortMin > 0 {
			reason = fmt.Sprintf("%d分程度で完了できそうです", t.EffortMin)
		}
		suggested = append(suggested, SuggestedTask{TaskID: t.ID, Title: t.Title, Reason: reason})
	}

	payload := ResumeSupportPayload{
		InactiveDays:     inactiveDays,
		LastActivityDate: store.DateString(time.UnixMilli(last)),
		SuggestedTasks:   suggested,
	}

	return g.persist(&Suggestion{
		Type:  TypeResumeSupport,
		Title: "小さな一歩から再開してみませんか？",
		Message: fmt.Sprintf("%d日ぶりですね。まずは短時間で終わるタスクから始めてみるのはいかがでしょうか。",
			inactiveDays),
		Options: []Option{
			{Key: "ACCEPT", Label: "これから始める", Description: "推奨タスクを今日の予定に追加します"},
			{Key: "LATER", Label: "後で考える"},
		},
		Context: ContextHome,
	}, ownerID, snap, payload)
}

func copyOptions(c ai.Copy) []Option {
	if len(c.Options) == 0 {
		return nil
	}
	out := make([]Option, 0, len(c.Options))
	for _, o := range c.Options {
		out = append(out, Option{Key: o.Key, Label: o.Label, Description: o.Description})
	}
	return out
}
