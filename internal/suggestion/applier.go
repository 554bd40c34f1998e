package suggestion

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/pace-labs/pace-engine/internal/errors"
	"github.com/pace-labs/pace-engine/internal/store"
)

// Applier executes the data mutation behind an accepted suggestion.
// Dispatch over the suggestion type is exhaustive: every type either mutates
// or explicitly reports itself unimplemented.
type Applier struct {
	store  *store.Store
	logger zerolog.Logger
}

// NewApplier wires a suggestion applier.
func NewApplier(s *store.Store, logger zerolog.Logger) *Applier {
	return &Applier{store: s, logger: logger.With().Str("component", "suggestion-applier").Logger()}
}

// acceptPayload carries the caller's refinement of an accepted suggestion,
// currently only a subset of the proposed task ids.
type acceptPayload struct {
	SelectedTaskIDs []string `json:"selectedTaskIds"`
}

// Apply mutates data for an accepted suggestion and records the ACCEPTED
// response. The event must belong to ownerID and have no prior response.
// When the mutation fails the event stays unresponded so the user can retry.
func (a *Applier) Apply(eventID, ownerID, acceptPayloadJSON string) error {
	event, err := a.store.GetSuggestionEvent(eventID)
	if err != nil {
		return err
	}
	if event == nil || event.OwnerID != ownerID {
		return fmt.Errorf("suggestion %s: %w", eventID, perrors.ErrNotFound)
	}
	if event.Response != "" {
		return perrors.ErrAlreadyResponded
	}

	var accept acceptPayload
	if acceptPayloadJSON != "" {
		if err := json.Unmarshal([]byte(acceptPayloadJSON), &accept); err != nil {
			return fmt.Errorf("malformed accept payload: %w", perrors.ErrInvalidInput)
		}
	}

	if err := a.dispatch(event, accept); err != nil {
		return err
	}

	if err := a.store.RecordResponse(eventID, store.ResponseAccepted, acceptPayloadJSON); err != nil {
		return err
	}

	a.logger.Info().
		Str("owner_id", ownerID).
		Str("event_id", eventID).
		Str("suggestion_type", event.SuggestionType).
		Msg("applied suggestion")
	return nil
}

func (a *Applier) dispatch(event *store.SuggestionEvent, accept acceptPayload) error {
	switch event.SuggestionType {
	case TypePlanReduce:
		return a.applyPlanReduce(event, accept)
	case TypeTaskMicrostep:
		return a.applyTaskMicrostep(event)
	case TypePriorityFocus:
		return a.applyPriorityFocus(event)
	case TypeMotivationRemind:
		// Display-only: accepting records acknowledgement, nothing changes.
		return nil
	case TypeResumeSupport:
		return a.applyResumeSupport(event)
	case TypeGoalReframe, TypeAutonomyAdjust, TypeVisionCreate, TypeVisionToQuarter, TypeGoalToTaskDraft:
		return fmt.Errorf("applier for %s: %w", event.SuggestionType, perrors.ErrNotImplemented)
	default:
		return fmt.Errorf("unknown suggestion type %q: %w", event.SuggestionType, perrors.ErrInvalidInput)
	}
}

// applyPlanReduce moves the selected tasks (or every candidate when the user
// did not narrow the set) into the following week.
func (a *Applier) applyPlanReduce(event *store.SuggestionEvent, accept acceptPayload) error {
	var payload PlanReducePayload
	if err := json.Unmarshal([]byte(event.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("malformed PLAN_REDUCE payload: %w", perrors.ErrInvalidInput)
	}

	taskIDs := accept.SelectedTaskIDs
	if len(taskIDs) == 0 {
		taskIDs = make([]string, 0, len(payload.Candidates))
		for _, c := range payload.Candidates {
			taskIDs = append(taskIDs, c.TaskID)
		}
	}
	if len(taskIDs) == 0 {
		return nil
	}

	nextWeek, err := store.NextWeekStart(payload.TargetWeekStart)
	if err != nil {
		return fmt.Errorf("bad target week start %q: %w", payload.TargetWeekStart, perrors.ErrInvalidInput)
	}

	planID, err := a.store.UpsertWeeklyPlan(event.OwnerID, nextWeek)
	if err != nil {
		return err
	}
	return a.store.MoveTasksToWeek(event.OwnerID, taskIDs, nextWeek, planID)
}

// applyTaskMicrostep cancels the original task and creates the step tasks in
// one transaction. Steps inherit the original's priority and planning slots.
func (a *Applier) applyTaskMicrostep(event *store.SuggestionEvent) error {
	var payload TaskMicrostepPayload
	if err := json.Unmarshal([]byte(event.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("malformed TASK_MICROSTEP payload: %w", perrors.ErrInvalidInput)
	}

	original, err := a.store.GetTask(payload.OriginalTaskID)
	if err != nil {
		return err
	}
	if original == nil || original.OwnerID != event.OwnerID {
		return fmt.Errorf("original task %s: %w", payload.OriginalTaskID, perrors.ErrNotFound)
	}

	steps := make([]*store.Task, 0, len(payload.MicroSteps))
	for _, step := range payload.MicroSteps {
		steps = append(steps, &store.Task{
			OwnerID:          original.OwnerID,
			Title:            step.Title,
			Status:           store.TaskStatusTodo,
			Priority:         original.Priority,
			EffortMin:        step.EffortMin,
			QuarterGoalID:    original.QuarterGoalID,
			PlannedWeekStart: original.PlannedWeekStart,
			WeeklyPlanID:     original.WeeklyPlanID,
			PlannedDate:      original.PlannedDate,
			DailyPlanID:      original.DailyPlanID,
			OriginType:       store.OriginSuggestion,
			OriginID:         original.ID,
		})
	}
	return a.store.ReplaceTaskWithSteps(original.ID, steps)
}

// applyPriorityFocus pauses every goal except the recommended one by clearing
// the week and day planning of their open tasks.
func (a *Applier) applyPriorityFocus(event *store.SuggestionEvent) error {
	var payload PriorityFocusPayload
	if err := json.Unmarshal([]byte(event.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("malformed PRIORITY_FOCUS payload: %w", perrors.ErrInvalidInput)
	}
	return a.store.ClearPlanningForGoals(event.OwnerID, payload.OtherGoalIDs)
}

// applyResumeSupport puts the suggested tasks on today's daily plan.
func (a *Applier) applyResumeSupport(event *store.SuggestionEvent) error {
	var payload ResumeSupportPayload
	if err := json.Unmarshal([]byte(event.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("malformed RESUME_SUPPORT payload: %w", perrors.ErrInvalidInput)
	}
	if len(payload.SuggestedTasks) == 0 {
		return nil
	}

	taskIDs := make([]string, 0, len(payload.SuggestedTasks))
	for _, t := range payload.SuggestedTasks {
		taskIDs = append(taskIDs, t.TaskID)
	}

	today := store.DateString(time.Now())
	planID, err := a.store.UpsertDailyPlan(event.OwnerID, today)
	if err != nil {
		return err
	}
	return a.store.AssignTasksToDay(event.OwnerID, taskIDs, today, planID)
}
