package suggestion

// Suggestion types. The set is closed: generation and application dispatch
// over it exhaustively, so adding a type means touching both switches.
const (
	TypePlanReduce       = "PLAN_REDUCE"
	TypeTaskMicrostep    = "TASK_MICROSTEP"
	TypePriorityFocus    = "PRIORITY_FOCUS"
	TypeGoalReframe      = "GOAL_REFRAME"
	TypeMotivationRemind = "MOTIVATION_REMIND"
	TypeAutonomyAdjust   = "AUTONOMY_ADJUST"
	TypeResumeSupport    = "RESUME_SUPPORT"
	TypeVisionCreate     = "VISION_CREATE_ASSIST"
	TypeVisionToQuarter  = "VISION_TO_QUARTER_TRANSLATE"
	TypeGoalToTaskDraft  = "GOAL_TO_TASK_DRAFT"
)

// Display contexts: where in the client a suggestion should surface.
const (
	ContextHome        = "HOME"
	ContextTaskList    = "TASK_LIST"
	ContextGoalDetail  = "GOAL_DETAIL"
	ContextVisionBoard = "VISION_BOARD"
)

// Candidate actions inside a PLAN_REDUCE payload.
const (
	ActionDeferToNextWeek = "DEFER_TO_NEXT_WEEK"
	ActionRemove          = "REMOVE"
)

// Option is one user-selectable button on a suggestion.
type Option struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Suggestion is the rendered DTO handed to the caller. Payload is the
// type-specific struct; it round-trips as JSON at the storage boundary.
type Suggestion struct {
	EventID    string   `json:"eventId"`
	Type       string   `json:"type"`
	Title      string   `json:"title"`
	Message    string   `json:"message"`
	Options    []Option `json:"options"`
	Payload    any      `json:"payload"`
	Context    string   `json:"context,omitempty"`
	StateType  string   `json:"stateType,omitempty"`
	StateScore int      `json:"stateScore,omitempty"`
}

// ReduceCandidate is one task proposed for deferral by PLAN_REDUCE.
type ReduceCandidate struct {
	TaskID          string `json:"taskId"`
	Reason          string `json:"reason"`
	SuggestedAction string `json:"suggestedAction"`
}

// PlanReducePayload carries the week-reduction proposal.
type PlanReducePayload struct {
	TargetWeekStart      string            `json:"targetWeekStart"`
	Candidates           []ReduceCandidate `json:"candidates"`
	RecommendedKeepCount int               `json:"recommendedKeepCount"`
}

// MicroStep is one sub-task of a TASK_MICROSTEP split.
type MicroStep struct {
	Title     string `json:"title"`
	EffortMin int    `json:"effortMin"`
	Order     int    `json:"order"`
}

// TaskMicrostepPayload proposes replacing a stalled task with small steps.
type TaskMicrostepPayload struct {
	OriginalTaskID string      `json:"originalTaskId"`
	OriginalTitle  string      `json:"originalTitle"`
	MicroSteps     []MicroStep `json:"microSteps"`
}

// PriorityFocusPayload proposes pausing all goals but one.
type PriorityFocusPayload struct {
	RecommendedGoalID    string   `json:"recommendedGoalId"`
	RecommendedGoalTitle string   `json:"recommendedGoalTitle"`
	OtherGoalIDs         []string `json:"otherGoalIds"`
	Reason               string   `json:"reason"`
}

// RelatedGoal is a goal shown alongside a vision reminder.
type RelatedGoal struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// MotivationRemindPayload resurfaces the why note behind a vision.
type MotivationRemindPayload struct {
	VisionID     string        `json:"visionId"`
	VisionTitle  string        `json:"visionTitle"`
	WhyNote      string        `json:"whyNote"`
	RelatedGoals []RelatedGoal `json:"relatedGoals"`
}

// SuggestedTask is one low-effort restart candidate.
type SuggestedTask struct {
	TaskID string `json:"taskId"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// ResumeSupportPayload proposes easy tasks after a stretch of inactivity.
type ResumeSupportPayload struct {
	InactiveDays     int             `json:"inactiveDays"`
	LastActivityDate string          `json:"lastActivityDate"`
	SuggestedTasks   []SuggestedTask `json:"suggestedTasks"`
}

// GoalReframeChange is one proposed edit inside a GOAL_REFRAME payload.
type GoalReframeChange struct {
	Field          string `json:"field"`
	CurrentValue   string `json:"currentValue"`
	SuggestedValue string `json:"suggestedValue"`
	Reason         string `json:"reason"`
}

// GoalReframePayload is reserved for the goal-rewording assistant.
type GoalReframePayload struct {
	GoalID           string              `json:"goalId"`
	CurrentTitle     string              `json:"currentTitle"`
	SuggestedChanges []GoalReframeChange `json:"suggestedChanges"`
}

// AutonomyAdjustPayload is reserved for suggestion-frequency tuning.
type AutonomyAdjustPayload struct {
	CurrentFrequency   string `json:"currentFrequency"`
	SuggestedFrequency string `json:"suggestedFrequency"`
	Reason             string `json:"reason"`
}

// VisionCreateAssistPayload is reserved for the vision drafting assistant.
type VisionCreateAssistPayload struct {
	SuggestedHorizon string   `json:"suggestedHorizon"`
	DraftTitle       string   `json:"draftTitle"`
	DraftDescription string   `json:"draftDescription"`
	PromptQuestions  []string `json:"promptQuestions"`
}

// VisionToQuarterGoal is one drafted quarter goal under a vision.
type VisionToQuarterGoal struct {
	Year    int    `json:"year"`
	Cadence string `json:"cadence"`
	Title   string `json:"title"`
	Theme   string `json:"theme"`
}

// VisionToQuarterPayload is reserved for vision-to-quarter translation.
type VisionToQuarterPayload struct {
	VisionID              string                `json:"visionId"`
	VisionTitle           string                `json:"visionTitle"`
	SuggestedQuarterGoals []VisionToQuarterGoal `json:"suggestedQuarterGoals"`
}

// GoalToTaskDraft is one drafted task under a goal.
type GoalToTaskDraft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	EffortMin   int    `json:"effortMin"`
}

// GoalToTaskPayload is reserved for goal-to-task drafting.
type GoalToTaskPayload struct {
	GoalID         string            `json:"goalId"`
	GoalTitle      string            `json:"goalTitle"`
	SuggestedTasks []GoalToTaskDraft `json:"suggestedTasks"`
}
