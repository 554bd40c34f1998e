package server

import "encoding/json"

// ProblemDetail is an RFC 7807 error response body.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// ComputeStateRequest triggers a snapshot computation.
type ComputeStateRequest struct {
	WindowDays int             `json:"windowDays,omitempty"`
	SelfReport json.RawMessage `json:"selfReport,omitempty"`
}

// SnapshotResponse is the wire form of a state snapshot. The stored JSON
// columns are passed through untouched.
type SnapshotResponse struct {
	ID                string          `json:"id"`
	WindowDays        int             `json:"windowDays"`
	PrimaryState      string          `json:"primaryState"`
	PrimaryConfidence int             `json:"primaryConfidence"`
	Scores            json.RawMessage `json:"scores"`
	TopSignals        json.RawMessage `json:"topSignals"`
	SelfReport        json.RawMessage `json:"selfReport,omitempty"`
	CreatedAt         int64           `json:"createdAt"`
}

// RespondRequest records the user's answer to a suggestion.
type RespondRequest struct {
	Response        string          `json:"response"`
	ResponsePayload json.RawMessage `json:"responsePayload,omitempty"`
}

// SuggestionEventResponse is the wire form of a stored suggestion event.
type SuggestionEventResponse struct {
	EventID     string          `json:"eventId"`
	Type        string          `json:"type"`
	Title       string          `json:"title"`
	Message     string          `json:"message"`
	Options     json.RawMessage `json:"options"`
	Payload     json.RawMessage `json:"payload"`
	Context     string          `json:"context,omitempty"`
	StateType   string          `json:"stateType,omitempty"`
	StateScore  int             `json:"stateScore,omitempty"`
	Response    string          `json:"response,omitempty"`
	RespondedAt int64           `json:"respondedAt,omitempty"`
	CreatedAt   int64           `json:"createdAt"`
}

// DraftMicrostepsRequest asks for an AI-drafted split of a task.
type DraftMicrostepsRequest struct {
	TaskTitle       string `json:"taskTitle"`
	TaskDescription string `json:"taskDescription,omitempty"`
}

// CreatePromptVersionRequest registers a new prompt version.
type CreatePromptVersionRequest struct {
	TemplateKey string `json:"templateKey"`
	Version     int    `json:"version"`
	Variant     string `json:"variant,omitempty"`
	SystemText  string `json:"systemText"`
	UserText    string `json:"userText"`
	Notes       string `json:"notes,omitempty"`
}

// CreateExperimentRequest registers a new experiment.
type CreateExperimentRequest struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AddVariantRequest attaches a weighted variant to a draft experiment.
type AddVariantRequest struct {
	Key        string          `json:"key"`
	Name       string          `json:"name"`
	Weight     int             `json:"weight"`
	ConfigJSON json.RawMessage `json:"config,omitempty"`
}

func rawOrNull(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}
