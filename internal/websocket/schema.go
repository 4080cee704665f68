package websocket

import "github.com/stemsi/exstem-delivery/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AutosaveRequest is sent by the client to save a single response.
type AutosaveRequest struct {
	Action   Action                 `json:"action"`
	Response model.AutosaveResponse `json:"response"`
}

// SubmitRequest is sent by the client to finish the attempt.
type SubmitRequest struct {
	Action    Action                    `json:"action"`
	Responses []model.SubmittedResponse `json:"responses" binding:"max=1000,dive"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventSaved     Event = "saved"
	EventSubmitted Event = "submitted"
	EventPong      Event = "pong"
)

type SavedResponse struct {
	Event       Event  `json:"event"`
	InstanceKey string `json:"instance_key"`
}

// SubmittedResponse carries the one authoritative result. Error is set when
// the attempt had already been finalized or had expired.
type SubmittedResponse struct {
	Event  Event              `json:"event"`
	Result model.SubmitResult `json:"result"`
	Error  string             `json:"error,omitempty"`
}

type ErrorResponse struct {
	Event  Event             `json:"event"`
	Code   string            `json:"code"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type PongResponse struct {
	Event     Event   `json:"event"`
	Remaining float64 `json:"remaining_seconds"`
}
