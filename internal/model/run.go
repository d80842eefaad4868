package model

import (
	"time"
)

// RunStatus is the lifecycle state of a conversation run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Turn is one request-generate-deliver step of a run.
type Turn struct {
	Index     int         `json:"index"`
	Speaker   PersonaSlot `json:"-"`
	SpeakerID string      `json:"speaker_id"`
	Prompt    string      `json:"prompt"`
	Response  string      `json:"response"`
	MessageID string      `json:"message_id,omitempty"`
}

// Run is the snapshot of a conversation run.
type Run struct {
	ID             string     `json:"id"`
	ChannelID      string     `json:"channel_id"`
	Status         RunStatus  `json:"status"`
	TurnCount      int        `json:"turn_count"`
	TurnsCompleted int        `json:"turns_completed"`
	Turns          []Turn     `json:"turns"`
	ErrorCode      string     `json:"error_code,omitempty"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// RunEventType represents the type of run lifecycle event.
type RunEventType string

const (
	RunEventStarted       RunEventType = "run.started"
	RunEventTurnCompleted RunEventType = "turn.completed"
	RunEventCompleted     RunEventType = "run.completed"
	RunEventFailed        RunEventType = "run.failed"
)

// RunEvent is an append-only record of a run state transition.
type RunEvent struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	ChannelID string       `json:"channel_id"`
	Type      RunEventType `json:"type"`
	Turn      int          `json:"turn,omitempty"`
	SpeakerID string       `json:"speaker_id,omitempty"`
	Text      string       `json:"text,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	Sequence  uint64       `json:"sequence,omitempty"`
}
