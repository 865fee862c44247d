package surface

import (
	"time"

	"cuecard/app/client/gemini"
	"cuecard/app/service/orchestrator"

	"github.com/google/uuid"
)

type EventType string

const (
	EventGuidanceUpdated EventType = "guidance_updated"
	EventGuidanceError   EventType = "guidance_error"
	EventMessageAppended EventType = "message_appended"
	EventTypingChanged   EventType = "typing_changed"
	EventChatError       EventType = "chat_error"
	EventSessionReset    EventType = "session_reset"
)

type Event struct {
	Type      EventType             `json:"type"`
	Timestamp time.Time             `json:"timestamp"`
	SessionID string                `json:"session_id,omitempty"`
	Guidance  string                `json:"guidance,omitempty"`
	Kind      gemini.Kind           `json:"kind,omitempty"`
	Message   *orchestrator.Message `json:"message,omitempty"`
	MessageID *uuid.UUID            `json:"message_id,omitempty"`
	Typing    *bool                 `json:"typing,omitempty"`
	Fallback  string                `json:"fallback,omitempty"`
}

type Snapshot struct {
	Guidance  string                 `json:"guidance"`
	LastError gemini.Kind            `json:"last_error,omitempty"`
	Typing    bool                   `json:"typing"`
	Messages  []orchestrator.Message `json:"messages"`
}
