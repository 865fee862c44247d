package orchestrator

import (
	"time"

	"cuecard/app/client/gemini"
	"cuecard/app/service/prompt"

	"github.com/google/uuid"
)

type ChannelKind string

const (
	ChannelGuidance ChannelKind = "guidance"
	ChannelChat     ChannelKind = "chat"
)

type Mode int

const (
	// ModeCoalesce keeps only the latest input received while a request is pending.
	ModeCoalesce Mode = iota
	// ModeQueue dispatches every input in arrival order.
	ModeQueue
)

type State int

const (
	StateIdle State = iota
	StatePending
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Sender string

const (
	SenderUser   Sender = "user"
	SenderAI     Sender = "ai"
	SenderSystem Sender = "system"
)

type Message struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Failed    bool      `json:"failed,omitempty"`
}

// Request is the single pending request of a channel.
type Request struct {
	ID           uint64
	SessionID    string
	Channel      ChannelKind
	Input        string
	MessageID    uuid.UUID
	SystemPrompt string
	UserPrompt   string
	QueuedAt     time.Time
	SubmittedAt  time.Time
	Cancelled    bool
}

type SessionConfig struct {
	ID           string
	Persona      prompt.Persona
	CustomPrompt string
}

// Sink receives the results of both channels. Calls are made from the
// goroutine that owns the Orchestrator and must not block.
type Sink interface {
	GuidanceUpdated(text string)
	GuidanceFailed(kind gemini.Kind)
	MessageAppended(msg Message)
	TypingChanged(typing bool)
	ChatFailed(messageID uuid.UUID, kind gemini.Kind, fallback string)
}
