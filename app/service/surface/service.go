// Package surface keeps what the user currently sees: the latest guidance
// and the chat transcript. It also forwards every change to one listener.
package surface

import (
	"log/slog"
	"sync"
	"time"

	"cuecard/app/client/gemini"
	"cuecard/app/service/orchestrator"

	"github.com/google/uuid"
	"github.com/samber/do"
)

const (
	InitialGuidance = "Ready to provide real-time guidance"
	listenerBuffer  = 64
)

var _ orchestrator.Sink = (*Service)(nil)

type Service struct {
	mu        sync.RWMutex
	guidance  string
	lastError gemini.Kind
	typing    bool
	messages  []orchestrator.Message
	listener  chan Event
}

func New(_ *do.Injector) (*Service, error) {
	return NewService(), nil
}

func NewService() *Service {
	return &Service{
		guidance: InitialGuidance,
	}
}

func (s *Service) GuidanceUpdated(text string) {
	s.mu.Lock()
	s.guidance = text
	s.lastError = ""
	s.mu.Unlock()

	s.publish(Event{Type: EventGuidanceUpdated, Guidance: text})
}

func (s *Service) GuidanceFailed(kind gemini.Kind) {
	s.mu.Lock()
	s.lastError = kind
	s.mu.Unlock()

	s.publish(Event{Type: EventGuidanceError, Kind: kind})
}

func (s *Service) MessageAppended(msg orchestrator.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.publish(Event{Type: EventMessageAppended, Message: &msg})
}

func (s *Service) TypingChanged(typing bool) {
	s.mu.Lock()
	s.typing = typing
	s.mu.Unlock()

	s.publish(Event{Type: EventTypingChanged, Typing: &typing})
}

func (s *Service) ChatFailed(messageID uuid.UUID, kind gemini.Kind, fallback string) {
	s.publish(Event{
		Type:      EventChatError,
		Kind:      kind,
		MessageID: &messageID,
		Fallback:  fallback,
	})
}

// Reset clears the rendered state for a new session.
func (s *Service) Reset(sessionID string) {
	s.mu.Lock()
	s.guidance = InitialGuidance
	s.lastError = ""
	s.typing = false
	s.messages = nil
	s.mu.Unlock()

	s.publish(Event{Type: EventSessionReset, SessionID: sessionID})
}

func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]orchestrator.Message, len(s.messages))
	copy(messages, s.messages)

	return Snapshot{
		Guidance:  s.guidance,
		LastError: s.lastError,
		Typing:    s.typing,
		Messages:  messages,
	}
}

// Subscribe replaces the current listener. The returned channel is closed
// when the listener is replaced or cancel is called.
func (s *Service) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, listenerBuffer)

	s.mu.Lock()
	if s.listener != nil {
		close(s.listener)
	}
	s.listener = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.listener == ch {
			close(ch)
			s.listener = nil
		}
	}

	return ch, cancel
}

func (s *Service) publish(ev Event) {
	ev.Timestamp = time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener == nil {
		return
	}

	select {
	case s.listener <- ev:
	default:
		slog.Warn("Surface listener is lagging, dropping event", "type", ev.Type)
	}
}
