// Package history keeps the conversation turns of the active session.
package history

import (
	"strings"
	"sync"
	"time"

	"github.com/elliotchance/pie/v2"
)

const (
	DefaultRecentTurns = 3
	contextHeader      = "Previous conversation context:\n"
)

// Turn is one resolved input/response exchange.
type Turn struct {
	Input     string    `json:"input"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is written by a single owner and may be read from any goroutine.
type Store struct {
	mu    sync.RWMutex
	turns []Turn
}

func New() *Store {
	return &Store{}
}

func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = nil
}

func (s *Store) AppendTurn(input, response string) {
	turn := Turn{
		Input:     strings.TrimSpace(input),
		Response:  response,
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, turn)
}

// RecentContext renders the inputs of the last maxTurns turns, oldest first.
func (s *Store) RecentContext(maxTurns int) string {
	if maxTurns <= 0 {
		maxTurns = DefaultRecentTurns
	}

	s.mu.RLock()
	recent := s.turns[max(0, len(s.turns)-maxTurns):]
	inputs := pie.Map(recent, func(t Turn) string {
		return t.Input
	})
	s.mu.RUnlock()

	inputs = pie.Filter(inputs, func(input string) bool {
		return strings.TrimSpace(input) != ""
	})
	if len(inputs) == 0 {
		return ""
	}

	return contextHeader + strings.Join(inputs, "\n")
}

func (s *Store) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Turn, len(s.turns))
	copy(result, s.turns)

	return result
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.turns)
}
