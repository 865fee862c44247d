package queue

import (
	"log/slog"
	"sync"

	"github.com/samber/do"
)

const bufferSize = 256

var _ do.Shutdownable = (*Service)(nil)

type Kind int

const (
	KindFragment Kind = iota
	KindMessage
)

func (k Kind) String() string {
	switch k {
	case KindFragment:
		return "fragment"
	case KindMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Input is one event from a transcription source or the chat surface.
type Input struct {
	Kind Kind
	Text string
}

type Service struct {
	mu     sync.RWMutex
	closed bool
	queue  chan Input
}

func New(_ *do.Injector) (*Service, error) {
	return &Service{
		queue: make(chan Input, bufferSize),
	}, nil
}

// Add enqueues the input without blocking. It reports false when the input
// was dropped.
func (s *Service) Add(input Input) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.queue <- input:
		return true
	default:
		slog.Warn("Input queue is full", "kind", input.Kind)
		return false
	}
}

func (s *Service) AddFragment(text string) bool {
	return s.Add(Input{Kind: KindFragment, Text: text})
}

func (s *Service) AddMessage(text string) bool {
	return s.Add(Input{Kind: KindMessage, Text: text})
}

func (s *Service) Channel() <-chan Input {
	return s.queue
}

func (s *Service) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.queue)
	}

	return nil
}
