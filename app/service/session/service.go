package session

import (
	"context"
	"cuecard/app/client/gemini"
	"cuecard/app/config"
	"cuecard/app/service/engine"
	"cuecard/app/service/orchestrator"
	"cuecard/app/service/prompt"
	"cuecard/app/service/settings"
	"cuecard/app/service/surface"
	"cuecard/app/util/metrics"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/oops"
)

var (
	ErrNoSession      = errors.New("no active session")
	ErrUnknownPersona = errors.New("unknown persona")
)

type Settings interface {
	APIKey() (string, error)
	CustomPrompt(persona string) (string, error)
	RecordSession(duration time.Duration) error
}

type ClientConfigurer interface {
	Configure(apiKey string, persona prompt.Persona, customPrompt string)
}

type Controller interface {
	StartSession(ctx context.Context, cfg orchestrator.SessionConfig) error
	EndSession(ctx context.Context) error
}

type Resetter interface {
	Reset(sessionID string)
}

type Service struct {
	settings Settings
	client   ClientConfigurer
	engine   Controller
	surface  Resetter

	defaultPersona string
	fallbackKey    string
	maxDuration    time.Duration

	mu      sync.Mutex
	current *Session
	timer   *time.Timer
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		cfg,
		do.MustInvoke[*settings.Service](di),
		do.MustInvoke[*gemini.Client](di),
		do.MustInvoke[*engine.Service](di),
		do.MustInvoke[*surface.Service](di),
	), nil
}

func NewService(cfg *config.Config, settingsSvc Settings, client ClientConfigurer, controller Controller, resetter Resetter) *Service {
	return &Service{
		settings:       settingsSvc,
		client:         client,
		engine:         controller,
		surface:        resetter,
		defaultPersona: cfg.Session.DefaultPersona,
		fallbackKey:    cfg.Gemini.APIKey,
		maxDuration:    cfg.Session.MaxDuration,
	}
}

// Start begins a session for personaID using the persisted key and custom context.
func (s *Service) Start(ctx context.Context, personaID string) (Session, error) {
	if personaID == "" {
		personaID = s.defaultPersona
	}

	persona, ok := prompt.Lookup(personaID)
	if !ok {
		return Session{}, oops.With("persona", personaID).Wrap(ErrUnknownPersona)
	}

	apiKey, err := s.settings.APIKey()
	if err != nil {
		return Session{}, oops.Wrapf(err, "failed to read api key")
	}
	if apiKey == "" {
		apiKey = s.fallbackKey
	}

	customPrompt, err := s.settings.CustomPrompt(persona.ID)
	if err != nil {
		return Session{}, oops.Wrapf(err, "failed to read custom prompt")
	}

	return s.StartWith(ctx, Config{
		Persona:      persona,
		APIKey:       apiKey,
		CustomPrompt: customPrompt,
	})
}

// StartWith ends the active session, if any, and starts a new one.
func (s *Service) StartWith(ctx context.Context, cfg Config) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		if err := s.endLocked(ctx); err != nil {
			return Session{}, err
		}
	}

	id := uuid.NewString()

	s.client.Configure(cfg.APIKey, cfg.Persona, cfg.CustomPrompt)

	err := s.engine.StartSession(ctx, orchestrator.SessionConfig{
		ID:           id,
		Persona:      cfg.Persona,
		CustomPrompt: cfg.CustomPrompt,
	})
	if err != nil {
		return Session{}, oops.Wrapf(err, "failed to start session")
	}

	s.surface.Reset(id)

	s.current = &Session{
		ID:        id,
		Persona:   cfg.Persona.ID,
		StartedAt: time.Now(),
		Status:    StatusActive,
	}
	s.timer = time.AfterFunc(s.maxDuration, func() {
		s.expire(id)
	})

	metrics.SessionsTotal.WithLabelValues(cfg.Persona.ID).Inc()

	slog.Info("Session started",
		"session_id", id,
		"persona", cfg.Persona.ID,
		"has_api_key", cfg.APIKey != "",
		"has_custom_prompt", cfg.CustomPrompt != "",
	)

	return *s.current, nil
}

func (s *Service) End(ctx context.Context) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return Session{}, ErrNoSession
	}

	ended := *s.current
	if err := s.endLocked(ctx); err != nil {
		return Session{}, err
	}

	now := time.Now()
	ended.EndedAt = &now
	ended.Status = StatusCompleted

	return ended, nil
}

func (s *Service) endLocked(ctx context.Context) error {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	if err := s.engine.EndSession(ctx); err != nil {
		return oops.Wrapf(err, "failed to end session")
	}

	current := s.current
	s.current = nil

	duration := time.Since(current.StartedAt)
	if err := s.settings.RecordSession(duration); err != nil {
		slog.Warn("Failed to record session usage", "session_id", current.ID, "error", err)
	}

	slog.Info("Session ended",
		"session_id", current.ID,
		"persona", current.Persona,
		"duration", duration,
	)

	return nil
}

func (s *Service) expire(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.ID != id {
		return
	}

	slog.Info("Session reached maximum duration", "session_id", id, "max_duration", s.maxDuration)

	if err := s.endLocked(context.Background()); err != nil {
		slog.Error("Failed to end expired session", "session_id", id, "error", err)
	}
}

// Current returns the active session.
func (s *Service) Current() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return Session{}, false
	}

	return *s.current, true
}

// Shutdown records the usage of a session still active at exit. The engine
// loop is gone by then, so it is not involved.
func (s *Service) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	current := s.current
	s.current = nil

	return s.settings.RecordSession(time.Since(current.StartedAt))
}
