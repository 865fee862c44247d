package engine

import (
	"context"
	"cuecard/app/client/gemini"
	"cuecard/app/service/history"
	"cuecard/app/service/orchestrator"
	"cuecard/app/service/queue"
	"cuecard/app/service/surface"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/do"
)

// ErrStopped is returned by calls made after Run has returned.
var ErrStopped = errors.New("engine stopped")

// Generator performs one text generation call.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type result struct {
	req  *orchestrator.Request
	text string
	err  error
}

type command struct {
	fn   func(ctx context.Context)
	done chan struct{}
}

// Status describes the orchestrator as seen from the loop.
type Status struct {
	Active   bool               `json:"active"`
	Guidance orchestrator.State `json:"guidance"`
	Chat     orchestrator.State `json:"chat"`
}

// Service owns the orchestrator. Every state change happens on the Run
// goroutine; generation calls run aside and report back through results.
type Service struct {
	queueSvc *queue.Service
	client   Generator
	orch     *orchestrator.Orchestrator

	results chan result
	control chan command
	calls   sync.WaitGroup

	stopped  chan struct{}
	stopOnce sync.Once
}

func New(di *do.Injector) (*Service, error) {
	return NewService(
		do.MustInvoke[*queue.Service](di),
		do.MustInvoke[*gemini.Client](di),
		do.MustInvoke[*history.Store](di),
		do.MustInvoke[*surface.Service](di),
	), nil
}

func NewService(queueSvc *queue.Service, client Generator, store *history.Store, sink orchestrator.Sink) *Service {
	return &Service{
		queueSvc: queueSvc,
		client:   client,
		orch:     orchestrator.New(store, sink),
		results:  make(chan result),
		control:  make(chan command),
		stopped:  make(chan struct{}),
	}
}

func (s *Service) Run(ctx context.Context) {
	defer s.calls.Wait()
	defer s.stopOnce.Do(func() { close(s.stopped) })

	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-s.queueSvc.Channel():
			if !ok {
				return
			}

			s.handleInput(ctx, in)
		case res := <-s.results:
			next := s.orch.Resolve(res.req, res.text, res.err)
			s.execute(ctx, next)
		case cmd := <-s.control:
			cmd.fn(ctx)
			close(cmd.done)
		}
	}
}

func (s *Service) handleInput(ctx context.Context, in queue.Input) {
	var req *orchestrator.Request

	switch in.Kind {
	case queue.KindFragment:
		req = s.orch.SubmitFragment(in.Text)
	case queue.KindMessage:
		req = s.orch.SubmitMessage(in.Text)
	}

	if req == nil && !s.orch.Active() {
		slog.Debug("Input ignored, no active session", "kind", in.Kind)
	}

	s.execute(ctx, req)
}

func (s *Service) execute(ctx context.Context, req *orchestrator.Request) {
	if req == nil {
		return
	}

	s.calls.Add(1)
	go func() {
		defer s.calls.Done()

		start := time.Now()
		text, err := s.client.Generate(ctx, req.SystemPrompt, req.UserPrompt)

		slog.Info("Processed request",
			"channel", req.Channel,
			"request_id", req.ID,
			"session_id", req.SessionID,
			"input", req.Input,
			"duration", time.Since(start),
			"error", err,
		)

		select {
		case s.results <- result{req: req, text: text, err: err}:
		case <-ctx.Done():
		}
	}()
}

// exec runs fn on the loop goroutine and waits for it to finish.
func (s *Service) exec(ctx context.Context, fn func(loopCtx context.Context)) error {
	cmd := command{
		fn:   fn,
		done: make(chan struct{}),
	}

	select {
	case s.control <- cmd:
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-cmd.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) StartSession(ctx context.Context, cfg orchestrator.SessionConfig) error {
	return s.exec(ctx, func(context.Context) {
		s.orch.Start(cfg)
	})
}

func (s *Service) EndSession(ctx context.Context) error {
	return s.exec(ctx, func(context.Context) {
		s.orch.End()
	})
}

// Resend submits a failed chat message again.
func (s *Service) Resend(ctx context.Context, messageID uuid.UUID) error {
	var resendErr error

	err := s.exec(ctx, func(loopCtx context.Context) {
		var req *orchestrator.Request

		req, resendErr = s.orch.Resend(messageID)
		s.execute(loopCtx, req)
	})
	if err != nil {
		return err
	}

	return resendErr
}

func (s *Service) Status(ctx context.Context) (Status, error) {
	var status Status

	err := s.exec(ctx, func(context.Context) {
		status = Status{
			Active:   s.orch.Active(),
			Guidance: s.orch.State(orchestrator.ChannelGuidance),
			Chat:     s.orch.State(orchestrator.ChannelChat),
		}
	})
	if err != nil {
		return Status{}, err
	}

	return status, nil
}
