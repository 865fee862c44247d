package transcribe

import (
	"context"
	"cuecard/app/client/speechkit"
	"cuecard/app/config"
	"cuecard/app/service/queue"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

const (
	bufferSize = 4096
)

type recognizer interface {
	Recv() (speechkit.Hypothesis, error)
}

type fragmentSink interface {
	AddFragment(text string) bool
}

// Service feeds recognized speech into the guidance channel.
type Service struct {
	source       string
	speechClient *speechkit.Client
	queue        fragmentSink
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return &Service{
		source:       cfg.Transcribe.Source,
		speechClient: do.MustInvoke[*speechkit.Client](di),
		queue:        do.MustInvoke[*queue.Service](di),
	}, nil
}

// Run transcribes the configured source until ctx is done or ffmpeg exits.
func (s *Service) Run(ctx context.Context) error {
	ffmpeg, err := NewFFmpegStream(ctx, s.source)
	if err != nil {
		return fmt.Errorf("failed to create ffmpeg stream: %w", err)
	}

	if err = ffmpeg.Start(); err != nil {
		return err
	}
	defer ffmpeg.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.runTranscriptionWithRetry(gctx, ffmpeg.AudioStream())
	})

	g.Go(func() error {
		err := ffmpeg.Wait()
		if err == nil && gctx.Err() == nil {
			err = fmt.Errorf("ffmpeg process finished")
		}
		return err
	})

	err = g.Wait()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	if err != nil {
		slog.Error("Transcription failed", "error", err)
	}

	return err
}

func (s *Service) runTranscriptionWithRetry(ctx context.Context, audioSrc io.Reader) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			err := s.runSingleTranscription(ctx, audioSrc)
			if err == nil {
				return nil
			}

			if errors.Is(err, io.EOF) {
				slog.Info("Received EOF from speechkit, restarting recognition")
				continue
			}

			return fmt.Errorf("transcription error: %w", err)
		}
	}
}

func (s *Service) runSingleTranscription(ctx context.Context, audioSrc io.Reader) error {
	handle, err := s.speechClient.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transcription: %w", err)
	}
	defer handle.Close()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.streamAudio(ctx, audioSrc, handle)
	})

	g.Go(func() error {
		return s.receiveHypotheses(ctx, handle)
	})

	return g.Wait()
}

func (s *Service) streamAudio(ctx context.Context, audioSrc io.Reader, handle *speechkit.Handle) error {
	if err := handle.SendConfig(); err != nil {
		return fmt.Errorf("failed to send audio config: %w", err)
	}

	buffer := make([]byte, bufferSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			n, err := audioSrc.Read(buffer)
			if err != nil {
				return fmt.Errorf("failed to read audio: %w", err)
			}

			if n == 0 {
				continue
			}

			if err = handle.Send(buffer[:n]); err != nil {
				return fmt.Errorf("failed to send audio: %w", err)
			}
		}
	}
}

// receiveHypotheses forwards every new partial or final text as a fragment.
// Repeats of the previous text are skipped.
func (s *Service) receiveHypotheses(ctx context.Context, rec recognizer) error {
	var last string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		hyp, err := rec.Recv()
		if err != nil {
			return err
		}

		if hyp.Text == "" || hyp.Text == last {
			continue
		}
		last = hyp.Text

		if hyp.Final {
			slog.Debug("Final transcription", "text", hyp.Text)
		}

		s.queue.AddFragment(hyp.Text)
	}
}
