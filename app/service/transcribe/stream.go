package transcribe

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

type FFmpegStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser
	mu     sync.Mutex
}

// ffmpegArgs decodes source to 16 kHz mono PCM on stdout.
func ffmpegArgs(source string) []string {
	args := []string{"-loglevel", "warning"}

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
		)
	}

	return append(args,
		"-i", source,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", "16000",
		"-f", "s16le",
		"-",
	)
}

func NewFFmpegStream(ctx context.Context, source string) (*FFmpegStream, error) {
	args := ffmpegArgs(source)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	slog.Info("Running ffmpeg", "cmd", "ffmpeg "+strings.Join(args, " "))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	return &FFmpegStream{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

func (f *FFmpegStream) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	go f.logStderr()

	return nil
}

func (f *FFmpegStream) AudioStream() io.Reader {
	return f.stdout
}

func (f *FFmpegStream) Wait() error {
	return f.cmd.Wait()
}

func (f *FFmpegStream) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cmd.Process != nil {
		return f.cmd.Process.Kill()
	}
	return nil
}

func (f *FFmpegStream) logStderr() {
	scanner := bufio.NewScanner(f.stderr)
	for scanner.Scan() {
		slog.Debug("ffmpeg", "stderr", scanner.Text())
	}
}
