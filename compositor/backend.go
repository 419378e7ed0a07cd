// Package compositor executes render plans with ffmpeg.
package compositor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"reelbot/renderplan"
)

// Backend renders a plan to a video file.
type Backend interface {
	Execute(ctx context.Context, plan *renderplan.Plan, outputPath string) (string, error)
}

// ExecutionError is a failed render. Output holds the tail of the tool's log.
type ExecutionError struct {
	Output string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("render failed: %v", e.Err)
	}
	return fmt.Sprintf("render failed: %v: %s", e.Err, e.Output)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// CommandRunner runs a binary and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// FFmpegBackend lowers a plan to a single ffmpeg filter graph invocation.
type FFmpegBackend struct {
	logger     *slog.Logger
	ffmpegPath string
	encoder    string
	run        CommandRunner
}

// NewFFmpegBackend creates a backend. An empty encoder selects libx264.
func NewFFmpegBackend(logger *slog.Logger, ffmpegPath, encoder string) *FFmpegBackend {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegBackend{logger: logger, ffmpegPath: ffmpegPath, encoder: encoder, run: defaultCommandRunner}
}

// WithRunner replaces how the ffmpeg binary is invoked.
func (b *FFmpegBackend) WithRunner(run CommandRunner) *FFmpegBackend {
	b.run = run
	return b
}

// Encoder is the video encoder the backend lowers to.
func (b *FFmpegBackend) Encoder() string { return b.encoder }

// Execute renders plan to outputPath and returns the path written.
func (b *FFmpegBackend) Execute(ctx context.Context, plan *renderplan.Plan, outputPath string) (string, error) {
	args, err := Lower(plan, outputPath, b.encoder)
	if err != nil {
		return "", &ExecutionError{Err: fmt.Errorf("lowering plan: %w", err)}
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", &ExecutionError{Err: fmt.Errorf("creating output directory: %w", err)}
	}

	start := time.Now()
	b.logger.Info("rendering reel", "output", outputPath, "encoder", b.encoder, "nodes", len(plan.Nodes))
	b.logger.Debug("ffmpeg arguments", "args", strings.Join(args, " "))

	out, err := b.run(ctx, b.ffmpegPath, args...)
	if err != nil {
		return "", &ExecutionError{Output: tail(string(out), 20), Err: err}
	}

	b.logger.Info("reel rendered", "output", outputPath, "elapsed", time.Since(start).Round(time.Millisecond).String())
	return outputPath, nil
}

// tail keeps the last n lines of ffmpeg output, where the error is reported.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
