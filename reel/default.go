package reel

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"reelbot/cards"
	"reelbot/compositor"
	"reelbot/config"
)

// NewDefaultGenerator wires a generator to ffprobe, the card renderer and the
// ffmpeg backend. The encoder is detected once here.
func NewDefaultGenerator(ctx context.Context, settings config.Settings, logger *slog.Logger) (*Generator, string, error) {
	encoder := compositor.DetectEncoder(ctx, logger, nil, settings.FFmpegPath, settings.HWEncoder)

	framed := false
	if settings.FrameOverlayPath != "" {
		if _, err := os.Stat(settings.FrameOverlayPath); err == nil {
			framed = true
		}
	}
	renderer, err := cards.NewRenderer(logger, cards.Options{
		FontPath: settings.FontPath,
		Framed:   framed,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to initialize card renderer: %w", err)
	}

	backend := compositor.NewFFmpegBackend(logger, settings.FFmpegPath, encoder)
	return NewGenerator(settings, logger, compositor.NewProber(), renderer, backend), encoder, nil
}
