package compositor

import (
	"context"
	"log/slog"
	"runtime"
	"strings"

	"reelbot/config"
)

// hardwareEncoders are tried in order on each platform.
var hardwareEncoders = map[string][]string{
	"darwin": {"h264_videotoolbox"},
}

// DetectEncoder picks the H.264 encoder for this host. requested may name an
// encoder, "off" to force libx264, or be "auto" (or empty) to probe for a
// hardware encoder. Any failure falls back to libx264.
func DetectEncoder(ctx context.Context, logger *slog.Logger, run CommandRunner, ffmpegPath, requested string) string {
	return detectEncoder(ctx, logger, run, ffmpegPath, requested, runtime.GOOS)
}

func detectEncoder(ctx context.Context, logger *slog.Logger, run CommandRunner, ffmpegPath, requested, goos string) string {
	switch strings.ToLower(strings.TrimSpace(requested)) {
	case "", "auto":
	case "off", "none", "software", config.VideoCodec:
		return config.VideoCodec
	default:
		return requested
	}

	candidates := hardwareEncoders[goos]
	if len(candidates) == 0 {
		return config.VideoCodec
	}
	if run == nil {
		run = defaultCommandRunner
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	out, err := run(ctx, ffmpegPath, "-hide_banner", "-encoders")
	if err != nil {
		logger.Warn("encoder query failed, using software encoder", "error", err)
		return config.VideoCodec
	}
	listing := string(out)
	for _, enc := range candidates {
		if strings.Contains(listing, enc) {
			logger.Info("hardware encoder available", "encoder", enc)
			return enc
		}
	}
	return config.VideoCodec
}
