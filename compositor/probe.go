package compositor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"reelbot/media"
)

const defaultProbeTimeout = 30 * time.Second

// Prober measures the narration track with ffprobe.
type Prober struct {
	probe func(path string, timeout time.Duration) (string, error)
}

// NewProber creates a Prober backed by ffprobe on PATH.
func NewProber() *Prober {
	return &Prober{probe: func(path string, timeout time.Duration) (string, error) {
		return ffmpeg.ProbeWithTimeout(path, timeout, ffmpeg.KwArgs{})
	}}
}

// Measure returns the narration track for path with its duration in seconds.
func (p *Prober) Measure(ctx context.Context, path string) (media.NarrationTrack, error) {
	if err := ctx.Err(); err != nil {
		return media.NarrationTrack{}, err
	}
	timeout := defaultProbeTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	out, err := p.probe(path, timeout)
	if err != nil {
		return media.NarrationTrack{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	d, err := parseProbeDuration(out)
	if err != nil {
		return media.NarrationTrack{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return media.NarrationTrack{Path: path, Duration: d}, nil
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbeDuration(data string) (float64, error) {
	var out probeOutput
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return 0, fmt.Errorf("decoding probe output: %w", err)
	}
	if out.Format.Duration == "" {
		return 0, fmt.Errorf("probe output has no format duration")
	}
	d, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing duration %q: %w", out.Format.Duration, err)
	}
	return d, nil
}
