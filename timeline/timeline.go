// Package timeline solves the reel's segment durations and crossfade offsets
// so the outro begins exactly when the narration ends.
package timeline

import (
	"fmt"

	"reelbot/assets"
	"reelbot/media"
)

// Transform is the motion applied to a segment.
type Transform int

const (
	TransformNone Transform = iota
	TransformZoomIn
	TransformZoomOut
)

func (t Transform) String() string {
	switch t {
	case TransformZoomIn:
		return "zoom-in"
	case TransformZoomOut:
		return "zoom-out"
	default:
		return "none"
	}
}

// Segment is one displayed visual unit. Start is when its first frame becomes
// visible (the start of its incoming crossfade).
type Segment struct {
	Index     int
	Role      assets.Role
	Asset     assets.Asset
	Start     float64
	Duration  float64
	Frames    int
	Transform Transform
	ZoomStart float64
	ZoomEnd   float64
}

// Transition is the crossfade joining segment Index and Index+1.
type Transition struct {
	Index    int
	Style    string
	Duration float64
	Offset   float64
}

// Timeline is the compiled reel layout. Segments are intro, content..., outro.
type Timeline struct {
	IntroDuration      float64
	NarrationDuration  float64
	OutroDuration      float64
	TransitionDuration float64
	PerSegmentDuration float64
	OutroOffset        float64
	FPS                int

	Narration   media.NarrationTrack
	Segments    []Segment
	Transitions []Transition
}

// ContentCount is the number of content segments.
func (t *Timeline) ContentCount() int { return len(t.Segments) - 2 }

// Intro returns the first segment.
func (t *Timeline) Intro() Segment { return t.Segments[0] }

// Outro returns the last segment.
func (t *Timeline) Outro() Segment { return t.Segments[len(t.Segments)-1] }

// TotalDuration is the length of the finished reel.
func (t *Timeline) TotalDuration() float64 {
	return t.IntroDuration + t.NarrationDuration + t.OutroDuration
}

// CaptionRange is the span of the narration on the reel clock.
func (t *Timeline) CaptionRange() (float64, float64) {
	return t.IntroDuration, t.OutroOffset
}

// VisibleDuration is the sum of segment durations minus crossfade overlap.
func (t *Timeline) VisibleDuration() float64 {
	total := 0.0
	for _, s := range t.Segments {
		total += s.Duration
	}
	for _, tr := range t.Transitions {
		total -= tr.Duration
	}
	return total
}

// Attach binds resolved assets and the narration track to the compiled segments.
func (t *Timeline) Attach(skel *assets.Skeleton, narration media.NarrationTrack) error {
	if got, want := len(skel.Content), t.ContentCount(); got != want {
		return fmt.Errorf("timeline compiled for %d content segments, skeleton has %d", want, got)
	}
	if narration.Duration != t.NarrationDuration {
		return fmt.Errorf("narration duration %v does not match compiled %v", narration.Duration, t.NarrationDuration)
	}

	t.Segments[0].Asset = skel.Intro
	for i, a := range skel.Content {
		t.Segments[i+1].Asset = a
		if a.Kind == media.KindVideo {
			t.Segments[i+1].Transform = TransformNone
			t.Segments[i+1].ZoomStart, t.Segments[i+1].ZoomEnd = 1, 1
		}
	}
	t.Segments[len(t.Segments)-1].Asset = skel.Outro
	t.Narration = narration
	return nil
}
