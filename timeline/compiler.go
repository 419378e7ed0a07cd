package timeline

import (
	"math"

	"reelbot/assets"
	"reelbot/config"
)

// Input is the timing description of one reel.
type Input struct {
	IntroDuration      float64
	NarrationDuration  float64
	OutroDuration      float64
	TransitionDuration float64
	Segments           int
}

// Compiler turns an Input into a Timeline. The zero value is not usable; use NewCompiler.
type Compiler struct {
	MinNarration     float64
	FPS              int
	ZoomCap          float64
	FallbackDuration float64
	Styles           []string
}

// NewCompiler returns a compiler with the package defaults.
func NewCompiler(minNarration float64) Compiler {
	return Compiler{
		MinNarration:     minNarration,
		FPS:              config.FPS,
		ZoomCap:          config.ZoomCap,
		FallbackDuration: config.FallbackSegmentDuration,
		Styles:           config.TransitionStyles,
	}
}

// Compile solves the layout.
//
// With N content segments there are N crossfades before the outro
// (intro→1, 1→2, ..., N-1→N), each consuming T seconds of overlap, so the
// running length after the content loop is intro + N·(perSeg − T). The outro
// crossfade must start at intro + narration and needs T seconds of lead-in,
// which gives perSeg = (narration + T)/N + T.
func (c Compiler) Compile(in Input) (*Timeline, error) {
	if err := c.validate(in); err != nil {
		return nil, err
	}

	n := in.Segments
	fade := in.TransitionDuration
	outroOffset := in.IntroDuration + in.NarrationDuration

	perSeg := c.FallbackDuration
	if n > 0 {
		perSeg = (in.NarrationDuration+fade)/float64(n) + fade
	}

	tl := &Timeline{
		IntroDuration:      in.IntroDuration,
		NarrationDuration:  in.NarrationDuration,
		OutroDuration:      in.OutroDuration,
		TransitionDuration: fade,
		PerSegmentDuration: perSeg,
		OutroOffset:        outroOffset,
		FPS:                c.FPS,
		Segments:           make([]Segment, 0, n+2),
		Transitions:        make([]Transition, 0, n+1),
	}

	introDuration := in.IntroDuration
	if n == 0 {
		// Nothing to fade into before the outro: hold the intro until then.
		introDuration = outroOffset + fade
	}
	tl.Segments = append(tl.Segments, c.segment(0, assets.RoleIntro, 0, introDuration, TransformNone))

	cumulative := in.IntroDuration
	for k := 0; k < n; k++ {
		offset := cumulative - fade
		tl.Transitions = append(tl.Transitions, Transition{
			Index:    k,
			Style:    c.style(k),
			Duration: fade,
			Offset:   offset,
		})
		tl.Segments = append(tl.Segments, c.segment(k+1, assets.RoleContent, offset, perSeg, motionFor(k)))
		cumulative += perSeg - fade
	}

	tl.Transitions = append(tl.Transitions, Transition{
		Index:    n,
		Style:    c.style(n),
		Duration: fade,
		Offset:   outroOffset,
	})
	tl.Segments = append(tl.Segments, c.segment(n+1, assets.RoleOutro, outroOffset, in.OutroDuration, TransformNone))

	return tl, nil
}

func (c Compiler) validate(in Input) error {
	if in.Segments < 0 {
		return &InvalidParameterError{Name: "segments", Value: float64(in.Segments), Reason: "must not be negative"}
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"intro_duration", in.IntroDuration},
		{"outro_duration", in.OutroDuration},
		{"transition_duration", in.TransitionDuration},
	} {
		if math.IsNaN(p.v) || math.IsInf(p.v, 0) || p.v <= 0 {
			return &InvalidParameterError{Name: p.name, Value: p.v, Reason: "must be a positive finite number"}
		}
	}
	if in.TransitionDuration > in.IntroDuration {
		return &InvalidParameterError{Name: "transition_duration", Value: in.TransitionDuration, Reason: "must not exceed the intro duration"}
	}
	if in.TransitionDuration > in.OutroDuration {
		return &InvalidParameterError{Name: "transition_duration", Value: in.TransitionDuration, Reason: "must not exceed the outro duration"}
	}
	if math.IsNaN(in.NarrationDuration) || math.IsInf(in.NarrationDuration, 0) {
		return &InvalidParameterError{Name: "narration_duration", Value: in.NarrationDuration, Reason: "must be finite"}
	}
	if in.NarrationDuration < c.MinNarration {
		return &NarrationTooShortError{Duration: in.NarrationDuration, Minimum: c.MinNarration}
	}
	if c.FPS <= 0 {
		return &InvalidParameterError{Name: "fps", Value: float64(c.FPS), Reason: "must be positive"}
	}
	return nil
}

func (c Compiler) segment(index int, role assets.Role, start, duration float64, tr Transform) Segment {
	s := Segment{
		Index:     index,
		Role:      role,
		Start:     start,
		Duration:  duration,
		Frames:    frameCount(duration, c.FPS),
		Transform: tr,
		ZoomStart: 1,
		ZoomEnd:   1,
	}
	switch tr {
	case TransformZoomIn:
		s.ZoomEnd = c.ZoomCap
	case TransformZoomOut:
		s.ZoomStart = c.ZoomCap
	}
	return s
}

func (c Compiler) style(k int) string {
	styles := c.Styles
	if len(styles) == 0 {
		styles = config.TransitionStyles
	}
	return styles[k%len(styles)]
}

// motionFor alternates zoom direction by content index.
func motionFor(k int) Transform {
	if k%2 == 0 {
		return TransformZoomIn
	}
	return TransformZoomOut
}

// frameCount rounds up so a segment never renders shorter than its slot.
func frameCount(seconds float64, fps int) int {
	return int(math.Ceil(seconds*float64(fps) - 1e-9))
}
