package renderplan

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"reelbot/assets"
	"reelbot/captions"
	"reelbot/config"
	"reelbot/media"
	"reelbot/timeline"
)

// TitleWindow is a headline shown over [Start, End).
type TitleWindow struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SegmentTitle is one article of a combined reel: its headline and how much
// of the narration it covers.
type SegmentTitle struct {
	Title         string  `json:"title"`
	VoiceDuration float64 `json:"voice_duration"`
}

// SingleTitle shows one headline for the whole narration.
func SingleTitle(tl *timeline.Timeline, text string) []TitleWindow {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	start, end := tl.CaptionRange()
	return []TitleWindow{{Text: text, Start: start, End: end}}
}

// SegmentTitles lays per-article headlines back to back from the end of the
// intro. The final window is clamped to the outro offset.
func SegmentTitles(tl *timeline.Timeline, segments []SegmentTitle) []TitleWindow {
	start, limit := tl.CaptionRange()
	var out []TitleWindow
	for _, s := range segments {
		if start >= limit {
			break
		}
		end := start + s.VoiceDuration
		if end > limit {
			end = limit
		}
		if strings.TrimSpace(s.Title) != "" && end > start {
			out = append(out, TitleWindow{Text: s.Title, Start: start, End: end})
		}
		start = end
	}
	return out
}

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	// CardDir receives generated caption and title images.
	CardDir string
	// FrameOverlayPath is an optional full-frame image composited over the content.
	FrameOverlayPath string
	Width            int
	Height           int
}

// Builder lowers a compiled timeline into a Plan.
type Builder struct {
	logger *slog.Logger
	opts   BuilderOptions
}

// NewBuilder creates a builder with the package defaults for unset geometry.
func NewBuilder(logger *slog.Logger, opts BuilderOptions) *Builder {
	if opts.Width == 0 {
		opts.Width = config.VideoWidth
	}
	if opts.Height == 0 {
		opts.Height = config.VideoHeight
	}
	return &Builder{logger: logger, opts: opts}
}

type planWriter struct {
	plan    *Plan
	current string
}

func (w *planWriter) input(in Input) string {
	w.plan.Inputs = append(w.plan.Inputs, in)
	return in.Label
}

// visibleSpans rounds spans to plan precision and drops the ones that round
// to nothing. A dropped span's end extends the span before it, so the last
// kept window still closes where the caption range does.
func visibleSpans(logger *slog.Logger, spans []captions.Span) []captions.Span {
	out := make([]captions.Span, 0, len(spans))
	for i, s := range spans {
		s.Start, s.End = round2(s.Start), round2(s.End)
		if s.End > s.Start {
			out = append(out, s)
			continue
		}
		logger.Debug("skipping empty caption window", "index", i, "at", s.Start)
		if n := len(out); n > 0 && s.End > out[n-1].End {
			out[n-1].End = s.End
		}
	}
	return out
}

func (w *planWriter) node(n Node) string {
	w.plan.Nodes = append(w.plan.Nodes, n)
	return n.Label
}

// Build produces the node graph for tl. The timeline must have its assets and
// narration attached.
func (b *Builder) Build(tl *timeline.Timeline, windows []captions.Window, titles []TitleWindow) (*Plan, error) {
	if len(tl.Segments) < 2 || len(tl.Transitions) != len(tl.Segments)-1 {
		return nil, fmt.Errorf("malformed timeline: %d segments, %d transitions", len(tl.Segments), len(tl.Transitions))
	}
	if tl.Narration.Path == "" {
		return nil, fmt.Errorf("timeline has no narration attached")
	}

	w := &planWriter{plan: &Plan{
		Width:    b.opts.Width,
		Height:   b.opts.Height,
		FPS:      tl.FPS,
		Duration: round2(tl.TotalDuration()),
	}}

	segOut := make([]string, len(tl.Segments))
	for i, seg := range tl.Segments {
		segOut[i] = b.segmentChain(w, tl, seg)
	}
	narration := w.input(Input{Label: "narration", Kind: InputAudio, Path: tl.Narration.Path})

	// Fold the content crossfades left to right. The outro joins last, after
	// the overlays, so they never bleed into it.
	n := tl.ContentCount()
	w.current = segOut[0]
	for k := 0; k < n; k++ {
		tr := tl.Transitions[k]
		w.current = w.node(Node{
			Label:  fmt.Sprintf("x%d", k),
			Op:     OpCrossfade,
			Inputs: []string{w.current, segOut[k+1]},
			Style:  tr.Style,
			Params: map[string]float64{"duration": round2(tr.Duration), "offset": round2(tr.Offset)},
		})
	}

	spans := visibleSpans(b.logger, captions.Flatten(windows))
	for k, s := range spans {
		card := w.input(Input{
			Label:    fmt.Sprintf("capcard%d", k),
			Kind:     InputCard,
			Path:     filepath.Join(b.opts.CardDir, fmt.Sprintf("caption_%03d.png", k)),
			Loop:     true,
			Duration: s.End,
			Card:     &CardSpec{Kind: CardCaption, Text: s.Text},
		})
		w.current = w.node(Node{
			Label:  fmt.Sprintf("cap%d", k),
			Op:     OpOverlay,
			Inputs: []string{w.current, card},
			Enable: &Window{Start: s.Start, End: s.End},
		})
	}
	w.current = w.node(Node{Label: "captioned", Op: OpPassthrough, Inputs: []string{w.current}})

	for k, t := range titles {
		if strings.TrimSpace(t.Text) == "" || !(round2(t.End) > round2(t.Start)) {
			b.logger.Debug("skipping empty title window", "index", k)
			continue
		}
		card := w.input(Input{
			Label:    fmt.Sprintf("titlecard%d", k),
			Kind:     InputCard,
			Path:     filepath.Join(b.opts.CardDir, fmt.Sprintf("title_%03d.png", k)),
			Loop:     true,
			Duration: round2(t.End),
			Card:     &CardSpec{Kind: CardTitle, Text: t.Text},
		})
		w.current = w.node(Node{
			Label:  fmt.Sprintf("title%d", k),
			Op:     OpOverlay,
			Inputs: []string{w.current, card},
			Enable: &Window{Start: round2(t.Start), End: round2(t.End)},
		})
	}

	if b.opts.FrameOverlayPath != "" {
		frame := w.input(Input{
			Label:    "frame",
			Kind:     InputImage,
			Path:     b.opts.FrameOverlayPath,
			Loop:     true,
			Duration: round2(tl.OutroOffset + tl.TransitionDuration),
		})
		fitted := w.node(Node{
			Label:  "frame_fit",
			Op:     OpScaleCrop,
			Inputs: []string{frame},
			Params: fitParams(b.opts.Width, b.opts.Height, tl.FPS),
		})
		w.current = w.node(Node{Label: "framed", Op: OpOverlay, Inputs: []string{w.current, fitted}})
	}

	outro := tl.Transitions[n]
	w.plan.VideoOut = w.node(Node{
		Label:  "vout",
		Op:     OpCrossfade,
		Inputs: []string{w.current, segOut[len(segOut)-1]},
		Style:  outro.Style,
		Params: map[string]float64{"duration": round2(outro.Duration), "offset": round2(tl.OutroOffset)},
	})

	w.plan.AudioOut = w.node(Node{
		Label:  "aout",
		Op:     OpAudioTrimDelay,
		Inputs: []string{narration},
		Params: map[string]float64{
			"trim_start": 0,
			"trim_end":   round2(tl.NarrationDuration),
			"delay":      round2(tl.IntroDuration),
		},
	})

	if err := w.plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid render plan: %w", err)
	}

	b.logger.Info("render plan built",
		"inputs", len(w.plan.Inputs),
		"nodes", len(w.plan.Nodes),
		"captions", len(spans),
		"titles", len(titles),
		"duration", w.plan.Duration)

	return w.plan, nil
}

// segmentChain adds the input and fit nodes for one segment and returns the
// label of its output.
func (b *Builder) segmentChain(w *planWriter, tl *timeline.Timeline, seg timeline.Segment) string {
	in := Input{
		Label: fmt.Sprintf("in%d", seg.Index),
		Kind:  InputImage,
		Path:  seg.Asset.Path,
	}
	switch {
	case seg.Asset.IsPlaceholder():
		in.Kind = InputCard
		in.Card = &CardSpec{Kind: CardPlaceholder, Text: seg.Asset.Placeholder.Text, Color: seg.Asset.Placeholder.Color}
	case seg.Asset.Kind == media.KindVideo:
		in.Kind = InputVideo
	}

	panned := seg.Role == assets.RoleContent && in.Kind == InputImage
	if !panned {
		in.Loop = true
		in.Duration = round2(seg.Duration)
	}
	label := w.input(in)

	out := fmt.Sprintf("v%d", seg.Index)
	if !panned {
		return w.node(Node{
			Label:  out,
			Op:     OpScaleCrop,
			Inputs: []string{label},
			Params: fitParams(b.opts.Width, b.opts.Height, tl.FPS),
		})
	}

	fit := w.node(Node{
		Label:  fmt.Sprintf("s%d", seg.Index),
		Op:     OpScaleCrop,
		Inputs: []string{label},
		Params: map[string]float64{
			"scale_width":  config.PanZoomScaleWidth,
			"scale_height": config.PanZoomScaleHeight,
			"crop_width":   config.PanZoomCropWidth,
			"crop_height":  config.PanZoomCropHeight,
		},
	})
	return w.node(Node{
		Label:  out,
		Op:     OpPanZoom,
		Inputs: []string{fit},
		Params: map[string]float64{
			"frames":     float64(seg.Frames),
			"zoom_start": round2(seg.ZoomStart),
			"zoom_end":   round2(seg.ZoomEnd),
			"width":      float64(b.opts.Width),
			"height":     float64(b.opts.Height),
			"fps":        float64(tl.FPS),
		},
	})
}

func fitParams(width, height, fps int) map[string]float64 {
	return map[string]float64{
		"scale_width":  float64(width),
		"scale_height": float64(height),
		"crop_width":   float64(width),
		"crop_height":  float64(height),
		"fps":          float64(fps),
	}
}
