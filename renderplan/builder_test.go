package renderplan

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"reelbot/assets"
	"reelbot/captions"
	"reelbot/logging"
	"reelbot/media"
	"reelbot/timeline"
)

func compiledTimeline(t *testing.T, narration float64, content []assets.Asset) *timeline.Timeline {
	t.Helper()
	tl, err := timeline.NewCompiler(3.0).Compile(timeline.Input{
		IntroDuration:      3,
		NarrationDuration:  narration,
		OutroDuration:      3,
		TransitionDuration: 1,
		Segments:           len(content),
	})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	skel := &assets.Skeleton{
		Intro:   assets.Asset{Path: "intro.png", Kind: media.KindImage, Role: assets.RoleIntro},
		Content: content,
		Outro: assets.Asset{
			Path:        "work/outro_placeholder.png",
			Kind:        media.KindImage,
			Role:        assets.RoleOutro,
			Placeholder: &assets.Placeholder{Text: "Follow for more", Color: "#1a1a2e"},
		},
	}
	if err := tl.Attach(skel, media.NarrationTrack{Path: "voice.mp3", Duration: narration}); err != nil {
		t.Fatalf("Attach error: %v", err)
	}
	return tl
}

func stills(paths ...string) []assets.Asset {
	out := make([]assets.Asset, len(paths))
	for i, p := range paths {
		out[i] = assets.Asset{Path: p, Kind: media.DetectKind(p), Role: assets.RoleContent}
	}
	return out
}

func newTestBuilder(frame string) *Builder {
	return NewBuilder(logging.Discard(), BuilderOptions{CardDir: "cards", FrameOverlayPath: frame})
}

func TestBuildReferenceScenario(t *testing.T) {
	tl := compiledTimeline(t, 20, stills("a.png", "b.jpg", "c.png", "d.webp"))
	script := "The market rallied today. Analysts expect more gains."
	windows := captions.ComputeWindows(script, 3, 23, captions.ModeStatic)

	plan, err := newTestBuilder("").Build(tl, windows, SingleTitle(tl, "Markets up"))
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	if plan.VideoOut != "vout" || plan.AudioOut != "aout" {
		t.Fatalf("sinks = %q, %q", plan.VideoOut, plan.AudioOut)
	}
	vout, _ := plan.Node("vout")
	if vout.Param("offset") != 23.0 || vout.Param("duration") != 1.0 {
		t.Fatalf("outro crossfade = %s", vout)
	}

	wantOffsets := []float64{2.0, 7.25, 12.5, 17.75}
	fades := plan.NodesOf(OpCrossfade)
	if len(fades) != 5 {
		t.Fatalf("got %d crossfades; want 5", len(fades))
	}
	for i, want := range wantOffsets {
		if got := fades[i].Param("offset"); got != want {
			t.Fatalf("x%d offset = %v; want %v", i, got, want)
		}
	}

	aout, _ := plan.Node("aout")
	if aout.Param("trim_end") != 20 || aout.Param("delay") != 3 || aout.Inputs[0] != "narration" {
		t.Fatalf("audio node = %s", aout)
	}

	v1, _ := plan.Node("v1")
	if v1.Op != OpPanZoom || v1.Param("frames") != 188 || v1.Param("zoom_end") != 1.15 {
		t.Fatalf("first content segment = %s", v1)
	}
	v2, _ := plan.Node("v2")
	if v2.Param("zoom_start") != 1.15 || v2.Param("zoom_end") != 1 {
		t.Fatalf("second content segment = %s", v2)
	}

	if got := len(plan.NodesOf(OpOverlay)); got != 3 {
		t.Fatalf("got %d overlays; want 2 captions + 1 title", got)
	}
	title, ok := plan.Node("title0")
	if !ok || title.Inputs[0] != "captioned" {
		t.Fatalf("title should sit on top of captions: %+v", title)
	}
	if title.Enable.Start != 3 || title.Enable.End != 23 {
		t.Fatalf("title window = %+v", title.Enable)
	}
	if vout.Inputs[0] != "title0" {
		t.Fatalf("outro should join the titled stream, got %v", vout.Inputs)
	}

	outro, _ := plan.Input("in5")
	if outro.Card == nil || outro.Card.Kind != CardPlaceholder || !outro.Loop || outro.Duration != 3 {
		t.Fatalf("outro input = %+v", outro)
	}
	if got := len(plan.Cards()); got != 4 {
		t.Fatalf("got %d cards; want placeholder + 2 captions + title", got)
	}
}

func TestBuildIsByteIdentical(t *testing.T) {
	build := func() []byte {
		tl := compiledTimeline(t, 41.37, stills("a.png", "b.png", "c.mp4"))
		windows := captions.ComputeWindows("One two three. Four five! Six?", 3, tl.OutroOffset, captions.ModeTypewriter)
		plan, err := newTestBuilder("frame.png").Build(tl, windows, SingleTitle(tl, "Headline"))
		if err != nil {
			t.Fatalf("Build error: %v", err)
		}
		data, err := plan.JSON()
		if err != nil {
			t.Fatalf("JSON error: %v", err)
		}
		return data
	}

	first, second := build(), build()
	if !bytes.Equal(first, second) {
		t.Fatalf("identical inputs produced different plans")
	}
}

func TestBuildWithoutCaptionsKeepsPassthrough(t *testing.T) {
	tl := compiledTimeline(t, 10, stills("a.png"))
	windows := captions.ComputeWindows("", 3, 13, captions.ModeTypewriter)
	if len(windows) != 0 {
		t.Fatalf("empty script produced %d windows", len(windows))
	}

	plan, err := newTestBuilder("").Build(tl, windows, nil)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	node, ok := plan.Node("captioned")
	if !ok || node.Op != OpPassthrough {
		t.Fatalf("captioned node = %+v", node)
	}
	if len(node.Inputs) != 1 || node.Inputs[0] != "x0" {
		t.Fatalf("captioned should pass x0 through, got %v", node.Inputs)
	}
	if len(plan.NodesOf(OpOverlay)) != 0 {
		t.Fatalf("unexpected overlays")
	}
}

func TestBuildSkipsEmptyTitle(t *testing.T) {
	tl := compiledTimeline(t, 10, stills("a.png"))
	if SingleTitle(tl, "   ") != nil {
		t.Fatalf("blank title should produce no windows")
	}

	plan, err := newTestBuilder("").Build(tl, nil, []TitleWindow{{Text: "", Start: 3, End: 13}})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if _, ok := plan.Node("title0"); ok {
		t.Fatalf("empty title should not be inserted")
	}
	vout, _ := plan.Node("vout")
	if vout.Inputs[0] != "captioned" {
		t.Fatalf("vout input = %v", vout.Inputs)
	}
}

func TestBuildTypewriterAndFrame(t *testing.T) {
	tl := compiledTimeline(t, 12, stills("a.png", "clip.mov"))
	windows := captions.ComputeWindows("Hello big world.", 3, 15, captions.ModeTypewriter)

	plan, err := newTestBuilder("frame.png").Build(tl, windows, nil)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	last, _ := plan.Node("cap2")
	if last.Enable == nil || last.Enable.End != 15 {
		t.Fatalf("last word window = %+v", last.Enable)
	}
	card, _ := plan.Input("capcard2")
	if card.Card.Text != "Hello big world." {
		t.Fatalf("typewriter text = %q", card.Card.Text)
	}

	framed, ok := plan.Node("framed")
	if !ok || framed.Inputs[0] != "captioned" || framed.Inputs[1] != "frame_fit" || framed.Enable != nil {
		t.Fatalf("framed = %+v", framed)
	}

	clip, _ := plan.Input("in2")
	if clip.Kind != InputVideo || !clip.Loop {
		t.Fatalf("video input = %+v", clip)
	}
	v2, _ := plan.Node("v2")
	if v2.Op != OpScaleCrop {
		t.Fatalf("video content should only be fitted, got %s", v2)
	}
}

func TestSegmentTitles(t *testing.T) {
	tl := compiledTimeline(t, 20, stills("a.png", "b.png"))
	got := SegmentTitles(tl, []SegmentTitle{
		{Title: "First story", VoiceDuration: 8},
		{Title: "", VoiceDuration: 4},
		{Title: "Third story", VoiceDuration: 12},
	})
	if len(got) != 2 {
		t.Fatalf("got %d windows; want 2", len(got))
	}
	if got[0].Start != 3 || got[0].End != 11 {
		t.Fatalf("first window = %+v", got[0])
	}
	if got[1].Start != 15 || got[1].End != 23 {
		t.Fatalf("last window should clamp to the outro offset, got %+v", got[1])
	}
}

func TestPlanStringAndValidate(t *testing.T) {
	tl := compiledTimeline(t, 20, stills("a.png", "b.png"))
	plan, err := newTestBuilder("").Build(tl, nil, nil)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	text := plan.String()
	if !strings.Contains(text, "vout = crossfade(captioned, v3) style=diagtl {duration=1.00 offset=23.00}") {
		t.Fatalf("unexpected text form:\n%s", text)
	}

	broken := *plan
	broken.Nodes = append([]Node{{Label: "early", Op: OpPassthrough, Inputs: []string{"vout"}}}, plan.Nodes...)
	if err := broken.Validate(); err == nil {
		t.Fatalf("forward reference should fail validation")
	}

	dup := *plan
	dup.Nodes = append(append([]Node{}, plan.Nodes...), Node{Label: "v1", Op: OpPassthrough, Inputs: []string{"v1"}})
	if err := dup.Validate(); err == nil {
		t.Fatalf("duplicate label should fail validation")
	}
}

func TestBuildSkipsDegenerateWordWindows(t *testing.T) {
	tl := compiledTimeline(t, 3, stills("a.png", "b.png"))
	script := strings.Repeat("a bb extraordinarily ", 120) + "."
	windows := captions.ComputeWindows(script, 3, tl.OutroOffset, captions.ModeTypewriter)

	plan, err := newTestBuilder("").Build(tl, windows, nil)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if err := plan.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	var caps []Node
	for _, n := range plan.NodesOf(OpOverlay) {
		if strings.HasPrefix(n.Label, "cap") {
			caps = append(caps, n)
		}
	}
	if len(caps) == 0 {
		t.Fatal("expected some caption overlays to survive")
	}
	if len(caps) >= len(captions.Flatten(windows)) {
		t.Fatalf("kept %d of %d word windows; want some dropped", len(caps), len(captions.Flatten(windows)))
	}
	for i, n := range caps {
		if n.Label != "cap"+strconv.Itoa(i) {
			t.Fatalf("overlay %d labelled %q", i, n.Label)
		}
		if !(n.Enable.End > n.Enable.Start) {
			t.Fatalf("%s has empty window %+v", n.Label, *n.Enable)
		}
		if i > 0 && n.Enable.Start != caps[i-1].Enable.End {
			t.Fatalf("%s starts at %v; previous ends at %v", n.Label, n.Enable.Start, caps[i-1].Enable.End)
		}
	}
	if caps[0].Enable.Start != 3 || caps[len(caps)-1].Enable.End != tl.OutroOffset {
		t.Fatalf("captions cover [%v,%v); want [3,%v)", caps[0].Enable.Start, caps[len(caps)-1].Enable.End, tl.OutroOffset)
	}
}

func TestVisibleSpansExtendsAcrossTrailingDrop(t *testing.T) {
	spans := []captions.Span{
		{Text: "a", Start: 3, End: 5.996},
		{Text: "b", Start: 5.996, End: 5.999},
		{Text: "c", Start: 5.999, End: 6.004},
	}
	got := visibleSpans(logging.Discard(), spans)
	if len(got) != 1 || got[0].Text != "a" || got[0].Start != 3 || got[0].End != 6 {
		t.Fatalf("visibleSpans = %+v", got)
	}
}

func TestBuildSkipsTitleThatRoundsEmpty(t *testing.T) {
	tl := compiledTimeline(t, 10, stills("a.png"))
	titles := []TitleWindow{{Text: "Blink", Start: 5, End: 5.003}, {Text: "Stay", Start: 5.003, End: 8}}

	plan, err := newTestBuilder("").Build(tl, nil, titles)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if _, ok := plan.Node("title0"); ok {
		t.Fatal("title rounding to an empty window should be skipped")
	}
	if n, ok := plan.Node("title1"); !ok || n.Enable.Start != 5 || n.Enable.End != 8 {
		t.Fatalf("title1 = %+v, %v", n, ok)
	}
}
