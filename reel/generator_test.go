package reel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"reelbot/assets"
	"reelbot/config"
	"reelbot/logging"
	"reelbot/media"
	"reelbot/renderplan"
	"reelbot/timeline"
)

type fakeProber struct {
	duration float64
	err      error
	calls    int
}

func (f *fakeProber) Measure(ctx context.Context, path string) (media.NarrationTrack, error) {
	f.calls++
	if f.err != nil {
		return media.NarrationTrack{}, f.err
	}
	return media.NarrationTrack{Path: path, Duration: f.duration}, nil
}

type fakeCards struct {
	rendered []renderplan.Input
	err      error
}

func (f *fakeCards) RenderAll(ctx context.Context, inputs []renderplan.Input) error {
	f.rendered = append(f.rendered, inputs...)
	return f.err
}

type fakeBackend struct {
	plan   *renderplan.Plan
	output string
	err    error
}

func (f *fakeBackend) Execute(ctx context.Context, plan *renderplan.Plan, outputPath string) (string, error) {
	f.plan, f.output = plan, outputPath
	if f.err != nil {
		return "", f.err
	}
	return outputPath, nil
}

type fixture struct {
	gen     *Generator
	prober  *fakeProber
	cards   *fakeCards
	backend *fakeBackend
	dir     string
	images  []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	env := map[string]string{
		"WORK_DIR":         filepath.Join(dir, "work"),
		"OUTPUT_DIR":       filepath.Join(dir, "output"),
		"INTRO_MEDIA_PATH": filepath.Join(dir, "missing_intro.png"),
		"OUTRO_MEDIA_PATH": filepath.Join(dir, "missing_outro.png"),
	}
	settings, err := config.FromEnv(func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	var images []string
	for _, name := range []string{"a.png", "b.jpg", "c.png", "d.png"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("img"), 0o644); err != nil {
			t.Fatalf("WriteFile error: %v", err)
		}
		images = append(images, p)
	}

	f := &fixture{
		prober:  &fakeProber{duration: 12},
		cards:   &fakeCards{},
		backend: &fakeBackend{},
		dir:     dir,
		images:  images,
	}
	f.gen = NewGenerator(settings, logging.Discard(), f.prober, f.cards, f.backend)
	return f
}

func (f *fixture) request() Request {
	return Request{
		ID:                "reel-1",
		Script:            "Stocks rose sharply. Investors cheered the news.",
		Title:             "Markets rally",
		Images:            f.images,
		Narration:         filepath.Join(f.dir, "voice.mp3"),
		NarrationDuration: 20,
		CaptionMode:       "static",
	}
}

func TestPlanReferenceReel(t *testing.T) {
	f := newFixture(t)
	compiled, err := f.gen.Plan(context.Background(), f.request())
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}

	if compiled.Timeline.PerSegmentDuration != 6.25 || compiled.Timeline.OutroOffset != 23 {
		t.Fatalf("timeline = %+v", compiled.Timeline)
	}
	if !compiled.Skeleton.Intro.IsPlaceholder() || !compiled.Skeleton.Outro.IsPlaceholder() {
		t.Fatalf("missing intro/outro should become placeholders")
	}
	vout, _ := compiled.Plan.Node("vout")
	if vout.Param("offset") != 23 {
		t.Fatalf("vout = %s", vout)
	}
	if len(compiled.Captions) != 2 || len(compiled.Titles) != 1 {
		t.Fatalf("captions=%d titles=%d", len(compiled.Captions), len(compiled.Titles))
	}
	if f.prober.calls != 0 {
		t.Fatalf("prober should not run when the duration is given")
	}
}

func TestPlanPlaceholderDoesNotChangeTiming(t *testing.T) {
	f := newFixture(t)
	withPlaceholders, err := f.gen.Plan(context.Background(), f.request())
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}

	req := f.request()
	req.Intro, req.Outro = f.images[0], f.images[1]
	withMedia, err := f.gen.Plan(context.Background(), req)
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}

	a, b := withPlaceholders.Timeline, withMedia.Timeline
	if a.PerSegmentDuration != b.PerSegmentDuration || a.OutroOffset != b.OutroOffset || len(a.Transitions) != len(b.Transitions) {
		t.Fatalf("placeholder changed timing: %+v vs %+v", a, b)
	}
}

func TestPlanProbesNarration(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.NarrationDuration = 0
	req.ID = ""

	compiled, err := f.gen.Plan(context.Background(), req)
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	if f.prober.calls != 1 || compiled.Timeline.NarrationDuration != 12 {
		t.Fatalf("prober calls=%d narration=%v", f.prober.calls, compiled.Timeline.NarrationDuration)
	}
	if compiled.Request.ID == "" {
		t.Fatalf("request ID should be assigned")
	}
}

func TestPlanStageErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*fixture, *Request)
		stage  Stage
		check  func(error) bool
	}{
		{
			name:   "no content",
			mutate: func(f *fixture, r *Request) { r.Images = []string{filepath.Join(f.dir, "gone.png"), "notes.txt"} },
			stage:  StageResolve,
			check: func(err error) bool {
				var e *assets.NoContentAssetsError
				return errors.As(err, &e) && len(e.Rejected) == 2
			},
		},
		{
			name:   "missing narration",
			mutate: func(f *fixture, r *Request) { r.Narration = "" },
			stage:  StageResolve,
			check:  func(err error) bool { return err != nil },
		},
		{
			name:   "probe failure",
			mutate: func(f *fixture, r *Request) { r.NarrationDuration = 0; f.prober.err = errors.New("ffprobe missing") },
			stage:  StageProbe,
			check:  func(err error) bool { return err != nil },
		},
		{
			name:   "bad caption mode",
			mutate: func(f *fixture, r *Request) { r.CaptionMode = "karaoke" },
			stage:  StageCaptions,
			check:  func(err error) bool { return err != nil },
		},
		{
			name:   "narration too short",
			mutate: func(f *fixture, r *Request) { r.NarrationDuration = 2.5 },
			stage:  StageCompile,
			check: func(err error) bool {
				var e *timeline.NarrationTooShortError
				return errors.As(err, &e)
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.request()
			c.mutate(f, &req)

			_, err := f.gen.Plan(context.Background(), req)
			var stageErr *StageError
			if !errors.As(err, &stageErr) {
				t.Fatalf("expected StageError, got %v", err)
			}
			if stageErr.Stage != c.stage {
				t.Fatalf("stage = %s; want %s (%v)", stageErr.Stage, c.stage, err)
			}
			if !c.check(err) {
				t.Fatalf("unexpected cause: %v", err)
			}
		})
	}
}

func TestGenerateRendersCardsAndExecutes(t *testing.T) {
	f := newFixture(t)
	res, err := f.gen.Generate(context.Background(), f.request())
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	wantOutput := filepath.Join(f.dir, "output", "reel-1.mp4")
	if res.Output != wantOutput || f.backend.output != wantOutput {
		t.Fatalf("output = %q (backend %q)", res.Output, f.backend.output)
	}
	if res.TotalDuration != 26 || res.OutroOffset != 23 || res.Segments != 4 {
		t.Fatalf("result = %+v", res)
	}
	// two placeholders, two caption chunks, one title
	if len(f.cards.rendered) != 5 {
		t.Fatalf("rendered %d cards; want 5", len(f.cards.rendered))
	}
	if _, err := os.Stat(filepath.Join(f.dir, "work", "reel-1")); !os.IsNotExist(err) {
		t.Fatalf("work directory should be removed after generation")
	}
}

func TestGenerateStopsBeforeExecuteWhenCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.gen.Generate(ctx, f.request())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if f.backend.plan != nil {
		t.Fatalf("backend should not run after cancellation")
	}
}

func TestGenerateSurfacesBackendFailure(t *testing.T) {
	f := newFixture(t)
	cause := errors.New("encoder crashed")
	f.backend.err = cause

	_, err := f.gen.Generate(context.Background(), f.request())
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageExecute || !errors.Is(err, cause) {
		t.Fatalf("expected execute StageError wrapping cause, got %v", err)
	}
}

func TestGenerateRejectsUnsafeIDs(t *testing.T) {
	for _, id := range []string{"..", ".", "a/b", `a\b`, "../work", "-lead", "has space", "x.y"} {
		t.Run(id, func(t *testing.T) {
			f := newFixture(t)
			keep := filepath.Join(f.dir, "keep.txt")
			if err := os.WriteFile(keep, []byte("keep"), 0o644); err != nil {
				t.Fatal(err)
			}
			req := f.request()
			req.ID = id

			_, err := f.gen.Generate(context.Background(), req)
			var stageErr *StageError
			if !errors.As(err, &stageErr) || stageErr.Stage != StageResolve {
				t.Fatalf("expected resolve StageError, got %v", err)
			}
			if f.backend.plan != nil {
				t.Fatalf("backend should not run for id %q", id)
			}
			for _, p := range append([]string{keep}, f.images...) {
				if _, err := os.Stat(p); err != nil {
					t.Fatalf("%s removed: %v", p, err)
				}
			}
		})
	}
}

func TestValidateID(t *testing.T) {
	for _, id := range []string{"reel-1", "R_2", "0b9c2f4e-8a1d-4c3e-9f00-1a2b3c4d5e6f"} {
		if err := ValidateID(id); err != nil {
			t.Fatalf("ValidateID(%q) = %v", id, err)
		}
	}
	for _, id := range []string{"", ".", "..", "_x", "a.b", "a/b"} {
		if err := ValidateID(id); err == nil {
			t.Fatalf("ValidateID(%q) should fail", id)
		}
	}
}

func TestInsideDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "work")
	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, "reel-1"), true},
		{root, false},
		{filepath.Dir(root), false},
		{filepath.Join(root, "..", "other"), false},
		{filepath.Join(root+"x", "reel-1"), false},
	}
	for _, tt := range tests {
		if got := insideDir(root, tt.path); got != tt.want {
			t.Fatalf("insideDir(%q) = %v; want %v", tt.path, got, tt.want)
		}
	}
}
