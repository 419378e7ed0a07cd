package compositor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelbot/assets"
	"reelbot/captions"
	"reelbot/logging"
	"reelbot/media"
	"reelbot/renderplan"
	"reelbot/timeline"
)

func referencePlan(t *testing.T) *renderplan.Plan {
	t.Helper()
	tl, err := timeline.NewCompiler(3).Compile(timeline.Input{
		IntroDuration: 3, NarrationDuration: 20, OutroDuration: 3, TransitionDuration: 1, Segments: 4,
	})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	skel := &assets.Skeleton{
		Intro: assets.Asset{Path: "intro.png", Kind: media.KindImage, Role: assets.RoleIntro},
		Outro: assets.Asset{Path: "outro.mp4", Kind: media.KindVideo, Role: assets.RoleOutro},
	}
	for i := 0; i < 4; i++ {
		skel.Content = append(skel.Content, assets.Asset{Path: fmt.Sprintf("img%d.png", i), Kind: media.KindImage, Role: assets.RoleContent})
	}
	if err := tl.Attach(skel, media.NarrationTrack{Path: "voice.mp3", Duration: 20}); err != nil {
		t.Fatalf("Attach error: %v", err)
	}
	windows := captions.ComputeWindows("First line here. Second line.", 3, 23, captions.ModeStatic)
	plan, err := renderplan.NewBuilder(logging.Discard(), renderplan.BuilderOptions{CardDir: "cards"}).
		Build(tl, windows, renderplan.SingleTitle(tl, "Title"))
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	return plan
}

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestLowerBuildsFilterGraph(t *testing.T) {
	args, err := Lower(referencePlan(t), "out/reel.mp4", "")
	if err != nil {
		t.Fatalf("Lower error: %v", err)
	}

	graph := argAfter(args, "-filter_complex")
	if graph == "" {
		t.Fatalf("no filter graph in %v", args)
	}
	for _, want := range []string{
		"xfade", "offset=23.00", "offset=2.00", "transition=fadeblack", "transition=radial",
		"zoompan", "force_original_aspect_ratio=increase", "overlay", "enable=",
		"atrim", "end=20.00", "asetpts", "delays=3000|3000", "null",
	} {
		if !strings.Contains(graph, want) {
			t.Errorf("filter graph missing %q:\n%s", want, graph)
		}
	}

	if args[len(args)-1] != "out/reel.mp4" {
		t.Fatalf("output path should be last, got %q", args[len(args)-1])
	}
	if argAfter(args, "-c:v") != "libx264" || argAfter(args, "-preset") != "medium" {
		t.Fatalf("software encode args missing: %v", args)
	}
	if argAfter(args, "-stream_loop") != "-1" || argAfter(args, "-loop") != "1" {
		t.Fatalf("looped inputs missing: %v", args)
	}
}

func TestLowerHardwareEncoder(t *testing.T) {
	args, err := Lower(referencePlan(t), "reel.mp4", "h264_videotoolbox")
	if err != nil {
		t.Fatalf("Lower error: %v", err)
	}
	if argAfter(args, "-c:v") != "h264_videotoolbox" || argAfter(args, "-b:v") != "5M" {
		t.Fatalf("hardware encode args missing: %v", args)
	}
	if argAfter(args, "-preset") != "" {
		t.Fatalf("preset should only apply to libx264")
	}
}

func TestLowerRejectsInvalidPlan(t *testing.T) {
	plan := referencePlan(t)
	plan.VideoOut = "missing"
	if _, err := Lower(plan, "reel.mp4", ""); err == nil {
		t.Fatalf("expected error for missing sink")
	}
}

func TestZoomExpr(t *testing.T) {
	cases := []struct {
		start, end float64
		frames     int
		want       string
	}{
		{1, 1.15, 188, "1.0000+(0.1500)*on/187"},
		{1.15, 1, 188, "1.1500+(-0.1500)*on/187"},
		{1, 1, 90, "1.0000"},
	}
	for _, c := range cases {
		if got := zoomExpr(c.start, c.end, c.frames); got != c.want {
			t.Errorf("zoomExpr(%v, %v, %d) = %q; want %q", c.start, c.end, c.frames, got, c.want)
		}
	}
}

func TestExecuteRunsFFmpeg(t *testing.T) {
	var gotName string
	var gotArgs []string
	b := NewFFmpegBackend(logging.Discard(), "/opt/ffmpeg", "").WithRunner(
		func(ctx context.Context, name string, args ...string) ([]byte, error) {
			gotName, gotArgs = name, args
			return nil, nil
		})

	out := filepath.Join(t.TempDir(), "reels", "reel.mp4")
	path, err := b.Execute(context.Background(), referencePlan(t), out)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if path != out || gotName != "/opt/ffmpeg" {
		t.Fatalf("Execute ran %q for %q", gotName, path)
	}
	if gotArgs[len(gotArgs)-1] != out {
		t.Fatalf("args = %v", gotArgs)
	}
}

func TestExecuteWrapsFailure(t *testing.T) {
	cause := errors.New("exit status 1")
	b := NewFFmpegBackend(logging.Discard(), "", "").WithRunner(
		func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("frame=1\n[xfade] bad offset\n"), cause
		})

	_, err := b.Execute(context.Background(), referencePlan(t), filepath.Join(t.TempDir(), "reel.mp4"))
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if !errors.Is(err, cause) || !strings.Contains(execErr.Output, "bad offset") {
		t.Fatalf("error = %v", err)
	}
}

func TestDetectEncoder(t *testing.T) {
	listing := func(out string, err error) CommandRunner {
		return func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte(out), err
		}
	}
	ctx := context.Background()
	log := logging.Discard()

	cases := []struct {
		name      string
		run       CommandRunner
		requested string
		goos      string
		want      string
	}{
		{"explicit encoder", nil, "h264_nvenc", "linux", "h264_nvenc"},
		{"forced software", nil, "off", "darwin", "libx264"},
		{"videotoolbox available", listing(" V....D h264_videotoolbox VideoToolbox H.264", nil), "auto", "darwin", "h264_videotoolbox"},
		{"videotoolbox missing", listing(" V....D libx264", nil), "", "darwin", "libx264"},
		{"query fails", listing("", errors.New("not found")), "", "darwin", "libx264"},
		{"no candidates", nil, "", "linux", "libx264"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := detectEncoder(ctx, log, c.run, "ffmpeg", c.requested, c.goos); got != c.want {
				t.Fatalf("detectEncoder = %q; want %q", got, c.want)
			}
		})
	}
}

func TestProberMeasure(t *testing.T) {
	p := &Prober{probe: func(path string, timeout time.Duration) (string, error) {
		return `{"format":{"duration":"20.480000"}}`, nil
	}}
	track, err := p.Measure(context.Background(), "voice.mp3")
	if err != nil {
		t.Fatalf("Measure error: %v", err)
	}
	if track.Path != "voice.mp3" || track.Duration != 20.48 {
		t.Fatalf("track = %+v", track)
	}

	p.probe = func(string, time.Duration) (string, error) { return `{"format":{}}`, nil }
	if _, err := p.Measure(context.Background(), "voice.mp3"); err == nil {
		t.Fatalf("expected error for missing duration")
	}
}
