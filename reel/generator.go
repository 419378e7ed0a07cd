package reel

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelbot/assets"
	"reelbot/captions"
	"reelbot/config"
	"reelbot/logging"
	"reelbot/media"
	"reelbot/renderplan"
	"reelbot/timeline"
)

// Prober measures a narration file.
type Prober interface {
	Measure(ctx context.Context, path string) (media.NarrationTrack, error)
}

// CardRenderer draws the generated inputs of a plan.
type CardRenderer interface {
	RenderAll(ctx context.Context, inputs []renderplan.Input) error
}

// Backend executes a render plan.
type Backend interface {
	Execute(ctx context.Context, plan *renderplan.Plan, outputPath string) (string, error)
}

// Compiled is the output of the pure part of the pipeline.
type Compiled struct {
	Request  Request
	Skeleton *assets.Skeleton
	Timeline *timeline.Timeline
	Captions []captions.Window
	Titles   []renderplan.TitleWindow
	Plan     *renderplan.Plan
	WorkDir  string
}

// Generator produces reels from requests. It holds no per-reel state and is
// safe for concurrent use.
type Generator struct {
	settings config.Settings
	logger   *slog.Logger
	prober   Prober
	cards    CardRenderer
	backend  Backend
}

// NewGenerator wires a generator from its collaborators.
func NewGenerator(settings config.Settings, logger *slog.Logger, prober Prober, cards CardRenderer, backend Backend) *Generator {
	return &Generator{
		settings: settings,
		logger:   logging.WithComponent(logger, "reel"),
		prober:   prober,
		cards:    cards,
		backend:  backend,
	}
}

// Plan compiles a request into a render plan without touching the compositor.
func (g *Generator) Plan(ctx context.Context, req Request) (*Compiled, error) {
	if err := req.Normalize(); err != nil {
		return nil, stageErr(StageResolve, err)
	}
	logger := logging.WithReelID(g.logger, req.ID)
	workDir := filepath.Join(g.settings.WorkDir, req.ID)

	intro, outro := req.Intro, req.Outro
	if intro == "" {
		intro = g.settings.IntroMediaPath
	}
	if outro == "" {
		outro = g.settings.OutroMediaPath
	}
	skel, err := assets.NewResolver(logger, assets.ResolverOptions{WorkDir: workDir}).Resolve(intro, outro, req.Images)
	if err != nil {
		return nil, stageErr(StageResolve, err)
	}

	narration, err := g.narration(ctx, req)
	if err != nil {
		return nil, stageErr(StageProbe, err)
	}

	modeName := req.CaptionMode
	if modeName == "" {
		modeName = g.settings.CaptionMode
	}
	mode, err := captions.ParseMode(modeName)
	if err != nil {
		return nil, stageErr(StageCaptions, err)
	}
	captionStart := g.settings.IntroDuration
	windows := captions.ComputeWindows(req.Script, captionStart, captionStart+narration.Duration, mode)

	tl, err := timeline.NewCompiler(g.settings.MinNarration).Compile(timeline.Input{
		IntroDuration:      g.settings.IntroDuration,
		NarrationDuration:  narration.Duration,
		OutroDuration:      g.settings.OutroDuration,
		TransitionDuration: g.settings.TransitionDuration,
		Segments:           len(skel.Content),
	})
	if err != nil {
		return nil, stageErr(StageCompile, err)
	}
	if err := tl.Attach(skel, narration); err != nil {
		return nil, stageErr(StageCompile, err)
	}

	var titles []renderplan.TitleWindow
	if len(req.Segments) > 0 {
		titles = renderplan.SegmentTitles(tl, req.Segments)
	} else {
		titles = renderplan.SingleTitle(tl, req.Title)
	}

	plan, err := renderplan.NewBuilder(logger, renderplan.BuilderOptions{
		CardDir:          filepath.Join(workDir, "cards"),
		FrameOverlayPath: g.frameOverlay(logger),
	}).Build(tl, windows, titles)
	if err != nil {
		return nil, stageErr(StageBuild, err)
	}

	logger.Info("reel compiled",
		"segments", len(skel.Content),
		"narration", narration.Duration,
		"per_segment", tl.PerSegmentDuration,
		"outro_offset", tl.OutroOffset,
		"captions", len(windows))

	return &Compiled{
		Request:  req,
		Skeleton: skel,
		Timeline: tl,
		Captions: windows,
		Titles:   titles,
		Plan:     plan,
		WorkDir:  workDir,
	}, nil
}

// Generate compiles and renders a request. Cancellation is checked before
// each side-effecting stage; once the compositor starts it owns cancellation.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	compiled, err := g.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	req = compiled.Request
	logger := logging.WithReelID(g.logger, req.ID)
	defer func() {
		if !insideDir(g.settings.WorkDir, compiled.WorkDir) {
			logger.Warn("work directory outside WORK_DIR, not removing", "dir", compiled.WorkDir)
			return
		}
		if err := os.RemoveAll(compiled.WorkDir); err != nil {
			logger.Warn("failed to clean work directory", "dir", compiled.WorkDir, "error", err)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, stageErr(StageCards, err)
	}
	if err := g.cards.RenderAll(ctx, compiled.Plan.Cards()); err != nil {
		return nil, stageErr(StageCards, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, stageErr(StageExecute, err)
	}
	output := req.Output
	if output == "" {
		output = filepath.Join(g.settings.OutputDir, req.ID+".mp4")
	}
	written, err := g.backend.Execute(ctx, compiled.Plan, output)
	if err != nil {
		return nil, stageErr(StageExecute, err)
	}

	tl := compiled.Timeline
	logger.Info("reel generated", "output", written, "elapsed", time.Since(start).Round(time.Millisecond).String())
	return &Result{
		ID:                 req.ID,
		Output:             written,
		Narration:          tl.NarrationDuration,
		PerSegmentDuration: tl.PerSegmentDuration,
		OutroOffset:        tl.OutroOffset,
		TotalDuration:      tl.TotalDuration(),
		Segments:           tl.ContentCount(),
		Dropped:            len(compiled.Skeleton.Dropped),
	}, nil
}

// insideDir reports whether path is strictly below root.
func insideDir(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (g *Generator) narration(ctx context.Context, req Request) (media.NarrationTrack, error) {
	if req.NarrationDuration > 0 {
		return media.NarrationTrack{Path: req.Narration, Duration: req.NarrationDuration}, nil
	}
	return g.prober.Measure(ctx, req.Narration)
}

func (g *Generator) frameOverlay(logger *slog.Logger) string {
	path := g.settings.FrameOverlayPath
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		logger.Warn("frame overlay not found, rendering without it", "path", path)
		return ""
	}
	return path
}
