// Package cards draws the generated images a render plan needs: placeholder
// intro/outro cards and transparent caption and title overlays.
package cards

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/errgroup"

	"reelbot/config"
	"reelbot/renderplan"
)

var (
	captionFill   = color.White
	captionShadow = color.RGBA{A: 0xff}
	titleFill     = color.RGBA{R: 0xff, G: 0xff, A: 0xff}
	titleOutline  = color.RGBA{A: 0xff}
)

// Options configures a Renderer.
type Options struct {
	Width  int
	Height int
	// FontPath is a TTF/OTF file. Empty uses the bundled Go Bold face.
	FontPath string
	// Framed moves captions and titles inward to clear a frame overlay.
	Framed bool
	// Workers bounds parallel rendering. Zero means one per CPU.
	Workers int
}

// Renderer draws cards. It is safe for concurrent use; each render builds
// its own font face.
type Renderer struct {
	logger *slog.Logger
	opts   Options
	font   *opentype.Font
}

// NewRenderer parses the configured font.
func NewRenderer(logger *slog.Logger, opts Options) (*Renderer, error) {
	if opts.Width == 0 {
		opts.Width = config.VideoWidth
	}
	if opts.Height == 0 {
		opts.Height = config.VideoHeight
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	data := gobold.TTF
	if opts.FontPath != "" {
		b, err := os.ReadFile(opts.FontPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read font file: %w", err)
		}
		data = b
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &Renderer{logger: logger, opts: opts, font: f}, nil
}

// RenderAll writes every card input of the plan to its path, in parallel.
func (r *Renderer) RenderAll(ctx context.Context, inputs []renderplan.Input) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for _, in := range inputs {
		if in.Card == nil {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := r.WriteFile(in.Path, *in.Card); err != nil {
				return fmt.Errorf("card %s: %w", in.Label, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	r.logger.Debug("cards rendered", "count", len(inputs))
	return nil
}

// WriteFile renders spec and saves it as a PNG at path.
func (r *Renderer) WriteFile(path string, spec renderplan.CardSpec) error {
	img, err := r.Render(spec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create card directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create card file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode card: %w", err)
	}
	return f.Close()
}

// Render draws one card at the output frame size.
func (r *Renderer) Render(spec renderplan.CardSpec) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.opts.Width, r.opts.Height))

	switch spec.Kind {
	case renderplan.CardPlaceholder:
		bg, err := parseHexColor(spec.Color)
		if err != nil {
			return nil, err
		}
		draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
		face, err := r.face(config.PlaceholderFontSize)
		if err != nil {
			return nil, err
		}
		defer face.Close()
		lines := wrapText(spec.Text, config.TitleWrapChars)
		top := (r.opts.Height - blockHeight(face, len(lines), 10)) / 2
		r.drawLines(img, face, lines, top, 10, color.White, nil)

	case renderplan.CardCaption:
		face, err := r.face(config.CaptionFontSize)
		if err != nil {
			return nil, err
		}
		defer face.Close()
		ratio := 0.8
		if r.opts.Framed {
			ratio = 0.75
		}
		lines := wrapText(spec.Text, config.CaptionWrapChars)
		r.drawLines(img, face, lines, int(float64(r.opts.Height)*ratio), 10, captionFill, shadow(captionShadow))

	case renderplan.CardTitle:
		face, err := r.face(config.TitleFontSize)
		if err != nil {
			return nil, err
		}
		defer face.Close()
		top := 80
		if r.opts.Framed {
			top = 280
		}
		lines := wrapText(strings.ToUpper(spec.Text), config.TitleWrapChars)
		r.drawLines(img, face, lines, top, 8, titleFill, outline(titleOutline))

	default:
		return nil, fmt.Errorf("unknown card kind %q", spec.Kind)
	}
	return img, nil
}

func (r *Renderer) face(size float64) (font.Face, error) {
	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}

// backdrop draws the decoration under one line of text at (x, y).
type backdrop func(d *font.Drawer, line string, x, y int)

func shadow(c color.Color) backdrop {
	return func(d *font.Drawer, line string, x, y int) {
		d.Src = image.NewUniform(c)
		d.Dot = fixed.P(x+2, y+2)
		d.DrawString(line)
	}
}

func outline(c color.Color) backdrop {
	offsets := [][2]int{{-2, -2}, {-2, 2}, {2, -2}, {2, 2}, {-2, 0}, {2, 0}, {0, -2}, {0, 2}}
	return func(d *font.Drawer, line string, x, y int) {
		d.Src = image.NewUniform(c)
		for _, o := range offsets {
			d.Dot = fixed.P(x+o[0], y+o[1])
			d.DrawString(line)
		}
	}
}

// drawLines centres each line horizontally, starting with the top of the
// first line at top.
func (r *Renderer) drawLines(img *image.RGBA, face font.Face, lines []string, top, spacing int, fill color.Color, under backdrop) {
	m := face.Metrics()
	ascent := m.Ascent.Ceil()
	lineHeight := m.Height.Ceil()

	d := &font.Drawer{Dst: img, Face: face}
	y := top
	for _, line := range lines {
		width := font.MeasureString(face, line).Ceil()
		x := (r.opts.Width - width) / 2
		baseline := y + ascent
		if under != nil {
			under(d, line, x, baseline)
		}
		d.Src = image.NewUniform(fill)
		d.Dot = fixed.P(x, baseline)
		d.DrawString(line)
		y += lineHeight + spacing
	}
}

func blockHeight(face font.Face, lines, spacing int) int {
	if lines == 0 {
		return 0
	}
	h := face.Metrics().Height.Ceil()
	return lines*h + (lines-1)*spacing
}
