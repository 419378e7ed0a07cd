package compositor

import (
	"fmt"
	"math"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"reelbot/config"
	"reelbot/renderplan"
)

// Lower translates a plan into ffmpeg arguments for outputPath, excluding the
// binary name.
func Lower(plan *renderplan.Plan, outputPath string, encoder string) ([]string, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	streams := make(map[string]*ffmpeg.Stream, len(plan.Inputs)+len(plan.Nodes))
	for _, in := range plan.Inputs {
		streams[in.Label] = lowerInput(in)
	}

	for _, n := range plan.Nodes {
		s, err := lowerNode(n, streams)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.Label, err)
		}
		streams[n.Label] = s
	}

	out := ffmpeg.Output(
		[]*ffmpeg.Stream{streams[plan.VideoOut], streams[plan.AudioOut]},
		outputPath,
		outputArgs(plan, encoder),
	).OverWriteOutput()

	return out.GetArgs(), nil
}

func lowerInput(in renderplan.Input) *ffmpeg.Stream {
	kw := ffmpeg.KwArgs{}
	if in.Loop {
		if in.Kind == renderplan.InputVideo {
			kw["stream_loop"] = "-1"
		} else {
			kw["loop"] = "1"
		}
	}
	if in.Duration > 0 {
		kw["t"] = seconds(in.Duration)
	}
	s := ffmpeg.Input(in.Path, kw)
	if in.Kind == renderplan.InputAudio {
		return s.Audio()
	}
	return s.Video()
}

func lowerNode(n renderplan.Node, streams map[string]*ffmpeg.Stream) (*ffmpeg.Stream, error) {
	in := make([]*ffmpeg.Stream, len(n.Inputs))
	for i, ref := range n.Inputs {
		s, ok := streams[ref]
		if !ok {
			return nil, fmt.Errorf("unknown input %q", ref)
		}
		in[i] = s
	}

	switch n.Op {
	case renderplan.OpScaleCrop:
		s := in[0].
			Filter("scale", ffmpeg.Args{integer(n.Param("scale_width")), integer(n.Param("scale_height"))},
				ffmpeg.KwArgs{"force_original_aspect_ratio": "increase"}).
			Filter("crop", ffmpeg.Args{integer(n.Param("crop_width")), integer(n.Param("crop_height"))})
		if fps := n.Param("fps"); fps > 0 {
			s = s.Filter("fps", ffmpeg.Args{integer(fps)})
		}
		return s.Filter("setsar", ffmpeg.Args{"1"}), nil

	case renderplan.OpPanZoom:
		return in[0].
			Filter("zoompan", ffmpeg.Args{}, ffmpeg.KwArgs{
				"z":   zoomExpr(n.Param("zoom_start"), n.Param("zoom_end"), int(n.Param("frames"))),
				"x":   "iw/2-(iw/zoom/2)",
				"y":   "ih/2-(ih/zoom/2)",
				"d":   integer(n.Param("frames")),
				"s":   fmt.Sprintf("%sx%s", integer(n.Param("width")), integer(n.Param("height"))),
				"fps": integer(n.Param("fps")),
			}).
			Filter("setsar", ffmpeg.Args{"1"}), nil

	case renderplan.OpCrossfade:
		if len(in) != 2 {
			return nil, fmt.Errorf("crossfade needs 2 inputs, got %d", len(in))
		}
		return ffmpeg.Filter(in, "xfade", ffmpeg.Args{}, ffmpeg.KwArgs{
			"transition": n.Style,
			"duration":   seconds(n.Param("duration")),
			"offset":     seconds(n.Param("offset")),
		}).Filter("format", ffmpeg.Args{config.PixelFormat}), nil

	case renderplan.OpOverlay:
		if len(in) != 2 {
			return nil, fmt.Errorf("overlay needs 2 inputs, got %d", len(in))
		}
		kw := ffmpeg.KwArgs{"x": "0", "y": "0"}
		if n.Enable != nil {
			kw["enable"] = fmt.Sprintf("gte(t,%s)*lt(t,%s)", seconds(n.Enable.Start), seconds(n.Enable.End))
		}
		return ffmpeg.Filter(in, "overlay", ffmpeg.Args{}, kw), nil

	case renderplan.OpAudioTrimDelay:
		delay := fmt.Sprintf("%d", int(math.Round(n.Param("delay")*1000)))
		return in[0].
			Filter("atrim", ffmpeg.Args{}, ffmpeg.KwArgs{
				"start": seconds(n.Param("trim_start")),
				"end":   seconds(n.Param("trim_end")),
			}).
			Filter("asetpts", ffmpeg.Args{"PTS-STARTPTS"}).
			Filter("adelay", ffmpeg.Args{}, ffmpeg.KwArgs{"delays": delay + "|" + delay}), nil

	case renderplan.OpPassthrough:
		return in[0].Filter("null", ffmpeg.Args{}), nil
	}
	return nil, fmt.Errorf("unsupported op %q", n.Op)
}

func outputArgs(plan *renderplan.Plan, encoder string) ffmpeg.KwArgs {
	kw := ffmpeg.KwArgs{
		"pix_fmt":  config.PixelFormat,
		"r":        fmt.Sprintf("%d", plan.FPS),
		"t":        seconds(plan.Duration),
		"c:a":      config.AudioCodec,
		"b:a":      config.AudioBitrate,
		"movflags": "+faststart",
	}
	if encoder == "" || encoder == config.VideoCodec {
		kw["c:v"] = config.VideoCodec
		kw["preset"] = config.VideoPreset
	} else {
		kw["c:v"] = encoder
		kw["b:v"] = config.HardwareBitrate
	}
	return kw
}

// zoomExpr moves the zoom factor linearly from start to end over frames
// output frames.
func zoomExpr(start, end float64, frames int) string {
	if frames <= 1 || start == end {
		return fmt.Sprintf("%.4f", start)
	}
	return fmt.Sprintf("%.4f+(%.4f)*on/%d", start, end-start, frames-1)
}

func seconds(v float64) string { return fmt.Sprintf("%.2f", v) }

func integer(v float64) string { return fmt.Sprintf("%d", int(math.Round(v))) }
