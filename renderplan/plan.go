// Package renderplan turns a compiled timeline into the labeled operation
// graph the compositor executes.
package renderplan

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// OpKind is the operation a node performs.
type OpKind string

const (
	OpScaleCrop      OpKind = "scale-crop"
	OpPanZoom        OpKind = "pan-zoom"
	OpCrossfade      OpKind = "crossfade"
	OpOverlay        OpKind = "overlay"
	OpAudioTrimDelay OpKind = "audio-trim-delay"
	OpPassthrough    OpKind = "passthrough"
)

// InputKind classifies a plan input.
type InputKind string

const (
	InputImage InputKind = "image"
	InputVideo InputKind = "video"
	InputAudio InputKind = "audio"
	InputCard  InputKind = "card"
)

// CardKind is the kind of generated card image.
type CardKind string

const (
	CardPlaceholder CardKind = "placeholder"
	CardCaption     CardKind = "caption"
	CardTitle       CardKind = "title"
)

// CardSpec describes an image the cards renderer must produce at the input's path.
type CardSpec struct {
	Kind  CardKind `json:"kind"`
	Text  string   `json:"text"`
	Color string   `json:"color,omitempty"`
}

// Input is a file the plan reads. Cards are generated before execution.
type Input struct {
	Label    string    `json:"label"`
	Kind     InputKind `json:"kind"`
	Path     string    `json:"path"`
	Loop     bool      `json:"loop,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Card     *CardSpec `json:"card,omitempty"`
}

// Window is a half-open [Start, End) span on the render clock.
type Window struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t float64) bool { return w.Start <= t && t < w.End }

// Node is one operation. Inputs name earlier nodes or plan inputs.
type Node struct {
	Label  string             `json:"label"`
	Op     OpKind             `json:"op"`
	Inputs []string           `json:"inputs"`
	Params map[string]float64 `json:"params,omitempty"`
	Style  string             `json:"style,omitempty"`
	Enable *Window            `json:"enable,omitempty"`
}

// Param returns a numeric parameter, or 0 when absent.
func (n Node) Param(name string) float64 { return n.Params[name] }

// Plan is the ordered node graph for one reel. Node order is dependency order.
type Plan struct {
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      int     `json:"fps"`
	Duration float64 `json:"duration"`
	Inputs   []Input `json:"inputs"`
	Nodes    []Node  `json:"nodes"`
	VideoOut string  `json:"video_out"`
	AudioOut string  `json:"audio_out"`
}

// Node looks up a node by label.
func (p *Plan) Node(label string) (Node, bool) {
	for _, n := range p.Nodes {
		if n.Label == label {
			return n, true
		}
	}
	return Node{}, false
}

// Input looks up an input by label.
func (p *Plan) Input(label string) (Input, bool) {
	for _, in := range p.Inputs {
		if in.Label == label {
			return in, true
		}
	}
	return Input{}, false
}

// NodesOf returns the nodes of one kind in plan order.
func (p *Plan) NodesOf(op OpKind) []Node {
	var out []Node
	for _, n := range p.Nodes {
		if n.Op == op {
			out = append(out, n)
		}
	}
	return out
}

// Cards returns the inputs that must be rendered before execution.
func (p *Plan) Cards() []Input {
	var out []Input
	for _, in := range p.Inputs {
		if in.Card != nil {
			out = append(out, in)
		}
	}
	return out
}

// Validate checks that labels are unique, every reference points at an input
// or an earlier node, and both sinks exist.
func (p *Plan) Validate() error {
	seen := make(map[string]bool, len(p.Inputs)+len(p.Nodes))
	for _, in := range p.Inputs {
		if in.Label == "" {
			return fmt.Errorf("input with empty label (%s)", in.Path)
		}
		if seen[in.Label] {
			return fmt.Errorf("duplicate label %q", in.Label)
		}
		seen[in.Label] = true
	}
	for i, n := range p.Nodes {
		if n.Label == "" {
			return fmt.Errorf("node %d has empty label", i)
		}
		if seen[n.Label] {
			return fmt.Errorf("duplicate label %q", n.Label)
		}
		if len(n.Inputs) == 0 {
			return fmt.Errorf("node %q has no inputs", n.Label)
		}
		for _, ref := range n.Inputs {
			if !seen[ref] {
				return fmt.Errorf("node %q references %q before it is defined", n.Label, ref)
			}
		}
		if n.Enable != nil && !(n.Enable.End > n.Enable.Start) {
			return fmt.Errorf("node %q has empty enable window [%v,%v)", n.Label, n.Enable.Start, n.Enable.End)
		}
		seen[n.Label] = true
	}
	if _, ok := p.Node(p.VideoOut); !ok {
		return fmt.Errorf("video sink %q is not a node", p.VideoOut)
	}
	if _, ok := p.Node(p.AudioOut); !ok {
		return fmt.Errorf("audio sink %q is not a node", p.AudioOut)
	}
	return nil
}

// JSON encodes the plan. Map keys are sorted by encoding/json, so equal plans
// encode to identical bytes.
func (p *Plan) JSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// String renders one line per input and node, suitable for diffing.
func (p *Plan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "plan %dx%d@%d duration=%s video=%s audio=%s\n",
		p.Width, p.Height, p.FPS, formatSeconds(p.Duration), p.VideoOut, p.AudioOut)
	for _, in := range p.Inputs {
		fmt.Fprintf(&b, "input %s %s %s", in.Label, in.Kind, in.Path)
		if in.Loop {
			b.WriteString(" loop")
		}
		if in.Duration > 0 {
			fmt.Fprintf(&b, " t=%s", formatSeconds(in.Duration))
		}
		if in.Card != nil {
			fmt.Fprintf(&b, " card=%s %q", in.Card.Kind, in.Card.Text)
		}
		b.WriteByte('\n')
	}
	for _, n := range p.Nodes {
		b.WriteString(n.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func (n Node) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s = %s(%s)", n.Label, n.Op, strings.Join(n.Inputs, ", "))
	if n.Style != "" {
		fmt.Fprintf(&b, " style=%s", n.Style)
	}
	if len(n.Params) > 0 {
		keys := make([]string, 0, len(n.Params))
		for k := range n.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + formatSeconds(n.Params[k])
		}
		fmt.Fprintf(&b, " {%s}", strings.Join(parts, " "))
	}
	if n.Enable != nil {
		fmt.Fprintf(&b, " enable=[%s,%s)", formatSeconds(n.Enable.Start), formatSeconds(n.Enable.End))
	}
	return b.String()
}

// round2 fixes a timing value to the plan's 2-decimal precision.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatSeconds(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
