package captions

import (
	"fmt"
	"strings"
)

// Mode selects how caption text is revealed.
type Mode int

const (
	// ModeTypewriter reveals a chunk word by word.
	ModeTypewriter Mode = iota
	// ModeStatic shows each chunk whole for its full window.
	ModeStatic
)

func (m Mode) String() string {
	if m == ModeStatic {
		return "static"
	}
	return "typewriter"
}

// ParseMode maps a configuration value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "typewriter":
		return ModeTypewriter, nil
	case "static":
		return ModeStatic, nil
	default:
		return ModeTypewriter, fmt.Errorf("unknown caption mode %q", s)
	}
}

// WordWindow is the span during which the first Index+1 words of a chunk are shown.
type WordWindow struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Window is the span of one caption chunk.
type Window struct {
	Chunk int          `json:"chunk"`
	Text  string       `json:"text"`
	Start float64      `json:"start"`
	End   float64      `json:"end"`
	Words []WordWindow `json:"words,omitempty"`
}

// Duration is End - Start.
func (w Window) Duration() float64 { return w.End - w.Start }

// ComputeWindows tiles [rangeStart, rangeEnd] with one window per chunk,
// sized by word count. In typewriter mode every window is further split per
// word by character weight. A degenerate range or empty script yields no
// windows.
func ComputeWindows(script string, rangeStart, rangeEnd float64, mode Mode) []Window {
	if !(rangeEnd > rangeStart) {
		return nil
	}
	chunks := SplitIntoChunks(script)
	if len(chunks) == 0 {
		return nil
	}

	total := 0
	for _, c := range chunks {
		total += c.WordCount
	}

	span := rangeEnd - rangeStart
	windows := make([]Window, 0, len(chunks))
	cum := 0
	for i, c := range chunks {
		start := rangeStart + float64(cum)/float64(total)*span
		cum += c.WordCount
		end := rangeStart + float64(cum)/float64(total)*span
		if i == len(chunks)-1 {
			end = rangeEnd
		}
		if i > 0 {
			start = windows[i-1].End
		}

		w := Window{Chunk: i, Text: c.Text, Start: start, End: end}
		if mode == ModeTypewriter {
			w.Words = wordWindows(c, start, end)
		}
		windows = append(windows, w)
	}
	return windows
}

func wordWindows(c Chunk, start, end float64) []WordWindow {
	span := end - start
	out := make([]WordWindow, 0, len(c.Words))
	cum := 0
	for i, word := range c.Words {
		t0 := start + float64(cum)/float64(c.CharWeight)*span
		cum += wordWeight(word)
		t1 := start + float64(cum)/float64(c.CharWeight)*span
		if i == len(c.Words)-1 {
			t1 = end
		}
		if i > 0 {
			t0 = out[i-1].End
		}
		out = append(out, WordWindow{
			Index: i,
			Text:  strings.Join(c.Words[:i+1], " "),
			Start: t0,
			End:   t1,
		})
	}
	return out
}

// Span is one piece of caption text and the time it is visible.
type Span struct {
	Text  string
	Start float64
	End   float64
}

// Flatten returns the visible spans in display order: word windows in
// typewriter mode, chunk windows otherwise.
func Flatten(windows []Window) []Span {
	var out []Span
	for _, w := range windows {
		if len(w.Words) == 0 {
			out = append(out, Span{Text: w.Text, Start: w.Start, End: w.End})
			continue
		}
		for _, ww := range w.Words {
			out = append(out, Span{Text: ww.Text, Start: ww.Start, End: ww.End})
		}
	}
	return out
}
