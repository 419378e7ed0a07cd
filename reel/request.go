// Package reel runs the full pipeline for one reel: resolve assets, measure
// narration, window captions, compile the timeline, build the render plan,
// draw cards and hand the plan to the compositor.
package reel

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"reelbot/renderplan"
)

// Request describes one reel to produce.
type Request struct {
	ID                string                    `json:"id"`
	Script            string                    `json:"script"`
	Title             string                    `json:"title,omitempty"`
	Images            []string                  `json:"images"`
	Narration         string                    `json:"narration"`
	NarrationDuration float64                   `json:"narration_duration,omitempty"`
	Intro             string                    `json:"intro,omitempty"`
	Outro             string                    `json:"outro,omitempty"`
	CaptionMode       string                    `json:"caption_mode,omitempty"`
	Segments          []renderplan.SegmentTitle `json:"segments,omitempty"`
	Output            string                    `json:"output,omitempty"`
}

// idPattern keeps IDs usable as a single path element under the work and
// output directories.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidateID rejects IDs that are not a plain name: empty, "." or "..",
// separators, or anything outside letters, digits, '-' and '_'.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("reel id %q must start with a letter or digit and contain only letters, digits, '-' and '_'", id)
	}
	return nil
}

// Normalize assigns an ID when missing and validates required fields.
func (r *Request) Normalize() error {
	if strings.TrimSpace(r.ID) == "" {
		r.ID = uuid.New().String()
	}
	if err := ValidateID(r.ID); err != nil {
		return err
	}
	if strings.TrimSpace(r.Narration) == "" {
		return errors.New("narration path is required")
	}
	if r.NarrationDuration < 0 {
		return fmt.Errorf("narration_duration must not be negative, got %v", r.NarrationDuration)
	}
	return nil
}

// Stage names a pipeline step for error reporting.
type Stage string

const (
	StageResolve  Stage = "resolve"
	StageProbe    Stage = "probe"
	StageCaptions Stage = "captions"
	StageCompile  Stage = "compile"
	StageBuild    Stage = "build"
	StageCards    Stage = "cards"
	StageExecute  Stage = "execute"
)

// StageError wraps the failure of one pipeline step.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// Result is a finished reel.
type Result struct {
	ID                 string  `json:"id"`
	Output             string  `json:"output"`
	Narration          float64 `json:"narration_duration"`
	PerSegmentDuration float64 `json:"per_segment_duration"`
	OutroOffset        float64 `json:"outro_offset"`
	TotalDuration      float64 `json:"total_duration"`
	Segments           int     `json:"segments"`
	Dropped            int     `json:"dropped_assets"`
}
