package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"reelbot/captions"
	"reelbot/reel"
	"reelbot/renderplan"
	"reelbot/timeline"
)

// RegisterPlanRoutes registers the dry-run planning endpoint.
func RegisterPlanRoutes(r *gin.Engine, deps Dependencies) {
	pc := &planController{planner: deps.Planner, logger: deps.Logger}
	r.POST("/api/plans", pc.handleCreatePlan)
}

type planController struct {
	planner Planner
	logger  *slog.Logger
}

// SegmentSummary describes one displayed segment of a compiled timeline.
type SegmentSummary struct {
	Index     int     `json:"index"`
	Role      string  `json:"role"`
	Path      string  `json:"path"`
	Start     float64 `json:"start"`
	Duration  float64 `json:"duration"`
	Frames    int     `json:"frames"`
	Transform string  `json:"transform"`
}

// TimelineSummary is the JSON view of a compiled timeline.
type TimelineSummary struct {
	Narration          float64          `json:"narration_duration"`
	PerSegmentDuration float64          `json:"per_segment_duration"`
	OutroOffset        float64          `json:"outro_offset"`
	TotalDuration      float64          `json:"total_duration"`
	Segments           []SegmentSummary `json:"segments"`
}

// PlanResponse is returned by POST /api/plans.
type PlanResponse struct {
	ID       string                   `json:"id"`
	Timeline TimelineSummary          `json:"timeline"`
	Captions []captions.Window        `json:"captions"`
	Titles   []renderplan.TitleWindow `json:"titles"`
	Plan     *renderplan.Plan         `json:"plan"`
}

func summarize(tl *timeline.Timeline) TimelineSummary {
	s := TimelineSummary{
		Narration:          tl.NarrationDuration,
		PerSegmentDuration: tl.PerSegmentDuration,
		OutroOffset:        tl.OutroOffset,
		TotalDuration:      tl.TotalDuration(),
	}
	for _, seg := range tl.Segments {
		s.Segments = append(s.Segments, SegmentSummary{
			Index:     seg.Index,
			Role:      seg.Role.String(),
			Path:      seg.Asset.Path,
			Start:     seg.Start,
			Duration:  seg.Duration,
			Frames:    seg.Frames,
			Transform: seg.Transform.String(),
		})
	}
	return s
}

// handleCreatePlan compiles a request and returns its render plan.
func (pc *planController) handleCreatePlan(c *gin.Context) {
	var req reel.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	compiled, err := pc.planner.Plan(c.Request.Context(), req)
	if err != nil {
		respondStageError(c, pc.logger, err)
		return
	}

	c.JSON(http.StatusOK, PlanResponse{
		ID:       compiled.Request.ID,
		Timeline: summarize(compiled.Timeline),
		Captions: compiled.Captions,
		Titles:   compiled.Titles,
		Plan:     compiled.Plan,
	})
}

// respondStageError maps pipeline failures to HTTP statuses. Input problems
// are 422; a failed narration probe is 502.
func respondStageError(c *gin.Context, logger *slog.Logger, err error) {
	var se *reel.StageError
	if !errors.As(err, &se) {
		logger.Error("plan failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusUnprocessableEntity
	if se.Stage == reel.StageProbe {
		status = http.StatusBadGateway
	}
	logger.Warn("plan rejected", "stage", se.Stage, "error", se.Err)
	c.JSON(status, gin.H{"error": se.Err.Error(), "stage": se.Stage})
}
