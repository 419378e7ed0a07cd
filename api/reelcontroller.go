package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"reelbot/jobs"
	"reelbot/reel"
)

// RegisterReelRoutes registers render submission and job status endpoints.
func RegisterReelRoutes(r *gin.Engine, deps Dependencies) {
	rc := &reelController{submitter: deps.Submitter, jobs: deps.Jobs, logger: deps.Logger}
	g := r.Group("/api/reels")
	g.POST("", rc.handleSubmit)
	g.GET("/:id", rc.handleGet)
}

type reelController struct {
	submitter Submitter
	jobs      jobs.Store
	logger    *slog.Logger
}

// SubmitResponse is returned by POST /api/reels.
type SubmitResponse struct {
	ID     string      `json:"id"`
	Status jobs.Status `json:"status"`
	Href   string      `json:"href"`
}

// handleSubmit queues a render and returns immediately.
func (rc *reelController) handleSubmit(c *gin.Context) {
	var req reel.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Reject what the pipeline would reject before a job exists for it.
	candidate := req
	if err := candidate.Normalize(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := rc.submitter.Submit(c.Request.Context(), req, "api")
	if errors.Is(err, jobs.ErrJobActive) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "id": req.ID})
		return
	}
	if err != nil {
		rc.logger.Error("failed to submit reel", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rc.logger.Info("reel submitted", "reel_id", job.ID)
	c.JSON(http.StatusAccepted, SubmitResponse{
		ID:     job.ID,
		Status: job.Status,
		Href:   "/api/reels/" + job.ID,
	})
}

// handleGet returns the stored job record.
func (rc *reelController) handleGet(c *gin.Context) {
	id := c.Param("id")
	job, err := rc.jobs.Get(c.Request.Context(), id)
	if errors.Is(err, jobs.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found", "id": id})
		return
	}
	if err != nil {
		rc.logger.Error("failed to load job", "reel_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, job)
}
