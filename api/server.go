// Package api exposes reel planning and rendering over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"reelbot/jobs"
	"reelbot/logging"
	"reelbot/reel"
)

// Planner compiles a request without rendering it.
type Planner interface {
	Plan(ctx context.Context, req reel.Request) (*reel.Compiled, error)
}

// Submitter queues a request for background rendering.
type Submitter interface {
	Submit(ctx context.Context, req reel.Request, source string) (jobs.Job, error)
}

// Dependencies are the services the routes call into.
type Dependencies struct {
	Planner   Planner
	Submitter Submitter
	Jobs      jobs.Store
	Encoder   string
	Logger    *slog.Logger
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Logger = logging.WithComponent(deps.Logger, "api")

	r := gin.New()
	// Minimal middleware: recovery; request logging is done per handler
	r.Use(gin.Recovery())

	RegisterHealthRoutes(r, deps.Encoder)
	RegisterPlanRoutes(r, deps)
	RegisterReelRoutes(r, deps)
	return r
}

// RegisterHealthRoutes registers the liveness endpoint.
func RegisterHealthRoutes(r *gin.Engine, encoder string) {
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"encoder": encoder,
		})
	})
}
