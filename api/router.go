// Package api exposes the scrape pipeline over HTTP.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sieve/api/handler"
	"github.com/use-agent/sieve/api/middleware"
	"github.com/use-agent/sieve/cache"
	"github.com/use-agent/sieve/config"
	"github.com/use-agent/sieve/models"
)

// Deps are the collaborators the routes are built from. Stats and Notifier
// may be nil.
type Deps struct {
	Scraper   handler.Scraper
	Stats     handler.StatsProvider
	Cache     *cache.Cache
	Notifier  handler.Notifier
	StartTime time.Time
	Logger    *slog.Logger
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:    Recovery (JSON 500) → Logger
//	Protected: Auth → RateLimit
//
// Liveness and health stay outside auth so probes always work.
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, rec any) {
		deps.Logger.Error("handler panicked", "path", c.Request.URL.Path, "panic", rec)
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ScrapeResponse{
			Success: false,
			Error: &models.ErrorDetail{
				Code:    models.ErrCodeInternal,
				Message: fmt.Sprintf("Unexpected error: %v", rec),
			},
		})
	}))
	r.Use(gin.Logger())

	r.GET("/healthz", handler.Liveness())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(deps.Stats, deps.StartTime))

	guard := []gin.HandlerFunc{middleware.Auth(cfg.Auth), middleware.RateLimit(cfg.RateLimit)}
	scrape := handler.Scrape(deps.Scraper, deps.Cache)
	batches := handler.NewBatches(deps.Scraper, deps.Cache, deps.Notifier, cfg.Batch, deps.Logger)

	protected := v1.Group("", guard...)
	protected.POST("/scrape", scrape)
	protected.POST("/batch/scrape", batches.Post())
	protected.GET("/batch/:id", batches.Get())

	r.POST("/scrape", append(guard, scrape)...)

	return r
}
