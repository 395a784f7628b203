package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sieve/models"
)

// Version is reported by the health endpoint.
var Version = "0.1.0"

// StatsProvider reports browser page pool usage. *browser.Browser implements it.
type StatsProvider interface {
	Stats() models.PoolStats
}

// Liveness returns a handler for GET /healthz.
func Liveness() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// Health returns a handler for GET /api/v1/health. Status degrades when more
// than 80% of the page pool is in use. A nil sp reports an empty pool, as when
// rendering is disabled.
func Health(sp StatsProvider, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var stats models.PoolStats
		if sp != nil {
			stats = sp.Stats()
		}

		status := "healthy"
		if stats.MaxPages > 0 && stats.ActivePages > int(float64(stats.MaxPages)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Version:   Version,
		})
	}
}
