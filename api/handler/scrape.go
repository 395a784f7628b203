package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sieve/cache"
	"github.com/use-agent/sieve/engine"
	"github.com/use-agent/sieve/models"
)

// Scraper runs the scrape pipeline for one URL. *engine.Orchestrator
// implements it.
type Scraper interface {
	Scrape(ctx context.Context, url string, opts engine.Options) (*models.PageResult, models.TimingInfo)
}

// Scrape returns a handler for POST /api/v1/scrape (and the /scrape alias).
//
//  1. Bind, default and validate the request.
//  2. Serve from cache when max_age allows it.
//  3. Run the pipeline; pipeline failures travel inside the result.
//  4. Store clean results and respond.
func Scrape(sc Scraper, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}
		req.Defaults()
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, scrapeOne(c.Request.Context(), sc, cc, &req))
	}
}

// scrapeOne is shared by the single and batch endpoints.
func scrapeOne(ctx context.Context, sc Scraper, cc *cache.Cache, req *models.ScrapeRequest) *models.ScrapeResponse {
	start := time.Now()
	key := cache.Key(req.URL, req.FetchMode, req.IncludeMarkdown)

	if cached, hit := cc.Get(key, req.MaxAge); hit {
		cached.CacheStatus = "hit"
		cached.Timing = models.TimingInfo{TotalMs: time.Since(start).Milliseconds()}
		return cached
	}

	result, timing := sc.Scrape(ctx, req.URL, engine.Options{
		Mode:            req.FetchMode,
		IncludeMarkdown: req.IncludeMarkdown,
		Timeout:         time.Duration(req.Timeout) * time.Second,
		Stealth:         req.Stealth,
	})
	resp := &models.ScrapeResponse{Success: true, Result: result, Timing: timing}

	if req.MaxAge > 0 && cc != nil {
		resp.CacheStatus = "miss"
		if len(result.Errors) == 0 {
			cc.Set(key, resp)
		}
	}
	return resp
}

// respondError maps a ScrapeError to its HTTP status and writes the failure
// envelope.
func respondError(c *gin.Context, err error) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}
	c.JSON(statusFor(scrapeErr), models.ScrapeResponse{
		Success: false,
		Error:   scrapeErr.ToDetail(),
	})
}

// statusFor translates error codes to HTTP status codes.
func statusFor(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case models.ErrCodeNavigation, models.ErrCodeFetchFailed:
		return http.StatusBadGateway
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case models.ErrCodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
