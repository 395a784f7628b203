package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"github.com/use-agent/sieve/cache"
	"github.com/use-agent/sieve/config"
	"github.com/use-agent/sieve/models"
	"github.com/use-agent/sieve/webhook"
)

// Batch job states.
const (
	BatchProcessing = "processing"
	BatchCompleted  = "completed"
	BatchPartial    = "partial"
	BatchFailed     = "failed"
)

// Notifier delivers job events. *webhook.Sender implements it.
type Notifier interface {
	DeliverAsync(url, secret string, event *webhook.Event)
}

// job guards a models.BatchJob shared between its workers and status reads.
type job struct {
	mu sync.Mutex
	models.BatchJob
}

func (j *job) status() models.BatchStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	results := make([]*models.ScrapeResponse, len(j.Results))
	copy(results, j.Results)
	return models.BatchStatusResponse{
		ID:        j.ID,
		Status:    j.Status,
		Completed: j.Completed,
		Total:     j.Total,
		Results:   results,
	}
}

// Batches owns the batch job store. Finished jobs expire after the
// configured TTL.
type Batches struct {
	scraper  Scraper
	cache    *cache.Cache
	notifier Notifier
	cfg      config.BatchConfig
	jobs     *gocache.Cache
	logger   *slog.Logger
}

// NewBatches creates the batch job store. A nil notifier disables webhooks.
func NewBatches(sc Scraper, cc *cache.Cache, notifier Notifier, cfg config.BatchConfig, logger *slog.Logger) *Batches {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.MaxURLs <= 0 {
		cfg.MaxURLs = 100
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	return &Batches{
		scraper:  sc,
		cache:    cc,
		notifier: notifier,
		cfg:      cfg,
		jobs:     gocache.New(cfg.JobTTL, 5*time.Minute),
		logger:   logger,
	}
}

// Post returns a handler for POST /api/v1/batch/scrape. It registers the job
// and scrapes in the background.
func (b *Batches) Post() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.BatchResponse{
				Status: BatchFailed,
				Error:  &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: err.Error()},
			})
			return
		}
		if len(req.URLs) > b.cfg.MaxURLs {
			c.JSON(http.StatusBadRequest, models.BatchResponse{
				Status: BatchFailed,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: fmt.Sprintf("maximum %d URLs per batch", b.cfg.MaxURLs),
				},
			})
			return
		}

		j := &job{BatchJob: models.BatchJob{
			ID:            "batch-" + randomID(),
			Status:        BatchProcessing,
			Total:         len(req.URLs),
			Results:       make([]*models.ScrapeResponse, len(req.URLs)),
			CreatedAt:     time.Now().Unix(),
			WebhookURL:    req.WebhookURL,
			WebhookSecret: req.WebhookSecret,
		}}
		b.jobs.SetDefault(j.ID, j)

		go b.run(j, req)

		c.JSON(http.StatusOK, models.BatchResponse{ID: j.ID, Status: BatchProcessing, Total: j.Total})
	}
}

// Get returns a handler for GET /api/v1/batch/:id.
func (b *Batches) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := b.jobs.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, models.BatchResponse{
				ID:     c.Param("id"),
				Status: BatchFailed,
				Error:  &models.ErrorDetail{Code: models.ErrCodeNotFound, Message: "batch job not found"},
			})
			return
		}
		c.JSON(http.StatusOK, v.(*job).status())
	}
}

// run scrapes every URL of j with bounded concurrency, then settles the job
// status and fires the completion webhook.
func (b *Batches) run(j *job, req models.BatchRequest) {
	sem := make(chan struct{}, b.cfg.Concurrency)
	var wg sync.WaitGroup
	failed := 0

	for i, rawURL := range req.URLs {
		wg.Add(1)
		go func(idx int, target string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			resp := b.scrapeURL(req.Options.ToScrapeRequest(target))

			j.mu.Lock()
			j.Results[idx] = resp
			j.Completed++
			if !resp.Success || len(resp.Result.Errors) > 0 {
				failed++
			}
			j.mu.Unlock()
		}(i, rawURL)
	}
	wg.Wait()

	j.mu.Lock()
	switch {
	case failed == j.Total:
		j.Status = BatchFailed
	case failed > 0:
		j.Status = BatchPartial
	default:
		j.Status = BatchCompleted
	}
	j.mu.Unlock()
	status := j.status()

	b.logger.Info("batch job finished",
		"id", status.ID,
		"status", status.Status,
		"failed", failed,
		"total", status.Total,
	)

	if b.notifier != nil && j.WebhookURL != "" {
		b.notifier.DeliverAsync(j.WebhookURL, j.WebhookSecret,
			webhook.NewEvent(webhook.EventBatchCompleted, status.ID, status))
	}
}

// scrapeURL validates one batch entry before running it; a bad URL fails
// only that entry.
func (b *Batches) scrapeURL(req *models.ScrapeRequest) *models.ScrapeResponse {
	if err := req.Validate(); err != nil {
		var se *models.ScrapeError
		if !errors.As(err, &se) {
			se = models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err)
		}
		return &models.ScrapeResponse{Success: false, Error: se.ToDetail()}
	}
	return scrapeOne(context.Background(), b.scraper, b.cache, req)
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
