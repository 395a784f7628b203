package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/sieve/cache"
	"github.com/use-agent/sieve/config"
	"github.com/use-agent/sieve/engine"
	"github.com/use-agent/sieve/models"
	"github.com/use-agent/sieve/webhook"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeScraper struct {
	calls    atomic.Int32
	mu       sync.Mutex
	lastOpts engine.Options
	errorsOn map[string]bool
}

func (f *fakeScraper) Scrape(_ context.Context, url string, opts engine.Options) (*models.PageResult, models.TimingInfo) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastOpts = opts
	f.mu.Unlock()

	res := &models.PageResult{
		URL:          url,
		Meta:         models.DefaultPageMeta(),
		Sections:     []models.Section{{ID: "main-0", Type: models.SectionMain, SourceURL: url}},
		Interactions: models.NewInteractionLog(url),
		Errors:       []models.ErrorEntry{},
	}
	if f.errorsOn[url] {
		res.Sections = []models.Section{}
		res.AddError(models.PhaseFetch, "Failed to fetch HTML content: boom")
	}
	return res, models.TimingInfo{TotalMs: 1, FetchMs: 1}
}

func postJSON(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func scrapeRouter(sc Scraper, cc *cache.Cache) *gin.Engine {
	r := gin.New()
	r.POST("/scrape", Scrape(sc, cc))
	return r
}

func TestScrape_Success(t *testing.T) {
	sc := &fakeScraper{}
	r := scrapeRouter(sc, nil)

	w := postJSON(r, "/scrape", map[string]any{
		"url": "https://example.com", "fetch_mode": "static", "include_markdown": true, "timeout": 10, "stealth": true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[models.ScrapeResponse](t, w)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "https://example.com", resp.Result.URL)
	assert.Len(t, resp.Result.Sections, 1)
	assert.Empty(t, resp.CacheStatus)

	assert.Equal(t, engine.Options{
		Mode: models.FetchModeStatic, IncludeMarkdown: true, Timeout: 10 * time.Second, Stealth: true,
	}, sc.lastOpts)
}

func TestScrape_Defaults(t *testing.T) {
	sc := &fakeScraper{}
	w := postJSON(scrapeRouter(sc, nil), "/scrape", map[string]any{"url": "  https://example.com  "})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.FetchModeAuto, sc.lastOpts.Mode)
	assert.Equal(t, 60*time.Second, sc.lastOpts.Timeout)
}

func TestScrape_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
		msg  string
	}{
		{"missing url", map[string]any{}, ""},
		{"ftp scheme", map[string]any{"url": "ftp://example.com"}, "Invalid URL scheme. Only http:// and https:// are supported."},
		{"no scheme", map[string]any{"url": "example.com"}, "Invalid URL scheme. Only http:// and https:// are supported."},
		{"bad mode", map[string]any{"url": "https://x.com", "fetch_mode": "turbo"}, ""},
		{"timeout too large", map[string]any{"url": "https://x.com", "timeout": 500}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := &fakeScraper{}
			w := postJSON(scrapeRouter(sc, nil), "/scrape", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			resp := decode[models.ScrapeResponse](t, w)
			assert.False(t, resp.Success)
			assert.Nil(t, resp.Result)
			require.NotNil(t, resp.Error)
			assert.Equal(t, models.ErrCodeInvalidInput, resp.Error.Code)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, resp.Error.Message)
			}
			assert.Zero(t, sc.calls.Load())
		})
	}
}

func TestScrape_PipelineErrorsStaySuccessful(t *testing.T) {
	sc := &fakeScraper{errorsOn: map[string]bool{"https://down.example": true}}
	w := postJSON(scrapeRouter(sc, nil), "/scrape", map[string]any{"url": "https://down.example"})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[models.ScrapeResponse](t, w)
	assert.True(t, resp.Success)
	require.Len(t, resp.Result.Errors, 1)
	assert.Equal(t, models.PhaseFetch, resp.Result.Errors[0].Phase)
}

func TestScrape_Cache(t *testing.T) {
	sc := &fakeScraper{}
	r := scrapeRouter(sc, cache.New(10, time.Minute))
	body := map[string]any{"url": "https://example.com", "max_age": 60000}

	first := decode[models.ScrapeResponse](t, postJSON(r, "/scrape", body))
	assert.Equal(t, "miss", first.CacheStatus)

	second := decode[models.ScrapeResponse](t, postJSON(r, "/scrape", body))
	assert.Equal(t, "hit", second.CacheStatus)
	assert.Equal(t, first.Result.URL, second.Result.URL)
	assert.EqualValues(t, 1, sc.calls.Load())

	decode[models.ScrapeResponse](t, postJSON(r, "/scrape", map[string]any{"url": "https://example.com"}))
	assert.EqualValues(t, 2, sc.calls.Load(), "no max_age bypasses the cache")

	decode[models.ScrapeResponse](t, postJSON(r, "/scrape", map[string]any{
		"url": "https://example.com", "max_age": 60000, "include_markdown": true,
	}))
	assert.EqualValues(t, 3, sc.calls.Load(), "different options use a different key")
}

func TestScrape_ErroredResultsNotCached(t *testing.T) {
	sc := &fakeScraper{errorsOn: map[string]bool{"https://down.example": true}}
	r := scrapeRouter(sc, cache.New(10, time.Minute))
	body := map[string]any{"url": "https://down.example", "max_age": 60000}

	postJSON(r, "/scrape", body)
	resp := decode[models.ScrapeResponse](t, postJSON(r, "/scrape", body))
	assert.Equal(t, "miss", resp.CacheStatus)
	assert.EqualValues(t, 2, sc.calls.Load())
}

func TestStatusFor(t *testing.T) {
	tests := map[string]int{
		models.ErrCodeTimeout:      http.StatusGatewayTimeout,
		models.ErrCodeNavigation:   http.StatusBadGateway,
		models.ErrCodeFetchFailed:  http.StatusBadGateway,
		models.ErrCodeInvalidInput: http.StatusBadRequest,
		models.ErrCodeRateLimited:  http.StatusTooManyRequests,
		models.ErrCodeUnauthorized: http.StatusUnauthorized,
		models.ErrCodeNotFound:     http.StatusNotFound,
		models.ErrCodeInternal:     http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, statusFor(models.NewScrapeError(code, "", nil)), code)
	}
}

type fakeStats struct{ stats models.PoolStats }

func (f fakeStats) Stats() models.PoolStats { return f.stats }

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		sp     StatsProvider
		status string
	}{
		{"no browser", nil, "healthy"},
		{"idle pool", fakeStats{models.PoolStats{MaxPages: 10, ActivePages: 2}}, "healthy"},
		{"busy pool", fakeStats{models.PoolStats{MaxPages: 10, ActivePages: 9}}, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/health", Health(tt.sp, time.Now()))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, http.StatusOK, w.Code)
			resp := decode[models.HealthResponse](t, w)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, Version, resp.Version)
		})
	}
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []*webhook.Event
	urls   []string
	done   chan struct{}
}

func (f *fakeNotifier) DeliverAsync(url, _ string, event *webhook.Event) {
	f.mu.Lock()
	f.events = append(f.events, event)
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	close(f.done)
}

func batchRouter(b *Batches) *gin.Engine {
	r := gin.New()
	r.POST("/batch/scrape", b.Post())
	r.GET("/batch/:id", b.Get())
	return r
}

func waitForBatch(t *testing.T, r http.Handler, id string) models.BatchStatusResponse {
	t.Helper()
	var status models.BatchStatusResponse
	require.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/batch/"+id, nil))
		if w.Code != http.StatusOK {
			return false
		}
		status = decode[models.BatchStatusResponse](t, w)
		return status.Status != BatchProcessing
	}, 2*time.Second, 10*time.Millisecond)
	return status
}

func TestBatch_CompletesAndNotifies(t *testing.T) {
	sc := &fakeScraper{}
	n := &fakeNotifier{done: make(chan struct{})}
	r := batchRouter(NewBatches(sc, nil, n, config.BatchConfig{Concurrency: 2}, nil))

	w := postJSON(r, "/batch/scrape", map[string]any{
		"urls":        []string{"https://a.example", "https://b.example", "https://c.example"},
		"options":     map[string]any{"fetch_mode": "static"},
		"webhook_url": "https://hooks.example/done",
	})
	require.Equal(t, http.StatusOK, w.Code)
	accepted := decode[models.BatchResponse](t, w)
	assert.Equal(t, BatchProcessing, accepted.Status)
	assert.Equal(t, 3, accepted.Total)

	status := waitForBatch(t, r, accepted.ID)
	assert.Equal(t, BatchCompleted, status.Status)
	assert.Equal(t, 3, status.Completed)
	require.Len(t, status.Results, 3)
	assert.Equal(t, "https://b.example", status.Results[1].Result.URL, "results keep input order")
	assert.Equal(t, models.FetchModeStatic, sc.lastOpts.Mode)

	select {
	case <-n.done:
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not sent")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	assert.Equal(t, []string{"https://hooks.example/done"}, n.urls)
	assert.Equal(t, webhook.EventBatchCompleted, n.events[0].Type)
	assert.Equal(t, accepted.ID, n.events[0].JobID)
}

func TestBatch_PartialOnBadEntries(t *testing.T) {
	sc := &fakeScraper{errorsOn: map[string]bool{"https://down.example": true}}
	r := batchRouter(NewBatches(sc, nil, nil, config.BatchConfig{}, nil))

	w := postJSON(r, "/batch/scrape", map[string]any{
		"urls": []string{"https://ok.example", "ftp://bad.example", "https://down.example"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	status := waitForBatch(t, r, decode[models.BatchResponse](t, w).ID)
	assert.Equal(t, BatchPartial, status.Status)
	assert.False(t, status.Results[1].Success)
	assert.Equal(t, models.ErrCodeInvalidInput, status.Results[1].Error.Code)
	assert.True(t, status.Results[2].Success)
	assert.EqualValues(t, 2, sc.calls.Load(), "invalid URLs are never scraped")
}

func TestBatch_AllFailed(t *testing.T) {
	r := batchRouter(NewBatches(&fakeScraper{}, nil, nil, config.BatchConfig{}, nil))
	w := postJSON(r, "/batch/scrape", map[string]any{"urls": []string{"mailto:x@y.z"}})
	status := waitForBatch(t, r, decode[models.BatchResponse](t, w).ID)
	assert.Equal(t, BatchFailed, status.Status)
}

func TestBatch_Rejections(t *testing.T) {
	r := batchRouter(NewBatches(&fakeScraper{}, nil, nil, config.BatchConfig{MaxURLs: 2}, nil))

	w := postJSON(r, "/batch/scrape", map[string]any{"urls": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/batch/scrape", map[string]any{"urls": []string{"https://a", "https://b", "https://c"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[models.BatchResponse](t, w)
	assert.Equal(t, "maximum 2 URLs per batch", resp.Error.Message)

	get := httptest.NewRecorder()
	r.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/batch/batch-missing", nil))
	assert.Equal(t, http.StatusNotFound, get.Code)
}
