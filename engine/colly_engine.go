package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gocolly/colly/v2"
)

// CollyEngine fetches pages with a fresh colly collector per request.
type CollyEngine struct {
	userAgent string
}

// NewCollyEngine creates a CollyEngine. An empty userAgent uses DefaultUserAgent.
func NewCollyEngine(userAgent string) *CollyEngine {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &CollyEngine{userAgent: userAgent}
}

func (e *CollyEngine) Name() string { return "colly" }

func (e *CollyEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	c := colly.NewCollector(
		colly.UserAgent(e.userAgent),
		colly.MaxBodySize(maxBody),
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(fetchTimeout(req))

	if len(req.Headers) > 0 {
		c.OnRequest(func(r *colly.Request) {
			for k, v := range req.Headers {
				r.Headers.Set(k, v)
			}
		})
	}

	var (
		result   *FetchResult
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		result = &FetchResult{
			HTML:       string(r.Body),
			StatusCode: r.StatusCode,
			FinalURL:   r.Request.URL.String(),
			EngineName: e.Name(),
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = &StatusError{StatusCode: r.StatusCode, URL: r.Request.URL.String()}
			return
		}
		fetchErr = fmt.Errorf("colly_engine: %w", err)
	})

	if err := c.Visit(req.URL); err != nil && fetchErr == nil {
		fetchErr = fmt.Errorf("colly_engine: visit: %w", err)
	}
	if fetchErr != nil {
		slog.Debug("colly fetch failed", "url", req.URL, "error", fetchErr)
		return nil, fetchErr
	}
	if result == nil {
		return nil, errors.New("colly_engine: no response")
	}
	if result.StatusCode < 200 || result.StatusCode > 299 {
		return nil, &StatusError{StatusCode: result.StatusCode, URL: result.FinalURL}
	}
	return result, nil
}
