package engine

import (
	"context"
	"time"
)

// Engine is the interface implemented by the static fetch engines.
type Engine interface {
	// Name returns the engine identifier (e.g. "http", "colly").
	Name() string

	// Fetch retrieves the raw document for the given request. Transport
	// failures and non-2xx responses are both reported as errors.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a page.
type FetchRequest struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	HTML       string
	StatusCode int
	FinalURL   string
	EngineName string
}

// DefaultUserAgent identifies static fetches.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// DefaultFetchTimeout bounds a single static fetch, redirects included.
const DefaultFetchTimeout = 30 * time.Second

// maxBody caps how much of a response body is read.
const maxBody = 10 << 20

func fetchTimeout(req *FetchRequest) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return DefaultFetchTimeout
}
