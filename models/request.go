package models

import (
	"net/url"
	"strings"
)

// Fetch modes accepted by ScrapeRequest.FetchMode.
const (
	FetchModeAuto    = "auto"
	FetchModeStatic  = "static"
	FetchModeBrowser = "browser"
)

// ScrapeRequest is the payload for POST /api/v1/scrape.
type ScrapeRequest struct {
	// URL is the target page to scrape. Required, http or https only.
	URL string `json:"url" binding:"required"`

	// FetchMode controls the fetching strategy.
	// "auto" (default): static fetch first, render when the document is insufficient.
	// "static": never render.
	// "browser": skip the static fetch and render directly.
	FetchMode string `json:"fetch_mode,omitempty" binding:"omitempty,oneof=auto static browser"`

	// IncludeMarkdown adds a Markdown rendering of every section.
	IncludeMarkdown bool `json:"include_markdown,omitempty"`

	// Timeout bounds the browser render, in seconds. The static fetch uses
	// the configured fetch timeout instead.
	// Default: 60. Max: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`

	// Stealth enables anti-bot-detection evasions when rendering.
	Stealth bool `json:"stealth,omitempty"`

	// MaxAge allows serving a cached result younger than this many milliseconds.
	// Zero disables the cache for this request.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`
}

// Defaults applies default values to unset fields.
func (r *ScrapeRequest) Defaults() {
	if r.FetchMode == "" {
		r.FetchMode = FetchModeAuto
	}
	if r.Timeout == 0 {
		r.Timeout = 60
	}
	r.URL = strings.TrimSpace(r.URL)
}

// Validate rejects URLs that are not absolute http(s) URLs.
func (r *ScrapeRequest) Validate() error {
	return ValidateTargetURL(r.URL)
}

// ValidateTargetURL checks that raw is an absolute http or https URL.
func ValidateTargetURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return NewScrapeError(ErrCodeInvalidInput, "invalid URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewScrapeError(ErrCodeInvalidInput,
			"Invalid URL scheme. Only http:// and https:// are supported.", nil)
	}
	if u.Host == "" {
		return NewScrapeError(ErrCodeInvalidInput, "URL has no host", nil)
	}
	return nil
}
