package engine

import (
	"context"
	"time"

	"github.com/use-agent/sieve/models"
)

// RenderRequest asks the browser collaborator for a rendered page.
type RenderRequest struct {
	URL     string
	Timeout time.Duration
	Stealth bool
}

// RenderResult is the rendered document plus the interactions performed to
// produce it.
type RenderResult struct {
	HTML         string
	Interactions models.InteractionLog
}

// RenderFunc is the callback that drives a browser session. It is injected
// from main to keep this package free of browser imports.
type RenderFunc func(ctx context.Context, req *RenderRequest) (*RenderResult, error)
