package browser

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/sieve/engine"
	"github.com/use-agent/sieve/models"
	"github.com/ysmood/gson"
)

// htmlTimeout bounds the final HTML read, which runs on a fresh deadline so
// partial content survives an expired request context.
const htmlTimeout = 5 * time.Second

// Render loads req.URL in a pooled page, applies the interaction policy and
// returns the resulting HTML with the interactions performed. A navigation
// timeout is not fatal: whatever the page holds at that point is used.
// Render matches engine.RenderFunc.
//
// Lifecycle:
//
//  1. Timeout guard         : hard deadline on the entire render
//  2. Acquire page          : borrow a tab from the pool
//  3. DEFER: release        : about:blank + return to pool on every path
//  4. Page setup            : viewport, user agent, stealth, headers
//  5. Hijack mount          : block configured resource types and ad domains
//  6. Navigate + wait       : bounded by the navigation timeout
//  7. Interaction policy    : overlays, tabs, load-more, pagination, scroll
//  8. Extract               : page.HTML() on a fresh deadline
//
// Steps 4-5 must happen before step 6: stealth JS and resource blocking only
// take effect for navigations that happen after they are installed.
func (b *Browser) Render(ctx context.Context, req *engine.RenderRequest) (*engine.RenderResult, error) {
	logger := b.logger.With("url", req.URL, "phase", models.PhaseRender)

	// ── 1. Timeout guard ──────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(ctx, b.renderTimeout(req.Timeout))
	defer cancel()

	// ── 2-3. Acquire page, release on every exit path ─────────────────
	lease, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer lease.Release()
	page := lease.page

	// ── 4. Page setup ─────────────────────────────────────────────────
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             b.renderCfg.ViewportWidth,
		Height:            b.renderCfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		logger.Debug("viewport override failed", "error", err)
	}
	if ua := b.renderCfg.UserAgent; ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			logger.Debug("user agent override failed", "error", err)
		}
	}
	if req.Stealth {
		remove, evalErr := page.EvalOnNewDocument(stealth.JS)
		if evalErr != nil {
			logger.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		} else {
			defer func() { _ = remove() }()
		}
		if u, parseErr := url.Parse(req.URL); parseErr == nil {
			_ = proto.NetworkSetExtraHTTPHeaders{
				Headers: toHeadersMap(map[string]string{
					"Referer": "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname()),
				}),
			}.Call(page)
			defer func() {
				_ = proto.NetworkSetExtraHTTPHeaders{Headers: proto.NetworkHeaders{}}.Call(page)
			}()
		}
	}

	// ── 5. Mount hijack router ────────────────────────────────────────
	router := setupHijack(page, b.renderCfg.BlockedResourceTypes, b.renderCfg.BlockAds)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	// ── 6. Navigate + wait ────────────────────────────────────────────
	if err := b.navigate(p, req.URL, router != nil); err != nil {
		if !isTimeout(err) {
			return nil, categorizeError(err, "navigation to target URL failed")
		}
		logger.Warn("navigation timed out, continuing with partial content", "error", err)
	}
	sleep(ctx, b.renderCfg.InitialDelay)

	// ── 7. Interaction policy ─────────────────────────────────────────
	rec := models.NewInteractionLog(req.URL)
	surface := newRodSurface(p, b.renderCfg.ClickTimeout, router != nil)
	report := b.policy.Apply(ctx, surface, &rec, logger)
	logger.Info("interaction policy applied",
		"clicks", len(rec.Clicks),
		"scrolls", rec.Scrolls,
		"pages", len(rec.Pages),
		"applied", report.Count("", Applied),
		"failed", report.Count("", Failed),
	)

	// ── 8. Extract rendered HTML ──────────────────────────────────────
	extract := page.Timeout(htmlTimeout)
	defer extract.CancelTimeout()
	rawHTML, err := extract.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to extract page HTML")
	}

	return &engine.RenderResult{HTML: rawHTML, Interactions: rec}, nil
}

// navigate loads target and waits for the page to settle, all within the
// navigation timeout. WaitRequestIdle must be armed before Navigate so it
// sees every request; with a hijack router mounted it conflicts with the
// Fetch domain, so DOM stability is used instead.
func (b *Browser) navigate(p *rod.Page, target string, hijacked bool) error {
	nav := p
	if b.renderCfg.NavigationTimeout > 0 {
		nav = p.Timeout(b.renderCfg.NavigationTimeout)
		defer nav.CancelTimeout()
	}

	var waitIdle func()
	if !hijacked {
		waitIdle = nav.WaitRequestIdle(500*time.Millisecond, nil, nil, nil)
	}

	if err := nav.Navigate(target); err != nil {
		return err
	}
	if err := nav.WaitLoad(); err != nil {
		return err
	}
	if waitIdle != nil {
		waitIdle()
		return nav.GetContext().Err()
	}
	return nav.WaitDOMStable(300*time.Millisecond, 0.1)
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed ScrapeErrors so callers can
// tell timeouts from navigation failures.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
