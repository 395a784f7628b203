// Package browser renders pages in headless Chrome via rod and applies the
// interaction policy that surfaces hidden and lazily loaded content.
package browser

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/use-agent/sieve/config"
	"github.com/use-agent/sieve/models"
)

// Browser manages the browser lifecycle and the page pool.
// It is safe for concurrent use.
type Browser struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	browserCfg  config.BrowserConfig
	renderCfg   config.RenderConfig
	policy      Policy
	logger      *slog.Logger
	activePages atomic.Int32
	remote      bool
}

// New launches a headless browser, or connects to cfg.ControlURL when set,
// and initialises the reusable page pool.
func New(browserCfg config.BrowserConfig, renderCfg config.RenderConfig, logger *slog.Logger) (*Browser, error) {
	if logger == nil {
		logger = slog.Default()
	}

	controlURL := browserCfg.ControlURL
	remote := controlURL != ""
	if !remote {
		var err error
		controlURL, err = launch(browserCfg)
		if err != nil {
			return nil, models.NewScrapeError(
				models.ErrCodeBrowserCrash,
				"failed to launch browser",
				err,
			)
		}
		logger.Info("browser launched", "controlURL", controlURL)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	maxPages := browserCfg.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	pool := rod.NewPagePool(maxPages)
	logger.Info("page pool created", "maxPages", maxPages, "remote", remote)

	return &Browser{
		browser:    browser,
		pagePool:   pool,
		browserCfg: browserCfg,
		renderCfg:  renderCfg,
		policy:     PolicyFromConfig(renderCfg),
		logger:     logger,
		remote:     remote,
	}, nil
}

func launch(cfg config.BrowserConfig) (string, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	return l.Launch()
}

// PolicyFromConfig returns DefaultPolicy with its waits taken from cfg.
func PolicyFromConfig(cfg config.RenderConfig) Policy {
	p := DefaultPolicy()
	if cfg.SettleTimeout > 0 {
		p.SettleTimeout = cfg.SettleTimeout
	}
	return p
}

// Stats returns a snapshot of the pool's current state.
func (b *Browser) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    b.browserCfg.MaxPages,
		ActivePages: int(b.activePages.Load()),
	}
}

// Close drains the page pool and shuts the browser down. A remote browser is
// left running.
func (b *Browser) Close() {
	b.logger.Info("browser shutting down: draining page pool")
	b.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	if !b.remote {
		if err := b.browser.Close(); err != nil {
			b.logger.Warn("browser close failed", "error", err)
		}
	}
	b.logger.Info("browser shutdown complete", "remote", b.remote)
}

// renderTimeout clamps the requested timeout to the configured bounds.
func (b *Browser) renderTimeout(requested time.Duration) time.Duration {
	timeout := requested
	if timeout <= 0 {
		timeout = b.renderCfg.DefaultTimeout
	}
	if b.renderCfg.MaxTimeout > 0 && timeout > b.renderCfg.MaxTimeout {
		timeout = b.renderCfg.MaxTimeout
	}
	return timeout
}
