package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/sieve/dom"
	"github.com/use-agent/sieve/models"
	"github.com/use-agent/sieve/sections"
)

// Options controls a single scrape.
type Options struct {
	// Mode is one of models.FetchModeAuto, FetchModeStatic, FetchModeBrowser.
	// Empty means auto.
	Mode            string
	IncludeMarkdown bool
	Timeout         time.Duration // bounds the render; static fetches use FetchTimeout
	Stealth         bool
}

// Orchestrator sequences static fetch, the sufficiency check, an optional
// browser render and extraction. It holds no per-request state and is safe
// for concurrent use.
type Orchestrator struct {
	static       Engine
	render       RenderFunc
	extractor    *sections.Extractor
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// OrchestratorConfig wires the collaborators of an Orchestrator.
type OrchestratorConfig struct {
	Static       Engine
	Render       RenderFunc // nil disables rendering
	Extractor    *sections.Extractor
	FetchTimeout time.Duration
	Logger       *slog.Logger
}

// NewOrchestrator creates an Orchestrator. Missing collaborators fall back to
// an HTTPEngine, a fresh Extractor and slog.Default().
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Static == nil {
		cfg.Static = NewHTTPEngine("")
	}
	if cfg.Extractor == nil {
		cfg.Extractor = sections.NewExtractor(cfg.Logger)
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	return &Orchestrator{
		static:       cfg.Static,
		render:       cfg.Render,
		extractor:    cfg.Extractor,
		fetchTimeout: cfg.FetchTimeout,
		logger:       cfg.Logger,
	}
}

// run carries the state of one scrape through the pipeline.
type run struct {
	url    string
	opts   Options
	log    *slog.Logger
	result *models.PageResult
	timing models.TimingInfo
	html   string // winning document, empty when none was obtained
}

// Scrape runs the pipeline for url. It always returns a populated result;
// failures are recorded in result.Errors rather than returned.
func (o *Orchestrator) Scrape(ctx context.Context, url string, opts Options) (*models.PageResult, models.TimingInfo) {
	start := time.Now()
	r := &run{
		url:  url,
		opts: opts,
		log:  o.logger.With("url", url),
		result: &models.PageResult{
			URL:          url,
			ScrapedAt:    start.UTC(),
			Meta:         models.DefaultPageMeta(),
			Sections:     []models.Section{},
			Interactions: models.NewInteractionLog(url),
			Errors:       []models.ErrorEntry{},
		},
	}

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("scrape panicked", "phase", models.PhaseParse, "panic", rec)
				r.result.AddError(models.PhaseParse, fmt.Sprintf("Unexpected error: %v", rec))
			}
		}()
		o.pipeline(ctx, r)
	}()

	r.timing.TotalMs = time.Since(start).Milliseconds()
	r.log.Info("scrape finished",
		"sections", len(r.result.Sections),
		"errors", len(r.result.Errors),
		"rendered", r.timing.Rendered,
		"total_ms", r.timing.TotalMs,
	)
	return r.result, r.timing
}

func (o *Orchestrator) pipeline(ctx context.Context, r *run) {
	switch r.opts.Mode {
	case models.FetchModeBrowser:
		o.renderPage(ctx, r, "Failed to render page")
	case models.FetchModeStatic:
		if !o.fetchStatic(ctx, r) {
			break
		}
		if doc, err := dom.Parse(r.html); err == nil && !IsSufficient(doc, r.log) {
			r.log.Info("static document insufficient, rendering disabled by fetch mode", "phase", models.PhaseFetch)
		}
	default:
		if !o.fetchStatic(ctx, r) {
			o.renderPage(ctx, r, "Failed to render page")
			break
		}
		doc, err := dom.Parse(r.html)
		if err == nil && IsSufficient(doc, r.log) {
			r.log.Debug("static document sufficient", "phase", models.PhaseFetch)
			break
		}
		r.log.Info("static document insufficient, rendering", "phase", models.PhaseRender)
		o.renderPage(ctx, r, "Rendering failed")
	}

	if r.html == "" {
		return
	}
	o.extract(r)
}

// fetchStatic performs the single static attempt and reports whether a
// non-blank document was obtained.
func (o *Orchestrator) fetchStatic(ctx context.Context, r *run) bool {
	t := time.Now()
	res, err := o.static.Fetch(ctx, &FetchRequest{URL: r.url, Timeout: o.fetchTimeout})
	r.timing.FetchMs = time.Since(t).Milliseconds()
	if err != nil {
		r.log.Warn("static fetch failed", "phase", models.PhaseFetch, "engine", o.static.Name(), "error", err)
		r.result.AddError(models.PhaseFetch, fmt.Sprintf("Failed to fetch HTML content: %v", err))
		return false
	}
	if strings.TrimSpace(res.HTML) == "" {
		r.log.Warn("static fetch returned empty document", "phase", models.PhaseFetch, "engine", o.static.Name())
		r.result.AddError(models.PhaseFetch, "Failed to fetch HTML content: empty response body")
		return false
	}
	r.html = res.HTML
	return true
}

// renderPage asks the browser collaborator for the page. On success the
// rendered document wins and its interaction log replaces the running one;
// on failure the previous document, if any, is kept.
func (o *Orchestrator) renderPage(ctx context.Context, r *run, failure string) {
	if o.render == nil {
		r.result.AddError(models.PhaseRender, failure+": browser rendering is disabled")
		return
	}

	t := time.Now()
	res, err := o.render(ctx, &RenderRequest{URL: r.url, Timeout: r.opts.Timeout, Stealth: r.opts.Stealth})
	r.timing.RenderMs = time.Since(t).Milliseconds()
	switch {
	case err != nil:
		r.log.Warn("render failed", "phase", models.PhaseRender, "error", err)
		r.result.AddError(models.PhaseRender, fmt.Sprintf("%s: %v", failure, err))
	case res == nil || res.HTML == "":
		r.log.Warn("render returned empty document", "phase", models.PhaseRender)
		r.result.AddError(models.PhaseRender, "Rendering returned empty HTML")
	default:
		r.html = res.HTML
		r.result.Interactions = res.Interactions
		r.timing.Rendered = true
	}
}

// extract fills meta and sections from the winning document. Meta is kept
// when section extraction fails afterwards.
func (o *Orchestrator) extract(r *run) {
	t := time.Now()
	defer func() {
		r.timing.ExtractMs = time.Since(t).Milliseconds()
		if rec := recover(); rec != nil {
			r.log.Error("extraction panicked", "phase", models.PhaseParse, "panic", rec)
			r.result.AddError(models.PhaseParse, fmt.Sprintf("Unexpected error: %v", rec))
		}
	}()

	doc, err := dom.Parse(r.html)
	if err != nil {
		r.log.Warn("parse failed", "phase", models.PhaseParse, "error", err)
		r.result.AddError(models.PhaseParse, fmt.Sprintf("Failed to parse HTML: %v", err))
		return
	}
	r.result.Meta = o.extractor.ExtractMeta(doc, r.url)
	r.result.Sections = o.extractor.ExtractSections(doc, r.url, sections.Options{IncludeMarkdown: r.opts.IncludeMarkdown})
}
