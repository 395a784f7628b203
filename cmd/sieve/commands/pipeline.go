package commands

import (
	"fmt"
	"log/slog"

	"github.com/use-agent/sieve/browser"
	"github.com/use-agent/sieve/config"
	"github.com/use-agent/sieve/engine"
	"github.com/use-agent/sieve/sections"
)

// newStaticEngine selects the static transport named by cfg.StaticEngine.
func newStaticEngine(cfg config.FetchConfig) (engine.Engine, error) {
	switch cfg.StaticEngine {
	case "", "http":
		return engine.NewHTTPEngine(cfg.UserAgent), nil
	case "colly":
		return engine.NewCollyEngine(cfg.UserAgent), nil
	default:
		return nil, fmt.Errorf("unknown static engine %q (want http or colly)", cfg.StaticEngine)
	}
}

// newPipeline wires the orchestrator. The returned Browser is nil when
// rendering is disabled; callers must Close it otherwise.
func newPipeline(cfg *config.Config, logger *slog.Logger) (*engine.Orchestrator, *browser.Browser, error) {
	static, err := newStaticEngine(cfg.Fetch)
	if err != nil {
		return nil, nil, err
	}

	var (
		br     *browser.Browser
		render engine.RenderFunc
	)
	if cfg.Browser.Enabled {
		br, err = browser.New(cfg.Browser, cfg.Render, logger)
		if err != nil {
			return nil, nil, err
		}
		render = br.Render
	} else {
		logger.Info("browser rendering disabled")
	}

	orch := engine.NewOrchestrator(engine.OrchestratorConfig{
		Static:       static,
		Render:       render,
		Extractor:    sections.NewExtractor(logger),
		FetchTimeout: cfg.Fetch.Timeout,
		Logger:       logger,
	})
	return orch, br, nil
}
