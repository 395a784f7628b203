package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/sieve/api"
	"github.com/use-agent/sieve/api/handler"
	"github.com/use-agent/sieve/cache"
	"github.com/use-agent/sieve/config"
	"github.com/use-agent/sieve/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scrape HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("host", "", "listen host")
	flags.Int("port", 0, "listen port")
	flags.Bool("no-browser", false, "disable browser rendering")

	_ = v.BindPFlag("server.host", flags.Lookup("host"))
	_ = v.BindPFlag("server.port", flags.Lookup("port"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load(v)
	if noBrowser, _ := cmd.Flags().GetBool("no-browser"); noBrowser {
		cfg.Browser.Enabled = false
	}

	logger := newLogger(cfg.Log, os.Stdout)
	logger.Info("sieve starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"staticEngine", cfg.Fetch.StaticEngine,
		"browser", cfg.Browser.Enabled,
		"maxPages", cfg.Browser.MaxPages,
	)

	orch, br, err := newPipeline(cfg, logger)
	if err != nil {
		logger.Error("failed to initialise pipeline", "error", err)
		return err
	}
	deps := api.Deps{
		Scraper:   orch,
		Cache:     cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL),
		Notifier:  webhook.NewSender(logger),
		StartTime: time.Now(),
		Logger:    logger,
	}
	if br != nil {
		defer br.Close()
		deps.Stats = br
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewRouter(cfg, deps),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr, "version", handler.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		logger.Error("HTTP server error", "error", err)
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	// In-flight requests get 5 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server forced shutdown", "error", err)
	} else {
		logger.Info("HTTP server drained gracefully")
	}

	logger.Info("sieve stopped")
	return nil
}
