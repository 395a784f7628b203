package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/sieve/config"
	"github.com/use-agent/sieve/engine"
	"github.com/use-agent/sieve/models"
	"gopkg.in/yaml.v3"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Scrape one page and print its sections",
	Long: `Scrape one page without starting the HTTP server.

Examples:
  sieve scrape https://example.com
  sieve scrape https://example.com --mode browser --stealth --output yaml
  sieve scrape https://example.com --markdown --no-browser`,
	Args: cobra.ExactArgs(1),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	flags := scrapeCmd.Flags()
	flags.String("mode", models.FetchModeAuto, "fetch mode: auto, static, browser")
	flags.Bool("markdown", false, "add a Markdown rendering of every section")
	flags.Bool("stealth", false, "enable anti-bot evasions when rendering")
	flags.Duration("timeout", 60*time.Second, "overall scrape timeout, also bounding the render")
	flags.Bool("no-browser", false, "never start a browser")
	flags.StringP("output", "o", "json", "output format: json, yaml")
}

func runScrape(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	mode, _ := flags.GetString("mode")
	markdown, _ := flags.GetBool("markdown")
	stealth, _ := flags.GetBool("stealth")
	timeout, _ := flags.GetDuration("timeout")
	noBrowser, _ := flags.GetBool("no-browser")
	format, _ := flags.GetString("output")

	req := &models.ScrapeRequest{URL: args[0], FetchMode: mode}
	req.Defaults()
	if err := req.Validate(); err != nil {
		return err
	}
	switch req.FetchMode {
	case models.FetchModeAuto, models.FetchModeStatic, models.FetchModeBrowser:
	default:
		return fmt.Errorf("unknown mode %q (want auto, static or browser)", req.FetchMode)
	}
	if format != "json" && format != "yaml" {
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}

	cfg := config.Load(v)
	if noBrowser || req.FetchMode == models.FetchModeStatic {
		cfg.Browser.Enabled = false
	}
	// logs go to stderr so stdout stays machine readable
	logger := newLogger(cfg.Log, os.Stderr)

	orch, br, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}
	if br != nil {
		defer br.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, timing := orch.Scrape(ctx, req.URL, engine.Options{
		Mode:            req.FetchMode,
		IncludeMarkdown: markdown,
		Timeout:         timeout,
		Stealth:         stealth,
	})
	return writeResult(cmd.OutOrStdout(), format, &models.ScrapeResponse{
		Success: true,
		Result:  result,
		Timing:  timing,
	})
}

// writeResult encodes v as indented JSON or as YAML. YAML keys follow the
// JSON field names.
func writeResult(w io.Writer, format string, v any) error {
	if format != "yaml" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return enc.Close()
}
