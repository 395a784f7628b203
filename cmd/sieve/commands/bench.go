package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/sieve/models"
)

// benchTargets cover a static page, server-rendered docs and app shells.
var benchTargets = []string{
	"https://example.com",
	"https://go.dev/doc/effective_go",
	"https://www.bbc.com/news",
	"https://github.com/go-rod/rod",
	"https://react.dev",
}

type benchRun struct {
	Run      int               `json:"run"`
	Timing   models.TimingInfo `json:"timing"`
	Sections int               `json:"sections"`
	Errors   int               `json:"errors"`
	HasTitle bool              `json:"has_title"`
	Success  bool              `json:"success"`
	Error    string            `json:"error,omitempty"`
}

type benchAverages struct {
	TotalMs    float64 `json:"total_ms"`
	FetchMs    float64 `json:"fetch_ms"`
	RenderMs   float64 `json:"render_ms"`
	ExtractMs  float64 `json:"extract_ms"`
	Sections   float64 `json:"sections"`
	RenderRate float64 `json:"render_rate"`
}

type benchURL struct {
	URL      string         `json:"url"`
	Runs     []benchRun     `json:"runs"`
	Averages *benchAverages `json:"averages,omitempty"`
}

type benchReport struct {
	Timestamp  string     `json:"timestamp"`
	APIURL     string     `json:"api_url"`
	Mode       string     `json:"mode"`
	RunsPerURL int        `json:"runs_per_url"`
	Results    []benchURL `json:"results"`
}

var benchCmd = &cobra.Command{
	Use:   "bench [url...]",
	Short: "Measure a running sieve API against a set of pages",
	Long: `Scrape each URL several times through a running API and report latency per
phase, section counts and how often the browser was needed.

Examples:
  sieve bench --api-url http://localhost:8080
  sieve bench https://example.com https://react.dev --runs 5 --report bench.json`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	flags := benchCmd.Flags()
	flags.String("api-url", "http://localhost:8080", "sieve API base URL")
	flags.String("api-key", "", "API key for authenticated requests")
	flags.Int("runs", 3, "runs per URL")
	flags.String("mode", models.FetchModeAuto, "fetch mode sent with every request")
	flags.String("report", "", "write the full report to this file (JSON)")
}

func runBench(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	apiURL, _ := flags.GetString("api-url")
	apiKey, _ := flags.GetString("api-key")
	runs, _ := flags.GetInt("runs")
	mode, _ := flags.GetString("mode")
	reportPath, _ := flags.GetString("report")

	targets := args
	if len(targets) == 0 {
		targets = benchTargets
	}
	out := cmd.OutOrStdout()
	b := &bencher{apiURL: strings.TrimRight(apiURL, "/"), apiKey: apiKey, client: &http.Client{Timeout: 150 * time.Second}}

	if err := b.ping(); err != nil {
		return fmt.Errorf("cannot reach API at %s: %w", apiURL, err)
	}

	report := benchReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     apiURL,
		Mode:       mode,
		RunsPerURL: runs,
	}
	for _, target := range targets {
		fmt.Fprintf(out, "Benchmarking %s ...\n", target)
		res := benchURL{URL: target}
		for i := 1; i <= runs; i++ {
			run := b.scrape(target, mode, i)
			if run.Success {
				fmt.Fprintf(out, "  run %d/%d  OK  %dms  %d sections  rendered=%t\n",
					i, runs, run.Timing.TotalMs, run.Sections, run.Timing.Rendered)
			} else {
				fmt.Fprintf(out, "  run %d/%d  FAILED: %s\n", i, runs, run.Error)
			}
			res.Runs = append(res.Runs, run)
		}
		res.Averages = averageRuns(res.Runs)
		report.Results = append(report.Results, res)
	}

	printBenchTable(out, report.Results)

	if reportPath == "" {
		return nil
	}
	f, err := os.Create(reportPath)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	defer f.Close()
	if err := writeResult(f, "json", report); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nDetailed results written to %s\n", reportPath)
	return nil
}

type bencher struct {
	apiURL string
	apiKey string
	client *http.Client
}

func (b *bencher) ping() error {
	resp, err := b.client.Get(b.apiURL + "/healthz")
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("liveness returned status %d", resp.StatusCode)
	}
	return nil
}

func (b *bencher) scrape(target, mode string, run int) benchRun {
	r := benchRun{Run: run}

	body, err := json.Marshal(models.ScrapeRequest{URL: target, FetchMode: mode})
	if err != nil {
		r.Error = fmt.Sprintf("marshal error: %v", err)
		return r
	}
	req, err := http.NewRequest(http.MethodPost, b.apiURL+"/api/v1/scrape", bytes.NewReader(body))
	if err != nil {
		r.Error = fmt.Sprintf("request error: %v", err)
		return r
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		r.Error = fmt.Sprintf("request failed: %v", err)
		return r
	}
	defer resp.Body.Close()

	var sr models.ScrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		r.Error = fmt.Sprintf("decode error: %v", err)
		return r
	}
	if sr.Error != nil {
		r.Error = sr.Error.Message
	}
	r.Timing = sr.Timing
	if sr.Result != nil {
		r.Success = sr.Success
		r.Sections = len(sr.Result.Sections)
		r.Errors = len(sr.Result.Errors)
		r.HasTitle = sr.Result.Meta.Title != ""
		if r.Errors > 0 && r.Error == "" {
			r.Error = sr.Result.Errors[0].Message
		}
	}
	return r
}

func averageRuns(runs []benchRun) *benchAverages {
	var avg benchAverages
	n := 0
	for _, r := range runs {
		if !r.Success {
			continue
		}
		n++
		avg.TotalMs += float64(r.Timing.TotalMs)
		avg.FetchMs += float64(r.Timing.FetchMs)
		avg.RenderMs += float64(r.Timing.RenderMs)
		avg.ExtractMs += float64(r.Timing.ExtractMs)
		avg.Sections += float64(r.Sections)
		if r.Timing.Rendered {
			avg.RenderRate++
		}
	}
	if n == 0 {
		return nil
	}
	f := float64(n)
	avg.TotalMs /= f
	avg.FetchMs /= f
	avg.RenderMs /= f
	avg.ExtractMs /= f
	avg.Sections /= f
	avg.RenderRate /= f
	return &avg
}

func printBenchTable(w io.Writer, results []benchURL) {
	fmt.Fprintln(w, strings.Repeat("─", 96))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "URL\tTotal\tFetch\tRender\tExtract\tSections\tRendered\n")
	fmt.Fprintf(tw, "───\t─────\t─────\t──────\t───────\t────────\t────────\n")
	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(tw, "%s\tFAILED\t-\t-\t-\t-\t-\n", shorten(r.URL, 40))
			continue
		}
		a := r.Averages
		fmt.Fprintf(tw, "%s\t%dms\t%dms\t%dms\t%dms\t%.1f\t%.0f%%\n",
			shorten(r.URL, 40),
			int64(a.TotalMs), int64(a.FetchMs), int64(a.RenderMs), int64(a.ExtractMs),
			a.Sections, a.RenderRate*100,
		)
	}
	tw.Flush()
	fmt.Fprintln(w, strings.Repeat("─", 96))
}

func shorten(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}
