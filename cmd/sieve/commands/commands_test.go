package commands

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/use-agent/sieve/config"
	"github.com/use-agent/sieve/models"
	"gopkg.in/yaml.v3"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_Format(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	newLogger(config.LogConfig{Level: "info", Format: "json"}, &buf).Info("hello", "k", "v")
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("json handler output %q: %v", buf.String(), err)
	}
	if line["msg"] != "hello" || line["k"] != "v" {
		t.Errorf("line = %v", line)
	}

	buf.Reset()
	newLogger(config.LogConfig{Level: "warn", Format: "text"}, &buf).Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}
}

func TestNewStaticEngine(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", "http", false},
		{"http", "http", false},
		{"colly", "colly", false},
		{"curl", "", true},
	}
	for _, tt := range tests {
		e, err := newStaticEngine(config.FetchConfig{StaticEngine: tt.name})
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tt.name, err)
		}
		if e.Name() != tt.want {
			t.Errorf("%q: Name() = %q, want %q", tt.name, e.Name(), tt.want)
		}
	}
}

func TestNewPipeline_WithoutBrowser(t *testing.T) {
	cfg := config.Load(nil)
	cfg.Browser.Enabled = false
	orch, br, err := newPipeline(cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	if orch == nil || br != nil {
		t.Fatalf("orch = %v, browser = %v", orch, br)
	}
}

func TestWriteResult(t *testing.T) {
	resp := &models.ScrapeResponse{
		Success: true,
		Result: &models.PageResult{
			URL:      "https://example.com",
			Sections: []models.Section{{ID: "main-0", Type: models.SectionMain, RawHTML: "<main>&</main>"}},
		},
	}

	var buf bytes.Buffer
	if err := writeResult(&buf, "json", resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "<main>&</main>") {
		t.Errorf("json output escaped HTML: %s", buf.String())
	}

	buf.Reset()
	if err := writeResult(&buf, "yaml", resp); err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Success bool `yaml:"success"`
		Result  struct {
			URL      string `yaml:"url"`
			Sections []struct {
				ID string `yaml:"id"`
			} `yaml:"sections"`
		} `yaml:"result"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("yaml: %v\n%s", err, buf.String())
	}
	if !decoded.Success || decoded.Result.URL != "https://example.com" || decoded.Result.Sections[0].ID != "main-0" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestAverageRuns(t *testing.T) {
	runs := []benchRun{
		{Success: true, Sections: 4, Timing: models.TimingInfo{TotalMs: 100, FetchMs: 40, Rendered: false}},
		{Success: true, Sections: 6, Timing: models.TimingInfo{TotalMs: 300, FetchMs: 60, RenderMs: 200, Rendered: true}},
		{Success: false, Error: "boom"},
	}
	avg := averageRuns(runs)
	if avg == nil {
		t.Fatal("expected averages")
	}
	if avg.TotalMs != 200 || avg.FetchMs != 50 || avg.RenderMs != 100 || avg.Sections != 5 || avg.RenderRate != 0.5 {
		t.Errorf("avg = %+v", *avg)
	}
	if averageRuns([]benchRun{{Success: false}}) != nil {
		t.Error("all-failed runs must have no averages")
	}
}

func TestBencherScrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz":
			w.Write([]byte(`{"status":"ok"}`))
		case "/api/v1/scrape":
			if r.Header.Get("Authorization") != "Bearer k" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(models.ScrapeResponse{
				Success: true,
				Result: &models.PageResult{
					Meta:     models.PageMeta{Title: "T"},
					Sections: []models.Section{{ID: "main-0"}, {ID: "footer-0"}},
				},
				Timing: models.TimingInfo{TotalMs: 12, Rendered: true},
			})
		}
	}))
	defer srv.Close()

	b := &bencher{apiURL: srv.URL, apiKey: "k", client: srv.Client()}
	if err := b.ping(); err != nil {
		t.Fatal(err)
	}
	run := b.scrape("https://example.com", models.FetchModeAuto, 1)
	if !run.Success || run.Sections != 2 || !run.HasTitle || !run.Timing.Rendered {
		t.Errorf("run = %+v", run)
	}
}

func TestShorten(t *testing.T) {
	if got := shorten("https://example.com", 40); got != "https://example.com" {
		t.Errorf("got %q", got)
	}
	if got := shorten(strings.Repeat("a", 50), 10); got != "aaaaaaa..." {
		t.Errorf("got %q", got)
	}
}
