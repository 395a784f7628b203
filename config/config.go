package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. SIEVE_SERVER_PORT.
const EnvPrefix = "SIEVE"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Render    RenderConfig
	Fetch     FetchConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Batch     BatchConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Enabled toggles rendering. When false, only static fetches run.
	Enabled bool // default: true

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 10

	// Proxy is passed to the launched browser.
	Proxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// ControlURL connects to an already running Chrome instead of launching one.
	ControlURL string
}

// RenderConfig controls a single render and its interaction policy.
type RenderConfig struct {
	// DefaultTimeout bounds a render when the request does not set one.
	DefaultTimeout time.Duration // default: 60s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 120s

	// NavigationTimeout bounds the initial load of the target URL.
	NavigationTimeout time.Duration // default: 30s

	// InitialDelay is the pause after load for delayed scripts.
	InitialDelay time.Duration // default: 2s

	// ClickTimeout bounds each click.
	ClickTimeout time.Duration // default: 2s

	// SettleTimeout bounds the network quiescence wait after a scroll.
	SettleTimeout time.Duration // default: 3s

	// ViewportWidth and ViewportHeight size the page.
	ViewportWidth  int // default: 1920
	ViewportHeight int // default: 1080

	// UserAgent overrides the browser user agent when set.
	UserAgent string

	// BlockedResourceTypes lists resource types to block.
	// default: ["Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds drops requests to known ad and tracking domains.
	BlockAds bool // default: true
}

// FetchConfig controls the static fetch.
type FetchConfig struct {
	// StaticEngine selects "http" (utls) or "colly".
	StaticEngine string // default: "http"

	// Timeout bounds a static fetch including redirects.
	Timeout time.Duration // default: 30s

	// UserAgent identifies static fetches.
	UserAgent string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the scrape result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached results. 0 disables caching.
	MaxEntries int // default: 1000

	// TTL is how long a result stays cached.
	TTL time.Duration // default: 10m
}

// BatchConfig controls batch scraping.
type BatchConfig struct {
	// MaxURLs caps the number of URLs per batch.
	MaxURLs int // default: 100

	// Concurrency is the number of URLs scraped in parallel per batch.
	Concurrency int // default: 5

	// JobTTL is how long a finished job stays queryable.
	JobTTL time.Duration // default: 1h
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.max_pages", 10)
	v.SetDefault("browser.proxy", "")
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.control_url", "")

	v.SetDefault("render.default_timeout", 60*time.Second)
	v.SetDefault("render.max_timeout", 120*time.Second)
	v.SetDefault("render.navigation_timeout", 30*time.Second)
	v.SetDefault("render.initial_delay", 2*time.Second)
	v.SetDefault("render.click_timeout", 2*time.Second)
	v.SetDefault("render.settle_timeout", 3*time.Second)
	v.SetDefault("render.viewport_width", 1920)
	v.SetDefault("render.viewport_height", 1080)
	v.SetDefault("render.user_agent", "")
	v.SetDefault("render.blocked_resources", []string{"Font", "Media"})
	v.SetDefault("render.block_ads", true)

	v.SetDefault("fetch.static_engine", "http")
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.user_agent", "")

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_keys", []string{})

	v.SetDefault("rate_limit.rps", 5.0)
	v.SetDefault("rate_limit.burst", 10)

	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("cache.ttl", 10*time.Minute)

	v.SetDefault("batch.max_urls", 100)
	v.SetDefault("batch.concurrency", 5)
	v.SetDefault("batch.job_ttl", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// New returns a viper instance with defaults registered and SIEVE_* environment
// overrides enabled. Nested keys map to env names with dots replaced by
// underscores, e.g. render.max_timeout -> SIEVE_RENDER_MAX_TIMEOUT.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from v. A nil v uses New().
func Load(v *viper.Viper) *Config {
	if v == nil {
		v = New()
	}
	return &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
			Mode: v.GetString("server.mode"),
		},
		Browser: BrowserConfig{
			Enabled:    v.GetBool("browser.enabled"),
			Headless:   v.GetBool("browser.headless"),
			MaxPages:   v.GetInt("browser.max_pages"),
			Proxy:      v.GetString("browser.proxy"),
			NoSandbox:  v.GetBool("browser.no_sandbox"),
			BrowserBin: v.GetString("browser.bin"),
			ControlURL: v.GetString("browser.control_url"),
		},
		Render: RenderConfig{
			DefaultTimeout:       v.GetDuration("render.default_timeout"),
			MaxTimeout:           v.GetDuration("render.max_timeout"),
			NavigationTimeout:    v.GetDuration("render.navigation_timeout"),
			InitialDelay:         v.GetDuration("render.initial_delay"),
			ClickTimeout:         v.GetDuration("render.click_timeout"),
			SettleTimeout:        v.GetDuration("render.settle_timeout"),
			ViewportWidth:        v.GetInt("render.viewport_width"),
			ViewportHeight:       v.GetInt("render.viewport_height"),
			UserAgent:            v.GetString("render.user_agent"),
			BlockedResourceTypes: stringSlice(v, "render.blocked_resources"),
			BlockAds:             v.GetBool("render.block_ads"),
		},
		Fetch: FetchConfig{
			StaticEngine: v.GetString("fetch.static_engine"),
			Timeout:      v.GetDuration("fetch.timeout"),
			UserAgent:    v.GetString("fetch.user_agent"),
		},
		Auth: AuthConfig{
			Enabled: v.GetBool("auth.enabled"),
			APIKeys: stringSlice(v, "auth.api_keys"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: v.GetFloat64("rate_limit.rps"),
			Burst:             v.GetInt("rate_limit.burst"),
		},
		Cache: CacheConfig{
			MaxEntries: v.GetInt("cache.max_entries"),
			TTL:        v.GetDuration("cache.ttl"),
		},
		Batch: BatchConfig{
			MaxURLs:     v.GetInt("batch.max_urls"),
			Concurrency: v.GetInt("batch.concurrency"),
			JobTTL:      v.GetDuration("batch.job_ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
}

// stringSlice reads a list that may come from a config file as a sequence or
// from the environment as a comma-separated string.
func stringSlice(v *viper.Viper, key string) []string {
	var raw []string
	if s, ok := v.Get(key).(string); ok {
		raw = strings.Split(s, ",")
	} else {
		raw = v.GetStringSlice(key)
	}
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
