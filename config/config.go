package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/tokscrape/models"
)

// DefaultUserAgent is the desktop Chrome string presented to TikTok.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"

// Config holds all application configuration. It is built once by Load and
// passed explicitly into every component constructor.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Pipeline  PipelineConfig
	Store     StoreConfig
	Audit     AuditConfig
	Jobs      JobsConfig
	Webhook   WebhookConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host        string // default: "0.0.0.0"
	Port        int    // default: 3000
	Mode        string // "debug", "release", "test"; default: "release"
	Environment string // reported by /api/status; default: "development"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// DefaultProxy is the proxy URL for all browser and HTTP traffic.
	DefaultProxy string

	// Exclusive launches a dedicated Chromium per fetch instead of sharing one.
	Exclusive bool // default: false

	// MaxPages caps pages open at once across all jobs.
	MaxPages int // default: 4

	UserAgent      string // default: DefaultUserAgent
	ViewportWidth  int    // default: 1280
	ViewportHeight int    // default: 800

	// Stealth injects the go-rod/stealth evasions into every page.
	Stealth bool // default: true
}

// ScraperConfig controls how a single page is fetched and settled.
type ScraperConfig struct {
	// FetchMode is "browser", "http" or "auto" (http first, browser fallback).
	FetchMode string // default: "browser"

	// NavigationTimeout bounds page.Navigate.
	NavigationTimeout time.Duration // default: 60s

	// ReadySelector is polled after navigation until it appears.
	ReadySelector string

	// SettleDelay is the upper bound for the ReadySelector poll.
	SettleDelay time.Duration // default: 5s

	// ScrollDistance is the vertical scroll in pixels that triggers lazy content.
	ScrollDistance int // default: 500

	// ScrollSettle is the upper bound for the post-scroll DOM-stable wait.
	ScrollSettle time.Duration // default: 2s

	// BlockedResourceTypes lists resource types to block.
	// default: ["Font", "Media"]
	BlockedResourceTypes []string

	// HTTPTimeout is the deadline for the plain HTTP engine.
	HTTPTimeout time.Duration // default: 10s

	// Debug captures a screenshot of every page.
	Debug bool // default: false
}

// PipelineConfig controls the batch orchestrator.
type PipelineConfig struct {
	// Concurrency is the number of URLs processed at once.
	Concurrency int // default: 1

	// ItemTimeout is the deadline for one URL across all stages.
	ItemTimeout time.Duration // default: 90s

	// SaveSummary writes a summary JSON after every batch.
	SaveSummary bool // default: true
}

// StoreConfig selects the relational backend for VideoRecords.
type StoreConfig struct {
	// Driver is "postgres", "sqlite" or "none".
	Driver string // default: "sqlite"

	// DSN is the connection string (postgres URL or sqlite file path).
	DSN string // default: "tokscrape.db" for sqlite

	// Table is the target table.
	Table string // default: "tiktok_videos"
}

// AuditConfig controls the JSON/screenshot blobs written next to the table.
type AuditConfig struct {
	// LocalDir is the root for results/, summaries/ and screenshots/.
	// Empty disables local audit files.
	LocalDir string // default: "output"

	ImageKit ImageKitConfig
}

// ImageKitConfig enables uploads to ImageKit when all three keys are set.
type ImageKitConfig struct {
	PrivateKey  string
	PublicKey   string
	URLEndpoint string

	// Folder is the root folder inside the ImageKit media library.
	Folder string // default: "/tiktok-data"
}

// Enabled reports whether any ImageKit key is set.
func (c ImageKitConfig) Enabled() bool {
	return c.PrivateKey != "" || c.PublicKey != "" || c.URLEndpoint != ""
}

// JobsConfig selects the job state backend.
type JobsConfig struct {
	// Backend is "memory" or "redis".
	Backend string // default: "memory"

	RedisAddr     string // default: "localhost:6379"
	RedisPassword string
	RedisDB       int

	// TTL is how long finished jobs stay queryable.
	TTL time.Duration // default: 1h

	// MaxEntries caps the memory backend.
	MaxEntries int // default: 1000

	// MaxBatchURLs caps the size of a single batch submission.
	MaxBatchURLs int // default: 100
}

// WebhookConfig controls job completion notifications.
type WebhookConfig struct {
	// Secret signs webhook bodies with HMAC-SHA256 when set.
	Secret string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// APIKey is the shared secret. Empty leaves the API open.
	APIKey string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        envOr("TOKSCRAPE_HOST", "0.0.0.0"),
			Port:        envIntOr("TOKSCRAPE_PORT", 3000),
			Mode:        envOr("TOKSCRAPE_MODE", "release"),
			Environment: envOr("TOKSCRAPE_ENV", "development"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("TOKSCRAPE_HEADLESS", true),
			NoSandbox:      envBoolOr("TOKSCRAPE_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("TOKSCRAPE_BROWSER_BIN"),
			DefaultProxy:   os.Getenv("TOKSCRAPE_PROXY"),
			Exclusive:      envBoolOr("TOKSCRAPE_EXCLUSIVE_BROWSER", false),
			MaxPages:       envIntOr("TOKSCRAPE_MAX_PAGES", 4),
			UserAgent:      envOr("TOKSCRAPE_USER_AGENT", DefaultUserAgent),
			ViewportWidth:  envIntOr("TOKSCRAPE_VIEWPORT_WIDTH", 1280),
			ViewportHeight: envIntOr("TOKSCRAPE_VIEWPORT_HEIGHT", 800),
			Stealth:        envBoolOr("TOKSCRAPE_STEALTH", true),
		},
		Scraper: ScraperConfig{
			FetchMode:         envOr("TOKSCRAPE_FETCH_MODE", "browser"),
			NavigationTimeout: envDurationOr("TOKSCRAPE_NAV_TIMEOUT", 60*time.Second),
			ReadySelector: envOr("TOKSCRAPE_READY_SELECTOR",
				`[data-e2e="browse-video-desc"], [data-e2e="like-count"]`),
			SettleDelay:          envDurationOr("TOKSCRAPE_SETTLE_DELAY", 5*time.Second),
			ScrollDistance:       envIntOr("TOKSCRAPE_SCROLL_DISTANCE", 500),
			ScrollSettle:         envDurationOr("TOKSCRAPE_SCROLL_SETTLE", 2*time.Second),
			BlockedResourceTypes: envSliceOr("TOKSCRAPE_BLOCKED_RESOURCES", []string{"Font", "Media"}),
			HTTPTimeout:          envDurationOr("TOKSCRAPE_HTTP_TIMEOUT", 10*time.Second),
			Debug:                envBoolOr("TOKSCRAPE_DEBUG_SCREENSHOTS", false),
		},
		Pipeline: PipelineConfig{
			Concurrency: envIntOr("TOKSCRAPE_CONCURRENCY", 1),
			ItemTimeout: envDurationOr("TOKSCRAPE_ITEM_TIMEOUT", 90*time.Second),
			SaveSummary: envBoolOr("TOKSCRAPE_SAVE_SUMMARY", true),
		},
		Store: StoreConfig{
			Driver: envOr("TOKSCRAPE_STORE_DRIVER", "sqlite"),
			DSN:    envOr("TOKSCRAPE_DATABASE_URL", os.Getenv("DATABASE_URL")),
			Table:  envOr("TOKSCRAPE_TABLE", "tiktok_videos"),
		},
		Audit: AuditConfig{
			LocalDir: envOr("TOKSCRAPE_OUTPUT_DIR", "output"),
			ImageKit: ImageKitConfig{
				PrivateKey:  os.Getenv("IMAGEKIT_PRIVATE_KEY"),
				PublicKey:   os.Getenv("IMAGEKIT_PUBLIC_KEY"),
				URLEndpoint: os.Getenv("IMAGEKIT_URL_ENDPOINT"),
				Folder:      envOr("IMAGEKIT_FOLDER", "/tiktok-data"),
			},
		},
		Jobs: JobsConfig{
			Backend:       envOr("TOKSCRAPE_JOBS_BACKEND", "memory"),
			RedisAddr:     envOr("TOKSCRAPE_REDIS_ADDR", "localhost:6379"),
			RedisPassword: os.Getenv("TOKSCRAPE_REDIS_PASSWORD"),
			RedisDB:       envIntOr("TOKSCRAPE_REDIS_DB", 0),
			TTL:           envDurationOr("TOKSCRAPE_JOB_TTL", time.Hour),
			MaxEntries:    envIntOr("TOKSCRAPE_JOB_MAX_ENTRIES", 1000),
			MaxBatchURLs:  envIntOr("TOKSCRAPE_MAX_BATCH_URLS", 100),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("TOKSCRAPE_WEBHOOK_SECRET"),
		},
		Auth: AuthConfig{
			APIKey: envOr("TOKSCRAPE_API_KEY", os.Getenv("API_KEY")),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("TOKSCRAPE_RATE_RPS", 5.0),
			Burst:             envIntOr("TOKSCRAPE_RATE_BURST", 10),
		},
		Log: LogConfig{
			Level:  envOr("TOKSCRAPE_LOG_LEVEL", "info"),
			Format: envOr("TOKSCRAPE_LOG_FORMAT", "json"),
		},
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.DSN == "" {
		cfg.Store.DSN = "tokscrape.db"
	}
	return cfg
}

// Validate reports missing or contradictory settings as a
// CONFIGURATION_ERROR. It is called before any work starts.
func (c *Config) Validate() error {
	var problems []string

	switch c.Store.Driver {
	case "postgres", "sqlite":
		if c.Store.DSN == "" {
			problems = append(problems, fmt.Sprintf("store driver %q requires TOKSCRAPE_DATABASE_URL", c.Store.Driver))
		}
	case "none":
	default:
		problems = append(problems, fmt.Sprintf("unknown store driver %q", c.Store.Driver))
	}

	ik := c.Audit.ImageKit
	if ik.Enabled() && (ik.PrivateKey == "" || ik.PublicKey == "" || ik.URLEndpoint == "") {
		problems = append(problems, "ImageKit needs IMAGEKIT_PRIVATE_KEY, IMAGEKIT_PUBLIC_KEY and IMAGEKIT_URL_ENDPOINT")
	}

	if c.Store.Driver == "none" && c.Audit.LocalDir == "" && !ik.Enabled() {
		problems = append(problems, "no persistence target: set a store driver, TOKSCRAPE_OUTPUT_DIR or ImageKit keys")
	}

	switch c.Scraper.FetchMode {
	case "browser", "http", "auto":
	default:
		problems = append(problems, fmt.Sprintf("unknown fetch mode %q", c.Scraper.FetchMode))
	}

	switch c.Jobs.Backend {
	case "memory", "redis":
	default:
		problems = append(problems, fmt.Sprintf("unknown jobs backend %q", c.Jobs.Backend))
	}

	if c.Pipeline.Concurrency < 1 {
		problems = append(problems, "TOKSCRAPE_CONCURRENCY must be at least 1")
	}
	if c.Browser.MaxPages < 1 {
		problems = append(problems, "TOKSCRAPE_MAX_PAGES must be at least 1")
	}

	if len(problems) > 0 {
		return models.NewScrapeError(models.ErrCodeConfiguration, strings.Join(problems, "; "), nil)
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
