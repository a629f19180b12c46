package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Target    TargetConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the pool of headless browser instances.
type BrowserConfig struct {
	// Headless controls whether the browsers run headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// MinInstances is the number of warm instances launched at startup.
	MinInstances int // default: 1

	// MaxInstances is the pool's hard capacity; instances beyond the
	// minimum are launched lazily on demand.
	MaxInstances int // default: 4

	// AcquireTimeout bounds how long a checkout waits for a free instance
	// before failing with POOL_EXHAUSTED.
	AcquireTimeout time.Duration // default: 10s
}

// ScraperConfig controls the scrape protocol.
type ScraperConfig struct {
	// StepTimeout is the deadline for the whole fill/submit/extract
	// sequence after navigation.
	StepTimeout time.Duration // default: 30s

	// NavigationTimeout is the max time for reaching the target form.
	NavigationTimeout time.Duration // default: 30s

	// BlockedResourceTypes lists subresource types suppressed during
	// navigation. default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string
}

// TargetConfig describes the external form's DOM contract: the navigation
// URL, the six input names grouped into the three fixed variant pairs, the
// submit control, and the result-display region. These are configuration,
// not data, so a markup change upstream never touches orchestration code.
type TargetConfig struct {
	// URL is the target form's address. Required; there is no default.
	URL string

	// ReferenceIDFields names the inputs filled for a reference + ID
	// lookup, in (reference, id) order.
	ReferenceIDFields []string // default: ["fref", "frid"]

	// SerialReferenceFields names the inputs filled for a serial +
	// reference lookup, in (serial, reference) order.
	SerialReferenceFields []string // default: ["sser", "sref"]

	// IDSerialFields names the inputs filled for an ID + serial lookup,
	// in (id, serial) order.
	IDSerialFields []string // default: ["iid", "iser"]

	// SubmitSelector is the CSS selector of the form's submit control.
	SubmitSelector string // default: `input[type="submit"]`

	// ResultSelector is the CSS selector of the result-display region.
	ResultSelector string // default: "#search_results"
}

// CacheConfig controls the lookup result cache.
type CacheConfig struct {
	// TTL is how long a cached result stays servable.
	TTL time.Duration // default: 1h

	// MaxEntries is the maximum number of cached results.
	MaxEntries int // default: 10000
}

// RateLimitConfig controls per-client rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client IP.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per client IP.
	Burst int // default: 5
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("CFR_HOST", "0.0.0.0"),
			Port: envIntOr("CFR_PORT", 8080),
			Mode: envOr("CFR_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("CFR_HEADLESS", true),
			NoSandbox:      envBoolOr("CFR_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("CFR_BROWSER_BIN"),
			MinInstances:   envIntOr("CFR_MIN_INSTANCES", 1),
			MaxInstances:   envIntOr("CFR_MAX_INSTANCES", 4),
			AcquireTimeout: envDurationOr("CFR_ACQUIRE_TIMEOUT", 10*time.Second),
		},
		Scraper: ScraperConfig{
			StepTimeout:       envDurationOr("CFR_STEP_TIMEOUT", 30*time.Second),
			NavigationTimeout: envDurationOr("CFR_NAV_TIMEOUT", 30*time.Second),
			BlockedResourceTypes: envSliceOr("CFR_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
		},
		Target: TargetConfig{
			URL:                   os.Getenv("CFR_TARGET_URL"),
			ReferenceIDFields:     envSliceOr("CFR_FIELDS_REFERENCE_ID", []string{"fref", "frid"}),
			SerialReferenceFields: envSliceOr("CFR_FIELDS_SERIAL_REFERENCE", []string{"sser", "sref"}),
			IDSerialFields:        envSliceOr("CFR_FIELDS_ID_SERIAL", []string{"iid", "iser"}),
			SubmitSelector:        envOr("CFR_SUBMIT_SELECTOR", `input[type="submit"]`),
			ResultSelector:        envOr("CFR_RESULT_SELECTOR", "#search_results"),
		},
		Cache: CacheConfig{
			TTL:        envDurationOr("CFR_CACHE_TTL", time.Hour),
			MaxEntries: envIntOr("CFR_CACHE_MAX_ENTRIES", 10000),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("CFR_RATE_RPS", 2.0),
			Burst:             envIntOr("CFR_RATE_BURST", 5),
		},
		Log: LogConfig{
			Level:  envOr("CFR_LOG_LEVEL", "info"),
			Format: envOr("CFR_LOG_FORMAT", "json"),
		},
	}
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
