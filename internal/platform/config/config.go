// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	Server    Server
	Upstream  Upstream
	Cache     Cache
	RateLimit RateLimit
	CBE       LocalExtractor
	Telebirr  LocalExtractor
	Retry     Retry
	Breaker   Breaker
	Log       Log
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Upstream configures the remote verification API client.
type Upstream struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	ConnectTimeout time.Duration
}

// Cache configures the result cache.
type Cache struct {
	TTL time.Duration
}

// RateLimit configures the global per-IP limiter.
type RateLimit struct {
	Enabled bool
	Limit   int
	Window  time.Duration
}

// LocalExtractor configures one provider's receipt fallback.
type LocalExtractor struct {
	Enabled        bool
	BaseURL        string
	LimitPerMinute int
}

// Retry configures local extractor retries.
type Retry struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Breaker configures the local extractor circuit breakers.
type Breaker struct {
	Enabled          bool
	FailureThreshold int
	ResetTimeout     time.Duration
}

// Log configures the process logger.
type Log struct {
	Level  string
	Format string
}

// Defaults.
const (
	DefaultUpstreamBaseURL  = "https://verifyapi.leulzenebe.pro"
	DefaultCBEBaseURL       = "https://apps.cbe.com.et:100"
	DefaultTelebirrBaseURL  = "https://transactioninfo.ethiotelecom.et/receipt"
	defaultPort             = "8080"
	defaultUpstreamTimeout  = 60
	defaultConnectTimeout   = 20
	defaultCacheTTL         = 60
	defaultRateLimit        = 60
	defaultRateWindow       = 60
	defaultLocalLimit       = 20
	defaultRetryAttempts    = 3
	defaultRetryBaseDelayMS = 250
	defaultRetryMaxDelayMS  = 2000
	defaultBreakerThreshold = 5
	defaultBreakerReset     = 90
	defaultShutdownTimeout  = 10
)

// ErrMissingAPIKey is returned when VERIFY_API_KEY is unset.
var ErrMissingAPIKey = errors.New("VERIFY_API_KEY is required")

// LoadDotEnv seeds the environment from files such as ".env". Variables that
// are already set win, and missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Load reads the configuration from the process environment after seeding it
// from a .env file in the working directory.
func Load() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	return FromLookup(os.Getenv)
}

// FromLookup builds a Config from getenv. Invalid numbers fall back to their
// defaults and limits are clamped to at least 1.
func FromLookup(getenv func(string) string) (*Config, error) {
	e := env(getenv)
	cfg := &Config{
		Server: Server{
			Addr:            ":" + e.str("PORT", defaultPort),
			ShutdownTimeout: e.seconds("SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeout),
		},
		Upstream: Upstream{
			BaseURL:        strings.TrimRight(e.str("VERIFY_API_BASE_URL", DefaultUpstreamBaseURL), "/"),
			APIKey:         strings.TrimSpace(getenv("VERIFY_API_KEY")),
			Timeout:        e.seconds("UPSTREAM_TIMEOUT_SECONDS", defaultUpstreamTimeout),
			ConnectTimeout: e.seconds("UPSTREAM_CONNECT_TIMEOUT_SECONDS", defaultConnectTimeout),
		},
		Cache: Cache{
			TTL: time.Duration(max(0, e.int("CACHE_TTL_SECONDS", defaultCacheTTL))) * time.Second,
		},
		RateLimit: RateLimit{
			Enabled: e.bool("RATE_LIMIT_ENABLED", true),
			Limit:   max(1, e.int("RATE_LIMIT_PER_MINUTE", defaultRateLimit)),
			Window:  time.Duration(max(1, e.int("RATE_LIMIT_WINDOW_SECONDS", defaultRateWindow))) * time.Second,
		},
		CBE: LocalExtractor{
			Enabled:        e.bool("LOCAL_CBE_ENABLED", true),
			BaseURL:        strings.TrimRight(e.str("CBE_RECEIPT_BASE_URL", DefaultCBEBaseURL), "/"),
			LimitPerMinute: max(1, e.int("LOCAL_RATE_LIMIT_CBE_PER_MINUTE", defaultLocalLimit)),
		},
		Telebirr: LocalExtractor{
			Enabled:        e.bool("LOCAL_TELEBIRR_ENABLED", true),
			BaseURL:        strings.TrimRight(e.str("TELEBIRR_RECEIPT_BASE_URL", DefaultTelebirrBaseURL), "/"),
			LimitPerMinute: max(1, e.int("LOCAL_RATE_LIMIT_TELEBIRR_PER_MINUTE", defaultLocalLimit)),
		},
		Retry: Retry{
			Attempts:  max(1, e.int("LOCAL_RETRY_ATTEMPTS", defaultRetryAttempts)),
			BaseDelay: e.millis("LOCAL_RETRY_BASE_DELAY_MS", defaultRetryBaseDelayMS),
			MaxDelay:  e.millis("LOCAL_RETRY_MAX_DELAY_MS", defaultRetryMaxDelayMS),
		},
		Breaker: Breaker{
			Enabled:          e.bool("LOCAL_CIRCUIT_BREAKER_ENABLED", true),
			FailureThreshold: max(1, e.int("LOCAL_CIRCUIT_FAILURE_THRESHOLD", defaultBreakerThreshold)),
			ResetTimeout:     time.Duration(max(1, e.int("LOCAL_CIRCUIT_RESET_SECONDS", defaultBreakerReset))) * time.Second,
		},
		Log: Log{
			Level:  e.str("LOG_LEVEL", "info"),
			Format: strings.ToLower(e.str("LOG_FORMAT", "json")),
		},
	}

	if cfg.Upstream.APIKey == "" {
		return cfg, ErrMissingAPIKey
	}
	return cfg, nil
}

type env func(string) string

func (e env) str(key, fallback string) string {
	if v := strings.TrimSpace(e(key)); v != "" {
		return v
	}
	return fallback
}

func (e env) int(key string, fallback int) int {
	v := strings.TrimSpace(e(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (e env) bool(key string, fallback bool) bool {
	v := strings.TrimSpace(e(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func (e env) seconds(key string, fallback int) time.Duration {
	n := e.int(key, fallback)
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func (e env) millis(key string, fallback int) time.Duration {
	n := e.int(key, fallback)
	if n < 0 {
		n = fallback
	}
	return time.Duration(n) * time.Millisecond
}
