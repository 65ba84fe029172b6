// Package config loads the dashboard service configuration from the
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/Sternrassler/modelzoo-client/pkg/aggregate"
	"github.com/Sternrassler/modelzoo-client/pkg/logging"
	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	BaseURL    string
	Workspace  string
	Collection string
	UserAgent  string

	PageSize       int
	MaxPages       int
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int

	// RedisURL is optional; empty disables the response cache.
	RedisURL string

	Port      string
	LogLevel  logging.LogLevel
	LogPretty bool

	TopScope aggregate.TopScope
	TopLimit int

	// SnapshotPath is optional; when set every successful reload is exported there.
	SnapshotPath string
}

// Load reads envFiles (missing files are ignored) and then the environment.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read %s: %w", f, err)
		}
	}

	var errs []error
	intVar := func(key string, def int) int {
		v, err := strconv.Atoi(getEnv(key, strconv.Itoa(def)))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return v
	}
	durVar := func(key string, def time.Duration) time.Duration {
		v, err := time.ParseDuration(getEnv(key, def.String()))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return v
	}

	cfg := Config{
		BaseURL:        getEnv("ZOO_BASE_URL", "https://hypha.aicell.io"),
		Workspace:      getEnv("ZOO_WORKSPACE", "bioimage-io"),
		Collection:     getEnv("ZOO_COLLECTION", "bioimage.io"),
		UserAgent:      getEnv("USER_AGENT", "modelzoo-client/0.1.0"),
		PageSize:       intVar("PAGE_SIZE", 12),
		MaxPages:       intVar("MAX_PAGES", 500),
		RequestTimeout: durVar("REQUEST_TIMEOUT", 30*time.Second),
		RateBurst:      intVar("RATE_BURST", 4),
		RedisURL:       getEnv("REDIS_URL", ""),
		Port:           getEnv("PORT", "8080"),
		TopLimit:       intVar("TOP_LIMIT", aggregate.DefaultLimit),
		SnapshotPath:   getEnv("SNAPSHOT_PATH", ""),
	}

	rate, err := strconv.ParseFloat(getEnv("RATE_LIMIT", "10"), 64)
	if err != nil {
		errs = append(errs, fmt.Errorf("RATE_LIMIT: %w", err))
	}
	cfg.RateLimit = rate

	if cfg.LogPretty, err = strconv.ParseBool(getEnv("LOG_PRETTY", "false")); err != nil {
		errs = append(errs, fmt.Errorf("LOG_PRETTY: %w", err))
	}
	if cfg.LogLevel, err = logging.ParseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if cfg.TopScope, err = aggregate.ParseScope(getEnv("TOP_SCOPE", string(aggregate.ScopeModels))); err != nil {
		errs = append(errs, fmt.Errorf("TOP_SCOPE: %w", err))
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and required values.
func (c Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("ZOO_BASE_URL: invalid url %q", c.BaseURL))
	}
	if c.Workspace == "" {
		errs = append(errs, errors.New("ZOO_WORKSPACE is required"))
	}
	if c.Collection == "" {
		errs = append(errs, errors.New("ZOO_COLLECTION is required"))
	}
	if c.UserAgent == "" {
		errs = append(errs, errors.New("USER_AGENT is required"))
	}
	if c.PageSize < 1 {
		errs = append(errs, fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize))
	}
	if c.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("MAX_PAGES must be positive, got %d", c.MaxPages))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT must not be negative, got %g", c.RateLimit))
	}
	if c.RateBurst < 0 {
		errs = append(errs, fmt.Errorf("RATE_BURST must not be negative, got %d", c.RateBurst))
	}
	if c.TopLimit < 1 {
		errs = append(errs, fmt.Errorf("TOP_LIMIT must be positive, got %d", c.TopLimit))
	}
	if p, err := strconv.Atoi(c.Port); err != nil || p < 1 || p > 65535 {
		errs = append(errs, fmt.Errorf("PORT: invalid port %q", c.Port))
	}
	return errors.Join(errs...)
}

// Addr is the listen address of the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
