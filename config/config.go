package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the chart service configuration loaded from environment
// variables.
type Config struct {
	// HTTP
	HTTPAddr    string
	MetricsAddr string

	// Infrastructure
	RedisAddr     string // empty disables the live feed and Redis layouts
	RedisPassword string
	SQLitePath    string

	// Chart
	ChartToken   string // "exchange:token"
	ChartTF      int    // seconds
	HistoryLimit int
	PresetsPath  string

	LogLevel string

	// Engine tuning
	CacheMaxEntries int
	CacheTTL        time.Duration
	RecalcDebounce  time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		HTTPAddr:    getEnv("CHARTD_HTTP_ADDR", ":8088"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/candles.db"),

		// Default: NIFTY 50 index on NSE
		ChartToken:   getEnv("CHART_TOKEN", "NSE:99926000"),
		ChartTF:      getEnvInt("CHART_TF", 60),
		HistoryLimit: getEnvInt("HISTORY_LIMIT", 500),
		PresetsPath:  getEnv("PRESETS_PATH", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 2048),
		CacheTTL:        time.Duration(getEnvInt("CACHE_TTL_MS", 2000)) * time.Millisecond,
		RecalcDebounce:  time.Duration(getEnvInt("RECALC_DEBOUNCE_MS", 1000)) * time.Millisecond,
	}
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if _, _, err := c.ParseToken(); err != nil {
		return err
	}
	if c.ChartTF <= 0 {
		return fmt.Errorf("CHART_TF must be positive, got %d", c.ChartTF)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive, got %d", c.HistoryLimit)
	}
	if c.CacheMaxEntries <= 0 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must be positive, got %d", c.CacheMaxEntries)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL_MS must be positive")
	}
	if c.RecalcDebounce < 0 {
		return fmt.Errorf("RECALC_DEBOUNCE_MS cannot be negative")
	}
	if c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH cannot be empty")
	}
	return nil
}

// ParseToken splits ChartToken into exchange and token.
func (c *Config) ParseToken() (exchange, token string, err error) {
	exchange, token, ok := strings.Cut(strings.TrimSpace(c.ChartToken), ":")
	if !ok || exchange == "" || token == "" {
		return "", "", fmt.Errorf("CHART_TOKEN must be exchange:token, got %q", c.ChartToken)
	}
	return exchange, token, nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		slog.Warn("invalid integer env var, using default", slog.String("key", key), slog.String("value", v), slog.Int("default", fallback))
		return fallback
	}
	return n
}
