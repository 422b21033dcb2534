// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and SRLB_* environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFile, when set, mirrors logs into a rotated file.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// APIBaseURL is the root of the speedrun.com REST API.
	APIBaseURL string `koanf:"api_base_url"`

	// HTTPTimeoutMS bounds a single upstream request.
	HTTPTimeoutMS int `koanf:"http_timeout_ms"`

	// RetryableStatuses lists HTTP statuses that are retried after RetryDelayMS.
	RetryableStatuses []int `koanf:"retryable_statuses"`

	// RetryDelayMS is the fixed wait between retries of a transient status.
	RetryDelayMS int `koanf:"retry_delay_ms"`

	// MaxRetryAttempts caps attempts per request; 0 retries indefinitely.
	MaxRetryAttempts int `koanf:"max_retry_attempts"`

	// MinLeaderboardSize is the smallest leaderboard worth scoring against.
	MinLeaderboardSize int `koanf:"min_leaderboard_size"`

	// DeviationMultiplier is the exponent applied to the normalized deviation.
	DeviationMultiplier float64 `koanf:"deviation_multiplier"`

	// EntryConcurrency bounds the per-profile fan-out.
	EntryConcurrency int `koanf:"entry_concurrency"`

	// MetadataCacheSize and MetadataCacheTTLSeconds size the game metadata cache.
	MetadataCacheSize       int `koanf:"metadata_cache_size"`
	MetadataCacheTTLSeconds int `koanf:"metadata_cache_ttl_seconds"`

	// RedisAddr switches the metadata cache to Redis when set.
	RedisAddr string `koanf:"redis_addr"`

	// Store selects the leaderboard backend: "sqlite" or "memory".
	Store string `koanf:"store"`

	// DatabasePath is the SQLite file holding the leaderboard table.
	DatabasePath string `koanf:"database_path"`

	// QueueSize bounds pending asynchronous updates.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of asynchronous update workers.
	WorkerCount int `koanf:"worker_count"`

	// KafkaBrokers enables update notifications when non-empty.
	KafkaBrokers []string `koanf:"kafka_brokers"`
	KafkaTopic   string   `koanf:"kafka_topic"`
}

// Leaderboard backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:      "info",
		Addr:          ":9080",
		APIBaseURL:    "https://www.speedrun.com/api/v1",
		HTTPTimeoutMS: 30_000,
		RetryableStatuses: []int{
			420, // speedrun.com throttling
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
		RetryDelayMS:            5_000,
		MinLeaderboardSize:      3,
		DeviationMultiplier:     1.5,
		EntryConcurrency:        16,
		MetadataCacheSize:       2_048,
		MetadataCacheTTLSeconds: 3_600,
		Store:                   StoreSQLite,
		DatabasePath:            "data/leaderboard.db",
		QueueSize:               1_000,
		WorkerCount:             runtime.NumCPU(),
		KafkaTopic:              "profile-updates",
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.APIBaseURL) == "":
		return fmt.Errorf("%w: api_base_url must not be empty", ErrInvalidConfig)
	case c.MinLeaderboardSize < 2:
		return fmt.Errorf("%w: min_leaderboard_size must be at least 2, got %d", ErrInvalidConfig, c.MinLeaderboardSize)
	case c.DeviationMultiplier <= 1:
		return fmt.Errorf("%w: deviation_multiplier must be greater than 1, got %g", ErrInvalidConfig, c.DeviationMultiplier)
	case c.RetryDelayMS < 0:
		return fmt.Errorf("%w: retry_delay_ms must not be negative", ErrInvalidConfig)
	case c.MaxRetryAttempts < 0:
		return fmt.Errorf("%w: max_retry_attempts must not be negative", ErrInvalidConfig)
	case c.EntryConcurrency < 1:
		return fmt.Errorf("%w: entry_concurrency must be positive", ErrInvalidConfig)
	case c.Store != StoreSQLite && c.Store != StoreMemory:
		return fmt.Errorf("%w: store must be %q or %q, got %q", ErrInvalidConfig, StoreSQLite, StoreMemory, c.Store)
	case c.Store == StoreSQLite && strings.TrimSpace(c.DatabasePath) == "":
		return fmt.Errorf("%w: database_path must not be empty", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	for _, status := range c.RetryableStatuses {
		if status < 100 || status > 599 {
			return fmt.Errorf("%w: retryable status %d is not an HTTP status", ErrInvalidConfig, status)
		}
	}
	return nil
}
