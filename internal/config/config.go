// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and HEADHUNT_ environment variables on top.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Store selects the persistence backend: memory or postgres.
	Store string `koanf:"store"`

	Postgres Postgres `koanf:"postgres"`
	Redis    Redis    `koanf:"redis"`

	// NotifyQueueSize bounds the pending notification queue.
	NotifyQueueSize int `koanf:"notify_queue_size"`

	// NotifyWorkerCount sets the number of notification workers.
	NotifyWorkerCount int `koanf:"notify_worker_count"`

	// DedupeSize bounds the notification deduper.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /api/v1/leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// LeaderboardCacheTTL is how long a built leaderboard is served; 0 disables caching.
	LeaderboardCacheTTL time.Duration `koanf:"leaderboard_cache_ttl"`

	// Points maps transition kinds to awarded points.
	Points map[string]int64 `koanf:"points"`

	// StreakWindow is the longest gap between counted activities that keeps a streak alive.
	StreakWindow time.Duration `koanf:"streak_window"`

	// StatsMaxRetries bounds optimistic retries of one stats update.
	StatsMaxRetries int `koanf:"stats_max_retries"`

	Badges Badges `koanf:"badges"`

	// AdminToken guards the admin endpoints; empty disables them.
	AdminToken string `koanf:"admin_token"`

	// CORSAllowedOrigins lists origins allowed to call the API.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// Postgres configures the postgres store.
type Postgres struct {
	DSN      string `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns"`
	MinConns int32  `koanf:"min_conns"`
}

// Redis configures the redis notification publisher. Empty Addr disables it.
type Redis struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Channel  string `koanf:"channel"`
}

// Badges configures the achievement catalog.
type Badges struct {
	// CatalogPath overrides the embedded catalog when set.
	CatalogPath string `koanf:"catalog_path"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":9080",
		Store:     StoreMemory,
		Postgres: Postgres{
			MaxConns: 25,
			MinConns: 5,
		},
		Redis: Redis{
			Channel: "headhunt:notifications",
		},
		NotifyQueueSize:     1024,
		NotifyWorkerCount:   4,
		DedupeSize:          10_000,
		MaxLeaderboardLimit: 100,
		LeaderboardCacheTTL: 5 * time.Second,
		Points: map[string]int64{
			"submitted": 10,
			"approved":  50,
			"hired":     150,
		},
		StreakWindow:       7 * 24 * time.Hour,
		StatsMaxRetries:    5,
		CORSAllowedOrigins: []string{"*"},
	}
}

// Validate checks values that would fail later at wiring time.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Store != StoreMemory && c.Store != StorePostgres:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	case c.Store == StorePostgres && c.Postgres.DSN == "":
		return fmt.Errorf("%w: postgres.dsn is required for the postgres store", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	case c.NotifyQueueSize <= 0 || c.NotifyWorkerCount <= 0:
		return fmt.Errorf("%w: notify_queue_size and notify_worker_count must be positive", ErrInvalidConfig)
	case c.MaxLeaderboardLimit <= 0:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.LeaderboardCacheTTL < 0:
		return fmt.Errorf("%w: leaderboard_cache_ttl must not be negative", ErrInvalidConfig)
	case c.StreakWindow <= 0:
		return fmt.Errorf("%w: streak_window must be positive", ErrInvalidConfig)
	case c.StatsMaxRetries <= 0:
		return fmt.Errorf("%w: stats_max_retries must be positive", ErrInvalidConfig)
	}
	for kind, p := range c.Points {
		if p < 0 {
			return fmt.Errorf("%w: points.%s must not be negative", ErrInvalidConfig, kind)
		}
	}
	return nil
}
