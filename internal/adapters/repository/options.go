package repository

import (
	"time"

	"github.com/okian/headhunt/pkg/logger"
)

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock sets the clock used to stamp UpdatedAt on stats rows.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// PostgresOption applies a configuration option to the PostgresStore.
type PostgresOption func(*postgresOptions)

type postgresOptions struct {
	maxConns    int32
	minConns    int32
	maxLifetime time.Duration
	migrate     bool
	logger      logger.Logger
	now         func() time.Time
}

// WithMaxConns bounds the connection pool.
func WithMaxConns(n int32) PostgresOption {
	return func(o *postgresOptions) {
		if n > 0 {
			o.maxConns = n
		}
	}
}

// WithMinConns keeps n idle connections open.
func WithMinConns(n int32) PostgresOption {
	return func(o *postgresOptions) {
		if n > 0 {
			o.minConns = n
		}
	}
}

// WithMaxConnLifetime recycles connections older than d.
func WithMaxConnLifetime(d time.Duration) PostgresOption {
	return func(o *postgresOptions) {
		if d > 0 {
			o.maxLifetime = d
		}
	}
}

// WithMigrations applies the embedded schema migrations on connect.
func WithMigrations(enabled bool) PostgresOption {
	return func(o *postgresOptions) {
		o.migrate = enabled
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) PostgresOption {
	return func(o *postgresOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPostgresClock sets the clock used to stamp UpdatedAt on stats rows.
func WithPostgresClock(now func() time.Time) PostgresOption {
	return func(o *postgresOptions) {
		if now != nil {
			o.now = now
		}
	}
}
