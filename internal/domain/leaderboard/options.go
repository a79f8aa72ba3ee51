package leaderboard

import (
	"time"

	"github.com/okian/headhunt/pkg/logger"
)

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithCacheTTL serves builds from a cache for d. Zero disables caching.
func WithCacheTTL(d time.Duration) Option {
	return func(b *Builder) {
		if d >= 0 {
			b.ttl = d
		}
	}
}

// WithLogger sets the builder logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}
