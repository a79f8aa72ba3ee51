package reputation

import (
	"context"
	"time"

	"github.com/okian/headhunt/internal/domain/model"
	"github.com/okian/headhunt/pkg/logger"
)

// Default engine configuration.
const defaultMaxRetries = 5

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithTable sets the points table.
func WithTable(t Table) Option {
	return func(e *Engine) {
		if t != nil {
			e.table = t
		}
	}
}

// WithStreakWindow sets the largest gap that still extends a streak.
func WithStreakWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.window = d
		}
	}
}

// WithMaxRetries bounds the optimistic write retries.
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithOnWrite registers a callback run after every successful stats write.
func WithOnWrite(fn func(ctx context.Context, s model.RecruiterStats)) Option {
	return func(e *Engine) {
		if fn != nil {
			e.onWrite = append(e.onWrite, fn)
		}
	}
}
