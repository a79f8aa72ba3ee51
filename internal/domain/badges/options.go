package badges

import (
	"time"

	"github.com/okian/headhunt/pkg/logger"
)

// Option applies a configuration option to the Evaluator.
type Option func(*Evaluator)

// WithMetric registers or replaces the metric called name.
func WithMetric(name string, fn MetricFunc) Option {
	return func(e *Evaluator) {
		if name != "" && fn != nil {
			e.metrics[name] = fn
		}
	}
}

// WithClock sets the clock used for EarnedAt and age-based metrics.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the evaluator logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}
