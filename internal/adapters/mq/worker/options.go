package worker

import (
	"time"

	"github.com/okian/headhunt/pkg/logger"
)

// Option configures an InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name used in logs.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithSendTimeout bounds a single sink call.
func WithSendTimeout(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d > 0 {
			w.sendTimeout = d
		}
	}
}

// WithFailureHandler registers fn to run after a failed delivery.
func WithFailureHandler(fn FailureHandler) Option {
	return func(w *InMemoryWorker) {
		w.onFailure = fn
	}
}
