package notify

import "github.com/okian/headhunt/pkg/logger"

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithQueueSize bounds the number of pending notifications.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithWorkerCount sets the number of delivery workers.
func WithWorkerCount(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workerCount = n
		}
	}
}

// WithDedupeSize bounds the number of remembered notification keys.
func WithDedupeSize(n int) Option {
	return func(d *Dispatcher) {
		d.dedupeSize = n
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}
