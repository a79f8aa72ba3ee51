package lifecycle

import (
	"time"

	"github.com/okian/headhunt/pkg/logger"
)

// Option applies a configuration option to the StateMachine.
type Option func(*StateMachine)

// WithNotifier sets where successful transitions are announced.
func WithNotifier(n Notifier) Option {
	return func(m *StateMachine) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithClock sets the clock used to stamp transitions.
func WithClock(now func() time.Time) Option {
	return func(m *StateMachine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator sets the generator for new proposal ids.
func WithIDGenerator(gen func() string) Option {
	return func(m *StateMachine) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// WithLogger sets the state machine logger.
func WithLogger(l logger.Logger) Option {
	return func(m *StateMachine) {
		if l != nil {
			m.logger = l
		}
	}
}
