package service

import (
	"time"

	"github.com/okian/headhunt/internal/adapters/notify"
	"github.com/okian/headhunt/internal/adapters/repository"
	"github.com/okian/headhunt/internal/domain/badges"
	"github.com/okian/headhunt/internal/domain/reputation"
	"github.com/okian/headhunt/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend; the memory store is the default.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithCatalog sets the badge catalog; the embedded catalog is the default.
func WithCatalog(c *badges.Catalog) Option {
	return func(s *Service) {
		s.catalog = c
	}
}

// WithPointsTable sets the transition point values.
func WithPointsTable(t reputation.Table) Option {
	return func(s *Service) {
		if t != nil {
			s.table = t
		}
	}
}

// WithStreakWindow sets the streak window.
func WithStreakWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.streakWindow = d
		}
	}
}

// WithStatsMaxRetries bounds optimistic retries per stats update.
func WithStatsMaxRetries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithLeaderboardCacheTTL sets how long a built leaderboard is served; 0 disables caching.
func WithLeaderboardCacheTTL(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.cacheTTL = d
		}
	}
}

// WithNotifySink sets where notifications are delivered; the log sink is the default.
func WithNotifySink(sink notify.Sink) Option {
	return func(s *Service) {
		s.sink = sink
	}
}

// WithQueueSize sets the maximum number of pending notifications.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of notification workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithDedupeSize sets the size of the notification deduper.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
