// Package reputation turns proposal transitions into recruiter points,
// levels, counters and streaks.
package reputation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/headhunt/internal/adapters/repository"
	"github.com/okian/headhunt/internal/domain/model"
	"github.com/okian/headhunt/internal/domain/proposal"
	"github.com/okian/headhunt/pkg/logger"
	"github.com/okian/headhunt/pkg/metrics"
)

// TransitionSource supplies a recruiter's full transition history.
type TransitionSource interface {
	ListTransitionsByRecruiter(ctx context.Context, email string) ([]proposal.TransitionEvent, error)
}

// Mutation computes the next aggregate from the stored one and may return
// achievements to insert in the same write. It can run more than once.
type Mutation func(ctx context.Context, current model.RecruiterStats) (model.RecruiterStats, []model.Achievement, error)

// Engine owns every write to recruiter stats.
type Engine struct {
	stats      repository.StatsStore
	history    TransitionSource
	table      Table
	window     time.Duration
	maxRetries int
	logger     logger.Logger
	onWrite    []func(ctx context.Context, s model.RecruiterStats)
}

// NewEngine creates an engine over the given stores.
func NewEngine(stats repository.StatsStore, history TransitionSource, opts ...Option) *Engine {
	e := &Engine{
		stats:      stats,
		history:    history,
		table:      DefaultTable(),
		window:     DefaultStreakWindow,
		maxRetries: defaultMaxRetries,
		logger:     logger.Get().Named("reputation"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table returns the points table in use.
func (e *Engine) Table() Table { return e.table }

// Stats returns the stored aggregate. Recruiters without a row get the
// empty aggregate at level 1.
func (e *Engine) Stats(ctx context.Context, email string) (model.RecruiterStats, error) {
	s, err := e.stats.GetStats(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return model.RecruiterStats{Email: email, Level: 1}, nil
	}
	return s, err
}

// RecordTransition applies one persisted transition to the recruiter's stats.
// The event is folded incrementally when it is the newest history row and the
// only one the stored aggregate has not seen. Otherwise the aggregate is
// rebuilt from history, so an event is never counted twice and a transition
// whose earlier write failed is picked up by the next one.
func (e *Engine) RecordTransition(ctx context.Context, ev proposal.TransitionEvent) (model.RecruiterStats, error) {
	points := e.table.Points(ev.Kind())
	s, err := e.Update(ctx, ev.RecruiterEmail, func(ctx context.Context, cur model.RecruiterStats) (model.RecruiterStats, []model.Achievement, error) {
		events, err := e.history.ListTransitionsByRecruiter(ctx, ev.RecruiterEmail)
		if err != nil {
			return model.RecruiterStats{}, nil, fmt.Errorf("load history: %w", err)
		}
		proposal.SortEvents(events)
		if follows(cur, ev, events) {
			return Apply(cur, ev, e.table, e.window), nil, nil
		}
		metrics.RecordStatsReconcile()
		e.logger.Debug(ctx, "stats out of step with history, rebuilding",
			logger.String("recruiter", ev.RecruiterEmail),
			logger.Int("applied_events", cur.AppliedEvents),
			logger.Int("history_events", len(events)))
		return e.replay(ctx, ev.RecruiterEmail, events, cur)
	})
	if err != nil {
		e.logger.Error(ctx, "record transition failed",
			logger.String("proposal_id", ev.ProposalID),
			logger.String("recruiter", ev.RecruiterEmail),
			logger.String("kind", string(ev.Kind())),
			logger.Error(err))
		return model.RecruiterStats{}, err
	}
	metrics.RecordPointsAwarded(string(ev.Kind()), points)
	e.logger.Debug(ctx, "transition recorded",
		logger.String("recruiter", ev.RecruiterEmail),
		logger.String("kind", string(ev.Kind())),
		logger.Any("total_points", s.TotalPoints))
	return s, nil
}

// follows reports whether ev is the newest row of the sorted history and the
// only one cur has not folded yet.
func follows(cur model.RecruiterStats, ev proposal.TransitionEvent, events []proposal.TransitionEvent) bool {
	n := len(events)
	if n == 0 || cur.AppliedEvents != n-1 || !events[n-1].Key().Equal(ev.Key()) {
		return false
	}
	var digest uint64
	for _, e := range events[:n-1] {
		digest ^= e.Key().Hash()
	}
	return digest == cur.AppliedDigest
}

// RefreshStats recomputes the aggregate from the full transition history,
// the stored achievements and the stored adjustments. Running it twice
// yields the same aggregate.
func (e *Engine) RefreshStats(ctx context.Context, email string) (model.RecruiterStats, error) {
	return e.Update(ctx, email, func(ctx context.Context, cur model.RecruiterStats) (model.RecruiterStats, []model.Achievement, error) {
		events, err := e.history.ListTransitionsByRecruiter(ctx, email)
		if err != nil {
			return model.RecruiterStats{}, nil, fmt.Errorf("load history: %w", err)
		}
		proposal.SortEvents(events)
		return e.replay(ctx, email, events, cur)
	})
}

// replay rebuilds the aggregate from sorted events, keeping cur's adjustments.
func (e *Engine) replay(ctx context.Context, email string, events []proposal.TransitionEvent, cur model.RecruiterStats) (model.RecruiterStats, []model.Achievement, error) {
	achievements, err := e.stats.ListAchievements(ctx, email)
	if err != nil {
		return model.RecruiterStats{}, nil, fmt.Errorf("load achievements: %w", err)
	}
	return Replay(email, events, achievements, cur.AdjustmentPoints, e.table, e.window), nil, nil
}

// AdjustPoints adds delta to the recruiter's adjustment points. Counters are
// untouched. The total never goes below zero.
func (e *Engine) AdjustPoints(ctx context.Context, email string, delta int64, reason, actor string) (model.RecruiterStats, error) {
	s, err := e.Update(ctx, email, func(_ context.Context, cur model.RecruiterStats) (model.RecruiterStats, []model.Achievement, error) {
		if cur.TotalPoints+delta < 0 {
			return model.RecruiterStats{}, nil, fmt.Errorf("%w: %d%+d", ErrNegativePoints, cur.TotalPoints, delta)
		}
		cur.AdjustmentPoints += delta
		return cur, nil, nil
	})
	if err != nil {
		return model.RecruiterStats{}, err
	}
	e.logger.Info(ctx, "points adjusted",
		logger.String("recruiter", email),
		logger.Any("delta", delta),
		logger.String("reason", reason),
		logger.String("actor", actor))
	return s, nil
}

// Update runs an optimistic read-modify-write of one recruiter's stats,
// retrying when another writer moved the version first.
func (e *Engine) Update(ctx context.Context, email string, mutate Mutation) (model.RecruiterStats, error) {
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return model.RecruiterStats{}, fmt.Errorf("context cancelled: %w", err)
		}

		cur, err := e.stats.GetStats(ctx, email)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			cur = model.RecruiterStats{Email: email}
		case err != nil:
			return model.RecruiterStats{}, fmt.Errorf("load stats: %w", err)
		}

		next, grants, err := mutate(ctx, cur)
		if err != nil {
			return model.RecruiterStats{}, err
		}
		next.Email = email
		next.Version = cur.Version
		next = finalize(next)
		if err := next.Check(); err != nil {
			return model.RecruiterStats{}, fmt.Errorf("%w: %v", ErrInvalidStats, err)
		}

		saved, err := e.stats.SaveStats(ctx, next, grants...)
		if err == nil {
			for _, fn := range e.onWrite {
				fn(ctx, saved)
			}
			return saved, nil
		}
		if !errors.Is(err, repository.ErrConcurrentModification) {
			return model.RecruiterStats{}, fmt.Errorf("save stats: %w", err)
		}
		metrics.RecordStatsConflict()
		e.logger.Debug(ctx, "stats write lost, retrying",
			logger.String("recruiter", email),
			logger.Int("attempt", attempt+1))
	}
	return model.RecruiterStats{}, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, e.maxRetries+1, repository.ErrConcurrentModification)
}
