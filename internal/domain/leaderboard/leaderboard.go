// Package leaderboard ranks recruiters by their reputation aggregates.
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/okian/headhunt/internal/domain/model"
	"github.com/okian/headhunt/pkg/logger"
	"github.com/okian/headhunt/pkg/metrics"
)

const (
	rankedKey       = "ranked"
	defaultCacheTTL = 5 * time.Second
	cleanupFactor   = 2
)

// Entry is one ranked recruiter.
type Entry struct {
	Rank              int     `json:"rank"`
	Email             string  `json:"email"`
	TotalPoints       int64   `json:"total_points"`
	Level             int     `json:"level"`
	TotalProposals    int     `json:"total_proposals"`
	AcceptedProposals int     `json:"accepted_proposals"`
	AcceptanceRate    float64 `json:"acceptance_rate"`
	CurrentStreak     int     `json:"current_streak"`
	BestStreak        int     `json:"best_streak"`
}

// StatsLister supplies every stored recruiter aggregate.
type StatsLister interface {
	ListStats(ctx context.Context) ([]model.RecruiterStats, error)
}

// Builder produces ranked views. It never writes.
type Builder struct {
	stats  StatsLister
	ttl    time.Duration
	cache  *cache.Cache
	logger logger.Logger
	// gen moves on every Invalidate; a build that straddles one is not cached.
	gen atomic.Uint64
}

// NewBuilder creates a builder over stats.
func NewBuilder(stats StatsLister, opts ...Option) *Builder {
	b := &Builder{
		stats:  stats,
		ttl:    defaultCacheTTL,
		logger: logger.Get().Named("leaderboard"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.ttl > 0 {
		b.cache = cache.New(b.ttl, cleanupFactor*b.ttl)
	}
	return b
}

// Build returns the top limit recruiters; limit <= 0 returns all of them.
func (b *Builder) Build(ctx context.Context, limit int) ([]Entry, error) {
	ranked, err := b.ranked(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	out := make([]Entry, len(ranked))
	copy(out, ranked)
	return out, nil
}

// Position returns the ranked entry of one recruiter.
func (b *Builder) Position(ctx context.Context, email string) (Entry, error) {
	ranked, err := b.ranked(ctx)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range ranked {
		if e.Email == email {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotRanked, email)
}

// Invalidate drops cached rankings. It is called after every stats write.
func (b *Builder) Invalidate() {
	b.gen.Add(1)
	if b.cache != nil {
		b.cache.Flush()
	}
}

func (b *Builder) ranked(ctx context.Context) ([]Entry, error) {
	if b.cache != nil {
		if x, found := b.cache.Get(rankedKey); found {
			metrics.RecordCacheHit("leaderboard")
			return x.([]Entry), nil
		}
		metrics.RecordCacheMiss("leaderboard")
	}

	gen := b.gen.Load()
	start := time.Now()
	all, err := b.stats.ListStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stats: %w", err)
	}
	ranked := Rank(all)
	metrics.RecordLeaderboardBuild(float64(time.Since(start).Microseconds()) / 1000)
	metrics.UpdateRankedRecruiters(len(ranked))
	b.logger.Debug(ctx, "leaderboard built", logger.Int("recruiters", len(ranked)))

	if b.cache != nil && b.gen.Load() == gen {
		b.cache.Set(rankedKey, ranked, cache.DefaultExpiration)
	}
	return ranked, nil
}

// Rank orders stats by total points, acceptance rate and total proposals,
// all descending, then by email. Recruiters without proposals are left out.
func Rank(all []model.RecruiterStats) []Entry {
	entries := make([]Entry, 0, len(all))
	for _, s := range all {
		if s.TotalProposals == 0 {
			continue
		}
		entries = append(entries, Entry{
			Email:             s.Email,
			TotalPoints:       s.TotalPoints,
			Level:             s.Level,
			TotalProposals:    s.TotalProposals,
			AcceptedProposals: s.AcceptedProposals,
			AcceptanceRate:    s.AcceptanceRate(),
			CurrentStreak:     s.CurrentStreak,
			BestStreak:        s.BestStreak,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.AcceptanceRate != b.AcceptanceRate {
			return a.AcceptanceRate > b.AcceptanceRate
		}
		if a.TotalProposals != b.TotalProposals {
			return a.TotalProposals > b.TotalProposals
		}
		return a.Email < b.Email
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
