// Package service wires the proposal lifecycle, the reputation engine, the
// badge evaluator, the leaderboard and notification delivery into the
// operations served by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/okian/headhunt/internal/adapters/export"
	"github.com/okian/headhunt/internal/adapters/notify"
	"github.com/okian/headhunt/internal/adapters/repository"
	"github.com/okian/headhunt/internal/domain/badges"
	"github.com/okian/headhunt/internal/domain/leaderboard"
	"github.com/okian/headhunt/internal/domain/lifecycle"
	"github.com/okian/headhunt/internal/domain/model"
	"github.com/okian/headhunt/internal/domain/proposal"
	"github.com/okian/headhunt/internal/domain/reputation"
	"github.com/okian/headhunt/pkg/logger"
	"github.com/okian/headhunt/pkg/metrics"
)

// ErrNotStarted is returned by operations called before Start.
var ErrNotStarted = errors.New("service not started")

// TransitionResult is what a successful transition produced.
type TransitionResult struct {
	Event   proposal.TransitionEvent `json:"event"`
	Stats   model.RecruiterStats     `json:"stats"`
	Granted []model.Achievement      `json:"granted"`
}

// SubmitResult is what a successful submission produced.
type SubmitResult struct {
	Proposal proposal.Proposal    `json:"proposal"`
	Stats    model.RecruiterStats `json:"stats"`
	Granted  []model.Achievement  `json:"granted"`
}

// StatsView is a recruiter's aggregate with its level progress.
type StatsView struct {
	model.RecruiterStats
	AcceptanceRate float64                  `json:"acceptance_rate"`
	Progress       reputation.LevelProgress `json:"level_progress"`
}

// Service implements the API dependencies.
type Service struct {
	mu sync.RWMutex

	store      repository.Store
	machine    *lifecycle.StateMachine
	engine     *reputation.Engine
	evaluator  *badges.Evaluator
	board      *leaderboard.Builder
	dispatcher *notify.Dispatcher

	// Configuration
	catalog      *badges.Catalog
	table        reputation.Table
	streakWindow time.Duration
	maxRetries   int
	cacheTTL     time.Duration
	sink         notify.Sink
	queueSize    int
	workerCount  int
	dedupeSize   int
	now          func() time.Time

	started bool
	logger  logger.Logger
}

// New constructs a Service. Components are built by Start.
func New(opts ...Option) *Service {
	s := &Service{
		table:        reputation.DefaultTable(),
		streakWindow: reputation.DefaultStreakWindow,
		maxRetries:   5,
		cacheTTL:     5 * time.Second,
		queueSize:    1024,
		workerCount:  4,
		dedupeSize:   10_000,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds and starts the components. Calling it twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting headhunt service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore(repository.WithClock(s.now))
		s.logger.Info(ctx, "using memory store")
	}
	if s.catalog == nil {
		c, err := badges.DefaultCatalog()
		if err != nil {
			return fmt.Errorf("load badge catalog: %w", err)
		}
		s.catalog = c
	}
	if s.sink == nil {
		s.sink = notify.NewLogSink(nil)
	}

	s.board = leaderboard.NewBuilder(s.store, leaderboard.WithCacheTTL(s.cacheTTL))
	s.engine = reputation.NewEngine(s.store, s.store,
		reputation.WithTable(s.table),
		reputation.WithStreakWindow(s.streakWindow),
		reputation.WithMaxRetries(s.maxRetries),
		reputation.WithOnWrite(func(context.Context, model.RecruiterStats) { s.board.Invalidate() }))
	s.evaluator = badges.NewEvaluator(s.catalog, s.store, s.engine, badges.WithClock(s.now))
	s.dispatcher = notify.NewDispatcher(s.sink,
		notify.WithQueueSize(s.queueSize),
		notify.WithWorkerCount(s.workerCount),
		notify.WithDedupeSize(s.dedupeSize))
	s.machine = lifecycle.New(s.store,
		lifecycle.WithNotifier(s.dispatcher),
		lifecycle.WithClock(s.now))

	s.dispatcher.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "headhunt service started",
		logger.Int("badge_families", len(s.catalog.Families())),
		logger.Int("notify_workers", s.workerCount),
		logger.Int("notify_queue_size", s.queueSize))
	return nil
}

// Stop drains pending notifications and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping headhunt service...")

	var errs []error
	if err := s.dispatcher.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("notification dispatcher: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	s.started = false
	s.logger.Info(ctx, "headhunt service stopped")
	return errors.Join(errs...)
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// SubmitProposal stores a new pending proposal and credits the submission.
func (s *Service) SubmitProposal(ctx context.Context, p proposal.Proposal, actor string) (SubmitResult, error) {
	if err := s.ready(); err != nil {
		return SubmitResult{}, err
	}
	stored, ev, err := s.machine.Submit(ctx, p, actor)
	if err != nil {
		return SubmitResult{}, err
	}
	stats, granted, err := s.afterTransition(ctx, ev)
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{Proposal: stored, Stats: stats, Granted: granted}, nil
}

// Transition moves a proposal to next, updates the recruiter's reputation and
// evaluates badges. A failed evaluation is logged and does not fail the call.
func (s *Service) Transition(ctx context.Context, proposalID string, next proposal.Status, actor string) (TransitionResult, error) {
	if err := s.ready(); err != nil {
		return TransitionResult{}, err
	}
	ev, err := s.machine.ApplyTransition(ctx, proposalID, next, actor)
	if err != nil {
		return TransitionResult{}, err
	}
	stats, granted, err := s.afterTransition(ctx, ev)
	if err != nil {
		return TransitionResult{}, err
	}
	return TransitionResult{Event: ev, Stats: stats, Granted: granted}, nil
}

// afterTransition credits a committed event. The event is already stored, so
// a failed stats write is not returned to the caller: the engine rebuilds
// from history on the next write for the recruiter.
func (s *Service) afterTransition(ctx context.Context, ev proposal.TransitionEvent) (model.RecruiterStats, []model.Achievement, error) {
	stats, err := s.engine.RecordTransition(ctx, ev)
	if err != nil {
		s.logger.Warn(ctx, "record transition failed, rebuilding stats",
			logger.String("proposal_id", ev.ProposalID),
			logger.String("recruiter", ev.RecruiterEmail),
			logger.Error(err))
		if stats, err = s.engine.RefreshStats(ctx, ev.RecruiterEmail); err != nil {
			metrics.RecordStatsDeferred()
			s.logger.Error(ctx, "stats deferred to the next write",
				logger.String("proposal_id", ev.ProposalID),
				logger.String("recruiter", ev.RecruiterEmail),
				logger.Error(err))
			stats, _ = s.engine.Stats(ctx, ev.RecruiterEmail)
			return stats, []model.Achievement{}, nil
		}
	}
	granted, err := s.evaluator.Evaluate(ctx, ev.RecruiterEmail)
	if err != nil {
		s.logger.Warn(ctx, "badge evaluation failed",
			logger.String("recruiter", ev.RecruiterEmail),
			logger.Error(err))
		return stats, []model.Achievement{}, nil
	}
	if len(granted) > 0 {
		if reloaded, err := s.engine.Stats(ctx, ev.RecruiterEmail); err != nil {
			s.logger.Warn(ctx, "reload stats after grant failed",
				logger.String("recruiter", ev.RecruiterEmail),
				logger.Error(err))
		} else {
			stats = reloaded
		}
	}
	return stats, granted, nil
}

// GetProposal returns one proposal.
func (s *Service) GetProposal(ctx context.Context, id string) (proposal.Proposal, error) {
	if err := s.ready(); err != nil {
		return proposal.Proposal{}, err
	}
	return s.store.GetProposal(ctx, id)
}

// DeleteProposal hard-deletes a proposal with its history and recomputes the
// recruiter's stats without it. Once the delete is stored a failed recompute
// is logged and left to the next stats write, which rebuilds from history.
func (s *Service) DeleteProposal(ctx context.Context, id, actor string) error {
	if err := s.ready(); err != nil {
		return err
	}
	p, err := s.store.GetProposal(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProposal(ctx, id); err != nil {
		return fmt.Errorf("delete proposal: %w", err)
	}
	if _, err := s.engine.RefreshStats(ctx, p.RecruiterEmail); err != nil {
		metrics.RecordStatsDeferred()
		s.logger.Error(ctx, "refresh after delete failed",
			logger.String("proposal_id", id),
			logger.String("recruiter", p.RecruiterEmail),
			logger.Error(err))
	}
	s.logger.Info(ctx, "proposal deleted",
		logger.String("proposal_id", id),
		logger.String("recruiter", p.RecruiterEmail),
		logger.String("actor", actor))
	return nil
}

// ListProposals returns the recruiter's proposals.
func (s *Service) ListProposals(ctx context.Context, email string) ([]proposal.Proposal, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.ListProposalsByRecruiter(ctx, proposal.NormalizeEmail(email))
}

// Stats returns the recruiter's aggregate and level progress.
func (s *Service) Stats(ctx context.Context, email string) (StatsView, error) {
	if err := s.ready(); err != nil {
		return StatsView{}, err
	}
	st, err := s.engine.Stats(ctx, proposal.NormalizeEmail(email))
	if err != nil {
		return StatsView{}, err
	}
	return view(st), nil
}

// RefreshStats recomputes the recruiter's aggregate from history.
func (s *Service) RefreshStats(ctx context.Context, email string) (StatsView, error) {
	if err := s.ready(); err != nil {
		return StatsView{}, err
	}
	st, err := s.engine.RefreshStats(ctx, proposal.NormalizeEmail(email))
	if err != nil {
		return StatsView{}, err
	}
	return view(st), nil
}

func view(st model.RecruiterStats) StatsView {
	return StatsView{RecruiterStats: st, AcceptanceRate: st.AcceptanceRate(), Progress: reputation.Progress(st.TotalPoints)}
}

// Achievements returns the recruiter's earned badges.
func (s *Service) Achievements(ctx context.Context, email string) ([]model.Achievement, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.ListAchievements(ctx, proposal.NormalizeEmail(email))
}

// Evaluate grants any newly met badges.
func (s *Service) Evaluate(ctx context.Context, email string) ([]model.Achievement, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.evaluator.Evaluate(ctx, proposal.NormalizeEmail(email))
}

// Badges lists the catalog.
func (s *Service) Badges() []badges.Badge {
	if err := s.ready(); err != nil {
		return nil
	}
	return s.catalog.Badges()
}

// Leaderboard returns the top limit recruiters.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]leaderboard.Entry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.board.Build(ctx, limit)
}

// Position returns one recruiter's leaderboard entry.
func (s *Service) Position(ctx context.Context, email string) (leaderboard.Entry, error) {
	if err := s.ready(); err != nil {
		return leaderboard.Entry{}, err
	}
	return s.board.Position(ctx, proposal.NormalizeEmail(email))
}

// ExportLeaderboard writes the full leaderboard as an xlsx workbook.
func (s *Service) ExportLeaderboard(ctx context.Context, w io.Writer) error {
	entries, err := s.Leaderboard(ctx, 0)
	if err != nil {
		return err
	}
	return export.WriteLeaderboard(w, entries, s.now())
}

// AdjustPoints applies an administrative point correction.
func (s *Service) AdjustPoints(ctx context.Context, email string, delta int64, reason, actor string) (StatsView, error) {
	if err := s.ready(); err != nil {
		return StatsView{}, err
	}
	st, err := s.engine.AdjustPoints(ctx, proposal.NormalizeEmail(email), delta, reason, actor)
	if err != nil {
		return StatsView{}, err
	}
	return view(st), nil
}

// GrantBadge grants a badge regardless of metrics.
func (s *Service) GrantBadge(ctx context.Context, email, badgeID, actor string) (model.Achievement, error) {
	if err := s.ready(); err != nil {
		return model.Achievement{}, err
	}
	return s.evaluator.ForceGrant(ctx, proposal.NormalizeEmail(email), badgeID, actor)
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.store.Ping(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if !s.started {
		return stats
	}

	stats["pendingNotifications"] = s.dispatcher.Pending()
	stats["deliveredNotifications"] = s.dispatcher.Delivered()
	stats["badgeFamilies"] = len(s.catalog.Families())
	if counter, ok := s.store.(interface {
		Count(ctx context.Context) (int, int)
	}); ok {
		proposals, recruiters := counter.Count(context.Background())
		stats["proposals"] = proposals
		stats["recruiters"] = recruiters
		metrics.UpdateProposalsTotal(proposals)
		metrics.UpdateRecruitersTotal(recruiters)
	}
	return stats
}
