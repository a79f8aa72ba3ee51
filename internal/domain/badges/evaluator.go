package badges

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/headhunt/internal/domain/model"
	"github.com/okian/headhunt/internal/domain/proposal"
	"github.com/okian/headhunt/internal/domain/reputation"
	"github.com/okian/headhunt/pkg/logger"
	"github.com/okian/headhunt/pkg/metrics"
)

// Source supplies the recruiter data badges are computed from.
type Source interface {
	ListProposalsByRecruiter(ctx context.Context, email string) ([]proposal.Proposal, error)
	ListTransitionsByRecruiter(ctx context.Context, email string) ([]proposal.TransitionEvent, error)
	ListAchievements(ctx context.Context, email string) ([]model.Achievement, error)
}

// StatsWriter is the part of the reputation engine the evaluator writes through.
type StatsWriter interface {
	Stats(ctx context.Context, email string) (model.RecruiterStats, error)
	Update(ctx context.Context, email string, mutate reputation.Mutation) (model.RecruiterStats, error)
}

// errNothingToGrant aborts a stats write that would change nothing.
var errNothingToGrant = errors.New("nothing to grant")

// Evaluator grants achievements from the catalog.
type Evaluator struct {
	catalog *Catalog
	source  Source
	writer  StatsWriter
	metrics map[string]MetricFunc
	now     func() time.Time
	logger  logger.Logger
}

// NewEvaluator creates an evaluator for catalog.
func NewEvaluator(catalog *Catalog, source Source, writer StatsWriter, opts ...Option) *Evaluator {
	e := &Evaluator{
		catalog: catalog,
		source:  source,
		writer:  writer,
		metrics: make(map[string]MetricFunc, len(builtinMetrics)),
		now:     time.Now,
		logger:  logger.Get().Named("badges"),
	}
	for name, fn := range builtinMetrics {
		e.metrics[name] = fn
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog the evaluator grants from.
func (e *Evaluator) Catalog() *Catalog { return e.catalog }

// Evaluate computes every family for the recruiter and grants the highest
// newly met tier of each. Failing families are logged and skipped. All grants
// and their points land in one stats write. Without new activity a second
// call grants nothing.
func (e *Evaluator) Evaluate(ctx context.Context, email string) ([]model.Achievement, error) {
	in, err := e.input(ctx, email)
	if err != nil {
		return nil, err
	}

	var candidates []Badge
	for _, fam := range e.catalog.Families() {
		b, ok, err := e.evaluateFamily(fam, in)
		if err != nil {
			metrics.RecordEvaluationFailure(fam.Name)
			e.logger.Warn(ctx, "badge family skipped",
				logger.String("recruiter", email),
				logger.String("family", fam.Name),
				logger.Error(err))
			continue
		}
		if ok {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return []model.Achievement{}, nil
	}

	granted, err := e.grant(ctx, email, candidates)
	if err != nil {
		return nil, err
	}
	for _, a := range granted {
		metrics.RecordBadgeGranted(a.Family, a.Tier)
		e.logger.Info(ctx, "badge granted",
			logger.String("recruiter", email),
			logger.String("badge", a.BadgeID))
	}
	return granted, nil
}

// ForceGrant grants badgeID regardless of metrics. The pair stays unique and
// the points are credited once.
func (e *Evaluator) ForceGrant(ctx context.Context, email, badgeID, actor string) (model.Achievement, error) {
	b, ok := e.catalog.Badge(badgeID)
	if !ok {
		return model.Achievement{}, fmt.Errorf("%w: %s", ErrUnknownBadge, badgeID)
	}

	var granted model.Achievement
	_, err := e.writer.Update(ctx, email, func(ctx context.Context, cur model.RecruiterStats) (model.RecruiterStats, []model.Achievement, error) {
		have, err := e.source.ListAchievements(ctx, email)
		if err != nil {
			return model.RecruiterStats{}, nil, fmt.Errorf("load achievements: %w", err)
		}
		for _, a := range have {
			if a.BadgeID == badgeID {
				return model.RecruiterStats{}, nil, fmt.Errorf("%w: %s for %s", ErrAlreadyGranted, badgeID, email)
			}
		}
		granted = e.achievement(email, b, actor)
		cur.BadgePoints += granted.Points
		return cur, []model.Achievement{granted}, nil
	})
	if err != nil {
		return model.Achievement{}, err
	}

	metrics.RecordBadgeGranted(b.Family, string(b.Tier))
	e.logger.Info(ctx, "badge force granted",
		logger.String("recruiter", email),
		logger.String("badge", badgeID),
		logger.String("actor", actor))
	return granted, nil
}

// grant writes the candidates the recruiter does not already cover with an
// equal or higher tier.
func (e *Evaluator) grant(ctx context.Context, email string, candidates []Badge) ([]model.Achievement, error) {
	var granted []model.Achievement
	_, err := e.writer.Update(ctx, email, func(ctx context.Context, cur model.RecruiterStats) (model.RecruiterStats, []model.Achievement, error) {
		granted = nil
		have, err := e.source.ListAchievements(ctx, email)
		if err != nil {
			return model.RecruiterStats{}, nil, fmt.Errorf("load achievements: %w", err)
		}
		best := make(map[string]int)
		for _, a := range have {
			if r := Tier(a.Tier).Rank(); r > best[a.Family] {
				best[a.Family] = r
			}
		}
		for _, b := range candidates {
			if b.Tier.Rank() <= best[b.Family] {
				continue
			}
			a := e.achievement(email, b, "")
			cur.BadgePoints += a.Points
			granted = append(granted, a)
		}
		if len(granted) == 0 {
			return model.RecruiterStats{}, nil, errNothingToGrant
		}
		return cur, granted, nil
	})
	if errors.Is(err, errNothingToGrant) {
		return []model.Achievement{}, nil
	}
	if err != nil {
		return nil, err
	}
	return granted, nil
}

// evaluateFamily returns the highest tier of fam met by in. A panicking
// metric is reported as an error.
func (e *Evaluator) evaluateFamily(fam Family, in Input) (best Badge, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", ErrEvaluationFailure, fam.Name, r)
			ok = false
		}
	}()

	if len(fam.Badges) == 0 {
		return Badge{}, false, nil
	}
	metric := fam.Badges[0].Metric
	fn, found := e.metrics[metric]
	if !found {
		return Badge{}, false, fmt.Errorf("%w: %s uses unknown metric %s", ErrEvaluationFailure, fam.Name, metric)
	}
	value, sample, err := fn(in)
	if err != nil {
		return Badge{}, false, fmt.Errorf("%w: %s: %v", ErrEvaluationFailure, fam.Name, err)
	}
	if sample < fam.Badges[0].MinSample {
		return Badge{}, false, nil
	}
	// at_most metrics need at least one observation to be meaningful.
	if fam.Badges[0].Direction == AtMost && sample == 0 {
		return Badge{}, false, nil
	}
	for _, b := range fam.Badges {
		if b.Direction.Met(value, b.Threshold) {
			best, ok = b, true
		}
	}
	return best, ok, nil
}

func (e *Evaluator) input(ctx context.Context, email string) (Input, error) {
	stats, err := e.writer.Stats(ctx, email)
	if err != nil {
		return Input{}, fmt.Errorf("load stats: %w", err)
	}
	proposals, err := e.source.ListProposalsByRecruiter(ctx, email)
	if err != nil {
		return Input{}, fmt.Errorf("load proposals: %w", err)
	}
	history, err := e.source.ListTransitionsByRecruiter(ctx, email)
	if err != nil {
		return Input{}, fmt.Errorf("load history: %w", err)
	}
	return Input{Stats: stats, Proposals: proposals, History: history, Now: e.now()}, nil
}

func (e *Evaluator) achievement(email string, b Badge, actor string) model.Achievement {
	return model.Achievement{
		RecruiterEmail: email,
		BadgeID:        b.ID,
		Family:         b.Family,
		Tier:           string(b.Tier),
		Points:         b.Points,
		EarnedAt:       e.now(),
		GrantedBy:      actor,
	}
}
