package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/headhunt/internal/domain/model"
	"github.com/okian/headhunt/internal/domain/proposal"
	"github.com/okian/headhunt/pkg/logger"
	"github.com/okian/headhunt/pkg/metrics"
)

const backendPostgres = "postgres"

// psql builds statements with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var proposalColumns = []string{
	"id", "recruiter_email", "company_email", "job_offer_id", "job_published_at",
	"candidate_name", "candidate_email", "candidate_phone", "cv_url", "description",
	"sector", "years_experience", "expected_salary", "recruiter_fee_percentage",
	"status", "created_at", "updated_at",
}

var transitionColumns = []string{
	"proposal_id", "recruiter_email", "old_status", "new_status", "occurred_at", "actor",
}

var statsColumns = []string{
	"email", "total_points", "level", "total_proposals", "accepted_proposals",
	"hired_proposals", "current_streak", "best_streak", "last_proposal_date",
	"last_activity_at", "transition_points", "badge_points", "adjustment_points",
	"applied_events", "applied_digest",
	"version", "updated_at",
}

var achievementColumns = []string{
	"recruiter_email", "badge_id", "family", "tier", "points", "earned_at", "granted_by",
}

// PostgresStore implements Store on PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  logger.Logger
	now  func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn, verifies the connection and optionally
// applies the embedded migrations.
func NewPostgresStore(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	o := postgresOptions{
		maxConns:    25,
		minConns:    5,
		maxLifetime: 30 * time.Minute,
		migrate:     true,
		logger:      logger.Get(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolConfig.MaxConns = o.maxConns
	poolConfig.MinConns = o.minConns
	poolConfig.MaxConnLifetime = o.maxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log := o.logger.Named("postgres")
	if o.migrate {
		if err := RunMigrations(ctx, pool, log); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return &PostgresStore{pool: pool, log: log, now: o.now}, nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// CreateProposal implements ProposalStore.
func (s *PostgresStore) CreateProposal(ctx context.Context, p proposal.Proposal, created proposal.TransitionEvent) error {
	defer observe(backendPostgres, "create_proposal", time.Now())

	insertProposal, args, err := insertProposalQuery(p).ToSql()
	if err != nil {
		return fmt.Errorf("build insert proposal: %w", err)
	}

	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertProposal, args...); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("proposal %s: %w", p.ID, ErrAlreadyExists)
			}
			return fmt.Errorf("insert proposal: %w", err)
		}
		return insertTransition(ctx, tx, created)
	})
}

// GetProposal implements ProposalStore.
func (s *PostgresStore) GetProposal(ctx context.Context, id string) (proposal.Proposal, error) {
	defer observe(backendPostgres, "get_proposal", time.Now())

	query, args, err := psql.Select(proposalColumns...).From("proposals").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("build select proposal: %w", err)
	}

	p, err := scanProposal(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			metrics.RecordErrorByComponent("repository", "not_found")
			return proposal.Proposal{}, fmt.Errorf("proposal %s: %w", id, ErrNotFound)
		}
		return proposal.Proposal{}, fmt.Errorf("get proposal: %w", err)
	}
	return p, nil
}

// ListProposalsByRecruiter implements ProposalStore.
func (s *PostgresStore) ListProposalsByRecruiter(ctx context.Context, email string) ([]proposal.Proposal, error) {
	defer observe(backendPostgres, "list_proposals", time.Now())

	query, args, err := psql.Select(proposalColumns...).
		From("proposals").
		Where(sq.Eq{"recruiter_email": email}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list proposals: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	out := []proposal.Proposal{}
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateStatus implements ProposalStore.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, from, to proposal.Status, at time.Time, actor string) error {
	defer observe(backendPostgres, "update_status", time.Now())

	query, args, err := psql.Update("proposals").
		Set("status", string(to)).
		Set("updated_at", at).
		Where(sq.Eq{"id": id, "status": string(from)}).
		Suffix("RETURNING recruiter_email").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update status: %w", err)
	}

	return s.inTx(ctx, func(tx pgx.Tx) error {
		var recruiter string
		err := tx.QueryRow(ctx, query, args...).Scan(&recruiter)
		if errors.Is(err, pgx.ErrNoRows) {
			var current string
			err := tx.QueryRow(ctx, `SELECT status FROM proposals WHERE id = $1`, id).Scan(&current)
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("proposal %s: %w", id, ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("reload status: %w", err)
			}
			return fmt.Errorf("proposal %s is %s, expected %s: %w", id, current, from, ErrStatusConflict)
		}
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		return insertTransition(ctx, tx, proposal.TransitionEvent{
			ProposalID:     id,
			RecruiterEmail: recruiter,
			OldStatus:      from,
			NewStatus:      to,
			OccurredAt:     at,
			Actor:          actor,
		})
	})
}

// DeleteProposal implements ProposalStore. History rows go with the
// proposal through ON DELETE CASCADE.
func (s *PostgresStore) DeleteProposal(ctx context.Context, id string) error {
	defer observe(backendPostgres, "delete_proposal", time.Now())

	query, args, err := psql.Delete("proposals").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete proposal: %w", err)
	}
	result, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete proposal: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("proposal %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListTransitionsByRecruiter implements ProposalStore.
func (s *PostgresStore) ListTransitionsByRecruiter(ctx context.Context, email string) ([]proposal.TransitionEvent, error) {
	defer observe(backendPostgres, "list_transitions", time.Now())

	query, args, err := psql.Select(transitionColumns...).
		From("proposal_transitions").
		Where(sq.Eq{"recruiter_email": email}).
		OrderBy("occurred_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list transitions: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []proposal.TransitionEvent
	for rows.Next() {
		var (
			e        proposal.TransitionEvent
			old, next string
		)
		if err := rows.Scan(&e.ProposalID, &e.RecruiterEmail, &old, &next, &e.OccurredAt, &e.Actor); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		e.OldStatus = proposal.Status(old)
		e.NewStatus = proposal.Status(next)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	proposal.SortEvents(out)
	return out, nil
}

// GetStats implements StatsStore.
func (s *PostgresStore) GetStats(ctx context.Context, email string) (model.RecruiterStats, error) {
	defer observe(backendPostgres, "get_stats", time.Now())

	query, args, err := psql.Select(statsColumns...).From("recruiter_stats").Where(sq.Eq{"email": email}).ToSql()
	if err != nil {
		return model.RecruiterStats{}, fmt.Errorf("build select stats: %w", err)
	}
	st, err := scanStats(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.RecruiterStats{}, fmt.Errorf("stats for %s: %w", email, ErrNotFound)
		}
		return model.RecruiterStats{}, fmt.Errorf("get stats: %w", err)
	}
	return st, nil
}

// ListStats implements StatsStore.
func (s *PostgresStore) ListStats(ctx context.Context) ([]model.RecruiterStats, error) {
	defer observe(backendPostgres, "list_stats", time.Now())

	query, args, err := psql.Select(statsColumns...).From("recruiter_stats").OrderBy("email ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list stats: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stats: %w", err)
	}
	defer rows.Close()

	out := []model.RecruiterStats{}
	for rows.Next() {
		st, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// SaveStats implements StatsStore.
func (s *PostgresStore) SaveStats(ctx context.Context, st model.RecruiterStats, grants ...model.Achievement) (model.RecruiterStats, error) {
	defer observe(backendPostgres, "save_stats", time.Now())

	expected := st.Version
	st.Version++
	st.UpdatedAt = s.now()

	write, err := saveStatsQuery(st, expected)
	if err != nil {
		return model.RecruiterStats{}, err
	}

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, write.query, write.args...)
		if err != nil {
			return fmt.Errorf("write stats: %w", err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("stats for %s at version %d: %w", st.Email, expected, ErrConcurrentModification)
		}
		for _, g := range grants {
			query, args, err := insertAchievementQuery(g).ToSql()
			if err != nil {
				return fmt.Errorf("build insert achievement: %w", err)
			}
			result, err := tx.Exec(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("insert achievement: %w", err)
			}
			if result.RowsAffected() == 0 {
				return fmt.Errorf("badge %s for %s: %w", g.BadgeID, st.Email, ErrConcurrentModification)
			}
		}
		return nil
	})
	if err != nil {
		return model.RecruiterStats{}, err
	}
	return st, nil
}

// ListAchievements implements StatsStore.
func (s *PostgresStore) ListAchievements(ctx context.Context, email string) ([]model.Achievement, error) {
	defer observe(backendPostgres, "list_achievements", time.Now())

	query, args, err := psql.Select(achievementColumns...).
		From("recruiter_achievements").
		Where(sq.Eq{"recruiter_email": email}).
		OrderBy("earned_at ASC", "badge_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list achievements: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	out := []model.Achievement{}
	for rows.Next() {
		var a model.Achievement
		if err := rows.Scan(&a.RecruiterEmail, &a.BadgeID, &a.Family, &a.Tier, &a.Points, &a.EarnedAt, &a.GrantedBy); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.log.Warn(ctx, "rollback failed", logger.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type statement struct {
	query string
	args  []interface{}
}

func insertProposalQuery(p proposal.Proposal) sq.InsertBuilder {
	return psql.Insert("proposals").Columns(proposalColumns...).Values(
		p.ID, p.RecruiterEmail, p.CompanyEmail, p.JobOfferID, p.JobPublishedAt,
		p.CandidateName, p.CandidateEmail, p.CandidatePhone, p.CVURL, p.Description,
		p.Sector, p.YearsExperience, p.ExpectedSalary, p.RecruiterFeePercentage,
		string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
}

func insertTransitionQuery(e proposal.TransitionEvent) sq.InsertBuilder {
	return psql.Insert("proposal_transitions").Columns(transitionColumns...).Values(
		e.ProposalID, e.RecruiterEmail, string(e.OldStatus), string(e.NewStatus), e.OccurredAt, e.Actor,
	)
}

func insertAchievementQuery(a model.Achievement) sq.InsertBuilder {
	return psql.Insert("recruiter_achievements").Columns(achievementColumns...).Values(
		a.RecruiterEmail, a.BadgeID, a.Family, a.Tier, a.Points, a.EarnedAt, a.GrantedBy,
	).Suffix("ON CONFLICT (recruiter_email, badge_id) DO NOTHING")
}

// saveStatsQuery builds the versioned write for st. expected is the version
// the caller read; 0 inserts a new row and loses to any existing one.
func saveStatsQuery(st model.RecruiterStats, expected int64) (statement, error) {
	values := []interface{}{
		st.Email, st.TotalPoints, st.Level, st.TotalProposals, st.AcceptedProposals,
		st.HiredProposals, st.CurrentStreak, st.BestStreak, nullTime(st.LastProposalDate),
		nullTime(st.LastActivityAt), st.TransitionPoints, st.BadgePoints, st.AdjustmentPoints,
		st.AppliedEvents, int64(st.AppliedDigest),
		st.Version, st.UpdatedAt,
	}

	var (
		query string
		args  []interface{}
		err   error
	)
	if expected == 0 {
		query, args, err = psql.Insert("recruiter_stats").
			Columns(statsColumns...).
			Values(values...).
			Suffix("ON CONFLICT (email) DO NOTHING").
			ToSql()
	} else {
		update := psql.Update("recruiter_stats")
		for i, col := range statsColumns[1:] {
			update = update.Set(col, values[i+1])
		}
		query, args, err = update.Where(sq.Eq{"email": st.Email, "version": expected}).ToSql()
	}
	if err != nil {
		return statement{}, fmt.Errorf("build save stats: %w", err)
	}
	return statement{query: query, args: args}, nil
}

func insertTransition(ctx context.Context, tx pgx.Tx, e proposal.TransitionEvent) error {
	query, args, err := insertTransitionQuery(e).ToSql()
	if err != nil {
		return fmt.Errorf("build insert transition: %w", err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

func scanProposal(row pgx.Row) (proposal.Proposal, error) {
	var (
		p      proposal.Proposal
		status string
	)
	err := row.Scan(
		&p.ID, &p.RecruiterEmail, &p.CompanyEmail, &p.JobOfferID, &p.JobPublishedAt,
		&p.CandidateName, &p.CandidateEmail, &p.CandidatePhone, &p.CVURL, &p.Description,
		&p.Sector, &p.YearsExperience, &p.ExpectedSalary, &p.RecruiterFeePercentage,
		&status, &p.CreatedAt, &p.UpdatedAt,
	)
	p.Status = proposal.Status(status)
	return p, err
}

func scanStats(row pgx.Row) (model.RecruiterStats, error) {
	var (
		st                         model.RecruiterStats
		lastProposal, lastActivity *time.Time
		digest                     int64
	)
	err := row.Scan(
		&st.Email, &st.TotalPoints, &st.Level, &st.TotalProposals, &st.AcceptedProposals,
		&st.HiredProposals, &st.CurrentStreak, &st.BestStreak, &lastProposal,
		&lastActivity, &st.TransitionPoints, &st.BadgePoints, &st.AdjustmentPoints,
		&st.AppliedEvents, &digest,
		&st.Version, &st.UpdatedAt,
	)
	st.AppliedDigest = uint64(digest)
	if lastProposal != nil {
		st.LastProposalDate = *lastProposal
	}
	if lastActivity != nil {
		st.LastActivityAt = *lastActivity
	}
	return st, err
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
