// Package repository defines the proposal and reputation store contracts and
// their in-memory and Postgres implementations.
package repository

import (
	"context"
	"time"

	"github.com/okian/headhunt/internal/domain/model"
	"github.com/okian/headhunt/internal/domain/proposal"
)

// ProposalStore holds proposals and their transition history. It carries no
// business rules beyond the compare-and-set in UpdateStatus.
type ProposalStore interface {
	// CreateProposal stores p together with its creation event.
	// Returns ErrAlreadyExists if the id is taken.
	CreateProposal(ctx context.Context, p proposal.Proposal, created proposal.TransitionEvent) error

	// GetProposal returns ErrNotFound for unknown ids.
	GetProposal(ctx context.Context, id string) (proposal.Proposal, error)

	// ListProposalsByRecruiter returns the recruiter's proposals ordered by creation.
	ListProposalsByRecruiter(ctx context.Context, email string) ([]proposal.Proposal, error)

	// UpdateStatus moves proposal id from `from` to `to` at `at` and appends a
	// history row. Returns ErrNotFound for unknown ids and ErrStatusConflict when
	// the stored status is no longer `from`.
	UpdateStatus(ctx context.Context, id string, from, to proposal.Status, at time.Time, actor string) error

	// DeleteProposal hard-deletes a proposal and its history.
	DeleteProposal(ctx context.Context, id string) error

	// ListTransitionsByRecruiter returns the full history of the recruiter's
	// proposals in chronological order.
	ListTransitionsByRecruiter(ctx context.Context, email string) ([]proposal.TransitionEvent, error)
}

// StatsStore holds recruiter aggregates and achievements.
type StatsStore interface {
	// GetStats returns ErrNotFound when the recruiter has no row yet.
	GetStats(ctx context.Context, email string) (model.RecruiterStats, error)

	// ListStats returns every stored row.
	ListStats(ctx context.Context) ([]model.RecruiterStats, error)

	// SaveStats writes s if the stored version still equals s.Version (0 means
	// the row must not exist), inserting grants in the same atomic step. The
	// stored row is returned with its new version. Returns
	// ErrConcurrentModification when the version moved or a grant already exists.
	SaveStats(ctx context.Context, s model.RecruiterStats, grants ...model.Achievement) (model.RecruiterStats, error)

	// ListAchievements returns the recruiter's achievements ordered by earned time.
	ListAchievements(ctx context.Context, email string) ([]model.Achievement, error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	ProposalStore
	StatsStore
	Ping(ctx context.Context) error
	Close() error
}
