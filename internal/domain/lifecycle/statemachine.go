// Package lifecycle validates and applies proposal status transitions.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/headhunt/internal/adapters/repository"
	"github.com/okian/headhunt/internal/domain/model"
	"github.com/okian/headhunt/internal/domain/proposal"
	"github.com/okian/headhunt/pkg/logger"
	"github.com/okian/headhunt/pkg/metrics"
)

// Store is the proposal persistence the state machine needs.
type Store interface {
	CreateProposal(ctx context.Context, p proposal.Proposal, created proposal.TransitionEvent) error
	GetProposal(ctx context.Context, id string) (proposal.Proposal, error)
	UpdateStatus(ctx context.Context, id string, from, to proposal.Status, at time.Time, actor string) error
}

// Notifier receives a notification after each successful transition. It
// must not block; false means the notification was dropped.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) bool
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, model.Notification) bool { return true }

// StateMachine applies transitions to single proposals.
type StateMachine struct {
	store    Store
	notifier Notifier
	now      func() time.Time
	newID    func() string
	logger   logger.Logger
}

// New creates a state machine over store.
func New(store Store, opts ...Option) *StateMachine {
	m := &StateMachine{
		store:    store,
		notifier: nopNotifier{},
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logger.Get().Named("lifecycle"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Submit validates p and stores it as pending. It returns the stored
// proposal and the synthetic creation event.
func (m *StateMachine) Submit(ctx context.Context, p proposal.Proposal, actor string) (proposal.Proposal, proposal.TransitionEvent, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return proposal.Proposal{}, proposal.TransitionEvent{}, err
	}
	if p.ID == "" {
		p.ID = m.newID()
	}
	now := stamp(m.now())
	p.Status = proposal.StatusPending
	p.CreatedAt, p.UpdatedAt = now, now
	if actor == "" {
		actor = p.RecruiterEmail
	}

	ev := proposal.TransitionEvent{
		ProposalID:     p.ID,
		RecruiterEmail: p.RecruiterEmail,
		NewStatus:      proposal.StatusPending,
		OccurredAt:     now,
		Actor:          actor,
	}
	if err := m.store.CreateProposal(ctx, p, ev); err != nil {
		return proposal.Proposal{}, proposal.TransitionEvent{}, fmt.Errorf("create proposal: %w", err)
	}

	metrics.RecordTransition("", string(proposal.StatusPending))
	m.logger.Info(ctx, "proposal submitted",
		logger.String("proposal_id", p.ID),
		logger.String("recruiter", p.RecruiterEmail),
		logger.String("sector", p.Sector))
	m.notify(ctx, p, ev)
	return p, ev, nil
}

// ApplyTransition moves a proposal to next. Nothing is written when the
// status is unknown, the edge is not allowed, or a concurrent writer moved
// the proposal first; the loser gets the state it lost against.
func (m *StateMachine) ApplyTransition(ctx context.Context, proposalID string, next proposal.Status, actor string) (proposal.TransitionEvent, error) {
	if !next.Valid() {
		metrics.RecordInvalidTransition()
		return proposal.TransitionEvent{}, &proposal.TransitionError{ProposalID: proposalID, To: next, Reason: fmt.Sprintf("unknown status %q", next)}
	}

	p, err := m.store.GetProposal(ctx, proposalID)
	if err != nil {
		return proposal.TransitionEvent{}, fmt.Errorf("load proposal: %w", err)
	}
	if !proposal.CanTransition(p.Status, next) {
		metrics.RecordInvalidTransition()
		return proposal.TransitionEvent{}, &proposal.TransitionError{ProposalID: proposalID, From: p.Status, To: next}
	}

	at := stamp(m.now())
	err = m.store.UpdateStatus(ctx, proposalID, p.Status, next, at, actor)
	if errors.Is(err, repository.ErrStatusConflict) {
		metrics.RecordInvalidTransition()
		return proposal.TransitionEvent{}, m.lostRace(ctx, proposalID, p.Status, next)
	}
	if err != nil {
		return proposal.TransitionEvent{}, fmt.Errorf("update status: %w", err)
	}

	ev := proposal.TransitionEvent{
		ProposalID:     proposalID,
		RecruiterEmail: p.RecruiterEmail,
		OldStatus:      p.Status,
		NewStatus:      next,
		OccurredAt:     at,
		Actor:          actor,
	}
	metrics.RecordTransition(string(p.Status), string(next))
	m.logger.Info(ctx, "proposal transitioned",
		logger.String("proposal_id", proposalID),
		logger.String("from", string(p.Status)),
		logger.String("to", string(next)),
		logger.String("actor", actor))
	m.notify(ctx, p, ev)
	return ev, nil
}

// stamp normalises event times to UTC at the precision the stores keep.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// lostRace describes the state a losing writer ran into.
func (m *StateMachine) lostRace(ctx context.Context, id string, read, next proposal.Status) error {
	current, err := m.store.GetProposal(ctx, id)
	if err != nil {
		return fmt.Errorf("reload proposal: %w", err)
	}
	te := &proposal.TransitionError{ProposalID: id, From: current.Status, To: next}
	switch {
	case current.Status.Terminal():
		te.Reason = fmt.Sprintf("proposal already %s", current.Status)
	default:
		te.Reason = fmt.Sprintf("proposal moved from %s to %s concurrently", read, current.Status)
	}
	m.logger.Debug(ctx, "transition lost to concurrent writer",
		logger.String("proposal_id", id),
		logger.String("current", string(current.Status)))
	return te
}

func (m *StateMachine) notify(ctx context.Context, p proposal.Proposal, ev proposal.TransitionEvent) {
	n := model.Notification{
		ProposalID:     p.ID,
		RecruiterEmail: p.RecruiterEmail,
		CompanyEmail:   p.CompanyEmail,
		OldStatus:      ev.OldStatus,
		NewStatus:      ev.NewStatus,
		CandidateName:  p.CandidateName,
		OccurredAt:     ev.OccurredAt,
	}
	if !m.notifier.Notify(ctx, n) {
		m.logger.Warn(ctx, "notification dropped",
			logger.String("proposal_id", p.ID),
			logger.String("status", string(ev.NewStatus)))
	}
}
