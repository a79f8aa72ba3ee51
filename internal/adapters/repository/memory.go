package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/headhunt/internal/domain/model"
	"github.com/okian/headhunt/internal/domain/proposal"
	"github.com/okian/headhunt/pkg/metrics"
)

const backendMemory = "memory"

// MemoryStore implements Store in process memory. It is the default backend
// and the one used by tests.
type MemoryStore struct {
	mu sync.RWMutex

	proposals   map[string]proposal.Proposal
	history     map[string][]proposal.TransitionEvent // proposal id -> rows
	byRecruiter map[string]map[string]struct{}        // email -> proposal ids

	stats        map[string]model.RecruiterStats
	achievements map[string][]model.Achievement

	now func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		proposals:    make(map[string]proposal.Proposal),
		history:      make(map[string][]proposal.TransitionEvent),
		byRecruiter:  make(map[string]map[string]struct{}),
		stats:        make(map[string]model.RecruiterStats),
		achievements: make(map[string][]model.Achievement),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateProposal implements ProposalStore.
func (s *MemoryStore) CreateProposal(ctx context.Context, p proposal.Proposal, created proposal.TransitionEvent) error {
	defer observe(backendMemory, "create_proposal", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.proposals[p.ID]; ok {
		return fmt.Errorf("proposal %s: %w", p.ID, ErrAlreadyExists)
	}
	s.proposals[p.ID] = p
	s.history[p.ID] = []proposal.TransitionEvent{created}
	ids, ok := s.byRecruiter[p.RecruiterEmail]
	if !ok {
		ids = make(map[string]struct{})
		s.byRecruiter[p.RecruiterEmail] = ids
	}
	ids[p.ID] = struct{}{}
	return nil
}

// GetProposal implements ProposalStore.
func (s *MemoryStore) GetProposal(ctx context.Context, id string) (proposal.Proposal, error) {
	defer observe(backendMemory, "get_proposal", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.proposals[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return proposal.Proposal{}, fmt.Errorf("proposal %s: %w", id, ErrNotFound)
	}
	return p, nil
}

// ListProposalsByRecruiter implements ProposalStore.
func (s *MemoryStore) ListProposalsByRecruiter(ctx context.Context, email string) ([]proposal.Proposal, error) {
	defer observe(backendMemory, "list_proposals", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byRecruiter[email]
	out := make([]proposal.Proposal, 0, len(ids))
	for id := range ids {
		out = append(out, s.proposals[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateStatus implements ProposalStore.
func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, from, to proposal.Status, at time.Time, actor string) error {
	defer observe(backendMemory, "update_status", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[id]
	if !ok {
		return fmt.Errorf("proposal %s: %w", id, ErrNotFound)
	}
	if p.Status != from {
		return fmt.Errorf("proposal %s is %s, expected %s: %w", id, p.Status, from, ErrStatusConflict)
	}
	p.Status = to
	p.UpdatedAt = at
	s.proposals[id] = p
	s.history[id] = append(s.history[id], proposal.TransitionEvent{
		ProposalID:     id,
		RecruiterEmail: p.RecruiterEmail,
		OldStatus:      from,
		NewStatus:      to,
		OccurredAt:     at,
		Actor:          actor,
	})
	return nil
}

// DeleteProposal implements ProposalStore.
func (s *MemoryStore) DeleteProposal(ctx context.Context, id string) error {
	defer observe(backendMemory, "delete_proposal", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[id]
	if !ok {
		return fmt.Errorf("proposal %s: %w", id, ErrNotFound)
	}
	delete(s.proposals, id)
	delete(s.history, id)
	if ids := s.byRecruiter[p.RecruiterEmail]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byRecruiter, p.RecruiterEmail)
		}
	}
	return nil
}

// ListTransitionsByRecruiter implements ProposalStore.
func (s *MemoryStore) ListTransitionsByRecruiter(ctx context.Context, email string) ([]proposal.TransitionEvent, error) {
	defer observe(backendMemory, "list_transitions", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []proposal.TransitionEvent
	for id := range s.byRecruiter[email] {
		out = append(out, s.history[id]...)
	}
	proposal.SortEvents(out)
	return out, nil
}

// GetStats implements StatsStore.
func (s *MemoryStore) GetStats(ctx context.Context, email string) (model.RecruiterStats, error) {
	defer observe(backendMemory, "get_stats", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stats[email]
	if !ok {
		return model.RecruiterStats{}, fmt.Errorf("stats for %s: %w", email, ErrNotFound)
	}
	return st, nil
}

// ListStats implements StatsStore.
func (s *MemoryStore) ListStats(ctx context.Context) ([]model.RecruiterStats, error) {
	defer observe(backendMemory, "list_stats", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RecruiterStats, 0, len(s.stats))
	for _, st := range s.stats {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// SaveStats implements StatsStore.
func (s *MemoryStore) SaveStats(ctx context.Context, st model.RecruiterStats, grants ...model.Achievement) (model.RecruiterStats, error) {
	defer observe(backendMemory, "save_stats", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.stats[st.Email]
	switch {
	case st.Version == 0 && exists:
		return model.RecruiterStats{}, fmt.Errorf("stats for %s already created: %w", st.Email, ErrConcurrentModification)
	case st.Version != 0 && (!exists || current.Version != st.Version):
		return model.RecruiterStats{}, fmt.Errorf("stats for %s at version %d: %w", st.Email, st.Version, ErrConcurrentModification)
	}

	held := s.achievements[st.Email]
	for _, g := range grants {
		for _, a := range held {
			if a.BadgeID == g.BadgeID {
				return model.RecruiterStats{}, fmt.Errorf("badge %s for %s: %w", g.BadgeID, st.Email, ErrConcurrentModification)
			}
		}
	}

	st.Version++
	st.UpdatedAt = s.now()
	s.stats[st.Email] = st
	if len(grants) > 0 {
		s.achievements[st.Email] = append(held, grants...)
	}
	return st, nil
}

// ListAchievements implements StatsStore.
func (s *MemoryStore) ListAchievements(ctx context.Context, email string) ([]model.Achievement, error) {
	defer observe(backendMemory, "list_achievements", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Achievement, len(s.achievements[email]))
	copy(out, s.achievements[email])
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].EarnedAt.Equal(out[j].EarnedAt) {
			return out[i].EarnedAt.Before(out[j].EarnedAt)
		}
		return out[i].BadgeID < out[j].BadgeID
	})
	return out, nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// Count returns the number of stored proposals and recruiter rows.
func (s *MemoryStore) Count(ctx context.Context) (proposals int, recruiters int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.proposals), len(s.stats)
}

// observe records the latency of a store call.
func observe(backend, op string, start time.Time) {
	metrics.RecordStoreLatency(backend, op, float64(time.Since(start).Microseconds())/1000)
}
