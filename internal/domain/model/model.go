// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"

	"github.com/okian/headhunt/internal/domain/proposal"
)

// RecruiterStats is the reputation aggregate of one recruiter. It is written
// only by the reputation engine.
type RecruiterStats struct {
	Email             string    `json:"email"`
	TotalPoints       int64     `json:"total_points"`
	Level             int       `json:"level"`
	TotalProposals    int       `json:"total_proposals"`
	AcceptedProposals int       `json:"accepted_proposals"`
	HiredProposals    int       `json:"hired_proposals"`
	CurrentStreak     int       `json:"current_streak"`
	BestStreak        int       `json:"best_streak"`
	LastProposalDate  time.Time `json:"last_proposal_date,omitempty"`
	LastActivityAt    time.Time `json:"last_activity_at,omitempty"`

	// Point breakdown; TotalPoints is their sum.
	TransitionPoints int64 `json:"transition_points"`
	BadgePoints      int64 `json:"badge_points"`
	AdjustmentPoints int64 `json:"adjustment_points"`

	// AppliedEvents counts the history rows folded into the aggregate and
	// AppliedDigest is the XOR of their key hashes.
	AppliedEvents int    `json:"applied_events"`
	AppliedDigest uint64 `json:"-"`

	// Version is the optimistic-lock counter; 0 means the row was never stored.
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// AcceptanceRate returns accepted/total, or 0 without proposals.
func (s RecruiterStats) AcceptanceRate() float64 {
	if s.TotalProposals == 0 {
		return 0
	}
	return float64(s.AcceptedProposals) / float64(s.TotalProposals)
}

// Check verifies the stored invariants of the aggregate.
func (s RecruiterStats) Check() error {
	switch {
	case s.TotalPoints < 0:
		return fmt.Errorf("total_points %d is negative", s.TotalPoints)
	case s.TotalPoints != s.TransitionPoints+s.BadgePoints+s.AdjustmentPoints:
		return fmt.Errorf("total_points %d does not match its breakdown", s.TotalPoints)
	case s.AcceptedProposals > s.TotalProposals:
		return fmt.Errorf("accepted_proposals %d exceeds total_proposals %d", s.AcceptedProposals, s.TotalProposals)
	case s.HiredProposals > s.AcceptedProposals:
		return fmt.Errorf("hired_proposals %d exceeds accepted_proposals %d", s.HiredProposals, s.AcceptedProposals)
	case s.CurrentStreak > s.BestStreak:
		return fmt.Errorf("current_streak %d exceeds best_streak %d", s.CurrentStreak, s.BestStreak)
	case s.AppliedEvents < 0:
		return fmt.Errorf("applied_events %d is negative", s.AppliedEvents)
	}
	return nil
}

// Achievement is a badge earned by a recruiter. It is never removed.
type Achievement struct {
	RecruiterEmail string    `json:"recruiter_email"`
	BadgeID        string    `json:"badge_id"`
	Family         string    `json:"family"`
	Tier           string    `json:"tier"`
	Points         int64     `json:"points"`
	EarnedAt       time.Time `json:"earned_at"`
	GrantedBy      string    `json:"granted_by,omitempty"`
}

// Notification is what the dispatcher hands to a notification sink after a
// successful transition.
type Notification struct {
	ProposalID     string          `json:"proposal_id"`
	RecruiterEmail string          `json:"recruiter_email"`
	CompanyEmail   string          `json:"company_email"`
	OldStatus      proposal.Status `json:"old_status"`
	NewStatus      proposal.Status `json:"new_status"`
	CandidateName  string          `json:"candidate_name"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// Key identifies the notification for deduplication.
func (n Notification) Key() string {
	return n.ProposalID + ":" + string(n.NewStatus)
}
