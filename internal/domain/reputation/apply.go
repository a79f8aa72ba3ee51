package reputation

import (
	"time"

	"github.com/okian/headhunt/internal/domain/model"
	"github.com/okian/headhunt/internal/domain/proposal"
)

// DefaultStreakWindow is the largest gap between counted events that still
// extends a streak.
const DefaultStreakWindow = 7 * 24 * time.Hour

// Apply folds one transition event into s. It is pure and shared by the
// incremental and the recompute paths, so both produce the same aggregate.
func Apply(s model.RecruiterStats, e proposal.TransitionEvent, table Table, window time.Duration) model.RecruiterStats {
	kind := e.Kind()
	s.TransitionPoints += table.Points(kind)

	switch kind {
	case proposal.KindSubmitted:
		s.TotalProposals++
	case proposal.KindApproved:
		s.AcceptedProposals++
	case proposal.KindHired:
		s.HiredProposals++
	}

	if kind.Counted() {
		s = applyStreak(s, e.OccurredAt, window)
	}
	if e.OccurredAt.After(s.LastActivityAt) {
		s.LastActivityAt = e.OccurredAt
	}
	s.AppliedEvents++
	s.AppliedDigest ^= e.Key().Hash()
	return finalize(s)
}

// Replay recomputes an aggregate from scratch. events must be in history
// order (see proposal.SortEvents). Badge and adjustment points are carried in
// because they do not come from transitions.
func Replay(email string, events []proposal.TransitionEvent, achievements []model.Achievement, adjustments int64, table Table, window time.Duration) model.RecruiterStats {
	s := model.RecruiterStats{Email: email, AdjustmentPoints: adjustments}
	for _, a := range achievements {
		s.BadgePoints += a.Points
	}
	for _, e := range events {
		s = Apply(s, e, table, window)
	}
	// A deduction never takes the total below zero, even after the history
	// it was made against shrank or the points table changed.
	if floor := -(s.TransitionPoints + s.BadgePoints); s.AdjustmentPoints < floor {
		s.AdjustmentPoints = floor
	}
	return finalize(s)
}

// applyStreak updates the streak on UTC calendar days: a second counted event
// on the same day keeps the streak, a later day within window extends it and
// a longer gap restarts it at 1. Events on a day before the last counted day
// are ignored.
func applyStreak(s model.RecruiterStats, at time.Time, window time.Duration) model.RecruiterStats {
	day := utcDay(at)
	switch {
	case s.LastProposalDate.IsZero():
		s.CurrentStreak = 1
	default:
		last := utcDay(s.LastProposalDate)
		switch {
		case day.Before(last):
			return s
		case day.Equal(last):
			if s.CurrentStreak == 0 {
				s.CurrentStreak = 1
			}
		case day.Sub(last) <= window:
			s.CurrentStreak++
		default:
			s.CurrentStreak = 1
		}
	}
	if at.After(s.LastProposalDate) {
		s.LastProposalDate = at
	}
	if s.CurrentStreak > s.BestStreak {
		s.BestStreak = s.CurrentStreak
	}
	return s
}

func finalize(s model.RecruiterStats) model.RecruiterStats {
	s.TotalPoints = s.TransitionPoints + s.BadgePoints + s.AdjustmentPoints
	s.Level = Level(s.TotalPoints)
	return s
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
