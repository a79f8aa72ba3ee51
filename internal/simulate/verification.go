package simulate

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/headhunt/pkg/logger"
)

// ErrVerification reports that the service disagrees with the driven workload.
var ErrVerification = errors.New("verification failed")

// verifyRecruiters checks each recruiter's counters against the plan and
// that a full recompute reports the same aggregate.
func verifyRecruiters(ctx context.Context, client *HTTPClient, plan *Plan, stats *Stats) error {
	var errs []error
	for email, exp := range plan.Expectations {
		var got RecruiterStats
		if err := client.do(ctx, http.MethodGet, recruiterPath(email, "/stats"), nil, &got, http.StatusOK); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", email, err))
			continue
		}
		if err := compareCounters(exp, got); err != nil {
			errs = append(errs, err)
			continue
		}

		var refreshed RecruiterStats
		if err := client.do(ctx, http.MethodPost, recruiterPath(email, "/refresh"), nil, &refreshed, http.StatusOK); err != nil {
			errs = append(errs, fmt.Errorf("%s refresh: %w", email, err))
			continue
		}
		if refreshed != got {
			errs = append(errs, fmt.Errorf("%w: %s recompute %+v differs from incremental %+v", ErrVerification, email, refreshed, got))
			continue
		}
		stats.RecruitersVerified++
	}
	return errors.Join(errs...)
}

func compareCounters(exp *Expectation, got RecruiterStats) error {
	if got.TotalProposals != exp.Total || got.AcceptedProposals != exp.Accepted || got.HiredProposals != exp.Hired {
		return fmt.Errorf("%w: %s reports total=%d accepted=%d hired=%d, drove total=%d accepted=%d hired=%d",
			ErrVerification, exp.Email,
			got.TotalProposals, got.AcceptedProposals, got.HiredProposals,
			exp.Total, exp.Accepted, exp.Hired)
	}
	return nil
}

// fetchLeaderboard retrieves the top n entries.
func fetchLeaderboard(ctx context.Context, client *HTTPClient, n int) ([]Entry, error) {
	var entries []Entry
	if err := client.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/leaderboard?limit=%d", n), nil, &entries, http.StatusOK); err != nil {
		return nil, err
	}
	return entries, nil
}

// verifyLeaderboard checks ranks are consecutive from one and that entries
// are ordered by points, acceptance rate, proposals and email.
func verifyLeaderboard(entries []Entry) error {
	for i, e := range entries {
		if e.Rank != i+1 {
			return fmt.Errorf("%w: entry %d (%s) has rank %d", ErrVerification, i, e.Email, e.Rank)
		}
		if e.TotalProposals == 0 {
			return fmt.Errorf("%w: %s ranked without proposals", ErrVerification, e.Email)
		}
		if i > 0 && less(e, entries[i-1]) {
			return fmt.Errorf("%w: %s ranked below %s", ErrVerification, entries[i-1].Email, e.Email)
		}
	}
	return nil
}

// less reports whether a belongs before b.
func less(a, b Entry) bool {
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
}

// displayTopRecruiters logs the head of the leaderboard.
func displayTopRecruiters(ctx context.Context, entries []Entry) {
	const topN = 10
	log := logger.Get().Named("simulate")
	for i, e := range entries {
		if i == topN {
			return
		}
		log.Info(ctx, "leaderboard",
			logger.Int("rank", e.Rank),
			logger.String("recruiter", e.Email),
			logger.Int64("points", e.TotalPoints),
			logger.Float64("acceptance_rate", e.AcceptanceRate))
	}
}
