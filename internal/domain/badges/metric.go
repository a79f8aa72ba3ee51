package badges

import (
	"sort"
	"time"

	"github.com/okian/headhunt/internal/domain/model"
	"github.com/okian/headhunt/internal/domain/proposal"
)

// Metric thresholds that are part of a metric's definition rather than a
// tier threshold.
const (
	retentionAge      = 90 * 24 * time.Hour
	fastApprovalLimit = 72 * time.Hour
	seniorYears       = 8
)

// Input is the recruiter data every metric reads from.
type Input struct {
	Stats     model.RecruiterStats
	Proposals []proposal.Proposal
	History   []proposal.TransitionEvent
	Now       time.Time
}

// MetricFunc computes a metric value and the sample size it rests on.
// Families with a min_sample compare it against sample.
type MetricFunc func(in Input) (value float64, sample int, err error)

var builtinMetrics = map[string]MetricFunc{
	"close_rate":           closeRate,
	"shortlist_rate":       shortlistRate,
	"hires":                hires,
	"retained_hires":       retainedHires,
	"distinct_clients":     distinctClients,
	"fast_approvals":       fastApprovals,
	"median_reply_hours":   medianReplyHours,
	"complete_submissions": completeSubmissions,
	"best_streak":          bestStreak,
	"senior_accepted":      seniorAccepted,
	"distinct_sectors":     distinctSectors,
	"rejection_rate":       rejectionRate,
}

// KnownMetric reports whether name is a built-in metric.
func KnownMetric(name string) bool {
	_, ok := builtinMetrics[name]
	return ok
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func closeRate(in Input) (float64, int, error) {
	return ratio(in.Stats.HiredProposals, in.Stats.AcceptedProposals), in.Stats.AcceptedProposals, nil
}

func shortlistRate(in Input) (float64, int, error) {
	return ratio(in.Stats.AcceptedProposals, in.Stats.TotalProposals), in.Stats.TotalProposals, nil
}

func hires(in Input) (float64, int, error) {
	return float64(in.Stats.HiredProposals), in.Stats.HiredProposals, nil
}

func retainedHires(in Input) (float64, int, error) {
	n := 0
	for _, e := range in.History {
		if e.NewStatus == proposal.StatusHired && in.Now.Sub(e.OccurredAt) > retentionAge {
			n++
		}
	}
	return float64(n), n, nil
}

// acceptedIDs returns the proposals that ever reached approved.
func acceptedIDs(history []proposal.TransitionEvent) map[string]bool {
	ids := make(map[string]bool)
	for _, e := range history {
		if e.NewStatus == proposal.StatusApproved {
			ids[e.ProposalID] = true
		}
	}
	return ids
}

func distinctClients(in Input) (float64, int, error) {
	accepted := acceptedIDs(in.History)
	companies := make(map[string]bool)
	for _, p := range in.Proposals {
		if accepted[p.ID] && p.CompanyEmail != "" {
			companies[p.CompanyEmail] = true
		}
	}
	return float64(len(companies)), len(companies), nil
}

func fastApprovals(in Input) (float64, int, error) {
	submittedAt := make(map[string]time.Time)
	for _, e := range in.History {
		if e.Kind() == proposal.KindSubmitted {
			submittedAt[e.ProposalID] = e.OccurredAt
		}
	}
	n := 0
	for _, e := range in.History {
		if e.NewStatus != proposal.StatusApproved {
			continue
		}
		if at, ok := submittedAt[e.ProposalID]; ok && e.OccurredAt.Sub(at) <= fastApprovalLimit {
			n++
		}
	}
	return float64(n), n, nil
}

func medianReplyHours(in Input) (float64, int, error) {
	var hours []float64
	for _, p := range in.Proposals {
		if p.JobPublishedAt == nil || p.CreatedAt.Before(*p.JobPublishedAt) {
			continue
		}
		hours = append(hours, p.CreatedAt.Sub(*p.JobPublishedAt).Hours())
	}
	if len(hours) == 0 {
		return 0, 0, nil
	}
	sort.Float64s(hours)
	mid := len(hours) / 2
	if len(hours)%2 == 1 {
		return hours[mid], len(hours), nil
	}
	return (hours[mid-1] + hours[mid]) / 2, len(hours), nil
}

func completeSubmissions(in Input) (float64, int, error) {
	n := 0
	for _, p := range in.Proposals {
		if p.Complete() {
			n++
		}
	}
	return float64(n), n, nil
}

func bestStreak(in Input) (float64, int, error) {
	return float64(in.Stats.BestStreak), in.Stats.BestStreak, nil
}

func seniorAccepted(in Input) (float64, int, error) {
	accepted := acceptedIDs(in.History)
	n := 0
	for _, p := range in.Proposals {
		if accepted[p.ID] && p.YearsExperience >= seniorYears {
			n++
		}
	}
	return float64(n), n, nil
}

func distinctSectors(in Input) (float64, int, error) {
	accepted := acceptedIDs(in.History)
	sectors := make(map[string]bool)
	for _, p := range in.Proposals {
		if accepted[p.ID] && p.Sector != "" {
			sectors[p.Sector] = true
		}
	}
	return float64(len(sectors)), len(sectors), nil
}

// rejectionRate counts proposals by their current status; approved and hired
// are decided in favour, rejected against.
func rejectionRate(in Input) (float64, int, error) {
	var decided, rejected int
	for _, p := range in.Proposals {
		switch p.Status {
		case proposal.StatusRejected:
			rejected++
			decided++
		case proposal.StatusApproved, proposal.StatusHired:
			decided++
		}
	}
	return ratio(rejected, decided), decided, nil
}
