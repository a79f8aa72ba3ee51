package proposal

import (
	"fmt"
	"net/mail"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Proposal is a recruiter's submission of a candidate against a job offer.
type Proposal struct {
	ID                     string     `json:"id"`
	RecruiterEmail         string     `json:"recruiter_email"`
	CompanyEmail           string     `json:"company_email,omitempty"`
	JobOfferID             string     `json:"job_offer_id"`
	JobPublishedAt         *time.Time `json:"job_published_at,omitempty"`
	CandidateName          string     `json:"candidate_name"`
	CandidateEmail         string     `json:"candidate_email,omitempty"`
	CandidatePhone         string     `json:"candidate_phone,omitempty"`
	CVURL                  string     `json:"cv_url,omitempty"`
	Description            string     `json:"description,omitempty"`
	Sector                 string     `json:"sector"`
	YearsExperience        int        `json:"years_experience"`
	ExpectedSalary         int64      `json:"expected_salary"`
	RecruiterFeePercentage float64    `json:"recruiter_fee_percentage"`
	Status                 Status     `json:"status"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// TransitionEvent records one status change of a proposal. Creation is the
// synthetic transition "" → pending.
type TransitionEvent struct {
	ProposalID     string    `json:"proposal_id"`
	RecruiterEmail string    `json:"recruiter_email"`
	OldStatus      Status    `json:"old_status"`
	NewStatus      Status    `json:"new_status"`
	OccurredAt     time.Time `json:"occurred_at"`
	Actor          string    `json:"actor"`
}

// Kind returns the transition kind of the event.
func (e TransitionEvent) Kind() Kind {
	return KindOf(e.OldStatus, e.NewStatus)
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalize trims identity fields and fills the sector when missing.
func (p *Proposal) Normalize() {
	p.RecruiterEmail = NormalizeEmail(p.RecruiterEmail)
	p.CompanyEmail = NormalizeEmail(p.CompanyEmail)
	p.CandidateEmail = NormalizeEmail(p.CandidateEmail)
	p.JobOfferID = strings.TrimSpace(p.JobOfferID)
	p.CandidateName = strings.TrimSpace(p.CandidateName)
	p.Sector = strings.ToLower(strings.TrimSpace(p.Sector))
	if p.Sector == "" {
		p.Sector = InferSector(p.Description)
	}
}

// Validate checks the fields a recruiter must supply on submission.
func (p *Proposal) Validate() error {
	switch {
	case p.RecruiterEmail == "":
		return fmt.Errorf("%w: missing recruiter_email", ErrInvalidProposal)
	case p.JobOfferID == "":
		return fmt.Errorf("%w: missing job_offer_id", ErrInvalidProposal)
	case p.CandidateName == "":
		return fmt.Errorf("%w: missing candidate_name", ErrInvalidProposal)
	case p.YearsExperience < 0:
		return fmt.Errorf("%w: years_experience must not be negative", ErrInvalidProposal)
	case p.ExpectedSalary < 0:
		return fmt.Errorf("%w: expected_salary must not be negative", ErrInvalidProposal)
	case p.RecruiterFeePercentage < 0 || p.RecruiterFeePercentage > 100:
		return fmt.Errorf("%w: recruiter_fee_percentage must be within 0..100", ErrInvalidProposal)
	}
	if _, err := mail.ParseAddress(p.RecruiterEmail); err != nil {
		return fmt.Errorf("%w: recruiter_email: %v", ErrInvalidProposal, err)
	}
	if p.CompanyEmail != "" {
		if _, err := mail.ParseAddress(p.CompanyEmail); err != nil {
			return fmt.Errorf("%w: company_email: %v", ErrInvalidProposal, err)
		}
	}
	return nil
}

// Complete reports whether the submission carries a full candidate profile.
func (p *Proposal) Complete() bool {
	return p.CVURL != "" &&
		(p.CandidateEmail != "" || p.CandidatePhone != "") &&
		p.ExpectedSalary > 0 &&
		p.YearsExperience > 0 &&
		strings.TrimSpace(p.Description) != ""
}

// EventKey is the position of an event in history order.
type EventKey struct {
	OccurredAt time.Time
	ProposalID string
	Status     Status
}

// Key returns the history position of e.
func (e TransitionEvent) Key() EventKey {
	return EventKey{OccurredAt: e.OccurredAt, ProposalID: e.ProposalID, Status: e.NewStatus}
}

// IsZero reports whether k points at no event.
func (k EventKey) IsZero() bool {
	return k.ProposalID == "" && k.OccurredAt.IsZero()
}

// Hash returns a 64-bit digest of k.
func (k EventKey) Hash() uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(strconv.FormatInt(k.OccurredAt.UnixNano(), 10))
	_, _ = d.WriteString("|" + k.ProposalID + "|" + string(k.Status))
	return d.Sum64()
}

// Equal reports whether k and o point at the same event.
func (k EventKey) Equal(o EventKey) bool {
	return k.OccurredAt.Equal(o.OccurredAt) && k.ProposalID == o.ProposalID && k.Status == o.Status
}

// Before reports whether k sorts strictly before o.
func (k EventKey) Before(o EventKey) bool {
	if !k.OccurredAt.Equal(o.OccurredAt) {
		return k.OccurredAt.Before(o.OccurredAt)
	}
	if k.ProposalID != o.ProposalID {
		return k.ProposalID < o.ProposalID
	}
	return k.Status.Rank() < o.Status.Rank()
}

// SortEvents orders history chronologically. Rows sharing an instant are
// ordered by proposal id and then by position along the status graph, so a
// replay is deterministic.
func SortEvents(events []TransitionEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Key().Before(events[j].Key())
	})
}
