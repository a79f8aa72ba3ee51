// Package proposal defines candidate proposals, their status graph, and the
// transition events emitted when a proposal moves between statuses.
package proposal

import "strings"

// Status is the lifecycle state of a proposal.
type Status string

// Proposal statuses.
const (
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusHired       Status = "hired"
)

// Kind names a transition for point lookups. It is the target status, except
// for the creation of a proposal which is KindSubmitted.
type Kind string

// Transition kinds.
const (
	KindSubmitted   Kind = "submitted"
	KindUnderReview Kind = "under_review"
	KindApproved    Kind = "approved"
	KindRejected    Kind = "rejected"
	KindHired       Kind = "hired"
)

// edges is the allowed-transition table. Statuses missing from the map (or
// mapped to an empty set) are terminal.
var edges = map[Status][]Status{
	StatusPending:     {StatusUnderReview, StatusApproved, StatusRejected},
	StatusUnderReview: {StatusApproved, StatusRejected},
	StatusApproved:    {StatusHired, StatusRejected},
	StatusRejected:    nil,
	StatusHired:       nil,
}

// rank orders statuses along the happy path. Used to order same-instant
// history rows deterministically.
var rank = map[Status]int{
	"":                0,
	StatusPending:     1,
	StatusUnderReview: 2,
	StatusApproved:    3,
	StatusRejected:    4,
	StatusHired:       5,
}

// ParseStatus converts s to a Status, accepting surrounding whitespace and any case.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := edges[st]; !ok {
		return "", false
	}
	return st, true
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := edges[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s.Valid() && len(edges[s]) == 0
}

// Rank returns the position of s along pending → under_review → approved → rejected → hired.
func (s Status) Rank() int {
	return rank[s]
}

// Next lists the statuses reachable from s in one step.
func (s Status) Next() []Status {
	out := make([]Status, len(edges[s]))
	copy(out, edges[s])
	return out
}

// CanTransition reports whether from → to is an edge of the status graph.
func CanTransition(from, to Status) bool {
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Statuses returns every known status in graph order.
func Statuses() []Status {
	return []Status{StatusPending, StatusUnderReview, StatusApproved, StatusRejected, StatusHired}
}

// KindOf returns the transition kind for old → next.
func KindOf(old, next Status) Kind {
	if old == "" && next == StatusPending {
		return KindSubmitted
	}
	return Kind(next)
}

// Counted reports whether a transition of kind k is a counted-status event,
// i.e. one that moves the recruiter's counters and streak.
func (k Kind) Counted() bool {
	switch k {
	case KindSubmitted, KindApproved, KindHired:
		return true
	default:
		return false
	}
}

// Valid reports whether k is a known transition kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSubmitted, KindUnderReview, KindApproved, KindRejected, KindHired:
		return true
	default:
		return false
	}
}
