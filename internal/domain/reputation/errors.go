package reputation

import "errors"

var (
	// ErrNegativePoints is returned when an adjustment would drive a
	// recruiter's total below zero.
	ErrNegativePoints = errors.New("reputation: total points would become negative")
	// ErrInvalidStats is returned when a computed aggregate breaks its invariants.
	ErrInvalidStats = errors.New("reputation: invalid stats")
	// ErrRetriesExhausted is returned when every optimistic write attempt lost.
	ErrRetriesExhausted = errors.New("reputation: retries exhausted")
)
