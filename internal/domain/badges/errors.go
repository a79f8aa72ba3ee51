package badges

import "errors"

var (
	// ErrEvaluationFailure wraps a metric that failed for one badge family.
	ErrEvaluationFailure = errors.New("badges: evaluation failure")
	// ErrUnknownBadge is returned for badge ids missing from the catalog.
	ErrUnknownBadge = errors.New("badges: unknown badge")
	// ErrAlreadyGranted is returned when a forced grant targets a held badge.
	ErrAlreadyGranted = errors.New("badges: already granted")
	// ErrInvalidCatalog is returned when a catalog fails validation.
	ErrInvalidCatalog = errors.New("badges: invalid catalog")
)
