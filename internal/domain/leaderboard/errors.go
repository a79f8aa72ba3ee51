package leaderboard

import "errors"

// ErrNotRanked is returned by Position for recruiters without proposals.
var ErrNotRanked = errors.New("leaderboard: recruiter not ranked")
