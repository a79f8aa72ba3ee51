package api

import (
	"errors"
	"net/http"

	"github.com/okian/headhunt/internal/adapters/repository"
	service "github.com/okian/headhunt/internal/app"
	"github.com/okian/headhunt/internal/domain/badges"
	"github.com/okian/headhunt/internal/domain/leaderboard"
	"github.com/okian/headhunt/internal/domain/proposal"
	"github.com/okian/headhunt/internal/domain/reputation"
	"github.com/okian/headhunt/pkg/logger"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("admin token required")
)

// classify maps a domain error to its HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, proposal.ErrInvalidProposal):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, reputation.ErrNegativePoints):
		return http.StatusBadRequest, "negative_points"
	case errors.Is(err, proposal.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, repository.ErrConcurrentModification), errors.Is(err, reputation.ErrRetriesExhausted):
		return http.StatusConflict, "retry"
	case errors.Is(err, badges.ErrAlreadyGranted), errors.Is(err, repository.ErrAlreadyExists):
		return http.StatusConflict, "conflict"
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, leaderboard.ErrNotRanked), errors.Is(err, badges.ErrUnknownBadge):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// fail writes err with its mapped status. Server errors are logged and their
// message is not echoed to the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("op", op),
			logger.String("path", r.URL.Path),
			logger.Error(err))
		writeError(w, status, code, nil)
		return
	}
	writeError(w, status, code, err)
}
