package api

import (
	"fmt"
	"net/http"
	"strings"
)

type adjustPointsRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

type grantBadgeRequest struct {
	BadgeID string `json:"badge_id"`
	Actor   string `json:"actor"`
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_proposals"
	list, err := s.deps.ListProposals(r.Context(), emailParam(r))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_stats"
	v, err := s.deps.Stats(r.Context(), emailParam(r))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRefreshStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.refresh_stats"
	v, err := s.deps.RefreshStats(r.Context(), emailParam(r))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleListAchievements(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_achievements"
	list, err := s.deps.Achievements(r.Context(), emailParam(r))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "api.evaluate"
	granted, err := s.deps.Evaluate(r.Context(), emailParam(r))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, granted)
}

func (s *Server) handleListBadges(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Badges())
}

func (s *Server) handleAdjustPoints(w http.ResponseWriter, r *http.Request) {
	const op = "api.adjust_points"
	var req adjustPointsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, op, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	switch {
	case req.Delta == 0:
		s.fail(w, r, op, fmt.Errorf("%w: delta must not be zero", ErrBadRequest))
		return
	case strings.TrimSpace(req.Reason) == "":
		s.fail(w, r, op, fmt.Errorf("%w: missing reason", ErrBadRequest))
		return
	}
	v, err := s.deps.AdjustPoints(r.Context(), emailParam(r), req.Delta, req.Reason, actorOr(req.Actor))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleGrantBadge(w http.ResponseWriter, r *http.Request) {
	const op = "api.grant_badge"
	var req grantBadgeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, op, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.BadgeID) == "" {
		s.fail(w, r, op, fmt.Errorf("%w: missing badge_id", ErrBadRequest))
		return
	}
	a, err := s.deps.GrantBadge(r.Context(), emailParam(r), req.BadgeID, actorOr(req.Actor))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func actorOr(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return "admin"
	}
	return actor
}
