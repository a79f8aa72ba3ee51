package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/headhunt/internal/adapters/export"
)

// handleGetLeaderboard handles GET /api/v1/leaderboard?limit=N. Without a
// limit every ranked recruiter is returned; an explicit limit may not exceed
// the configured maximum.
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	n := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 1 {
			s.fail(w, r, op, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
		if v > s.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", fmt.Errorf("%w: limit above %d", ErrBadRequest, s.maxLimit))
			return
		}
		n = v
	}
	entries, err := s.deps.Leaderboard(r.Context(), n)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_position"
	entry, err := s.deps.Position(r.Context(), emailParam(r))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleExportLeaderboard buffers the workbook so a failed export still gets
// a JSON error instead of a truncated file.
func (s *Server) handleExportLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_leaderboard"
	var buf bytes.Buffer
	if err := s.deps.ExportLeaderboard(r.Context(), &buf); err != nil {
		s.fail(w, r, op, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="leaderboard.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
