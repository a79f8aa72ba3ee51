// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	service "github.com/okian/headhunt/internal/app"
	"github.com/okian/headhunt/internal/domain/badges"
	"github.com/okian/headhunt/internal/domain/leaderboard"
	"github.com/okian/headhunt/internal/domain/model"
	"github.com/okian/headhunt/internal/domain/proposal"
	"github.com/okian/headhunt/pkg/logger"
)

// AdminTokenHeader carries the administrative token.
const AdminTokenHeader = "X-Admin-Token"

const (
	defaultMaxLimit = 100
	requestTimeout  = 30 * time.Second
)

// Dependencies required by HTTP handlers. *service.Service satisfies it.
type Dependencies interface {
	SubmitProposal(ctx context.Context, p proposal.Proposal, actor string) (service.SubmitResult, error)
	Transition(ctx context.Context, id string, next proposal.Status, actor string) (service.TransitionResult, error)
	GetProposal(ctx context.Context, id string) (proposal.Proposal, error)
	DeleteProposal(ctx context.Context, id, actor string) error
	ListProposals(ctx context.Context, email string) ([]proposal.Proposal, error)

	Stats(ctx context.Context, email string) (service.StatsView, error)
	RefreshStats(ctx context.Context, email string) (service.StatsView, error)
	Achievements(ctx context.Context, email string) ([]model.Achievement, error)
	Evaluate(ctx context.Context, email string) ([]model.Achievement, error)
	Badges() []badges.Badge

	Leaderboard(ctx context.Context, limit int) ([]leaderboard.Entry, error)
	Position(ctx context.Context, email string) (leaderboard.Entry, error)
	ExportLeaderboard(ctx context.Context, w io.Writer) error

	AdjustPoints(ctx context.Context, email string, delta int64, reason, actor string) (service.StatsView, error)
	GrantBadge(ctx context.Context, email, badgeID, actor string) (model.Achievement, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps           Dependencies
	maxLimit       int
	adminToken     string
	allowedOrigins []string
	logger         logger.Logger

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:           deps,
		maxLimit:       defaultMaxLimit,
		allowedOrigins: []string{"*"},
		logger:         logger.Get().Named("http"),
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", AdminTokenHeader},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/proposals", s.handleSubmitProposal)
		r.Get("/proposals/{id}", s.handleGetProposal)
		r.Post("/proposals/{id}/transitions", s.handleTransition)

		r.Route("/recruiters/{email}", func(r chi.Router) {
			r.Get("/proposals", s.handleListProposals)
			r.Get("/stats", s.handleGetStats)
			r.Get("/achievements", s.handleListAchievements)
			r.Post("/refresh", s.handleRefreshStats)
			r.Post("/evaluate", s.handleEvaluate)
		})

		r.Get("/badges", s.handleListBadges)

		r.Get("/leaderboard", s.handleGetLeaderboard)
		r.Get("/leaderboard/export.xlsx", s.handleExportLeaderboard)
		r.Get("/leaderboard/{email}", s.handleGetPosition)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Delete("/proposals/{id}", s.handleDeleteProposal)
			r.Post("/recruiters/{email}/points", s.handleAdjustPoints)
			r.Post("/recruiters/{email}/badges", s.handleGrantBadge)
		})
	})
}

// Router returns a new router with every route registered.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads a request body into v; unknown fields are rejected.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// emailParam returns the unescaped {email} path parameter.
func emailParam(r *http.Request) string {
	raw := chi.URLParam(r, "email")
	if email, err := url.PathUnescape(raw); err == nil {
		return email
	}
	return raw
}
