package api

import "github.com/okian/headhunt/pkg/logger"

// Option configures a Server.
type Option func(*Server)

// WithMaxLeaderboardLimit caps the limit accepted by GET /api/v1/leaderboard.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithAdminToken sets the token admin routes require. With an empty token
// the admin routes refuse every request.
func WithAdminToken(token string) Option {
	return func(s *Server) { s.adminToken = token }
}

// WithAllowedOrigins sets the CORS allowed origins.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
