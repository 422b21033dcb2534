// Package api exposes the leaderboard and profile updates over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Avasam/Global-speedrunning-leaderboard/internal/adapters/http/swagger"
	"github.com/Avasam/Global-speedrunning-leaderboard/internal/adapters/repository"
	"github.com/Avasam/Global-speedrunning-leaderboard/internal/adapters/speedrun"
	service "github.com/Avasam/Global-speedrunning-leaderboard/internal/app"
	"github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/aggregate"
	"github.com/Avasam/Global-speedrunning-leaderboard/pkg/logger"
	"github.com/Avasam/Global-speedrunning-leaderboard/pkg/metrics"
)

const (
	defaultLimit    = 10
	defaultMaxLimit = 100
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	UpdateProfile(ctx context.Context, profileID string) (service.Report, error)
	Enqueue(ctx context.Context, profileID string) (string, error)
	TopN(ctx context.Context, n int) ([]repository.Entry, error)
	Rank(ctx context.Context, profileID string) (repository.Entry, error)
	Stats(ctx context.Context) (service.Stats, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps     Dependencies
	maxLimit int
	logger   logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMaxLimit caps the leaderboard page size.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{deps: deps, maxLimit: defaultMaxLimit, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("http")
	return s
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestMetrics)

	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/leaderboard", s.handleLeaderboard)
	r.Get("/rank/{profileID}", s.handleRank)
	r.Post("/profiles/{profileID}/update", s.handleUpdateProfile)
	r.Post("/updates", s.handleEnqueue)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	swagger.Register(r)

	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type entryResponse struct {
	Rank        int       `json:"rank"`
	ProfileID   string    `json:"profile_id"`
	DisplayName string    `json:"display_name"`
	Weblink     string    `json:"weblink"`
	Points      float64   `json:"points"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toEntryResponse(e repository.Entry) entryResponse {
	return entryResponse{
		Rank:        e.Rank,
		ProfileID:   e.ProfileID,
		DisplayName: e.DisplayName,
		Weblink:     e.Weblink,
		Points:      e.Points,
		UpdatedAt:   e.UpdatedAt,
	}
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

// writeUpdateError maps a failed profile update onto an HTTP status.
func writeUpdateError(w http.ResponseWriter, err error) {
	var upstream *speedrun.UpstreamError
	switch {
	case errors.Is(err, service.ErrInvalidProfileID):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.As(err, &upstream) && upstream.Status == http.StatusNotFound:
		writeError(w, http.StatusNotFound, "profile_not_found", err)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", err)
	case errors.Is(err, aggregate.ErrResolveProfile), errors.Is(err, aggregate.ErrPersonalBests):
		writeError(w, http.StatusBadGateway, "upstream_error", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
