package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/claude/repcoach/internal/metrics"
	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/storage"
)

// SummaryStore is the persistence the HTTP API needs.
type SummaryStore interface {
	MergeSessionSummary(ctx context.Context, s metrics.SessionSummary) (bool, error)
	GetDailySummary(ctx context.Context, userID string, date time.Time) (*models.DailySummaryRow, error)
	GetWeeklySummaries(ctx context.Context, userID string, end time.Time) ([]models.DailySummaryRow, error)
	QuerySessions(ctx context.Context, userID string, limit int) ([]models.SessionRow, error)
	ListUsers(ctx context.Context) ([]models.UserRow, error)
}

// Compile-time check: storage.DB satisfies SummaryStore.
var _ SummaryStore = (*storage.DB)(nil)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store  SummaryStore
	log    *slog.Logger
	apiKey string
	router chi.Router
}

// New creates a new Server with all routes configured.
func New(store SummaryStore, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		store:  store,
		log:    log,
		apiKey: apiKey,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Mount attaches another handler, such as the MCP endpoint, under pattern.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.router.Mount(pattern, h)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	// Session ingest (API key required)
	s.router.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/api/v1/sessions", s.handleMergeSession)
	})

	// Dashboard API endpoints (no auth, tsnet handles access)
	s.router.Get("/api/v1/users", s.handleListUsers)
	s.router.Get("/api/v1/exercises", s.handleExercises)
	s.router.Get("/api/v1/sessions/{user}", s.handleQuerySessions)
	s.router.Get("/api/v1/summaries/{user}/week", s.handleWeeklySummaries)
	s.router.Get("/api/v1/summaries/{user}/{date}", s.handleDailySummary)
}
