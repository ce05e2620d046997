package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/hansardgest/internal/config"
	"github.com/dgallion1/hansardgest/internal/observe"
	"github.com/dgallion1/hansardgest/internal/pipeline"
	"github.com/dgallion1/hansardgest/internal/source"
)

// Crawler walks the published sitting index. *source.Fetcher satisfies it.
type Crawler interface {
	Crawl(ctx context.Context, startURL string, since time.Time) (map[string]source.Listing, error)
}

// Server is the HTTP API server for hansardgest.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	crawler      Crawler
	log          *slog.Logger
	cfg          config.Config

	watchInterval time.Duration
}

// NewServer creates and configures the HTTP server. crawler may be nil, in
// which case the crawl endpoint reports 503.
func NewServer(orch *pipeline.Orchestrator, crawler Crawler, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		crawler:      crawler,
		log:          log,
		cfg:          cfg,

		watchInterval: defaultWatchInterval,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(Tracing(s.orchestrator.Metrics()))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	if s.cfg.MetricsEnabled {
		r.Handle("/metrics", observe.MetricsHandler())
	}

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/extract", s.handleExtract)

		r.Post("/api/ingest", s.handleIngest)
		r.Post("/api/ingest/batch", s.handleBatchIngest)
		r.Post("/api/ingest/url", s.handleIngestURL)
		r.Post("/api/ingest/crawl", s.handleCrawl)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Get("/api/ingest/{jobID}/watch", s.handleIngestWatch)

		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/stats/extract", s.handleExtractStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
