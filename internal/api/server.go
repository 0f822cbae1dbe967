package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ignite/contact-hub/internal/config"
	"github.com/ignite/contact-hub/internal/pkg/logger"
	"github.com/ignite/contact-hub/internal/service/ingest"
	"github.com/ignite/contact-hub/internal/syncjob"
)

// Deps are the collaborators the API is built from. Sync, Archive, Health
// and Gatherer are optional.
type Deps struct {
	Repo         ingest.Repository
	Catalog      ingest.Catalog
	Orchestrator *ingest.Orchestrator
	Sync         *syncjob.Runner
	Archive      ReportArchive
	Health       *HealthChecker
	Gatherer     prometheus.Gatherer
	Ingest       config.IngestConfig
	Log          *logger.Logger
}

// ReportArchive stores import reports and reads archived ones back.
// *storage.Storage satisfies it.
type ReportArchive interface {
	syncjob.Archiver
	GetReport(ctx context.Context, location string, target interface{}) error
}

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	h := NewHandlers(deps, int64(cfg.MaxUploadMB)<<20)
	router := SetupRoutes(h, cfg.AllowedOrigins, deps.Health, deps.Gatherer)

	return &Server{
		config:  cfg,
		handler: router,
		router:  router,
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       s.config.ReadTimeout(),
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      s.config.WriteTimeout(),
		IdleTimeout:       120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
