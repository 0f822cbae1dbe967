package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ignite/contact-hub/internal/config"
	"github.com/ignite/contact-hub/internal/pkg/httputil"
	"github.com/ignite/contact-hub/internal/pkg/logger"
	"github.com/ignite/contact-hub/internal/service/ingest"
	"github.com/ignite/contact-hub/internal/storage"
	"github.com/ignite/contact-hub/internal/syncjob"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	repo      ingest.Repository
	catalog   ingest.Catalog
	orch      *ingest.Orchestrator
	engine    *ingest.Engine
	linker    *ingest.Linker
	sync      *syncjob.Runner
	archive   ReportArchive
	ingest    config.IngestConfig
	maxUpload int64
	log       *logger.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Deps, maxUpload int64) *Handlers {
	log := deps.Log
	if log == nil {
		log = logger.Default()
	}
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	engine := deps.Orchestrator.Engine()
	return &Handlers{
		repo:      deps.Repo,
		catalog:   deps.Catalog,
		orch:      deps.Orchestrator,
		engine:    engine,
		linker:    ingest.NewLinker(engine),
		sync:      deps.Sync,
		archive:   deps.Archive,
		ingest:    deps.Ingest,
		maxUpload: maxUpload,
		log:       log.With("component", "api"),
	}
}

// fail writes an ingestion error with the status of its class.
func (h *Handlers) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, syncjob.ErrSyncInProgress):
		httputil.Fail(w, "locked", err)
	case errors.Is(err, syncjob.ErrNoSource):
		httputil.Error(w, http.StatusServiceUnavailable, err.Error())
	default:
		httputil.Fail(w, ingest.Class(err), err)
	}
}

// archiveImport stores an import report and returns its location. Archive
// failures are logged, never surfaced.
func (h *Handlers) archiveImport(ctx context.Context, name string, stats *ingest.BatchStats) string {
	if h.archive == nil {
		return ""
	}
	loc, err := h.archive.SaveReport(context.WithoutCancel(ctx), storage.CategoryImports, name, stats)
	if err != nil {
		h.log.Error("failed to archive import report", "name", name, "error", err)
		return ""
	}
	return loc
}
