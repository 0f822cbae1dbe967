package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignite/contact-hub/internal/pkg/httputil"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, allowedOrigins []string, hc *HealthChecker, gatherer prometheus.Gatherer) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Link"},
		MaxAge:         300,
	}))

	if hc == nil {
		hc = NewHealthChecker(nil, nil, nil)
	}
	r.Get("/health", hc.HandleHealth)
	r.Get("/health/live", hc.HandleLiveness)
	r.Get("/health/ready", hc.HandleReadiness)

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/persons", func(r chi.Router) {
			r.Get("/", h.ListPersons)
			r.Post("/", h.CreatePerson)
			r.Post("/import_preview", h.ImportPreview)
			r.Post("/import_execute", h.ImportExecute)
			r.Post("/bulk_import", h.BulkImport)
			r.Get("/{id}", h.GetPerson)
			r.Put("/{id}", h.UpdatePerson)
		})

		r.Route("/websites", func(r chi.Router) {
			r.Get("/", h.ListWebsites)
			r.Post("/", h.CreateWebsite)
			r.Post("/bulk_import", h.BulkImportWebsites)
			r.Get("/{id}", h.GetWebsite)
		})

		r.Route("/webforms", func(r chi.Router) {
			r.Get("/", h.ListWebforms)
			r.Post("/", h.CreateWebform)
			r.Get("/{id}", h.GetWebform)
		})

		r.Route("/submissions", func(r chi.Router) {
			r.Get("/", h.ListSubmissions)
			r.Post("/", h.CreateSubmission)
			r.Post("/sync_from_drupal", h.SyncFromDrupal)
			r.Get("/{id}", h.GetSubmission)
		})

		r.Get("/reports", h.GetReport)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.NotFound(w, "route not found")
	})

	return r
}
