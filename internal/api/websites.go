package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/contact-hub/internal/domain"
	"github.com/ignite/contact-hub/internal/pkg/httputil"
	"github.com/ignite/contact-hub/internal/service/ingest"
)

type websiteRequest struct {
	Name       string  `json:"name"`
	URL        string  `json:"url"`
	ExternalID *string `json:"external_id"`
	DedupKey   *string `json:"dedup_key"`
}

type webformRequest struct {
	WebsiteID   string  `json:"website_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ExternalID  string  `json:"external_id"`
	DedupKey    *string `json:"dedup_key"`
}

// ListWebsites returns websites newest first.
// GET /api/websites?url=&external_id=
func (h *Handlers) ListWebsites(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r)
	q := r.URL.Query()
	sites, total, err := h.catalog.ListWebsites(r.Context(), ingest.ListFilter{
		URL:        q.Get("url"),
		ExternalID: q.Get("external_id"),
		Limit:      p.Limit,
		Offset:     p.Offset,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httputil.OK(w, NewPaginatedResponse(sites, p, total))
}

// GetWebsite returns one website.
// GET /api/websites/{id}
func (h *Handlers) GetWebsite(w http.ResponseWriter, r *http.Request) {
	site, err := h.repo.GetWebsite(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httputil.OK(w, site)
}

// CreateWebsite registers a website. A known URL, external id or dedup key
// answers 409 with the existing id.
// POST /api/websites
func (h *Handlers) CreateWebsite(w http.ResponseWriter, r *http.Request) {
	var req websiteRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	site := &domain.Website{
		Name:       clean(req.Name),
		URL:        clean(req.URL),
		ExternalID: ingest.NormalizePtr(req.ExternalID),
		DedupKey:   ingest.NormalizePtr(req.DedupKey),
	}
	out, err := h.engine.UpsertWebsite(r.Context(), site)
	if err != nil {
		h.fail(w, err)
		return
	}
	if out.Status == domain.OutcomeDuplicate {
		existing, err := h.repo.GetWebsite(r.Context(), out.ID)
		if err != nil {
			h.fail(w, err)
			return
		}
		httputil.Conflict(w, map[string]interface{}{"id": existing.ID, "name": existing.Name, "outcome": out})
		return
	}
	httputil.Created(w, site)
}

// ListWebforms returns webforms newest first.
// GET /api/webforms?website=&external_id=
func (h *Handlers) ListWebforms(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r)
	q := r.URL.Query()
	forms, total, err := h.catalog.ListWebforms(r.Context(), ingest.WebformFilter{
		WebsiteID:  q.Get("website"),
		ExternalID: q.Get("external_id"),
		Limit:      p.Limit,
		Offset:     p.Offset,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httputil.OK(w, NewPaginatedResponse(forms, p, total))
}

// GetWebform returns one webform.
// GET /api/webforms/{id}
func (h *Handlers) GetWebform(w http.ResponseWriter, r *http.Request) {
	form, err := h.repo.GetWebform(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httputil.OK(w, form)
}

// CreateWebform registers a webform under a website. A known
// (website_id, external_id) or dedup key answers 409 with the existing id.
// POST /api/webforms
func (h *Handlers) CreateWebform(w http.ResponseWriter, r *http.Request) {
	var req webformRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	form := &domain.Webform{
		WebsiteID:   clean(req.WebsiteID),
		Name:        clean(req.Name),
		Description: req.Description,
		ExternalID:  clean(req.ExternalID),
		DedupKey:    ingest.NormalizePtr(req.DedupKey),
	}
	out, err := h.engine.UpsertWebform(r.Context(), form)
	if err != nil {
		h.fail(w, err)
		return
	}
	if out.Status == domain.OutcomeDuplicate {
		existing, err := h.repo.GetWebform(r.Context(), out.ID)
		if err != nil {
			h.fail(w, err)
			return
		}
		httputil.Conflict(w, map[string]interface{}{"id": existing.ID, "name": existing.Name, "outcome": out})
		return
	}
	httputil.Created(w, form)
}

func clean(s string) string {
	v, _ := ingest.CleanValue(s)
	return v
}
