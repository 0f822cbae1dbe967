package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/contact-hub/internal/domain"
	"github.com/ignite/contact-hub/internal/pkg/httputil"
	"github.com/ignite/contact-hub/internal/service/ingest"
)

// submissionRequest accepts the webform either by local id or by
// (website_id, webform_external_id).
type submissionRequest struct {
	WebformID         string                 `json:"webform_id"`
	WebsiteID         string                 `json:"website_id"`
	WebformExternalID string                 `json:"webform_external_id"`
	PersonID          string                 `json:"person_id"`
	ExternalID        *string                `json:"external_id"`
	DedupKey          *string                `json:"dedup_key"`
	Payload           map[string]interface{} `json:"payload"`
	SourceWebsite     *string                `json:"source_website"`
}

// ListSubmissions returns submissions newest first.
// GET /api/submissions?webform=&person=&external_id=
func (h *Handlers) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r)
	q := r.URL.Query()
	subs, total, err := h.catalog.ListSubmissions(r.Context(), ingest.SubmissionFilter{
		WebformID:  q.Get("webform"),
		PersonID:   q.Get("person"),
		ExternalID: q.Get("external_id"),
		Limit:      p.Limit,
		Offset:     p.Offset,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httputil.OK(w, NewPaginatedResponse(subs, p, total))
}

// GetSubmission returns one submission.
// GET /api/submissions/{id}
func (h *Handlers) GetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.repo.GetSubmission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httputil.OK(w, sub)
}

// CreateSubmission links a submission to its person (created from the
// payload email when no person_id is given) and stores it once. A
// redelivery answers 409 with the first submission's id.
// POST /api/submissions
func (h *Handlers) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	res, err := h.linker.LinkAndCreate(r.Context(), ingest.SubmissionInput{
		Webform: ingest.WebformRef{
			ID:         clean(req.WebformID),
			WebsiteID:  clean(req.WebsiteID),
			ExternalID: clean(req.WebformExternalID),
		},
		PersonID:      req.PersonID,
		ExternalID:    req.ExternalID,
		DedupKey:      req.DedupKey,
		Payload:       req.Payload,
		SourceWebsite: req.SourceWebsite,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	if res.Outcome.Status == domain.OutcomeDuplicate {
		httputil.Conflict(w, map[string]interface{}{"id": res.Submission.ID, "outcome": res.Outcome})
		return
	}
	httputil.Created(w, res)
}

// SyncFromDrupal runs one Drupal sync. A timeout answers 408 with the
// partial report; a sync already running answers 409. The sync is bounded
// by the configured sync timeout, not by the client connection.
// POST /api/submissions/sync_from_drupal
func (h *Handlers) SyncFromDrupal(w http.ResponseWriter, r *http.Request) {
	if h.sync == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "sync source not configured")
		return
	}
	res, err := h.sync.Run(context.WithoutCancel(r.Context()))
	switch {
	case err == nil:
		httputil.OK(w, res)
	case errors.Is(err, ingest.ErrTimeout) && res != nil:
		httputil.JSON(w, http.StatusRequestTimeout, res)
	default:
		h.log.Error("sync failed", "error", err)
		h.fail(w, err)
	}
}
