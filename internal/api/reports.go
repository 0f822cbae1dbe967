package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ignite/contact-hub/internal/pkg/httputil"
	"github.com/ignite/contact-hub/internal/storage"
)

// GetReport returns an archived import or sync report by the location the
// import or sync response carried.
// GET /api/reports?location=
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	if location == "" {
		httputil.BadRequest(w, "location is required")
		return
	}
	if h.archive == nil {
		httputil.NotFound(w, storage.ErrReportNotFound.Error())
		return
	}

	var report json.RawMessage
	err := h.archive.GetReport(r.Context(), location, &report)
	if errors.Is(err, storage.ErrReportNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, report)
}
