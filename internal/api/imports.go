package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/ignite/contact-hub/internal/domain"
	"github.com/ignite/contact-hub/internal/pkg/httputil"
	"github.com/ignite/contact-hub/internal/service/ingest"
	"github.com/ignite/contact-hub/internal/tabular"
)

// importResponse is a batch result plus where its report was archived.
type importResponse struct {
	*ingest.BatchStats
	ReportLocation string `json:"report_location,omitempty"`
}

// recordsRequest is the JSON form of an import.
type recordsRequest struct {
	Records    []map[string]interface{} `json:"records"`
	OnConflict string                   `json:"on_conflict"`
}

// ImportPreview parses an upload and returns the normalized records without
// writing anything.
// POST /api/persons/import_preview (multipart: file, mapping, skip_header)
func (h *Handlers) ImportPreview(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	records := make([]ingest.Fields, 0, len(rows))
	for _, row := range rows {
		if f := ingest.Normalize(row); !f.Blank() {
			records = append(records, f)
		}
	}
	n := h.ingest.PreviewRows
	if n <= 0 {
		n = 5
	}
	sample := records
	if len(sample) > n {
		sample = sample[:n]
	}
	httputil.OK(w, map[string]interface{}{
		"count":   len(records),
		"sample":  sample,
		"records": records,
	})
}

// ImportExecute imports persons from a JSON body or an uploaded file. The
// conflict policy defaults to the configured one (skip).
// POST /api/persons/import_execute
func (h *Handlers) ImportExecute(w http.ResponseWriter, r *http.Request) {
	var rows []map[string]string
	var policyName string

	if isMultipart(r) {
		var ok bool
		if rows, ok = h.readUpload(w, r); !ok {
			return
		}
		policyName = r.FormValue("on_conflict")
	} else {
		req, ok := decodeRecords(w, r)
		if !ok {
			return
		}
		rows = req.rows()
		policyName = req.OnConflict
	}
	if policyName == "" {
		policyName = r.URL.Query().Get("on_conflict")
	}

	def, err := domain.ParseConflictPolicy(h.ingest.DefaultPolicy, domain.PolicySkip)
	if err != nil {
		def = domain.PolicySkip
	}
	policy, err := domain.ParseConflictPolicy(policyName, def)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if len(rows) == 0 {
		httputil.BadRequest(w, "no records to import")
		return
	}

	stats := h.orch.ImportPersons(r.Context(), rows, policy)
	httputil.Created(w, importResponse{BatchStats: stats, ReportLocation: h.archiveImport(r.Context(), "persons-"+string(policy), stats)})
}

// BulkImport imports a JSON list of persons, skipping existing identities.
// The body is either an array of records or {"records": [...]}.
// POST /api/persons/bulk_import
func (h *Handlers) BulkImport(w http.ResponseWriter, r *http.Request) {
	rows, ok := decodeRecordList(w, r)
	if !ok {
		return
	}
	if len(rows) == 0 {
		httputil.JSON(w, http.StatusBadRequest, &ingest.BatchStats{
			Errors: []ingest.RowError{{Reason: "no records provided", Class: "validation"}},
		})
		return
	}

	stats := h.orch.ImportPersons(r.Context(), rows, domain.PolicySkip)
	httputil.Created(w, importResponse{BatchStats: stats, ReportLocation: h.archiveImport(r.Context(), "persons-bulk", stats)})
}

// BulkImportWebsites registers a JSON list of websites. Known URLs are
// reported as duplicates.
// POST /api/websites/bulk_import
func (h *Handlers) BulkImportWebsites(w http.ResponseWriter, r *http.Request) {
	rows, ok := decodeRecordList(w, r)
	if !ok {
		return
	}
	if len(rows) == 0 {
		httputil.BadRequest(w, "no records to import")
		return
	}

	stats := h.orch.ImportWebsites(r.Context(), rows)
	httputil.Created(w, importResponse{BatchStats: stats, ReportLocation: h.archiveImport(r.Context(), "websites", stats)})
}

// readUpload parses the multipart "file" field with the optional "mapping"
// (JSON object of field to 0-based column) and "skip_header" (default true)
// fields.
func (h *Handlers) readUpload(w http.ResponseWriter, r *http.Request) ([]map[string]string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		httputil.BadRequest(w, "file is required")
		return nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "file is required")
		return nil, false
	}
	defer file.Close()

	opts := tabular.Options{SkipHeader: true}
	if v := r.FormValue("skip_header"); v != "" {
		skip, err := strconv.ParseBool(v)
		if err != nil {
			httputil.BadRequest(w, "skip_header must be a boolean")
			return nil, false
		}
		opts.SkipHeader = skip
	}
	if v := r.FormValue("mapping"); v != "" {
		if err := json.Unmarshal([]byte(v), &opts.Mapping); err != nil {
			httputil.BadRequest(w, "mapping must be a JSON object of field to column index")
			return nil, false
		}
		fields := make([]string, 0, len(opts.Mapping))
		for f := range opts.Mapping {
			fields = append(fields, f)
		}
		if err := tabular.ValidateFields(fields); err != nil {
			httputil.BadRequest(w, err.Error())
			return nil, false
		}
	}

	rows, err := tabular.Parse(header.Filename, file, opts)
	if err != nil {
		httputil.BadRequest(w, "failed to parse file: "+err.Error())
		return nil, false
	}
	h.log.Info("upload parsed", "file", header.Filename, "rows", len(rows))
	return rows, true
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mt, "multipart/")
}

func decodeRecords(w http.ResponseWriter, r *http.Request) (*recordsRequest, bool) {
	var req recordsRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			httputil.BadRequest(w, "request body is required")
			return nil, false
		}
		httputil.BadRequest(w, "invalid JSON: "+err.Error())
		return nil, false
	}
	return &req, true
}

func (req *recordsRequest) rows() []map[string]string {
	rows := make([]map[string]string, len(req.Records))
	for i, rec := range req.Records {
		rows[i] = rawRecord(rec)
	}
	return rows
}

// decodeRecordList accepts either a bare JSON array or {"records": [...]}.
func decodeRecordList(w http.ResponseWriter, r *http.Request) ([]map[string]string, bool) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			httputil.BadRequest(w, "request body is required")
			return nil, false
		}
		httputil.BadRequest(w, "invalid JSON: "+err.Error())
		return nil, false
	}

	req := &recordsRequest{}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var err error
	if trimmed := strings.TrimSpace(string(raw)); strings.HasPrefix(trimmed, "[") {
		err = dec.Decode(&req.Records)
	} else {
		err = dec.Decode(req)
	}
	if err != nil {
		httputil.BadRequest(w, "invalid JSON: "+err.Error())
		return nil, false
	}
	return req.rows(), true
}
