package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/contact-hub/internal/domain"
	"github.com/ignite/contact-hub/internal/pkg/httputil"
	"github.com/ignite/contact-hub/internal/service/ingest"
)

// ListPersons returns persons newest first.
// GET /api/persons?email=&external_id=&source_website=&country=&page=&limit=
func (h *Handlers) ListPersons(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r)
	q := r.URL.Query()
	persons, total, err := h.catalog.ListPersons(r.Context(), ingest.PersonFilter{
		Email:         q.Get("email"),
		ExternalID:    q.Get("external_id"),
		SourceWebsite: q.Get("source_website"),
		Country:       q.Get("country"),
		Limit:         p.Limit,
		Offset:        p.Offset,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	views := make([]personView, 0, len(persons))
	for i := range persons {
		views = append(views, viewPerson(&persons[i]))
	}
	httputil.OK(w, NewPaginatedResponse(views, p, total))
}

// GetPerson returns one person.
// GET /api/persons/{id}
func (h *Handlers) GetPerson(w http.ResponseWriter, r *http.Request) {
	p, err := h.repo.GetPerson(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httputil.OK(w, viewPerson(p))
}

// CreatePerson upserts a single person. The on_conflict query parameter
// picks the policy for an existing identity; the default reject answers 409
// with the existing id.
// POST /api/persons?on_conflict=reject|skip|update
func (h *Handlers) CreatePerson(w http.ResponseWriter, r *http.Request) {
	policy, err := domain.ParseConflictPolicy(r.URL.Query().Get("on_conflict"), domain.PolicyReject)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	body, ok := decodeRecord(w, r)
	if !ok {
		return
	}

	f := ingest.Normalize(body)
	out, err := h.engine.UpsertPerson(r.Context(), f, policy)
	if err != nil {
		h.fail(w, err)
		return
	}
	if out.Status == domain.OutcomeDuplicate {
		httputil.Conflict(w, map[string]interface{}{"id": out.ID, "email": f[domain.FieldEmail], "outcome": out})
		return
	}

	p, err := h.repo.GetPerson(r.Context(), out.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if out.Status == domain.OutcomeCreated {
		httputil.Created(w, viewPerson(p))
		return
	}
	httputil.OK(w, viewPerson(p))
}

// UpdatePerson overwrites the given fields of a person. Empty strings and
// nulls leave the stored value in place.
// PUT /api/persons/{id}
func (h *Handlers) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	p, err := h.engine.UpdatePerson(r.Context(), chi.URLParam(r, "id"), ingest.Normalize(body))
	if err != nil {
		h.fail(w, err)
		return
	}
	httputil.OK(w, viewPerson(p))
}

// personView adds the split tags and roles to a person. The stored columns
// stay raw text.
type personView struct {
	*domain.Person
	TagsList  []string `json:"tags_list"`
	RolesList []string `json:"roles_list"`
}

func viewPerson(p *domain.Person) personView {
	return personView{
		Person:    p,
		TagsList:  ingest.SplitList(p.Tags),
		RolesList: ingest.SplitList(p.Roles),
	}
}

// decodeRecord reads a flat JSON object into raw column values.
func decodeRecord(w http.ResponseWriter, r *http.Request) (map[string]string, bool) {
	var body map[string]interface{}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			httputil.BadRequest(w, "request body is required")
			return nil, false
		}
		httputil.BadRequest(w, "invalid JSON: "+err.Error())
		return nil, false
	}
	return rawRecord(body), true
}

// rawRecord keeps scalar values as strings and drops nulls, objects and
// arrays.
func rawRecord(m map[string]interface{}) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case string:
			out[k] = t
		case json.Number:
			out[k] = t.String()
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		}
	}
	return out
}
