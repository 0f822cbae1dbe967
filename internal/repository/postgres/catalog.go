package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/contact-hub/internal/domain"
	"github.com/ignite/contact-hub/internal/service/ingest"
)

const defaultPageSize = 50

// where accumulates optional equality filters into a WHERE clause with
// positional arguments.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) eq(col, val string) {
	if val == "" {
		return
	}
	w.args = append(w.args, val)
	w.conds = append(w.conds, fmt.Sprintf("%s = $%d", col, len(w.args)))
}

// id filters a UUID column. An id that is not a UUID matches nothing.
func (w *where) id(col, val string) {
	if val == "" {
		return
	}
	if !validID(val) {
		w.conds = append(w.conds, "FALSE")
		return
	}
	w.eq(col, val)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// page appends ORDER BY/LIMIT/OFFSET and returns the query and its args.
func (w *where) page(q string, limit, offset int) (string, []interface{}) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	n := len(w.args)
	q += w.String() + fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", n+1, n+2)
	return q, append(append([]interface{}{}, w.args...), limit, offset)
}

func (r *ContactRepo) count(ctx context.Context, table string, w *where) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+w.String(), w.args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}

func (r *ContactRepo) ListPersons(ctx context.Context, f ingest.PersonFilter) ([]domain.Person, int, error) {
	w := &where{}
	w.eq("email", f.Email)
	w.eq("external_id", f.ExternalID)
	w.eq("source_website", f.SourceWebsite)
	w.eq("country", f.Country)

	total, err := r.count(ctx, "persons", w)
	if err != nil {
		return nil, 0, err
	}
	q, args := w.page(`SELECT `+personColumns+` FROM persons`, f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	out := []domain.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

func (r *ContactRepo) ListWebsites(ctx context.Context, f ingest.ListFilter) ([]domain.Website, int, error) {
	w := &where{}
	w.eq("url", f.URL)
	w.eq("external_id", f.ExternalID)

	total, err := r.count(ctx, "websites", w)
	if err != nil {
		return nil, 0, err
	}
	q, args := w.page(`SELECT `+websiteColumns+` FROM websites`, f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list websites: %w", err)
	}
	defer rows.Close()

	out := []domain.Website{}
	for rows.Next() {
		site, err := scanWebsite(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan website: %w", err)
		}
		out = append(out, *site)
	}
	return out, total, rows.Err()
}

func (r *ContactRepo) ListWebforms(ctx context.Context, f ingest.WebformFilter) ([]domain.Webform, int, error) {
	w := &where{}
	w.id("website_id", f.WebsiteID)
	w.eq("external_id", f.ExternalID)

	total, err := r.count(ctx, "webforms", w)
	if err != nil {
		return nil, 0, err
	}
	q, args := w.page(`SELECT `+webformColumns+` FROM webforms`, f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list webforms: %w", err)
	}
	defer rows.Close()

	out := []domain.Webform{}
	for rows.Next() {
		form, err := scanWebform(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan webform: %w", err)
		}
		out = append(out, *form)
	}
	return out, total, rows.Err()
}

func (r *ContactRepo) ListSubmissions(ctx context.Context, f ingest.SubmissionFilter) ([]domain.WebformSubmission, int, error) {
	w := &where{}
	w.id("webform_id", f.WebformID)
	w.id("person_id", f.PersonID)
	w.eq("external_id", f.ExternalID)

	total, err := r.count(ctx, "webform_submissions", w)
	if err != nil {
		return nil, 0, err
	}
	q, args := w.page(`SELECT `+submissionColumns+` FROM webform_submissions`, f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	out := []domain.WebformSubmission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, *sub)
	}
	return out, total, rows.Err()
}
