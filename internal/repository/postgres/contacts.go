package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/contact-hub/internal/domain"
	"github.com/ignite/contact-hub/internal/service/ingest"
)

// ContactRepo implements ingest.Repository and ingest.Catalog against
// PostgreSQL. Inserts rely on the unique indexes from
// migrations/001_contacts.sql.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact repository.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

type lookupSpec struct {
	table  string
	column string
	scope  string
}

var lookups = map[domain.EntityKind]map[ingest.KeyKind]lookupSpec{
	domain.KindPerson: {
		ingest.KeyDedup:      {table: "persons", column: "dedup_key"},
		ingest.KeyExternalID: {table: "persons", column: "external_id"},
		ingest.KeyNatural:    {table: "persons", column: "email"},
	},
	domain.KindWebsite: {
		ingest.KeyDedup:      {table: "websites", column: "dedup_key"},
		ingest.KeyExternalID: {table: "websites", column: "external_id"},
		ingest.KeyNatural:    {table: "websites", column: "url"},
	},
	domain.KindWebform: {
		ingest.KeyDedup:      {table: "webforms", column: "dedup_key"},
		ingest.KeyExternalID: {table: "webforms", column: "external_id", scope: "website_id"},
		ingest.KeyNatural:    {table: "webforms", column: "external_id", scope: "website_id"},
	},
	domain.KindSubmission: {
		ingest.KeyDedup:      {table: "webform_submissions", column: "dedup_key"},
		ingest.KeyExternalID: {table: "webform_submissions", column: "external_id", scope: "webform_id"},
	},
}

func (r *ContactRepo) Lookup(ctx context.Context, kind domain.EntityKind, key ingest.CandidateKey) ([]string, error) {
	spec, ok := lookups[kind][key.Kind]
	if !ok {
		return nil, fmt.Errorf("no %s lookup for %s", key.Kind, kind)
	}
	q := fmt.Sprintf(`SELECT id FROM %s WHERE %s = $1`, spec.table, spec.column)
	args := []interface{}{key.Value}
	if spec.scope != "" {
		if !validID(key.Scope) {
			return nil, nil
		}
		q += fmt.Sprintf(` AND %s = $2`, spec.scope)
		args = append(args, key.Scope)
	}
	q += ` ORDER BY id LIMIT 2`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", kind, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", kind, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const personColumns = `id, email, first_name, last_name, source_website, country, organisation,
	domain, website, webform, tags, roles, ppg, type, external_id, dedup_key, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPerson(s scanner) (*domain.Person, error) {
	p := &domain.Person{}
	err := s.Scan(
		&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.SourceWebsite, &p.Country, &p.Organisation,
		&p.Domain, &p.Website, &p.Webform, &p.Tags, &p.Roles, &p.PPG, &p.Type, &p.ExternalID, &p.DedupKey,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *ContactRepo) GetPerson(ctx context.Context, id string) (*domain.Person, error) {
	if !validID(id) {
		return nil, ingest.ErrNotFound
	}
	p, err := scanPerson(r.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ingest.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

func (r *ContactRepo) InsertPerson(ctx context.Context, p *domain.Person) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO persons (`+personColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT DO NOTHING
	`, p.ID, p.Email, p.FirstName, p.LastName, p.SourceWebsite, p.Country, p.Organisation,
		p.Domain, p.Website, p.Webform, p.Tags, p.Roles, p.PPG, p.Type, p.ExternalID, p.DedupKey,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return false, translate(err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *ContactRepo) UpdatePerson(ctx context.Context, id string, fields ingest.Fields) (*domain.Person, error) {
	if !validID(id) {
		return nil, ingest.ErrNotFound
	}
	var sets []string
	var args []interface{}
	for _, col := range append([]string{domain.FieldEmail}, domain.PersonOptionalFields...) {
		v, ok := fields.Get(col)
		if !ok {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	q := fmt.Sprintf(`UPDATE persons SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), personColumns)
	p, err := scanPerson(r.db.QueryRowContext(ctx, q, args...))
	if err == sql.ErrNoRows {
		return nil, ingest.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update person %s: %w", id, translate(err))
	}
	return p, nil
}

const websiteColumns = `id, name, url, external_id, dedup_key, created_at, updated_at`

func scanWebsite(s scanner) (*domain.Website, error) {
	w := &domain.Website{}
	err := s.Scan(&w.ID, &w.Name, &w.URL, &w.ExternalID, &w.DedupKey, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

func (r *ContactRepo) GetWebsite(ctx context.Context, id string) (*domain.Website, error) {
	if !validID(id) {
		return nil, ingest.ErrNotFound
	}
	w, err := scanWebsite(r.db.QueryRowContext(ctx, `SELECT `+websiteColumns+` FROM websites WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ingest.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get website: %w", err)
	}
	return w, nil
}

func (r *ContactRepo) InsertWebsite(ctx context.Context, w *domain.Website) (bool, error) {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO websites (`+websiteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING
	`, w.ID, w.Name, w.URL, w.ExternalID, w.DedupKey, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return false, translate(err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

const webformColumns = `id, website_id, name, description, external_id, dedup_key, created_at, updated_at`

func scanWebform(s scanner) (*domain.Webform, error) {
	f := &domain.Webform{}
	err := s.Scan(&f.ID, &f.WebsiteID, &f.Name, &f.Description, &f.ExternalID, &f.DedupKey, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

func (r *ContactRepo) GetWebform(ctx context.Context, id string) (*domain.Webform, error) {
	if !validID(id) {
		return nil, ingest.ErrNotFound
	}
	f, err := scanWebform(r.db.QueryRowContext(ctx, `SELECT `+webformColumns+` FROM webforms WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ingest.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get webform: %w", err)
	}
	return f, nil
}

func (r *ContactRepo) InsertWebform(ctx context.Context, f *domain.Webform) (bool, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO webforms (`+webformColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
	`, f.ID, f.WebsiteID, f.Name, f.Description, f.ExternalID, f.DedupKey, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return false, translate(err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

const submissionColumns = `id, webform_id, person_id, external_id, dedup_key, payload, source_website, created_at, updated_at`

func scanSubmission(s scanner) (*domain.WebformSubmission, error) {
	sub := &domain.WebformSubmission{}
	var payload []byte
	err := s.Scan(&sub.ID, &sub.WebformID, &sub.PersonID, &sub.ExternalID, &sub.DedupKey,
		&payload, &sub.SourceWebsite, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &sub.Payload); err != nil {
			return nil, fmt.Errorf("decode payload of submission %s: %w", sub.ID, err)
		}
	}
	return sub, nil
}

func (r *ContactRepo) GetSubmission(ctx context.Context, id string) (*domain.WebformSubmission, error) {
	if !validID(id) {
		return nil, ingest.ErrNotFound
	}
	sub, err := scanSubmission(r.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM webform_submissions WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ingest.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

func (r *ContactRepo) InsertSubmission(ctx context.Context, s *domain.WebformSubmission) (bool, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	payload, err := json.Marshal(s.Payload)
	if err != nil {
		return false, fmt.Errorf("encode payload: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO webform_submissions (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
	`, s.ID, s.WebformID, s.PersonID, s.ExternalID, s.DedupKey, payload, s.SourceWebsite, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return false, translate(err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}
