package ingest

import (
	"context"

	"github.com/ignite/contact-hub/internal/domain"
)

// Repository defines the persistence contract used by the ingestion core.
//
// Insert* methods are the atomic check-then-write primitive: they write the
// row only if no unique constraint of the table already holds it, and report
// inserted=false (with no error) when another row won. They never update.
type Repository interface {
	// Lookup returns the ids of entities of kind matching key. At most two
	// ids are returned; two means the key is ambiguous.
	Lookup(ctx context.Context, kind domain.EntityKind, key CandidateKey) ([]string, error)

	GetPerson(ctx context.Context, id string) (*domain.Person, error)
	InsertPerson(ctx context.Context, p *domain.Person) (bool, error)
	// UpdatePerson overwrites every column present in fields and bumps
	// updated_at. Columns absent from fields are left as stored.
	UpdatePerson(ctx context.Context, id string, fields Fields) (*domain.Person, error)

	GetWebsite(ctx context.Context, id string) (*domain.Website, error)
	InsertWebsite(ctx context.Context, w *domain.Website) (bool, error)

	GetWebform(ctx context.Context, id string) (*domain.Webform, error)
	InsertWebform(ctx context.Context, f *domain.Webform) (bool, error)

	GetSubmission(ctx context.Context, id string) (*domain.WebformSubmission, error)
	InsertSubmission(ctx context.Context, s *domain.WebformSubmission) (bool, error)
}

// Catalog is the read side used by the HTTP API.
type Catalog interface {
	ListPersons(ctx context.Context, f PersonFilter) ([]domain.Person, int, error)
	ListWebsites(ctx context.Context, f ListFilter) ([]domain.Website, int, error)
	ListWebforms(ctx context.Context, f WebformFilter) ([]domain.Webform, int, error)
	ListSubmissions(ctx context.Context, f SubmissionFilter) ([]domain.WebformSubmission, int, error)
}

// ListFilter controls pagination. Results are ordered newest first.
type ListFilter struct {
	URL        string
	ExternalID string
	Limit      int
	Offset     int
}

// PersonFilter narrows a person listing.
type PersonFilter struct {
	Email         string
	ExternalID    string
	SourceWebsite string
	Country       string
	Limit         int
	Offset        int
}

// WebformFilter narrows a webform listing.
type WebformFilter struct {
	WebsiteID  string
	ExternalID string
	Limit      int
	Offset     int
}

// SubmissionFilter narrows a submission listing.
type SubmissionFilter struct {
	WebformID  string
	PersonID   string
	ExternalID string
	Limit      int
	Offset     int
}
