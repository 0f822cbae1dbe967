package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/contact-hub/internal/domain"
)

// Engine decides create vs. update vs. skip vs. duplicate for one record and
// performs the write. It is safe for concurrent use; concurrent writers of
// the same identity are serialized by the repository's insert-if-absent
// primitive, never by a read-then-write.
type Engine struct {
	repo     Repository
	resolver *Resolver
	audit    AuditHook
	now      func() time.Time
}

// NewEngine creates an upsert engine. A nil hook disables auditing.
func NewEngine(repo Repository, hook AuditHook) *Engine {
	if hook == nil {
		hook = nopHook{}
	}
	return &Engine{
		repo:     repo,
		resolver: NewResolver(repo),
		audit:    hook,
		now:      time.Now,
	}
}

// UpsertPerson creates or merges a person from normalized fields.
//
// On a match, policy update overwrites every present field (absent fields
// keep their stored value), skip leaves the row untouched and reports
// skipped, reject reports a duplicate.
func (e *Engine) UpsertPerson(ctx context.Context, f Fields, policy domain.ConflictPolicy) (domain.Outcome, error) {
	out, err := e.upsertPerson(ctx, f, policy)
	e.record(ctx, domain.KindPerson, out, err)
	return out, err
}

func (e *Engine) upsertPerson(ctx context.Context, f Fields, policy domain.ConflictPolicy) (domain.Outcome, error) {
	email, ok := f.Get(domain.FieldEmail)
	if !ok {
		return domain.Outcome{}, ErrMissingEmail
	}
	keys := PersonKeys(f)

	res, err := e.resolver.Resolve(ctx, domain.KindPerson, keys)
	if err != nil {
		return domain.Outcome{}, err
	}
	if res.Status == Found {
		return e.applyPersonMatch(ctx, res, f, policy)
	}

	now := e.now().UTC()
	p := &domain.Person{ID: uuid.NewString(), Email: email, CreatedAt: now, UpdatedAt: now}
	for _, name := range domain.PersonOptionalFields {
		*p.OptionalField(name) = f.Ptr(name)
	}
	inserted, err := e.repo.InsertPerson(ctx, p)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("insert person: %w", err)
	}
	if inserted {
		return domain.Outcome{Kind: domain.KindPerson, Status: domain.OutcomeCreated, ID: p.ID}, nil
	}

	// Another writer created the identity between resolve and insert.
	res, err = e.resolveAfterRace(ctx, domain.KindPerson, keys)
	if err != nil {
		return domain.Outcome{}, err
	}
	return e.applyPersonMatch(ctx, res, f, policy)
}

func (e *Engine) applyPersonMatch(ctx context.Context, res Resolution, f Fields, policy domain.ConflictPolicy) (domain.Outcome, error) {
	out := domain.Outcome{Kind: domain.KindPerson, ID: res.ID, Via: string(res.Via)}
	switch policy {
	case domain.PolicySkip:
		out.Status = domain.OutcomeSkipped
	case domain.PolicyReject:
		out.Status = domain.OutcomeDuplicate
	default:
		if _, err := e.repo.UpdatePerson(ctx, res.ID, f); err != nil {
			return domain.Outcome{}, fmt.Errorf("update person %s: %w", res.ID, err)
		}
		out.Status = domain.OutcomeUpdated
	}
	return out, nil
}

// UpdatePerson applies f to the person with the given id. Absent fields
// keep their stored values. Moving the email or external id onto another
// person's value fails with ErrStorageConflict.
func (e *Engine) UpdatePerson(ctx context.Context, id string, f Fields) (*domain.Person, error) {
	p, err := e.updatePerson(ctx, id, f)
	out := domain.Outcome{Kind: domain.KindPerson, Status: domain.OutcomeUpdated, ID: id}
	e.record(ctx, domain.KindPerson, out, err)
	return p, err
}

func (e *Engine) updatePerson(ctx context.Context, id string, f Fields) (*domain.Person, error) {
	if _, err := e.repo.GetPerson(ctx, id); err != nil {
		return nil, err
	}
	if f.Blank() {
		return e.repo.GetPerson(ctx, id)
	}
	p, err := e.repo.UpdatePerson(ctx, id, f)
	if err != nil {
		return nil, fmt.Errorf("update person %s: %w", id, err)
	}
	return p, nil
}

// UpsertWebsite creates a website or reports the existing one as a
// duplicate. Websites are append-only.
func (e *Engine) UpsertWebsite(ctx context.Context, w *domain.Website) (domain.Outcome, error) {
	out, err := e.upsertWebsite(ctx, w)
	e.record(ctx, domain.KindWebsite, out, err)
	return out, err
}

func (e *Engine) upsertWebsite(ctx context.Context, w *domain.Website) (domain.Outcome, error) {
	if w.URL == "" {
		return domain.Outcome{}, ErrMissingURL
	}
	if w.Name == "" {
		return domain.Outcome{}, ErrMissingName
	}
	now := e.now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now
	return e.appendOnly(ctx, domain.KindWebsite, WebsiteKeys(w), &w.ID, func() (bool, error) {
		return e.repo.InsertWebsite(ctx, w)
	})
}

// UpsertWebform creates a webform under an existing website or reports the
// existing (website, external_id) or dedup_key match as a duplicate.
func (e *Engine) UpsertWebform(ctx context.Context, f *domain.Webform) (domain.Outcome, error) {
	out, err := e.upsertWebform(ctx, f)
	e.record(ctx, domain.KindWebform, out, err)
	return out, err
}

func (e *Engine) upsertWebform(ctx context.Context, f *domain.Webform) (domain.Outcome, error) {
	if f.WebsiteID == "" {
		return domain.Outcome{}, &ValidationError{Field: "website_id", Reason: "missing website_id"}
	}
	if f.ExternalID == "" {
		return domain.Outcome{}, &ValidationError{Field: "external_id", Reason: "missing external_id"}
	}
	if f.Name == "" {
		return domain.Outcome{}, ErrMissingName
	}
	if _, err := e.repo.GetWebsite(ctx, f.WebsiteID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.Outcome{}, ErrUnknownWebsite
		}
		return domain.Outcome{}, err
	}
	now := e.now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now
	return e.appendOnly(ctx, domain.KindWebform, WebformKeys(f), &f.ID, func() (bool, error) {
		return e.repo.InsertWebform(ctx, f)
	})
}

// UpsertSubmission stores a submission exactly once. A second delivery
// with the same dedup_key or (webform, external_id) is a duplicate that
// references the first row.
func (e *Engine) UpsertSubmission(ctx context.Context, s *domain.WebformSubmission) (domain.Outcome, error) {
	out, err := e.upsertSubmission(ctx, s)
	e.record(ctx, domain.KindSubmission, out, err)
	return out, err
}

func (e *Engine) upsertSubmission(ctx context.Context, s *domain.WebformSubmission) (domain.Outcome, error) {
	if s.WebformID == "" {
		return domain.Outcome{}, &ValidationError{Field: "webform_id", Reason: "missing webform_id"}
	}
	if s.PersonID == "" {
		return domain.Outcome{}, ErrMissingIdentity
	}
	if s.Payload == nil {
		s.Payload = map[string]any{}
	}
	now := e.now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	return e.appendOnly(ctx, domain.KindSubmission, SubmissionKeys(s), &s.ID, func() (bool, error) {
		return e.repo.InsertSubmission(ctx, s)
	})
}

// appendOnly implements the shared create-or-duplicate flow of the
// append-only kinds. Any match is a duplicate regardless of caller policy.
func (e *Engine) appendOnly(ctx context.Context, kind domain.EntityKind, keys []CandidateKey, id *string, insert func() (bool, error)) (domain.Outcome, error) {
	res, err := e.resolver.Resolve(ctx, kind, keys)
	if err != nil {
		return domain.Outcome{}, err
	}
	if res.Status == Found {
		return duplicate(kind, res), nil
	}

	if *id == "" {
		*id = uuid.NewString()
	}
	inserted, err := insert()
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("insert %s: %w", kind, err)
	}
	if inserted {
		return domain.Outcome{Kind: kind, Status: domain.OutcomeCreated, ID: *id}, nil
	}

	res, err = e.resolveAfterRace(ctx, kind, keys)
	if err != nil {
		return domain.Outcome{}, err
	}
	return duplicate(kind, res), nil
}

// resolveAfterRace re-resolves after an insert lost to a concurrent writer.
// If the winner still cannot be found the conflict is reported as
// retryable.
func (e *Engine) resolveAfterRace(ctx context.Context, kind domain.EntityKind, keys []CandidateKey) (Resolution, error) {
	res, err := e.resolver.Resolve(ctx, kind, keys)
	if err != nil {
		return Resolution{}, err
	}
	if res.Status != Found {
		return Resolution{}, fmt.Errorf("%w: %s insert lost a uniqueness race", ErrStorageConflict, kind)
	}
	return res, nil
}

func duplicate(kind domain.EntityKind, res Resolution) domain.Outcome {
	return domain.Outcome{Kind: kind, Status: domain.OutcomeDuplicate, ID: res.ID, Via: string(res.Via)}
}

func (e *Engine) record(ctx context.Context, kind domain.EntityKind, out domain.Outcome, err error) {
	ev := AuditEvent{Kind: kind, Status: out.Status, ID: out.ID, Via: KeyKind(out.Via), Err: err, At: e.now().UTC()}
	e.audit.Record(ctx, ev)
}
