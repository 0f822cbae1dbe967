package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ignite/contact-hub/internal/domain"
)

// WebformRef identifies the owning webform of a submission, either by local
// id or by (website id, external id).
type WebformRef struct {
	ID         string
	WebsiteID  string
	ExternalID string
}

// SubmissionInput is one submission to link and store.
type SubmissionInput struct {
	Webform       WebformRef
	PersonID      string
	ExternalID    *string
	DedupKey      *string
	Payload       map[string]any
	SourceWebsite *string
}

// SubmissionResult reports what happened to the submission and to the
// person it was attached to.
type SubmissionResult struct {
	Submission *domain.WebformSubmission `json:"submission"`
	Outcome    domain.Outcome            `json:"outcome"`
	Person     domain.Outcome            `json:"person"`
}

// Linker attaches submissions to a person and webform, auto-creating the
// person from the payload when needed.
type Linker struct {
	engine *Engine
	repo   Repository
}

// NewLinker creates a submission linker writing through engine.
func NewLinker(engine *Engine) *Linker {
	return &Linker{engine: engine, repo: engine.repo}
}

// LinkAndCreate resolves the person and webform, then stores the submission
// exactly once. A redelivery returns a duplicate outcome whose ID is the
// first row's.
func (l *Linker) LinkAndCreate(ctx context.Context, in SubmissionInput) (*SubmissionResult, error) {
	in.ExternalID = NormalizePtr(in.ExternalID)
	in.DedupKey = NormalizePtr(in.DedupKey)
	in.SourceWebsite = NormalizePtr(in.SourceWebsite)

	person, err := l.linkPerson(ctx, in)
	if err != nil {
		return nil, err
	}

	form, err := l.resolveWebform(ctx, in.Webform)
	if err != nil {
		return nil, err
	}

	sub := &domain.WebformSubmission{
		WebformID:     form.ID,
		PersonID:      person.ID,
		ExternalID:    in.ExternalID,
		DedupKey:      in.DedupKey,
		Payload:       in.Payload,
		SourceWebsite: in.SourceWebsite,
	}
	out, err := l.engine.UpsertSubmission(ctx, sub)
	if err != nil {
		return nil, err
	}
	if out.Status == domain.OutcomeDuplicate {
		existing, err := l.repo.GetSubmission(ctx, out.ID)
		if err != nil {
			return nil, fmt.Errorf("load duplicate submission %s: %w", out.ID, err)
		}
		sub = existing
	}
	return &SubmissionResult{Submission: sub, Outcome: out, Person: person}, nil
}

// linkPerson uses the explicit person id when given, otherwise the payload
// email. An existing person with that email is reused untouched.
func (l *Linker) linkPerson(ctx context.Context, in SubmissionInput) (domain.Outcome, error) {
	if id := strings.TrimSpace(in.PersonID); id != "" {
		if _, err := l.repo.GetPerson(ctx, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return domain.Outcome{}, ErrUnknownPerson
			}
			return domain.Outcome{}, err
		}
		return domain.Outcome{Kind: domain.KindPerson, Status: domain.OutcomeSkipped, ID: id}, nil
	}

	email, ok := PayloadEmail(in.Payload)
	if !ok {
		return domain.Outcome{}, ErrMissingIdentity
	}
	f := Fields{domain.FieldEmail: email}
	if v, ok := payloadString(in.Payload, domain.FieldFirstName); ok {
		f[domain.FieldFirstName] = v
	} else if local, _, _ := strings.Cut(email, "@"); local != "" {
		f[domain.FieldFirstName] = local
	}
	if v, ok := payloadString(in.Payload, domain.FieldLastName); ok {
		f[domain.FieldLastName] = v
	}
	if in.SourceWebsite != nil {
		f[domain.FieldSourceWebsite] = *in.SourceWebsite
	}
	return l.engine.UpsertPerson(ctx, f, domain.PolicySkip)
}

func (l *Linker) resolveWebform(ctx context.Context, ref WebformRef) (*domain.Webform, error) {
	if ref.ID != "" {
		form, err := l.repo.GetWebform(ctx, ref.ID)
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnknownWebform
		}
		return form, err
	}
	if ref.WebsiteID == "" || ref.ExternalID == "" {
		return nil, &ValidationError{Field: "webform", Reason: "webform id or (website_id, external_id) is required"}
	}
	ids, err := l.repo.Lookup(ctx, domain.KindWebform, CandidateKey{Kind: KeyNatural, Value: ref.ExternalID, Scope: ref.WebsiteID})
	if err != nil {
		return nil, fmt.Errorf("lookup webform: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrUnknownWebform
	}
	form, err := l.repo.GetWebform(ctx, ids[0])
	if errors.Is(err, ErrNotFound) {
		return nil, ErrUnknownWebform
	}
	return form, err
}
