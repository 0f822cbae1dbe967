package ingest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/contact-hub/internal/domain"
	"github.com/ignite/contact-hub/internal/repository/memory"
	"github.com/ignite/contact-hub/internal/service/ingest"
)

type linkFixture struct {
	engine  *ingest.Engine
	linker  *ingest.Linker
	store   *memory.Store
	website string
	webform string
}

func newLinkFixture(t *testing.T) *linkFixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	e := ingest.NewEngine(store, nil)
	site, err := e.UpsertWebsite(ctx, &domain.Website{Name: "Drupal Site", URL: "http://localhost:8080"})
	require.NoError(t, err)
	form, err := e.UpsertWebform(ctx, &domain.Webform{WebsiteID: site.ID, ExternalID: "contact", Name: "Contact"})
	require.NoError(t, err)
	return &linkFixture{engine: e, linker: ingest.NewLinker(e), store: store, website: site.ID, webform: form.ID}
}

func strp(s string) *string { return &s }

func TestLinkCreatesPersonFromPayload(t *testing.T) {
	ctx := context.Background()
	fx := newLinkFixture(t)

	res, err := fx.linker.LinkAndCreate(ctx, ingest.SubmissionInput{
		Webform: ingest.WebformRef{ID: fx.webform},
		Payload: map[string]any{"email": "a@b.com", "first_name": "A"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCreated, res.Outcome.Status)
	assert.Equal(t, domain.OutcomeCreated, res.Person.Status)

	p, err := fx.store.GetPerson(ctx, res.Submission.PersonID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", p.Email)
	assert.Equal(t, "A", *p.FirstName)
}

func TestLinkAttachesToExistingPerson(t *testing.T) {
	ctx := context.Background()
	fx := newLinkFixture(t)
	existing, err := fx.engine.UpsertPerson(ctx, ingest.Fields{"email": "a@b.com", "first_name": "Original", "country": "IT"}, domain.PolicyUpdate)
	require.NoError(t, err)

	res, err := fx.linker.LinkAndCreate(ctx, ingest.SubmissionInput{
		Webform: ingest.WebformRef{ID: fx.webform},
		Payload: map[string]any{"email": "a@b.com", "first_name": "Changed"},
	})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, res.Submission.PersonID)
	assert.Equal(t, domain.OutcomeSkipped, res.Person.Status)

	p, _ := fx.store.GetPerson(ctx, existing.ID)
	assert.Equal(t, "Original", *p.FirstName, "an existing person is never overwritten")
}

func TestLinkDefaultsFirstNameToLocalPart(t *testing.T) {
	ctx := context.Background()
	fx := newLinkFixture(t)
	res, err := fx.linker.LinkAndCreate(ctx, ingest.SubmissionInput{
		Webform: ingest.WebformRef{ID: fx.webform},
		Payload: map[string]any{"data": map[string]any{"email": "jane.doe@b.com"}},
	})
	require.NoError(t, err)
	p, _ := fx.store.GetPerson(ctx, res.Submission.PersonID)
	assert.Equal(t, "jane.doe", *p.FirstName)
}

func TestLinkErrors(t *testing.T) {
	ctx := context.Background()
	fx := newLinkFixture(t)

	_, err := fx.linker.LinkAndCreate(ctx, ingest.SubmissionInput{
		Webform: ingest.WebformRef{ID: fx.webform},
		Payload: map[string]any{"name": "no email"},
	})
	assert.ErrorIs(t, err, ingest.ErrMissingIdentity)

	_, err = fx.linker.LinkAndCreate(ctx, ingest.SubmissionInput{
		Webform:  ingest.WebformRef{ID: fx.webform},
		PersonID: "nobody",
	})
	assert.ErrorIs(t, err, ingest.ErrUnknownReference)

	_, err = fx.linker.LinkAndCreate(ctx, ingest.SubmissionInput{
		Webform: ingest.WebformRef{ID: "missing"},
		Payload: map[string]any{"email": "a@b.com"},
	})
	assert.ErrorIs(t, err, ingest.ErrUnknownWebform)

	_, err = fx.linker.LinkAndCreate(ctx, ingest.SubmissionInput{
		Webform: ingest.WebformRef{WebsiteID: fx.website, ExternalID: "newsletter"},
		Payload: map[string]any{"email": "a@b.com"},
	})
	assert.ErrorIs(t, err, ingest.ErrUnknownWebform)
}

func TestLinkRedeliveryIsDuplicate(t *testing.T) {
	ctx := context.Background()
	fx := newLinkFixture(t)
	in := ingest.SubmissionInput{
		Webform:    ingest.WebformRef{WebsiteID: fx.website, ExternalID: "contact"},
		ExternalID: strp("1001"),
		Payload:    map[string]any{"email": "a@b.com"},
	}

	first, err := fx.linker.LinkAndCreate(ctx, in)
	require.NoError(t, err)
	second, err := fx.linker.LinkAndCreate(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeDuplicate, second.Outcome.Status)
	assert.Equal(t, first.Submission.ID, second.Outcome.ID)
	assert.Equal(t, first.Submission.ID, second.Submission.ID)

	_, total, _ := fx.store.ListSubmissions(ctx, ingest.SubmissionFilter{WebformID: fx.webform})
	assert.Equal(t, 1, total)
}

func TestLinkDedupKeyIsGlobal(t *testing.T) {
	ctx := context.Background()
	fx := newLinkFixture(t)
	first, err := fx.linker.LinkAndCreate(ctx, ingest.SubmissionInput{
		Webform:  ingest.WebformRef{ID: fx.webform},
		DedupKey: strp("delivery-1"),
		Payload:  map[string]any{"email": "a@b.com"},
	})
	require.NoError(t, err)

	again, err := fx.linker.LinkAndCreate(ctx, ingest.SubmissionInput{
		Webform:    ingest.WebformRef{ID: fx.webform},
		DedupKey:   strp(" delivery-1 "),
		ExternalID: strp("other"),
		Payload:    map[string]any{"email": "a@b.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDuplicate, again.Outcome.Status)
	assert.Equal(t, first.Submission.ID, again.Outcome.ID)
	assert.Equal(t, "dedup_key", again.Outcome.Via)
}
