package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/contact-hub/internal/domain"
	"github.com/ignite/contact-hub/internal/service/ingest"
)

func strp(s string) *string { return &s }

func TestInsertPersonIsInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := New()

	ok, err := s.InsertPerson(ctx, &domain.Person{ID: "p1", Email: "a@b.com"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.InsertPerson(ctx, &domain.Person{ID: "p2", Email: "a@b.com"})
	require.NoError(t, err)
	assert.False(t, ok, "second insert with the same email must not write")

	ok, err = s.InsertPerson(ctx, &domain.Person{ID: "p3", Email: "c@d.com", ExternalID: strp("x1")})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.InsertPerson(ctx, &domain.Person{ID: "p4", Email: "e@f.com", ExternalID: strp("x1")})
	require.NoError(t, err)
	assert.False(t, ok, "external_id is unique when present")

	_, total, err := s.ListPersons(ctx, ingest.PersonFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestUpdatePersonKeepsAbsentFields(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.InsertPerson(ctx, &domain.Person{ID: "p1", Email: "a@b.com", FirstName: strp("Ann"), Country: strp("IT")})
	require.NoError(t, err)

	p, err := s.UpdatePerson(ctx, "p1", ingest.Fields{"email": "a@b.com", "first_name": "Anna"})
	require.NoError(t, err)
	assert.Equal(t, "Anna", *p.FirstName)
	require.NotNil(t, p.Country)
	assert.Equal(t, "IT", *p.Country)

	_, err = s.UpdatePerson(ctx, "missing", ingest.Fields{"first_name": "x"})
	assert.ErrorIs(t, err, ingest.ErrNotFound)
}

func TestUpdatePersonCollisionIsStorageConflict(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _ = s.InsertPerson(ctx, &domain.Person{ID: "p1", Email: "a@b.com"})
	_, _ = s.InsertPerson(ctx, &domain.Person{ID: "p2", Email: "c@d.com"})

	_, err := s.UpdatePerson(ctx, "p2", ingest.Fields{"email": "a@b.com"})
	assert.ErrorIs(t, err, ingest.ErrStorageConflict)

	p, err := s.GetPerson(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "c@d.com", p.Email)
}

func TestLookupScopesWebformAndSubmission(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _ = s.InsertWebsite(ctx, &domain.Website{ID: "w1", Name: "one", URL: "http://one"})
	_, _ = s.InsertWebsite(ctx, &domain.Website{ID: "w2", Name: "two", URL: "http://two"})
	_, err := s.InsertWebform(ctx, &domain.Webform{ID: "f1", WebsiteID: "w1", ExternalID: "contact", Name: "Contact"})
	require.NoError(t, err)
	ok, err := s.InsertWebform(ctx, &domain.Webform{ID: "f2", WebsiteID: "w2", ExternalID: "contact", Name: "Contact"})
	require.NoError(t, err)
	assert.True(t, ok, "external_id is only unique per website")

	ids, err := s.Lookup(ctx, domain.KindWebform, ingest.CandidateKey{Kind: ingest.KeyNatural, Value: "contact", Scope: "w2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"f2"}, ids)

	_, err = s.InsertWebform(ctx, &domain.Webform{ID: "f3", WebsiteID: "nope", ExternalID: "x", Name: "X"})
	assert.ErrorIs(t, err, ingest.ErrUnknownReference)

	_, _ = s.InsertPerson(ctx, &domain.Person{ID: "p1", Email: "a@b.com"})
	ok, err = s.InsertSubmission(ctx, &domain.WebformSubmission{ID: "s1", WebformID: "f1", PersonID: "p1", ExternalID: strp("7")})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.InsertSubmission(ctx, &domain.WebformSubmission{ID: "s2", WebformID: "f1", PersonID: "p1", ExternalID: strp("7")})
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err = s.Lookup(ctx, domain.KindSubmission, ingest.CandidateKey{Kind: ingest.KeyExternalID, Value: "7", Scope: "f2"})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestListOrdersNewestFirstAndPages(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, id := range []string{"a", "b", "c"} {
		_, err := s.InsertWebsite(ctx, &domain.Website{ID: id, Name: id, URL: "http://" + id})
		require.NoError(t, err)
	}
	sites, total, err := s.ListWebsites(ctx, ingest.ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, sites, 2)
	assert.Equal(t, "c", sites[0].ID)
	assert.Equal(t, "b", sites[1].ID)

	sites, _, err = s.ListWebsites(ctx, ingest.ListFilter{Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, sites)
}
