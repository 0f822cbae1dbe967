package ingest_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/contact-hub/internal/domain"
	"github.com/ignite/contact-hub/internal/repository/memory"
	"github.com/ignite/contact-hub/internal/service/ingest"
)

// recorder is an AuditHook that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []ingest.AuditEvent
}

func (r *recorder) Record(_ context.Context, ev ingest.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func newEngine(t *testing.T) (*ingest.Engine, *memory.Store, *recorder) {
	t.Helper()
	store := memory.New()
	rec := &recorder{}
	return ingest.NewEngine(store, rec), store, rec
}

func TestUpsertPersonCreate(t *testing.T) {
	ctx := context.Background()
	e, store, rec := newEngine(t)

	out, err := e.UpsertPerson(ctx, ingest.Normalize(map[string]string{
		"email": "mario@example.com", "first_name": `  "  Mario  "  `, "country": `""`,
	}), domain.PolicyUpdate)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCreated, out.Status)
	assert.NotEmpty(t, out.ID)

	p, err := store.GetPerson(ctx, out.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mario", *p.FirstName)
	assert.Nil(t, p.Country, "absent field is stored as NULL, never empty string")
	assert.False(t, p.CreatedAt.IsZero())

	require.Len(t, rec.events, 1)
	assert.Equal(t, domain.OutcomeCreated, rec.events[0].Status)
}

func TestUpsertPersonPolicies(t *testing.T) {
	ctx := context.Background()
	e, store, _ := newEngine(t)

	first, err := e.UpsertPerson(ctx, ingest.Fields{"email": "a@b.com", "first_name": "Ann", "country": "IT"}, domain.PolicyUpdate)
	require.NoError(t, err)

	skip, err := e.UpsertPerson(ctx, ingest.Fields{"email": "a@b.com", "first_name": "Other"}, domain.PolicySkip)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSkipped, skip.Status)
	assert.Equal(t, first.ID, skip.ID)
	p, _ := store.GetPerson(ctx, first.ID)
	assert.Equal(t, "Ann", *p.FirstName, "skip leaves the row untouched")

	rej, err := e.UpsertPerson(ctx, ingest.Fields{"email": "a@b.com"}, domain.PolicyReject)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDuplicate, rej.Status)
	assert.Equal(t, first.ID, rej.ID)
	assert.Equal(t, "natural_key", rej.Via)

	upd, err := e.UpsertPerson(ctx, ingest.Normalize(map[string]string{"email": "a@b.com", "first_name": "Anna", "country": ""}), domain.PolicyUpdate)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUpdated, upd.Status)
	p, _ = store.GetPerson(ctx, first.ID)
	assert.Equal(t, "Anna", *p.FirstName)
	require.NotNil(t, p.Country)
	assert.Equal(t, "IT", *p.Country, "absent never overwrites a stored value")

	_, total, err := store.ListPersons(ctx, ingest.PersonFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total, "one row per email regardless of policy")
}

func TestUpsertPersonMissingEmail(t *testing.T) {
	e, _, rec := newEngine(t)
	_, err := e.UpsertPerson(context.Background(), ingest.Fields{"first_name": "Ann"}, domain.PolicyUpdate)
	assert.ErrorIs(t, err, ingest.ErrValidation)
	assert.ErrorIs(t, err, ingest.ErrMissingEmail)
	require.Len(t, rec.events, 1)
	assert.Error(t, rec.events[0].Err)
}

func TestUpsertPersonIdentityConflict(t *testing.T) {
	ctx := context.Background()
	e, store, _ := newEngine(t)
	_, err := e.UpsertPerson(ctx, ingest.Fields{"email": "a@b.com"}, domain.PolicyUpdate)
	require.NoError(t, err)
	_, err = e.UpsertPerson(ctx, ingest.Fields{"email": "c@d.com", "external_id": "crm-9"}, domain.PolicyUpdate)
	require.NoError(t, err)

	// email says person 1, external_id says person 2.
	_, err = e.UpsertPerson(ctx, ingest.Fields{"email": "a@b.com", "external_id": "crm-9", "first_name": "X"}, domain.PolicyUpdate)
	assert.ErrorIs(t, err, ingest.ErrIdentityConflict)

	persons, _, _ := store.ListPersons(ctx, ingest.PersonFilter{})
	for _, p := range persons {
		assert.Nil(t, p.FirstName, "a conflict must not write")
	}
}

func TestUpsertPersonMatchedByExternalIDUpdatesEmail(t *testing.T) {
	ctx := context.Background()
	e, store, _ := newEngine(t)
	first, err := e.UpsertPerson(ctx, ingest.Fields{"email": "old@b.com", "external_id": "crm-1"}, domain.PolicyUpdate)
	require.NoError(t, err)

	out, err := e.UpsertPerson(ctx, ingest.Fields{"email": "new@b.com", "external_id": "crm-1"}, domain.PolicyUpdate)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUpdated, out.Status)
	assert.Equal(t, "external_id", out.Via)

	p, _ := store.GetPerson(ctx, first.ID)
	assert.Equal(t, "new@b.com", p.Email)
}

func TestUpsertPersonConcurrentSameEmail(t *testing.T) {
	ctx := context.Background()
	e, store, _ := newEngine(t)

	const n = 32
	outs := make([]domain.Outcome, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i], errs[i] = e.UpsertPerson(ctx, ingest.Fields{"email": "race@b.com", "first_name": fmt.Sprint(i)}, domain.PolicySkip)
		}(i)
	}
	wg.Wait()

	created := 0
	for i := range outs {
		require.NoError(t, errs[i])
		if outs[i].Status == domain.OutcomeCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)
	_, total, _ := store.ListPersons(ctx, ingest.PersonFilter{})
	assert.Equal(t, 1, total)
}

// racingStore simulates a concurrent writer that wins between resolve and
// insert.
type racingStore struct {
	*memory.Store
	winner *domain.Person
}

func (r *racingStore) InsertPerson(ctx context.Context, p *domain.Person) (bool, error) {
	if r.winner != nil {
		w := r.winner
		r.winner = nil
		if _, err := r.Store.InsertPerson(ctx, w); err != nil {
			return false, err
		}
	}
	return r.Store.InsertPerson(ctx, p)
}

func TestUpsertPersonLostRaceAppliesPolicy(t *testing.T) {
	ctx := context.Background()
	repo := &racingStore{Store: memory.New(), winner: &domain.Person{ID: "winner", Email: "a@b.com"}}
	e := ingest.NewEngine(repo, nil)

	out, err := e.UpsertPerson(ctx, ingest.Fields{"email": "a@b.com", "first_name": "Late"}, domain.PolicyUpdate)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUpdated, out.Status)
	assert.Equal(t, "winner", out.ID)

	p, _ := repo.GetPerson(ctx, "winner")
	assert.Equal(t, "Late", *p.FirstName)
}

// ghostStore reports every insert as lost without a visible winner.
type ghostStore struct{ *memory.Store }

func (ghostStore) InsertPerson(context.Context, *domain.Person) (bool, error) { return false, nil }

func TestUpsertPersonUnattributableRaceIsStorageConflict(t *testing.T) {
	e := ingest.NewEngine(ghostStore{memory.New()}, nil)
	_, err := e.UpsertPerson(context.Background(), ingest.Fields{"email": "a@b.com"}, domain.PolicyUpdate)
	assert.ErrorIs(t, err, ingest.ErrStorageConflict)
}

func TestUpdatePerson(t *testing.T) {
	ctx := context.Background()
	e, _, rec := newEngine(t)

	a, err := e.UpsertPerson(ctx, ingest.Fields{"email": "a@b.com", "first_name": "Ann"}, domain.PolicySkip)
	require.NoError(t, err)
	b, err := e.UpsertPerson(ctx, ingest.Fields{"email": "c@d.com"}, domain.PolicySkip)
	require.NoError(t, err)

	p, err := e.UpdatePerson(ctx, a.ID, ingest.Normalize(map[string]string{"first_name": "", "country": "IT"}))
	require.NoError(t, err)
	assert.Equal(t, "Ann", *p.FirstName)
	assert.Equal(t, "IT", *p.Country)

	_, err = e.UpdatePerson(ctx, a.ID, ingest.Fields{"email": "c@d.com"})
	assert.ErrorIs(t, err, ingest.ErrStorageConflict)
	assert.NotEqual(t, a.ID, b.ID)

	_, err = e.UpdatePerson(ctx, "missing", ingest.Fields{"country": "FR"})
	assert.ErrorIs(t, err, ingest.ErrNotFound)

	last := rec.events[len(rec.events)-1]
	assert.Equal(t, domain.OutcomeUpdated, last.Status)
	assert.Error(t, last.Err)
}

func TestUpsertWebsiteAppendOnly(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newEngine(t)

	first, err := e.UpsertWebsite(ctx, &domain.Website{Name: "Drupal", URL: "http://localhost:8080"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCreated, first.Status)

	again, err := e.UpsertWebsite(ctx, &domain.Website{Name: "Renamed", URL: "http://localhost:8080"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDuplicate, again.Status)
	assert.Equal(t, first.ID, again.ID)

	dk := "site-dk"
	_, err = e.UpsertWebsite(ctx, &domain.Website{Name: "B", URL: "http://b", DedupKey: &dk})
	require.NoError(t, err)
	dup, err := e.UpsertWebsite(ctx, &domain.Website{Name: "C", URL: "http://c", DedupKey: &dk})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDuplicate, dup.Status)
	assert.Equal(t, "dedup_key", dup.Via)

	_, err = e.UpsertWebsite(ctx, &domain.Website{Name: "no url"})
	assert.ErrorIs(t, err, ingest.ErrValidation)
}

func TestUpsertWebform(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newEngine(t)
	site, err := e.UpsertWebsite(ctx, &domain.Website{Name: "s", URL: "http://s"})
	require.NoError(t, err)

	_, err = e.UpsertWebform(ctx, &domain.Webform{WebsiteID: "missing", ExternalID: "contact", Name: "Contact"})
	assert.ErrorIs(t, err, ingest.ErrUnknownReference)

	_, err = e.UpsertWebform(ctx, &domain.Webform{WebsiteID: site.ID, Name: "Contact"})
	assert.ErrorIs(t, err, ingest.ErrValidation)

	first, err := e.UpsertWebform(ctx, &domain.Webform{WebsiteID: site.ID, ExternalID: "contact", Name: "Contact"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCreated, first.Status)

	again, err := e.UpsertWebform(ctx, &domain.Webform{WebsiteID: site.ID, ExternalID: "contact", Name: "Contact v2"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDuplicate, again.Status)
	assert.Equal(t, first.ID, again.ID)
}

func TestMetricsHookCountsOutcomes(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	hook := ingest.NewMetricsHook(reg)
	e := ingest.NewEngine(memory.New(), hook)

	_, _ = e.UpsertPerson(ctx, ingest.Fields{"email": "a@b.com"}, domain.PolicySkip)
	_, _ = e.UpsertPerson(ctx, ingest.Fields{"email": "a@b.com"}, domain.PolicySkip)
	_, _ = e.UpsertPerson(ctx, ingest.Fields{}, domain.PolicySkip)

	// created, skipped and error_validation
	assert.Equal(t, 3, testutil.CollectAndCount(reg, "contact_hub_ingest_records_total"))
}
