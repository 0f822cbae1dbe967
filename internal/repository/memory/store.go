// Package memory implements the ingest repository in process memory. It
// backs the "memory" database driver and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ignite/contact-hub/internal/domain"
	"github.com/ignite/contact-hub/internal/service/ingest"
)

// Store is a thread-safe ingest.Repository and ingest.Catalog. Each Insert
// checks every unique constraint and writes under one lock, which gives the
// same insert-if-absent guarantee as ON CONFLICT DO NOTHING.
type Store struct {
	mu          sync.RWMutex
	seq         int64
	persons     map[string]*domain.Person
	websites    map[string]*domain.Website
	webforms    map[string]*domain.Webform
	submissions map[string]*domain.WebformSubmission
	order       map[string]int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		persons:     make(map[string]*domain.Person),
		websites:    make(map[string]*domain.Website),
		webforms:    make(map[string]*domain.Webform),
		submissions: make(map[string]*domain.WebformSubmission),
		order:       make(map[string]int64),
	}
}

func eq(p *string, v string) bool { return p != nil && *p == v }

// Lookup implements ingest.Repository.
func (s *Store) Lookup(_ context.Context, kind domain.EntityKind, key ingest.CandidateKey) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	add := func(id string) bool {
		ids = append(ids, id)
		return len(ids) < 2
	}
	switch kind {
	case domain.KindPerson:
		for id, p := range s.persons {
			if personMatches(p, key) && !add(id) {
				break
			}
		}
	case domain.KindWebsite:
		for id, w := range s.websites {
			if websiteMatches(w, key) && !add(id) {
				break
			}
		}
	case domain.KindWebform:
		for id, f := range s.webforms {
			if webformMatches(f, key) && !add(id) {
				break
			}
		}
	case domain.KindSubmission:
		for id, sub := range s.submissions {
			if submissionMatches(sub, key) && !add(id) {
				break
			}
		}
	default:
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	sort.Strings(ids)
	return ids, nil
}

func personMatches(p *domain.Person, key ingest.CandidateKey) bool {
	switch key.Kind {
	case ingest.KeyDedup:
		return eq(p.DedupKey, key.Value)
	case ingest.KeyExternalID:
		return eq(p.ExternalID, key.Value)
	case ingest.KeyNatural:
		return p.Email == key.Value
	}
	return false
}

func websiteMatches(w *domain.Website, key ingest.CandidateKey) bool {
	switch key.Kind {
	case ingest.KeyDedup:
		return eq(w.DedupKey, key.Value)
	case ingest.KeyExternalID:
		return eq(w.ExternalID, key.Value)
	case ingest.KeyNatural:
		return w.URL == key.Value
	}
	return false
}

func webformMatches(f *domain.Webform, key ingest.CandidateKey) bool {
	switch key.Kind {
	case ingest.KeyDedup:
		return eq(f.DedupKey, key.Value)
	case ingest.KeyExternalID, ingest.KeyNatural:
		return f.WebsiteID == key.Scope && f.ExternalID == key.Value
	}
	return false
}

func submissionMatches(sub *domain.WebformSubmission, key ingest.CandidateKey) bool {
	switch key.Kind {
	case ingest.KeyDedup:
		return eq(sub.DedupKey, key.Value)
	case ingest.KeyExternalID:
		return sub.WebformID == key.Scope && eq(sub.ExternalID, key.Value)
	}
	return false
}

// taken reports whether any of keys already matches a stored row of kind,
// ignoring the row with id skip. Caller holds the lock.
func (s *Store) taken(kind domain.EntityKind, skip string, keys []ingest.CandidateKey) bool {
	for _, key := range keys {
		var hit bool
		switch kind {
		case domain.KindPerson:
			for id, p := range s.persons {
				hit = hit || (id != skip && personMatches(p, key))
			}
		case domain.KindWebsite:
			for id, w := range s.websites {
				hit = hit || (id != skip && websiteMatches(w, key))
			}
		case domain.KindWebform:
			for id, f := range s.webforms {
				hit = hit || (id != skip && webformMatches(f, key))
			}
		case domain.KindSubmission:
			for id, sub := range s.submissions {
				hit = hit || (id != skip && submissionMatches(sub, key))
			}
		}
		if hit {
			return true
		}
	}
	return false
}

func (s *Store) stamp(id string) {
	s.seq++
	s.order[id] = s.seq
}

// GetPerson implements ingest.Repository.
func (s *Store) GetPerson(_ context.Context, id string) (*domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[id]
	if !ok {
		return nil, ingest.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// InsertPerson implements ingest.Repository.
func (s *Store) InsertPerson(_ context.Context, p *domain.Person) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taken(domain.KindPerson, "", personUniqueKeys(p)) {
		return false, nil
	}
	cp := *p
	s.persons[p.ID] = &cp
	s.stamp(p.ID)
	return true, nil
}

func personUniqueKeys(p *domain.Person) []ingest.CandidateKey {
	keys := []ingest.CandidateKey{{Kind: ingest.KeyNatural, Value: p.Email}}
	if p.ExternalID != nil {
		keys = append(keys, ingest.CandidateKey{Kind: ingest.KeyExternalID, Value: *p.ExternalID})
	}
	if p.DedupKey != nil {
		keys = append(keys, ingest.CandidateKey{Kind: ingest.KeyDedup, Value: *p.DedupKey})
	}
	return keys
}

// UpdatePerson implements ingest.Repository. A change that would collide
// with another person's email, external_id or dedup_key fails with
// ingest.ErrStorageConflict and leaves the row unchanged.
func (s *Store) UpdatePerson(_ context.Context, id string, fields ingest.Fields) (*domain.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.persons[id]
	if !ok {
		return nil, ingest.ErrNotFound
	}
	next := *cur
	for name, v := range fields {
		v := v
		if name == domain.FieldEmail {
			next.Email = v
			continue
		}
		if col := next.OptionalField(name); col != nil {
			*col = &v
		}
	}
	if s.taken(domain.KindPerson, id, personUniqueKeys(&next)) {
		return nil, fmt.Errorf("%w: person %s update collides with another person", ingest.ErrStorageConflict, id)
	}
	next.UpdatedAt = time.Now().UTC()
	s.persons[id] = &next
	cp := next
	return &cp, nil
}

// GetWebsite implements ingest.Repository.
func (s *Store) GetWebsite(_ context.Context, id string) (*domain.Website, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.websites[id]
	if !ok {
		return nil, ingest.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

// InsertWebsite implements ingest.Repository.
func (s *Store) InsertWebsite(_ context.Context, w *domain.Website) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := []ingest.CandidateKey{{Kind: ingest.KeyNatural, Value: w.URL}}
	if w.ExternalID != nil {
		keys = append(keys, ingest.CandidateKey{Kind: ingest.KeyExternalID, Value: *w.ExternalID})
	}
	if w.DedupKey != nil {
		keys = append(keys, ingest.CandidateKey{Kind: ingest.KeyDedup, Value: *w.DedupKey})
	}
	if s.taken(domain.KindWebsite, "", keys) {
		return false, nil
	}
	cp := *w
	s.websites[w.ID] = &cp
	s.stamp(w.ID)
	return true, nil
}

// GetWebform implements ingest.Repository.
func (s *Store) GetWebform(_ context.Context, id string) (*domain.Webform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.webforms[id]
	if !ok {
		return nil, ingest.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

// InsertWebform implements ingest.Repository.
func (s *Store) InsertWebform(_ context.Context, f *domain.Webform) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.websites[f.WebsiteID]; !ok {
		return false, ingest.ErrUnknownWebsite
	}
	keys := []ingest.CandidateKey{{Kind: ingest.KeyNatural, Value: f.ExternalID, Scope: f.WebsiteID}}
	if f.DedupKey != nil {
		keys = append(keys, ingest.CandidateKey{Kind: ingest.KeyDedup, Value: *f.DedupKey})
	}
	if s.taken(domain.KindWebform, "", keys) {
		return false, nil
	}
	cp := *f
	s.webforms[f.ID] = &cp
	s.stamp(f.ID)
	return true, nil
}

// GetSubmission implements ingest.Repository.
func (s *Store) GetSubmission(_ context.Context, id string) (*domain.WebformSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[id]
	if !ok {
		return nil, ingest.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

// InsertSubmission implements ingest.Repository.
func (s *Store) InsertSubmission(_ context.Context, sub *domain.WebformSubmission) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.webforms[sub.WebformID]; !ok {
		return false, ingest.ErrUnknownWebform
	}
	if _, ok := s.persons[sub.PersonID]; !ok {
		return false, ingest.ErrUnknownPerson
	}
	var keys []ingest.CandidateKey
	if sub.ExternalID != nil {
		keys = append(keys, ingest.CandidateKey{Kind: ingest.KeyExternalID, Value: *sub.ExternalID, Scope: sub.WebformID})
	}
	if sub.DedupKey != nil {
		keys = append(keys, ingest.CandidateKey{Kind: ingest.KeyDedup, Value: *sub.DedupKey})
	}
	if s.taken(domain.KindSubmission, "", keys) {
		return false, nil
	}
	cp := *sub
	s.submissions[sub.ID] = &cp
	s.stamp(sub.ID)
	return true, nil
}
