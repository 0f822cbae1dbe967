package ingest

import (
	"context"
	"fmt"

	"github.com/ignite/contact-hub/internal/domain"
)

// KeyKind names an identity strategy. Keys are probed in the order
// dedup_key, external_id, natural_key.
type KeyKind string

const (
	KeyDedup      KeyKind = "dedup_key"
	KeyExternalID KeyKind = "external_id"
	KeyNatural    KeyKind = "natural_key"
)

// CandidateKey is one identity probe. Scope holds the parent id for keys
// that are only unique within a parent (webform within website,
// submission within webform).
type CandidateKey struct {
	Kind  KeyKind
	Value string
	Scope string
}

// Match records which stored entity a candidate key resolved to.
type Match struct {
	Key KeyKind
	ID  string
}

// ResolutionStatus tags the result of Resolve.
type ResolutionStatus int

const (
	NotFound ResolutionStatus = iota
	Found
	Conflict
)

func (s ResolutionStatus) String() string {
	switch s {
	case Found:
		return "found"
	case Conflict:
		return "conflict"
	}
	return "not_found"
}

// Resolution is the tagged result of identity resolution. For Found, ID is
// the entity and Via is the highest-priority key that matched. For
// Conflict, Matches lists every key that hit.
type Resolution struct {
	Status  ResolutionStatus
	ID      string
	Via     KeyKind
	Matches []Match
}

// PersonKeys builds the ordered candidate keys of a normalized person.
func PersonKeys(f Fields) []CandidateKey {
	var keys []CandidateKey
	if v, ok := f.Get(domain.FieldDedupKey); ok {
		keys = append(keys, CandidateKey{Kind: KeyDedup, Value: v})
	}
	if v, ok := f.Get(domain.FieldExternalID); ok {
		keys = append(keys, CandidateKey{Kind: KeyExternalID, Value: v})
	}
	if v, ok := f.Get(domain.FieldEmail); ok {
		keys = append(keys, CandidateKey{Kind: KeyNatural, Value: v})
	}
	return keys
}

// WebsiteKeys builds the ordered candidate keys of a website.
func WebsiteKeys(w *domain.Website) []CandidateKey {
	var keys []CandidateKey
	if w.DedupKey != nil {
		keys = append(keys, CandidateKey{Kind: KeyDedup, Value: *w.DedupKey})
	}
	if w.ExternalID != nil {
		keys = append(keys, CandidateKey{Kind: KeyExternalID, Value: *w.ExternalID})
	}
	if w.URL != "" {
		keys = append(keys, CandidateKey{Kind: KeyNatural, Value: w.URL})
	}
	return keys
}

// WebformKeys builds the ordered candidate keys of a webform. Its natural
// key is (website, external_id).
func WebformKeys(f *domain.Webform) []CandidateKey {
	var keys []CandidateKey
	if f.DedupKey != nil {
		keys = append(keys, CandidateKey{Kind: KeyDedup, Value: *f.DedupKey})
	}
	if f.ExternalID != "" && f.WebsiteID != "" {
		keys = append(keys, CandidateKey{Kind: KeyNatural, Value: f.ExternalID, Scope: f.WebsiteID})
	}
	return keys
}

// SubmissionKeys builds the ordered candidate keys of a submission. It has
// no natural key; external_id is scoped by webform.
func SubmissionKeys(s *domain.WebformSubmission) []CandidateKey {
	var keys []CandidateKey
	if s.DedupKey != nil {
		keys = append(keys, CandidateKey{Kind: KeyDedup, Value: *s.DedupKey})
	}
	if s.ExternalID != nil && s.WebformID != "" {
		keys = append(keys, CandidateKey{Kind: KeyExternalID, Value: *s.ExternalID, Scope: s.WebformID})
	}
	return keys
}

// Resolver maps candidate keys to at most one stored entity. It is
// read-only and safe for concurrent use.
type Resolver struct {
	repo Repository
}

// NewResolver creates a resolver over the given repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve probes every key in order. It never merges: if two keys hit
// different entities (or one key hits two), the result is a Conflict and
// the returned error wraps ErrIdentityConflict.
func (r *Resolver) Resolve(ctx context.Context, kind domain.EntityKind, keys []CandidateKey) (Resolution, error) {
	var res Resolution
	ids := make(map[string]struct{})

	for _, key := range keys {
		found, err := r.repo.Lookup(ctx, kind, key)
		if err != nil {
			return Resolution{}, fmt.Errorf("lookup %s by %s: %w", kind, key.Kind, err)
		}
		for _, id := range found {
			res.Matches = append(res.Matches, Match{Key: key.Kind, ID: id})
			ids[id] = struct{}{}
		}
	}

	switch {
	case len(ids) == 0:
		res.Status = NotFound
	case len(ids) == 1:
		res.Status = Found
		res.ID = res.Matches[0].ID
		res.Via = res.Matches[0].Key
	default:
		res.Status = Conflict
		return res, &ConflictError{Kind: string(kind), Matches: res.Matches}
	}
	return res, nil
}
