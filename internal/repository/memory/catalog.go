package memory

import (
	"context"
	"sort"

	"github.com/ignite/contact-hub/internal/domain"
	"github.com/ignite/contact-hub/internal/service/ingest"
)

// newestFirst orders ids by insertion, latest first.
func (s *Store) newestFirst(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return s.order[ids[i]] > s.order[ids[j]] })
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ListPersons implements ingest.Catalog.
func (s *Store) ListPersons(_ context.Context, f ingest.PersonFilter) ([]domain.Person, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, p := range s.persons {
		if f.Email != "" && p.Email != f.Email {
			continue
		}
		if f.ExternalID != "" && !eq(p.ExternalID, f.ExternalID) {
			continue
		}
		if f.SourceWebsite != "" && !eq(p.SourceWebsite, f.SourceWebsite) {
			continue
		}
		if f.Country != "" && !eq(p.Country, f.Country) {
			continue
		}
		ids = append(ids, id)
	}
	s.newestFirst(ids)
	out := make([]domain.Person, 0, len(ids))
	for _, id := range page(ids, f.Limit, f.Offset) {
		out = append(out, *s.persons[id])
	}
	return out, len(ids), nil
}

// ListWebsites implements ingest.Catalog.
func (s *Store) ListWebsites(_ context.Context, f ingest.ListFilter) ([]domain.Website, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, w := range s.websites {
		if f.URL != "" && w.URL != f.URL {
			continue
		}
		if f.ExternalID != "" && !eq(w.ExternalID, f.ExternalID) {
			continue
		}
		ids = append(ids, id)
	}
	s.newestFirst(ids)
	out := make([]domain.Website, 0, len(ids))
	for _, id := range page(ids, f.Limit, f.Offset) {
		out = append(out, *s.websites[id])
	}
	return out, len(ids), nil
}

// ListWebforms implements ingest.Catalog.
func (s *Store) ListWebforms(_ context.Context, f ingest.WebformFilter) ([]domain.Webform, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, w := range s.webforms {
		if f.WebsiteID != "" && w.WebsiteID != f.WebsiteID {
			continue
		}
		if f.ExternalID != "" && w.ExternalID != f.ExternalID {
			continue
		}
		ids = append(ids, id)
	}
	s.newestFirst(ids)
	out := make([]domain.Webform, 0, len(ids))
	for _, id := range page(ids, f.Limit, f.Offset) {
		out = append(out, *s.webforms[id])
	}
	return out, len(ids), nil
}

// ListSubmissions implements ingest.Catalog.
func (s *Store) ListSubmissions(_ context.Context, f ingest.SubmissionFilter) ([]domain.WebformSubmission, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, sub := range s.submissions {
		if f.WebformID != "" && sub.WebformID != f.WebformID {
			continue
		}
		if f.PersonID != "" && sub.PersonID != f.PersonID {
			continue
		}
		if f.ExternalID != "" && !eq(sub.ExternalID, f.ExternalID) {
			continue
		}
		ids = append(ids, id)
	}
	s.newestFirst(ids)
	out := make([]domain.WebformSubmission, 0, len(ids))
	for _, id := range page(ids, f.Limit, f.Offset) {
		out = append(out, *s.submissions[id])
	}
	return out, len(ids), nil
}
