package ingest

import (
	"maps"
	"slices"
	"strings"

	"github.com/ignite/contact-hub/internal/domain"
)

// Fields is a normalized record: only present values are stored. A missing
// key means absent, which is distinct from any stored value and never
// overwrites one.
type Fields map[string]string

// Get returns the value of name and whether it is present.
func (f Fields) Get(name string) (string, bool) {
	v, ok := f[name]
	return v, ok
}

// Ptr returns the value of name as a nullable column value.
func (f Fields) Ptr(name string) *string {
	v, ok := f[name]
	if !ok {
		return nil
	}
	return &v
}

// Blank reports whether every field was absent after normalization.
func (f Fields) Blank() bool { return len(f) == 0 }

// Normalize cleans a raw column→value map. Column names and values are both
// cleaned with CleanValue; values that end up empty are dropped. When several
// raw columns clean to the same name, a column already spelled cleanly wins,
// then the first non-empty one in sorted order.
func Normalize(raw map[string]string) Fields {
	out := make(Fields, len(raw))
	exact := make(map[string]bool, len(raw))
	for _, k := range slices.Sorted(maps.Keys(raw)) {
		key, ok := CleanValue(k)
		if !ok {
			continue
		}
		val, ok := CleanValue(raw[k])
		if !ok {
			continue
		}
		if _, seen := out[key]; seen && (exact[key] || k != key) {
			continue
		}
		out[key] = val
		exact[key] = k == key
	}
	return out
}

// CleanValue trims whitespace and strips any number of wrapping single or
// double quotes from both ends. It returns ok=false when nothing is left.
func CleanValue(s string) (string, bool) {
	s = strings.TrimPrefix(s, "\ufeff")
	for {
		t := strings.Trim(strings.TrimSpace(s), `"'`)
		if t == s {
			break
		}
		s = t
	}
	return s, s != ""
}

// NormalizePtr cleans an optional value coming from a JSON body. Empty
// strings become nil so they can never blank a stored column.
func NormalizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v, ok := CleanValue(*s)
	if !ok {
		return nil
	}
	return &v
}

// PayloadEmail extracts the submitter email from a submission payload: the
// top-level "email" field, falling back to "data.email".
func PayloadEmail(payload map[string]any) (string, bool) {
	if v, ok := payloadString(payload, domain.FieldEmail); ok {
		return v, true
	}
	if data, ok := payload["data"].(map[string]any); ok {
		return payloadString(data, domain.FieldEmail)
	}
	return "", false
}

func payloadString(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	if !ok {
		return "", false
	}
	return CleanValue(s)
}

// SplitList splits a raw CSV-encoded tags/roles column into tokens. It is a
// presentation helper; stored values stay as raw text.
func SplitList(raw *string) []string {
	if raw == nil {
		return nil
	}
	var out []string
	for _, part := range strings.Split(*raw, ",") {
		if v, ok := CleanValue(part); ok {
			out = append(out, v)
		}
	}
	return out
}
