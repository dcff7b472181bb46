// Package header implements a case-insensitive HTTP header container.
//
// HTTP field names are compared case-insensitively, but the original casing
// matters for wire serialization. net/http.Header is itself case-preserving
// only by convention (it expects canonical MIME keys); this package is used
// wherever the engine needs to accept header maps verbatim from an arbitrary
// caller without assuming any particular casing convention.
package header

import "strings"

// Map is a case-insensitive mapping from header field name to field value.
// Multiple values for a field are represented by their comma-joined
// concatenation, per the engine's external interface contract.
type Map struct {
	// values is keyed by lowercased field name; original stores the casing
	// seen on first insertion for that key, for serialization.
	values   map[string]string
	original map[string]string
}

// New returns an empty Map.
func New() Map {
	return Map{
		values:   make(map[string]string),
		original: make(map[string]string),
	}
}

// FromMap builds a Map from a plain string-to-string map, such as one
// decoded from JSON or assembled by an adapter.
func FromMap(m map[string]string) Map {
	h := New()
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}

// Get returns the value for name, and whether it was present.
func (h Map) Get(name string) (string, bool) {
	if h.values == nil {
		return "", false
	}
	v, ok := h.values[lower(name)]
	return v, ok
}

// Value returns the value for name, or "" if absent. Prefer Get when the
// distinction between absent and empty matters.
func (h Map) Value(name string) string {
	v, _ := h.Get(name)
	return v
}

// Has reports whether name is present, regardless of value.
func (h Map) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Set stores value under name, preserving the first-seen casing of name for
// serialization but keying lookups by the lowercased form.
func (h Map) Set(name, value string) Map {
	if h.values == nil {
		h.values = make(map[string]string)
		h.original = make(map[string]string)
	}
	key := lower(name)
	if _, exists := h.original[key]; !exists {
		h.original[key] = name
	}
	h.values[key] = value
	return h
}

// Del removes name, if present.
func (h Map) Del(name string) Map {
	if h.values == nil {
		return h
	}
	key := lower(name)
	delete(h.values, key)
	delete(h.original, key)
	return h
}

// Clone returns a deep copy, safe to mutate independently.
func (h Map) Clone() Map {
	c := New()
	for k, v := range h.values {
		c.values[k] = v
		c.original[k] = h.original[k]
	}
	return c
}

// Names returns the canonical (first-seen) names of all stored fields, in
// no particular order.
func (h Map) Names() []string {
	names := make([]string, 0, len(h.original))
	for _, name := range h.original {
		names = append(names, name)
	}
	return names
}

// Len returns the number of distinct fields stored.
func (h Map) Len() int {
	return len(h.values)
}

// Remove deletes every name in names and returns the receiver for chaining.
func (h Map) Remove(names ...string) Map {
	for _, n := range names {
		h = h.Del(n)
	}
	return h
}

// ForEach calls fn once per stored field, with the canonical field name.
func (h Map) ForEach(fn func(name, value string)) {
	for key, value := range h.values {
		fn(h.original[key], value)
	}
}

// CollapseWhitespace normalizes internal whitespace runs to a single space
// and trims the result, as required when comparing Vary-nominated field
// values (RFC 9111 §4.1).
func CollapseWhitespace(s string) string {
	var b strings.Builder
	inSpace := false
	s = strings.TrimSpace(s)
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if inSpace {
				continue
			}
			inSpace = true
			b.WriteByte(' ')
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func lower(s string) string {
	return strings.ToLower(s)
}
