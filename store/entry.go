// Package store defines the storage contract every cache tier (volatile,
// durable, or composed) must honor, and the immutable entry type they
// exchange.
//
// Grounded in the always-cache teacher's core/cache-provider.go
// CacheProvider interface, generalized from an opaque []byte payload to a
// structured Entry so that the reusability/storability deciders and the
// eviction policies can inspect an entry without re-parsing a raw HTTP
// byte stream on every access.
package store

import (
	"errors"
	"time"

	"github.com/kallax-dev/httpcache/cachecontrol"
	"github.com/kallax-dev/httpcache/header"
)

// Sentinel errors, wrapped with context by callers per the spec's error
// handling design (§7): every storage-layer error is surfaced via
// fmt.Errorf("...: %w", err) so callers can errors.Is against these.
var (
	// ErrNotFound indicates that no entry exists for a key. Storage.Get
	// does not return it: a miss is reported as ok=false with a nil error.
	ErrNotFound = errors.New("store: entry not found")
	// ErrTooLarge indicates Put rejected an entry because it exceeds the
	// configured byte bound on its own.
	ErrTooLarge = errors.New("store: entry exceeds maximum size")
	// ErrClosed indicates an operation was attempted on a closed store.
	ErrClosed = errors.New("store: closed")
)

// VaryWildcard is the sentinel VaryHeaders value that marks a response
// that must never be reused regardless of request header values
// ("Vary: *").
const VaryWildcard = "*"

// Entry is an immutable snapshot of one stored HTTP response.
//
// Entries are never mutated after construction; a 304 or HEAD freshening
// produces a new Entry with updated fields (see the validator package),
// never an in-place edit.
type Entry struct {
	Method     string
	URI        string
	StatusCode int
	Header     header.Map
	Body       []byte

	RequestTime  time.Time
	ResponseTime time.Time

	// VaryHeaders maps each lowercased field name nominated by the
	// response's Vary header to the request value seen at storage time,
	// whitespace-collapsed and trimmed. The sentinel map {"*": "*"} marks
	// "never match".
	VaryHeaders map[string]string

	IsIncomplete bool
	ContentRange string

	// IsInvalid is a soft tombstone: the entry is present but not
	// reusable, kept so a validator can still derive conditional headers
	// from it.
	IsInvalid bool
}

// HasWildcardVary reports whether this entry's Vary was "*".
func (e Entry) HasWildcardVary() bool {
	v, ok := e.VaryHeaders[VaryWildcard]
	return ok && v == VaryWildcard
}

// Size implements the deterministic byte-accounting formula required by
// the spec's data model (§3): the length of the body, plus the length of
// every header name and value, plus the length of the URI and method,
// plus (if present) the length of every Vary-header name/value pair.
func (e Entry) Size() int {
	n := len(e.Body) + len(e.URI) + len(e.Method)
	e.Header.ForEach(func(name, value string) {
		n += len(name) + len(value)
	})
	for k, v := range e.VaryHeaders {
		n += len(k) + len(v)
	}
	return n
}

// Clone returns a deep copy of the entry, safe to hand to a caller who
// must not be able to mutate the stored copy.
func (e Entry) Clone() Entry {
	c := e
	c.Header = e.Header.Clone()
	if e.Body != nil {
		c.Body = make([]byte, len(e.Body))
		copy(c.Body, e.Body)
	}
	if e.VaryHeaders != nil {
		c.VaryHeaders = make(map[string]string, len(e.VaryHeaders))
		for k, v := range e.VaryHeaders {
			c.VaryHeaders[k] = v
		}
	}
	return c
}

// CacheControl parses this entry's stored Cache-Control header as a
// response directive set.
func (e Entry) CacheControl() cachecontrol.CacheControl {
	return cachecontrol.ParseResponse(headerValues(e.Header, "Cache-Control"))
}

// headerValues adapts header.Map's single comma-joined value into the
// []string shape cachecontrol.ParseResponse/ParseRequest expect, mirroring
// how net/http.Header.Values works for a field that may legally repeat.
func headerValues(h header.Map, name string) []string {
	v, ok := h.Get(name)
	if !ok || v == "" {
		return nil
	}
	return []string{v}
}
