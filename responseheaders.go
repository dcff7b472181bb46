package httpcache

import (
	"strconv"

	"github.com/kallax-dev/httpcache/header"
)

// XCacheStatus is the X-Cache value the engine produces for adapters
// that wish to propagate cache status to a client or to telemetry. It is
// not required by any standard.
type XCacheStatus string

const (
	XCacheHit      XCacheStatus = "HIT"
	XCacheHitStale XCacheStatus = "HIT-STALE"
	XCacheMiss     XCacheStatus = "MISS"
)

// ResponseHeaders computes the Age, Warning, and X-Cache headers to add
// to a CachedResponse on its way out, per spec §6. It never mutates
// resp.Entry.Header; callers merge the returned fields into whatever
// response representation they serve.
func ResponseHeaders(resp CachedResponse, revalidationFailed bool) header.Map {
	h := header.New()
	h = h.Set("Age", strconv.Itoa(int(resp.Age.Seconds())))

	switch {
	case revalidationFailed:
		h = h.Set("Warning", appendWarning(resp.Entry.Header.Value("Warning"), "111 - \"Revalidation Failed\""))
		h = h.Set("X-Cache", string(XCacheHitStale))
	case resp.IsStale:
		h = h.Set("Warning", appendWarning(resp.Entry.Header.Value("Warning"), "110 - \"Response is Stale\""))
		h = h.Set("X-Cache", string(XCacheHitStale))
	default:
		h = h.Set("X-Cache", string(XCacheHit))
	}
	return h
}

func appendWarning(existing, addition string) string {
	if existing == "" {
		return addition
	}
	return existing + ", " + addition
}

// MissHeaders returns the single X-Cache: MISS header an adapter adds
// when Get reports no usable entry.
func MissHeaders() header.Map {
	return header.New().Set("X-Cache", string(XCacheMiss))
}
