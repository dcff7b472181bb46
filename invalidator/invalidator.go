// Package invalidator implements unsafe-method cache invalidation: the
// best-effort purge a cache performs after an unsafe request (POST, PUT,
// DELETE, PATCH, ...) completes with a successful status, so that stale
// representations of the mutated resource are not served afterward.
//
// Grounded in the always-cache teacher's rfc9111/4.4._invalidating-stored-responses.go,
// which holds only the RFC's prose for this section (there is no
// executable invalidation logic in the teacher to adapt); the
// same-origin Location/Content-Location rule and the Vary-probe purge
// below are this package's own implementation of that prose.
package invalidator

import (
	"context"
	"net/url"
	"strings"

	"github.com/kallax-dev/httpcache/cachecontrol"
	"github.com/kallax-dev/httpcache/cachekey"
	"github.com/kallax-dev/httpcache/header"
	"github.com/kallax-dev/httpcache/store"
)

// varyProbeHeaders lists the commonly nominating request headers the
// best-effort purge tries when deleting Vary-qualified keys it cannot
// otherwise derive without re-running the original request.
var varyProbeHeaders = []string{"Accept", "Accept-Encoding", "Accept-Language"}

// Request bundles the operands needed to decide whether, and what, to
// invalidate after a request/response round-trip.
type Request struct {
	Method         string
	URI            string
	StatusCode     int
	ResponseHeader header.Map
	SiteID         string
}

// ShouldInvalidate reports whether the given method/status pairing
// triggers invalidation at all: an unsafe method with a successful
// (non-error) final status.
func ShouldInvalidate(method string, statusCode int) bool {
	return cachecontrol.IsUnsafeInvalidatingMethod(method) && cachecontrol.IsNonErrorStatus(statusCode)
}

// InvalidateOnUnsafeMethod performs the best-effort purge described by
// spec §4.6: the target URI's primary key, same-origin Location/
// Content-Location keys, and a small set of Vary-probe keys. It is a
// no-op (returning 0, nil) when ShouldInvalidate is false for the given
// inputs.
func InvalidateOnUnsafeMethod(ctx context.Context, s store.Storage, req Request) (removed int, err error) {
	if !ShouldInvalidate(req.Method, req.StatusCode) {
		return 0, nil
	}

	keys := candidateKeys(req)

	for _, key := range keys {
		ok, rmErr := s.Remove(ctx, key)
		if rmErr != nil {
			return removed, rmErr
		}
		if ok {
			removed++
		}
		if err := ctx.Err(); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// candidateKeys enumerates every key the best-effort purge attempts to
// remove, deduplicated.
func candidateKeys(req Request) []string {
	seen := make(map[string]bool)
	var keys []string
	add := func(k string) {
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		keys = append(keys, k)
	}

	add(cachekey.Primary("GET", req.URI, req.SiteID))
	add(cachekey.Primary("HEAD", req.URI, req.SiteID))

	for _, field := range []string{"Location", "Content-Location"} {
		if target, ok := req.ResponseHeader.Get(field); ok && target != "" {
			if resolved, sameOrigin := resolveSameOrigin(req.URI, target); sameOrigin {
				add(cachekey.Primary("GET", resolved, req.SiteID))
				add(cachekey.Primary("HEAD", resolved, req.SiteID))
			}
		}
	}

	primary := cachekey.Primary("GET", req.URI, req.SiteID)
	for _, name := range varyProbeHeaders {
		probe := header.New().Set(name, req.ResponseHeader.Value(name))
		add(cachekey.Vary(primary, []string{name}, probe, req.SiteID))
	}

	return keys
}

// resolveSameOrigin resolves target against base and reports whether the
// result shares base's scheme, host, and port.
func resolveSameOrigin(base, target string) (resolved string, sameOrigin bool) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	targetURL, err := url.Parse(target)
	if err != nil {
		return "", false
	}
	absolute := baseURL.ResolveReference(targetURL)
	if !strings.EqualFold(absolute.Scheme, baseURL.Scheme) || !strings.EqualFold(absolute.Host, baseURL.Host) {
		return "", false
	}
	return absolute.String(), true
}

// InvalidateOrigin deletes every stored entry whose URI (ignoring
// fragment and query) matches uri's origin-and-path, regardless of
// method or Vary-qualification. It is a predicate-clear, for backends
// that cannot cheaply enumerate derived keys.
func InvalidateOrigin(ctx context.Context, s store.Storage, uri string) error {
	target, err := url.Parse(uri)
	if err != nil {
		return err
	}
	targetKey := target.Scheme + "://" + target.Host + target.Path
	return s.ClearWhere(ctx, func(e store.Entry) bool {
		entryURL, err := url.Parse(e.URI)
		if err != nil {
			return false
		}
		return entryURL.Scheme+"://"+entryURL.Host+entryURL.Path == targetKey
	})
}

// InvalidatePattern deletes every stored entry matching the caller's
// predicate. It is the general-purpose predicate-clear that
// InvalidateOrigin specializes; InvalidateOnUnsafeMethod does not use it
// and removes individual keys instead.
func InvalidatePattern(ctx context.Context, s store.Storage, predicate func(store.Entry) bool) error {
	return s.ClearWhere(ctx, predicate)
}
