// Package decider implements the storability and reusability gates: the
// component that decides whether a response may be stored at all, and
// whether a stored entry may satisfy a given request without, or only
// after, revalidation.
//
// Grounded in the always-cache teacher's rfc9111/3._storing-responses-in-caches.go
// and rfc9111/4._constructing-responses-from-caches.go, which implement
// the equivalent MUST-NOT-store and MUST-NOT-reuse checks against
// *http.Response directly; here they operate on the engine's own
// header.Map/cachecontrol types so the decider has no net/http dependency.
package decider

import (
	"github.com/kallax-dev/httpcache/cachecontrol"
	"github.com/kallax-dev/httpcache/freshness"
	"github.com/kallax-dev/httpcache/header"
)

// StorabilityResult reports whether a response may be stored, and why
// not, for telemetry.
type StorabilityResult struct {
	Storable bool
	Reason   string
}

// storable and notStorable are convenience constructors.
func storable() StorabilityResult            { return StorabilityResult{Storable: true} }
func notStorable(reason string) StorabilityResult { return StorabilityResult{Storable: false, Reason: reason} }

// CanStore implements spec §4.4's storability gate. All conditions must
// hold for a response to be storable.
func CanStore(method string, statusCode int, requestHeaders, responseHeaders header.Map, cacheType freshness.CacheType) StorabilityResult {
	if !cachecontrol.IsCacheableMethod(method) {
		return notStorable("method not cacheable")
	}
	if !cachecontrol.IsFinalStatus(statusCode) {
		return notStorable("non-final status")
	}

	responseCC := cachecontrol.ParseResponse(headerValues(responseHeaders, "Cache-Control"))
	requestCC := cachecontrol.ParseRequest(headerValues(requestHeaders, "Cache-Control"))

	if responseCC.NoStore() || requestCC.NoStore() {
		return notStorable("no-store present")
	}

	if cacheType == freshness.CacheTypeShared {
		if _, private := responseCC.Private(); private {
			return notStorable("private response in a shared cache")
		}
	}

	if requestHeaders.Has("Authorization") {
		_, hasSMaxAge := responseCC.SMaxAge()
		if !responseCC.Public() && !responseCC.MustRevalidate() && !hasSMaxAge {
			return notStorable("authenticated request without public/must-revalidate/s-maxage")
		}
	}

	if !hasStorageIndicator(responseCC, responseHeaders, statusCode, cacheType) {
		return notStorable("no storage indicator present")
	}

	return storable()
}

// hasStorageIndicator reports whether at least one positive signal to
// store is present, per spec §4.4's closing clause.
func hasStorageIndicator(cc cachecontrol.CacheControl, h header.Map, statusCode int, cacheType freshness.CacheType) bool {
	if cc.Public() {
		return true
	}
	if cacheType == freshness.CacheTypePrivate {
		if _, ok := cc.Private(); ok {
			return true
		}
	}
	if h.Has("Expires") {
		return true
	}
	if _, ok := cc.MaxAge(); ok {
		return true
	}
	if cacheType == freshness.CacheTypeShared {
		if _, ok := cc.SMaxAge(); ok {
			return true
		}
	}
	return cachecontrol.IsHeuristicallyCacheableStatus(statusCode)
}

func headerValues(h header.Map, name string) []string {
	v, ok := h.Get(name)
	if !ok || v == "" {
		return nil
	}
	return []string{v}
}
