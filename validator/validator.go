// Package validator implements RFC 9111 §4.3's conditional-validation
// lifecycle: generating precondition headers for a revalidation request,
// matching a 304 (Not Modified) response against the stored entry it is
// meant to refresh, and merging a 304's (or a freshening HEAD's) headers
// back onto that entry without disturbing its body.
//
// Grounded in the always-cache teacher's rfc9111/4.3.*.go files, which hold
// the RFC prose for this section with no executable logic of their own —
// this package is the concrete implementation those files describe.
package validator

import (
	"strings"
	"time"

	"github.com/kallax-dev/httpcache/header"
	"github.com/kallax-dev/httpcache/internal/httpdate"
)

// mergeableHeaders lists the header fields a 304 (or freshening HEAD) may
// update on a stored entry. Everything else about the entry — body,
// method, URI, status — is left untouched.
var mergeableHeaders = []string{
	"Cache-Control",
	"Date",
	"ETag",
	"Expires",
	"Vary",
	"Warning",
}

// GenerateConditionalHeaders builds the precondition headers for a
// revalidation request, starting from the caller's current request
// headers and adding the validators present on the stored entry.
func GenerateConditionalHeaders(requestHeaders, storedHeaders header.Map) header.Map {
	out := requestHeaders.Clone()
	if etag, ok := storedHeaders.Get("ETag"); ok && etag != "" {
		out = out.Set("If-None-Match", etag)
	}
	if lastModified, ok := storedHeaders.Get("Last-Modified"); ok && lastModified != "" {
		out = out.Set("If-Modified-Since", lastModified)
	}
	return out
}

// Matches reports whether a 304 response's validators identify the given
// stored entry as the one being confirmed, per the strong/weak/absent
// rules of RFC 9111 §4.3.4. An absent validator on both sides matches
// conservatively, since the cache has no basis to distinguish responses.
func Matches(storedHeaders, responseHeaders header.Map) bool {
	storedETag, hasStoredETag := storedHeaders.Get("ETag")
	responseETag, hasResponseETag := responseHeaders.Get("ETag")
	if hasStoredETag && storedETag != "" && hasResponseETag && responseETag != "" {
		return storedETag == responseETag
	}

	storedLM, hasStoredLM := storedHeaders.Get("Last-Modified")
	responseLM, hasResponseLM := responseHeaders.Get("Last-Modified")
	if hasStoredLM && storedLM != "" && hasResponseLM && responseLM != "" {
		return stripWeakPrefix(storedLM) == stripWeakPrefix(responseLM)
	}

	storedHasAny := (hasStoredETag && storedETag != "") || (hasStoredLM && storedLM != "")
	responseHasAny := (hasResponseETag && responseETag != "") || (hasResponseLM && responseLM != "")
	if !storedHasAny && !responseHasAny {
		return true
	}
	return false
}

// MergeFrom304 produces the updated header set for a stored entry that
// has been confirmed current by a 304 response: mergeableHeaders are
// replaced wholesale from the 304, everything else on the stored entry
// is kept as-is.
func MergeFrom304(storedHeaders, responseHeaders header.Map) header.Map {
	merged := storedHeaders.Clone()
	for _, name := range mergeableHeaders {
		if v, ok := responseHeaders.Get(name); ok {
			merged = merged.Set(name, v)
		}
	}
	return merged
}

// MergeFromHEAD reports whether a freshening HEAD response's validators
// (and, if present, Content-Length) agree with the stored GET response,
// and if so returns the updated header set; otherwise ok is false and the
// stored response should be considered stale instead.
func MergeFromHEAD(storedHeaders, headResponseHeaders header.Map) (merged header.Map, ok bool) {
	if !validatorsAgree(storedHeaders, headResponseHeaders) {
		return header.Map{}, false
	}
	if cl, present := headResponseHeaders.Get("Content-Length"); present {
		if storedCL, storedPresent := storedHeaders.Get("Content-Length"); !storedPresent || storedCL != cl {
			return header.Map{}, false
		}
	}
	return MergeFrom304(storedHeaders, headResponseHeaders), true
}

// validatorsAgree reports whether the two header sets share a matching
// ETag or Last-Modified value; absent on both sides does not count as
// agreement for the HEAD-freshening path, unlike the 304 path, since a
// HEAD carries no body-identity proof to fall back on.
func validatorsAgree(a, b header.Map) bool {
	aETag, aHasETag := a.Get("ETag")
	bETag, bHasETag := b.Get("ETag")
	if aHasETag && aETag != "" && bHasETag && bETag != "" {
		return aETag == bETag
	}
	aLM, aHasLM := a.Get("Last-Modified")
	bLM, bHasLM := b.Get("Last-Modified")
	if aHasLM && aLM != "" && bHasLM && bLM != "" {
		return stripWeakPrefix(aLM) == stripWeakPrefix(bLM)
	}
	return false
}

func stripWeakPrefix(validator string) string {
	return strings.TrimPrefix(validator, "W/")
}

// LastModifiedTime parses the stored entry's Last-Modified header, if
// present and well-formed, for heuristic freshness computation.
func LastModifiedTime(h header.Map) (time.Time, bool) {
	v, ok := h.Get("Last-Modified")
	if !ok || v == "" {
		return time.Time{}, false
	}
	t, err := httpdate.Parse(v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
