package cachecontrol

import "strings"

// safeReusableMethods are methods whose stored responses may ever satisfy a
// subsequent request (§4.4 of the spec's decider component).
var safeReusableMethods = map[string]struct{}{
	"GET": {}, "HEAD": {},
}

// cacheableMethods may be stored at all; POST entries exist only to support
// Location-referenced freshening and are never reusable for reads.
var cacheableMethods = map[string]struct{}{
	"GET": {}, "HEAD": {}, "POST": {},
}

// unsafeInvalidatingMethods trigger invalidation of the target URI on a
// non-error response.
var unsafeInvalidatingMethods = map[string]struct{}{
	"POST": {}, "PUT": {}, "DELETE": {}, "PATCH": {},
}

// heuristicallyCacheableStatuses is the closed set of status codes eligible
// for a heuristic freshness lifetime in the absence of explicit freshness
// information.
var heuristicallyCacheableStatuses = map[int]struct{}{
	200: {}, 203: {}, 204: {}, 206: {}, 300: {}, 301: {},
	304: {}, 404: {}, 405: {}, 410: {}, 414: {}, 501: {},
}

// prohibitedStoredHeaders must never be written to storage.
var prohibitedStoredHeaders = []string{
	"connection",
	"proxy-authentication-info",
	"proxy-authorization",
	"proxy-authenticate",
}

// hopByHopExtra are stripped in addition to prohibitedStoredHeaders when
// preparing a stored response for downstream reuse.
var hopByHopExtra = []string{
	"keep-alive", "te", "trailer", "transfer-encoding", "upgrade",
}

// NormalizeMethod uppercases method for consistent comparison and storage.
func NormalizeMethod(method string) string {
	return strings.ToUpper(strings.TrimSpace(method))
}

// IsSafeReusableMethod reports whether a request with this method may ever
// be satisfied by a stored entry.
func IsSafeReusableMethod(method string) bool {
	_, ok := safeReusableMethods[NormalizeMethod(method)]
	return ok
}

// IsCacheableMethod reports whether a response to this method may be
// stored at all.
func IsCacheableMethod(method string) bool {
	_, ok := cacheableMethods[NormalizeMethod(method)]
	return ok
}

// IsUnsafeInvalidatingMethod reports whether a non-error response to this
// method must trigger invalidation of the target URI.
func IsUnsafeInvalidatingMethod(method string) bool {
	_, ok := unsafeInvalidatingMethods[NormalizeMethod(method)]
	return ok
}

// IsFinalStatus reports whether statusCode is a final response (not a
// provisional 1xx).
func IsFinalStatus(statusCode int) bool {
	return statusCode >= 200
}

// IsHeuristicallyCacheableStatus reports whether statusCode is eligible
// for heuristic freshness.
func IsHeuristicallyCacheableStatus(statusCode int) bool {
	_, ok := heuristicallyCacheableStatuses[statusCode]
	return ok
}

// IsNonErrorStatus reports whether statusCode is a "non-error response"
// (2xx or 3xx) as used by the invalidation rule.
func IsNonErrorStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 400
}

// ProhibitedStoredHeaders returns the field names that must be stripped
// before a response is written to storage.
func ProhibitedStoredHeaders() []string {
	out := make([]string, len(prohibitedStoredHeaders))
	copy(out, prohibitedStoredHeaders)
	return out
}

// HopByHopHeaders returns the full set of field names stripped when
// preparing a stored response for downstream reuse: the prohibited set
// plus the additional hop-by-hop fields.
func HopByHopHeaders() []string {
	out := make([]string, 0, len(prohibitedStoredHeaders)+len(hopByHopExtra))
	out = append(out, prohibitedStoredHeaders...)
	out = append(out, hopByHopExtra...)
	return out
}
