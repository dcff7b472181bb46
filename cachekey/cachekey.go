// Package cachekey derives deterministic, collision-resistant storage keys
// for cache entries, including Vary-qualified keys and optional
// double-keying for cross-site cache partitioning.
//
// Grounded in the always-cache teacher's core/key.go (sha256-based hashing,
// Vary-aware key construction) and pkg/cache-key/key.go (the origin-scoped
// successor), generalized to hash per the spec's exact key-derivation
// algorithm (§4.2) instead of the teacher's delimiter-concatenated string
// key.
package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/kallax-dev/httpcache/header"
)

// VaryWildcardSuffix is appended to the primary key to produce a key that
// is never matched on lookup, for a stored "Vary: *" response.
const VaryWildcardSuffix = "vary:*"

// Primary computes the primary key for a method+URI pair: a hash of
// "METHOD:uri-without-fragment". siteID, if non-empty, double-keys the
// cache by prefixing the hash input with it (a privacy/timing-attack
// mitigation that partitions caches across top-level sites).
func Primary(method, uri, siteID string) string {
	return hash(doubleKeyPrefix(siteID) + strings.ToUpper(method) + ":" + stripFragment(uri))
}

// Vary computes the Vary-qualified key for a response. If varyFieldNames
// is empty, Vary returns the primary key unchanged (no partitioning
// needed). If varyFieldNames contains "*", Vary returns a sentinel key
// that is never matched on lookup. Otherwise, it normalizes each
// nominated field's current request value and folds it into the key.
func Vary(primaryKey string, varyFieldNames []string, requestHeaders header.Map, siteID string) string {
	if len(varyFieldNames) == 0 {
		return primaryKey
	}
	for _, name := range varyFieldNames {
		if strings.TrimSpace(name) == "*" {
			return hash(doubleKeyPrefix(siteID) + primaryKey + ":" + VaryWildcardSuffix)
		}
	}
	serialized := serializeVaryValues(varyFieldNames, requestHeaders)
	return hash(doubleKeyPrefix(siteID) + primaryKey + "vary:" + serialized)
}

// VaryHeaderSnapshot captures, for each field name nominated by a
// response's Vary header, the normalized request value seen at storage
// time — the form persisted on store.Entry.VaryHeaders.
func VaryHeaderSnapshot(varyFieldNames []string, requestHeaders header.Map) map[string]string {
	if len(varyFieldNames) == 0 {
		return nil
	}
	for _, name := range varyFieldNames {
		if strings.TrimSpace(name) == "*" {
			return map[string]string{"*": "*"}
		}
	}
	snapshot := make(map[string]string, len(varyFieldNames))
	for _, name := range varyFieldNames {
		lname := strings.ToLower(strings.TrimSpace(name))
		snapshot[lname] = normalizeValue(requestHeaders.Value(name))
	}
	return snapshot
}

// Matches reports whether storedVary (as captured by VaryHeaderSnapshot)
// matches the given current request headers, per spec §4.2's Vary
// matching rule. A wildcard snapshot never matches.
func Matches(storedVary map[string]string, requestHeaders header.Map) bool {
	if v, ok := storedVary["*"]; ok && v == "*" {
		return false
	}
	for name, storedValue := range storedVary {
		if normalizeValue(requestHeaders.Value(name)) != storedValue {
			return false
		}
	}
	return true
}

func serializeVaryValues(varyFieldNames []string, requestHeaders header.Map) string {
	names := make([]string, 0, len(varyFieldNames))
	seen := make(map[string]bool)
	for _, n := range varyFieldNames {
		lname := strings.ToLower(strings.TrimSpace(n))
		if lname == "" || seen[lname] {
			continue
		}
		seen[lname] = true
		names = append(names, lname)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		value := normalizeValue(requestHeaders.Value(name))
		pairs = append(pairs, name+":"+value)
	}
	return strings.Join(pairs, "|")
}

// normalizeValue applies the header-value normalization the spec requires
// before comparing or hashing a Vary-nominated request value: collapse
// internal whitespace and trim. An absent header normalizes to "".
func normalizeValue(value string) string {
	return header.CollapseWhitespace(value)
}

func stripFragment(uri string) string {
	if i := strings.IndexByte(uri, '#'); i >= 0 {
		return uri[:i]
	}
	return uri
}

func doubleKeyPrefix(siteID string) string {
	if siteID == "" {
		return ""
	}
	return "site:" + siteID + "\x00"
}

func hash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
