package freshness

import (
	"time"

	"github.com/kallax-dev/httpcache/cachecontrol"
	"github.com/kallax-dev/httpcache/header"
	"github.com/kallax-dev/httpcache/internal/httpdate"
)

// CacheType controls whether a cache behaves as a private (single-user) or
// shared (multi-user) cache, per the spec's data model (§3).
type CacheType string

const (
	CacheTypePrivate CacheType = "private"
	CacheTypeShared  CacheType = "shared"
)

// HeuristicOptions parameterizes heuristic freshness (spec §4.3 step 4).
type HeuristicOptions struct {
	Enabled      bool
	Percentage   float64       // default 0.10
	MaxDuration  time.Duration // default 7 days
	DefaultLifetime time.Duration // default 5 minutes, used when no Last-Modified
}

// DefaultHeuristicOptions returns the documented defaults (§6).
func DefaultHeuristicOptions() HeuristicOptions {
	return HeuristicOptions{
		Enabled:         true,
		Percentage:      0.10,
		MaxDuration:     7 * 24 * time.Hour,
		DefaultLifetime: 5 * time.Minute,
	}
}

// FreshnessLifetime computes the freshness lifetime of a response per spec
// §4.3, evaluating in order: s-maxage (shared caches only), max-age,
// Expires-minus-Date, then heuristic freshness. ok is false when none
// apply — the entry is never fresh.
//
// Last-Modified is read from h for the heuristic branch. FreshnessLifetime
// takes no status code, so the heuristic branch applies only to responses
// carrying public, and the status-based default lifetime is never used;
// FreshnessLifetimeForStatus adds status-based eligibility.
func FreshnessLifetime(cc cachecontrol.CacheControl, h header.Map, cacheType CacheType, opts HeuristicOptions, responseTime time.Time) (time.Duration, bool) {
	return freshnessLifetime(cc, h, cacheType, opts, 0, false, responseTime)
}

// FreshnessLifetimeForStatus is FreshnessLifetime but additionally takes
// the response's status code, needed to determine heuristic eligibility
// per the "heuristically cacheable status" classification.
func FreshnessLifetimeForStatus(cc cachecontrol.CacheControl, h header.Map, cacheType CacheType, opts HeuristicOptions, statusCode int, responseTime time.Time) (time.Duration, bool) {
	return freshnessLifetime(cc, h, cacheType, opts, statusCode, true, responseTime)
}

func freshnessLifetime(cc cachecontrol.CacheControl, h header.Map, cacheType CacheType, opts HeuristicOptions, statusCode int, haveStatus bool, responseTime time.Time) (time.Duration, bool) {
	// 1. shared + s-maxage
	if cacheType == CacheTypeShared {
		if v, ok := cc.SMaxAge(); ok {
			return v, true
		}
	}
	// 2. max-age
	if v, ok := cc.MaxAge(); ok {
		return v, true
	}
	// 3. Expires - Date
	if expiresRaw, ok := h.Get("Expires"); ok {
		expires, err := httpdate.Parse(expiresRaw)
		if err != nil {
			// invalid Expires is treated as already-expired
			return 0, true
		}
		date := dateValue(h, responseTime)
		lifetime := expires.Sub(date)
		if lifetime < 0 {
			lifetime = 0
		}
		return lifetime, true
	}
	// 4. heuristic
	if !opts.Enabled {
		return 0, false
	}
	_, noCachePresent := cc.NoCache()
	if noCachePresent || cc.NoStore() {
		return 0, false
	}
	statusEligible := haveStatus && cachecontrol.IsHeuristicallyCacheableStatus(statusCode)
	if !cc.Public() && !statusEligible {
		return 0, false
	}
	if lmRaw, ok := h.Get("Last-Modified"); ok {
		lastModified, err := httpdate.Parse(lmRaw)
		if err == nil {
			date := dateValue(h, responseTime)
			if !lastModified.After(date) {
				lifetime := time.Duration(float64(date.Sub(lastModified)) * opts.Percentage)
				if lifetime > opts.MaxDuration {
					lifetime = opts.MaxDuration
				}
				if lifetime < 0 {
					lifetime = 0
				}
				return lifetime, true
			}
		}
	}
	if statusEligible {
		return opts.DefaultLifetime, true
	}
	return 0, false
}

// IsFresh reports whether a response is fresh: its current age has not
// exceeded its freshness lifetime.
func IsFresh(cc cachecontrol.CacheControl, h header.Map, cacheType CacheType, opts HeuristicOptions, statusCode int, requestTime, responseTime, now time.Time) bool {
	lifetime, ok := FreshnessLifetimeForStatus(cc, h, cacheType, opts, statusCode, responseTime)
	if !ok {
		return false
	}
	age := CurrentAge(h, requestTime, responseTime, now)
	return age <= lifetime
}
