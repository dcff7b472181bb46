package decider

import (
	"time"

	"github.com/kallax-dev/httpcache/cachecontrol"
	"github.com/kallax-dev/httpcache/freshness"
	"github.com/kallax-dev/httpcache/header"
)

// ReusabilityState is the three-valued outcome of the reusability check.
type ReusabilityState string

const (
	Reusable           ReusabilityState = "reusable"
	NotReusable        ReusabilityState = "not-reusable"
	RequiresValidation ReusabilityState = "requires-validation"
)

// ReusabilityResult reports the reusability state along with a reason code
// and the entry's freshness, needed by the engine facade to decide between
// "stale-and-usable" vs "must validate".
type ReusabilityResult struct {
	State   ReusabilityState
	Reason  string
	IsFresh bool
	Age     time.Duration
	// Lifetime is the computed freshness lifetime, present only when a
	// freshness lifetime could be computed at all.
	Lifetime    time.Duration
	HasLifetime bool
}

// Input bundles the reusability check's operands.
type Input struct {
	RequestMethod  string
	RequestURI     string
	RequestHeaders header.Map

	EntryURI          string
	EntryHeaders      header.Map
	EntryStatusCode   int
	EntryVaryHeaders  map[string]string
	EntryIsInvalid    bool
	EntryRequestTime  time.Time
	EntryResponseTime time.Time

	CacheType        freshness.CacheType
	HeuristicOptions freshness.HeuristicOptions
	Now              time.Time

	// Disconnected signals that the caller could not reach the origin
	// (a network error, or an explicit offline policy) and is asking
	// whether a stale entry may be served anyway, per §4.3's
	// stale-serving allowance. The caller is responsible for gating this
	// on its own "serve stale on error" configuration before setting it.
	Disconnected bool
	// MaxStaleAge caps how stale an entry may be for Disconnected to grant
	// the stale-serving allowance, independent of any request max-stale
	// directive. Zero means unlimited.
	MaxStaleAge time.Duration
}

// VaryMatch is injected so the decider does not need to import cachekey
// (which would create an import cycle were cachekey ever to need decider);
// callers pass the result of cachekey.Matches.
type VaryMatch func(storedVary map[string]string, requestHeaders header.Map) bool

// CanReuse implements spec §4.4's reusability gate.
func CanReuse(in Input, varyMatch VaryMatch) ReusabilityResult {
	if in.EntryIsInvalid {
		return ReusabilityResult{State: NotReusable, Reason: "entry marked invalid"}
	}
	if !cachecontrol.IsSafeReusableMethod(in.RequestMethod) {
		return ReusabilityResult{State: NotReusable, Reason: "request method not safe-reusable"}
	}
	if in.EntryURI != in.RequestURI {
		return ReusabilityResult{State: NotReusable, Reason: "URI mismatch"}
	}
	if !varyMatch(in.EntryVaryHeaders, in.RequestHeaders) {
		return ReusabilityResult{State: NotReusable, Reason: "Vary mismatch"}
	}

	responseCC := cachecontrol.ParseResponse(headerValues(in.EntryHeaders, "Cache-Control"))
	requestCC := cachecontrol.ParseRequest(headerValues(in.RequestHeaders, "Cache-Control"))

	lifetime, hasLifetime := freshness.FreshnessLifetimeForStatus(responseCC, in.EntryHeaders, in.CacheType, in.HeuristicOptions, in.EntryStatusCode, in.EntryResponseTime)
	age := freshness.CurrentAge(in.EntryHeaders, in.EntryRequestTime, in.EntryResponseTime, in.Now)
	isFresh := hasLifetime && age <= lifetime

	if _, noCache := responseCC.NoCache(); noCache || requestCC.Has(cachecontrol.DirNoCache) {
		return ReusabilityResult{State: RequiresValidation, Reason: "no-cache present", IsFresh: isFresh, Age: age, Lifetime: lifetime, HasLifetime: hasLifetime}
	}

	if !isFresh {
		staleness := age - lifetime
		if hasLifetime && freshness.StaleServingAllowance(responseCC, requestCC, in.CacheType, in.Disconnected, staleness) &&
			(in.MaxStaleAge <= 0 || !in.Disconnected || staleness <= in.MaxStaleAge) {
			return ReusabilityResult{State: Reusable, Reason: "stale-serving allowance", IsFresh: false, Age: age, Lifetime: lifetime, HasLifetime: hasLifetime}
		}
		return ReusabilityResult{State: RequiresValidation, Reason: "not fresh", IsFresh: false, Age: age, Lifetime: lifetime, HasLifetime: hasLifetime}
	}

	if hasLifetime && !freshness.MinFreshSatisfied(requestCC, lifetime, age) {
		return ReusabilityResult{State: RequiresValidation, Reason: "min-fresh not satisfied", IsFresh: true, Age: age, Lifetime: lifetime, HasLifetime: hasLifetime}
	}

	return ReusabilityResult{State: Reusable, IsFresh: true, Age: age, Lifetime: lifetime, HasLifetime: hasLifetime}
}
