package freshness

import (
	"time"

	"github.com/kallax-dev/httpcache/cachecontrol"
)

// StaleServingAllowance determines whether an otherwise-stale response may
// still be served, per spec §4.3: the response must not carry
// must-revalidate (and, for shared caches, proxy-revalidate), and either
// the caller is disconnected or the request permits staleness via
// max-stale.
func StaleServingAllowance(responseCC, requestCC cachecontrol.CacheControl, cacheType CacheType, disconnected bool, staleness time.Duration) bool {
	if responseCC.MustRevalidate() {
		return false
	}
	if cacheType == CacheTypeShared && responseCC.ProxyRevalidate() {
		return false
	}
	if disconnected {
		return true
	}
	d, unlimited, present := requestCC.MaxStale()
	if !present {
		return false
	}
	if unlimited {
		return true
	}
	return staleness <= d
}

// MinFreshSatisfied implements the request's min-fresh directive: the
// response must have at least minFresh of remaining freshness lifetime.
// If min-fresh is absent the request places no such constraint.
func MinFreshSatisfied(requestCC cachecontrol.CacheControl, lifetime, age time.Duration) bool {
	minFresh, ok := requestCC.MinFresh()
	if !ok {
		return true
	}
	return lifetime-age >= minFresh
}
