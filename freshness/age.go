// Package freshness implements the RFC 9111 age and freshness-lifetime
// arithmetic (spec §4.3): current age, explicit and heuristic freshness
// lifetime, the fresh/stale test, and the stale-serving allowance.
//
// Grounded in the always-cache teacher's rfc9111/4.2.3._calculating-age.go
// and rfc9111/4.2.1._calculating-freshness-lifetime.go, generalized to
// take explicit requestTime/responseTime (the teacher approximated both
// with the stored Date header, "assuming no network latency") as the spec
// requires both to be caller-supplied and distinct.
package freshness

import (
	"strconv"
	"time"

	"github.com/kallax-dev/httpcache/header"
	"github.com/kallax-dev/httpcache/internal/httpdate"
)

// dateValue returns the response's Date header as a time.Time, or
// responseTime if Date is absent or unparseable (per §7's error handling:
// an unparseable Date is treated as absent).
func dateValue(h header.Map, responseTime time.Time) time.Time {
	raw, ok := h.Get("Date")
	if !ok {
		return responseTime
	}
	t, err := httpdate.Parse(raw)
	if err != nil {
		return responseTime
	}
	return t
}

// ageValue returns the response's Age header value, or 0 if absent or
// unparseable.
func ageValue(h header.Map) time.Duration {
	raw, ok := h.Get("Age")
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func durationMax(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

// CurrentAge implements the RFC 9111 §4.2.3 age algorithm exactly:
//
//	apparent_age          = max(0, responseTime - date_value)
//	response_delay        = responseTime - requestTime
//	corrected_age_value    = age_value + response_delay
//	corrected_initial_age  = max(apparent_age, corrected_age_value)
//	resident_time          = now - responseTime
//	current_age            = corrected_initial_age + resident_time
func CurrentAge(h header.Map, requestTime, responseTime, now time.Time) time.Duration {
	date := dateValue(h, responseTime)
	apparentAge := durationMax(0, responseTime.Sub(date))
	responseDelay := responseTime.Sub(requestTime)
	correctedAgeValue := ageValue(h) + responseDelay
	correctedInitialAge := durationMax(apparentAge, correctedAgeValue)
	residentTime := now.Sub(responseTime)
	return correctedInitialAge + residentTime
}

// AgeSeconds rounds d down to a non-negative whole number of seconds, the
// form in which Age is always reported on an outgoing response.
func AgeSeconds(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}
