package cachecontrol

import (
	"strconv"
	"time"
)

// deltaSeconds parses a "delta-seconds" argument (RFC 9111 §1.2.2): a
// non-negative integer number of seconds. A non-parseable or negative
// value is treated as absent, per the spec's error-handling design.
func deltaSeconds(raw string) (time.Duration, bool) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}

// MaxAge returns the max-age directive's value, for either a request or a
// response CacheControl.
func (c CacheControl) MaxAge() (time.Duration, bool) {
	v, ok := c.Get(DirMaxAge)
	if !ok {
		return 0, false
	}
	return deltaSeconds(v)
}

// SMaxAge returns the s-maxage response directive's value.
func (c CacheControl) SMaxAge() (time.Duration, bool) {
	v, ok := c.Get(DirSMaxAge)
	if !ok {
		return 0, false
	}
	return deltaSeconds(v)
}

// NoStore reports whether no-store is present.
func (c CacheControl) NoStore() bool {
	return c.Has(DirNoStore)
}

// NoTransform reports whether no-transform is present.
func (c CacheControl) NoTransform() bool {
	return c.Has(DirNoTransform)
}

// MustRevalidate reports whether must-revalidate is present (response
// directive).
func (c CacheControl) MustRevalidate() bool {
	return c.Has(DirMustRevalidate)
}

// MustUnderstand reports whether must-understand is present (response
// directive).
func (c CacheControl) MustUnderstand() bool {
	return c.Has(DirMustUnderstand)
}

// ProxyRevalidate reports whether proxy-revalidate is present (response
// directive).
func (c CacheControl) ProxyRevalidate() bool {
	return c.Has(DirProxyRevalidate)
}

// Public reports whether public is present (response directive).
func (c CacheControl) Public() bool {
	return c.Has(DirPublic)
}

// NoCache reports whether no-cache is present (either directive space),
// along with the qualified field-name list, if any (empty for the
// unqualified form).
func (c CacheControl) NoCache() (fields []string, present bool) {
	v, ok := c.Get(DirNoCache)
	if !ok {
		return nil, false
	}
	return FieldList(v), true
}

// Private reports whether private is present (response directive), along
// with the qualified field-name list, if any.
func (c CacheControl) Private() (fields []string, present bool) {
	v, ok := c.Get(DirPrivate)
	if !ok {
		return nil, false
	}
	return FieldList(v), true
}

// MaxStale returns the max-stale request directive's value. present=true
// with duration=0 and unlimited=true means the unqualified form
// ("max-stale" with no argument), which permits staleness of any length.
func (c CacheControl) MaxStale() (d time.Duration, unlimited bool, present bool) {
	v, ok := c.Get(DirMaxStale)
	if !ok {
		return 0, false, false
	}
	if v == "" {
		return 0, true, true
	}
	parsed, ok := deltaSeconds(v)
	if !ok {
		return 0, false, false
	}
	return parsed, false, true
}

// MinFresh returns the min-fresh request directive's value.
func (c CacheControl) MinFresh() (time.Duration, bool) {
	v, ok := c.Get(DirMinFresh)
	if !ok {
		return 0, false
	}
	return deltaSeconds(v)
}

// OnlyIfCached reports whether only-if-cached is present (request
// directive).
func (c CacheControl) OnlyIfCached() bool {
	return c.Has(DirOnlyIfCached)
}
