package httpcache

import (
	"context"
	"time"

	"github.com/kallax-dev/httpcache/header"
)

// CacheRequest bundles a Get's arguments into a single value, for
// adapters that prefer passing one object over four positional
// arguments. It is a thin wrapper: GetRequest is a direct adapter over
// Engine.Get.
type CacheRequest struct {
	Method  string
	URI     string
	Headers header.Map
	Policy  CachePolicy
	SiteID  string
	// Disconnected mirrors the WithDisconnected GetOption for callers
	// using the bundled-value API.
	Disconnected bool
}

// CacheResponse bundles a Put's response-side arguments into a single
// value.
type CacheResponse struct {
	StatusCode   int
	Headers      header.Map
	Body         []byte
	RequestTime  time.Time
	ResponseTime time.Time
}

// GetRequest is the bundled-value form of Get/GetForSite.
func (e *Engine) GetRequest(ctx context.Context, req CacheRequest) (CachedResponse, bool, error) {
	var opts []GetOption
	if req.Disconnected {
		opts = append(opts, WithDisconnected())
	}
	return e.getSite(ctx, req.Method, req.URI, req.Headers, req.Policy, req.SiteID, opts...)
}

// PutResponse is the bundled-value form of Put/PutForSite.
func (e *Engine) PutResponse(ctx context.Context, method, uri string, requestHeaders header.Map, resp CacheResponse, siteID string) error {
	return e.putSite(ctx, method, uri, resp.StatusCode, requestHeaders, resp.Headers, resp.Body, resp.RequestTime, resp.ResponseTime, siteID)
}
