// Package httpcache implements the caching engine: the component that
// decides whether a response may be stored, whether a stored response
// may be reused, how fresh it is, how to revalidate it, how to
// invalidate related entries on mutations, and how to manage a two-tier
// (volatile + durable) store under capacity bounds.
//
// Grounded in the always-cache teacher's AlwaysCache facade (core/cache.go),
// which is the closest analogue: a single entry-point type wrapping a
// CacheProvider, a rule set, and an HTTP client. This package keeps the
// same "one facade type, functional construction, package-level zerolog
// logger" shape but replaces the teacher's net/http-bound ServeHTTP
// pipeline with the spec's transport-free get/put/invalidate operations.
package httpcache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kallax-dev/httpcache/cachecontrol"
	"github.com/kallax-dev/httpcache/cachekey"
	"github.com/kallax-dev/httpcache/decider"
	"github.com/kallax-dev/httpcache/freshness"
	"github.com/kallax-dev/httpcache/header"
	"github.com/kallax-dev/httpcache/invalidator"
	"github.com/kallax-dev/httpcache/store"
	"github.com/kallax-dev/httpcache/store/memory"
	"github.com/kallax-dev/httpcache/store/sqlite"
	"github.com/kallax-dev/httpcache/store/tiered"
	"github.com/kallax-dev/httpcache/validator"
)

// CachePolicy is the per-request intent the caller attaches to a Get.
type CachePolicy string

const (
	PolicyStandard     CachePolicy = "standard"
	PolicyNetworkOnly  CachePolicy = "networkOnly"
	PolicyCacheFirst   CachePolicy = "cacheFirst"
	PolicyCacheOnly    CachePolicy = "cacheOnly"
	PolicyNetworkFirst CachePolicy = "networkFirst"
)

// ErrOnlyIfCached is returned by Get when the request carries
// only-if-cached and no usable entry is stored, per spec §8's S3
// scenario ("caller returns 504").
var ErrOnlyIfCached = fmt.Errorf("httpcache: only-if-cached with no usable stored entry")

// CachedResponse is the engine's return value on a successful Get.
type CachedResponse struct {
	Entry              store.Entry
	Age                time.Duration
	IsStale            bool
	RequiresValidation bool
}

// Stats reports storage probes, per spec §4.11's getStats.
type Stats struct {
	Entries int
	Bytes   int64
}

// Engine is the caching engine facade. The zero value is not usable;
// construct with New.
type Engine struct {
	cfg        Config
	storage    store.Storage
	instanceID uuid.UUID
	log        zerolog.Logger
}

// New constructs an Engine from cfg, applying documented defaults for
// any zero-valued field and wiring the default tiered L1+L2 storage
// unless cfg.CustomStorage is set.
func New(cfg Config) (*Engine, error) {
	cfg = withDefaults(cfg)

	logger := log.Logger
	if !cfg.EnableLogging {
		logger = zerolog.Nop()
	}

	id := uuid.New()
	logger = logger.With().Str("engine", id.String()).Logger()

	storage := cfg.CustomStorage
	if storage == nil {
		l1 := memory.New(memory.Config{
			MaxEntries: cfg.MaxMemoryEntries,
			MaxBytes:   cfg.MaxMemoryBytes,
			Strategy:   store.EvictionStrategy(cfg.EvictionStrategy),
			CacheType:  cfg.cacheType(),
		})
		dsn := cfg.DatabasePath
		if dsn == "" {
			dsn = ":memory:"
		}
		l2, err := sqlite.Open(dsn, sqlite.Config{
			MaxEntries: cfg.MaxDiskEntries,
			MaxBytes:   cfg.MaxDiskBytes,
			Strategy:   store.EvictionStrategy(cfg.EvictionStrategy),
		})
		if err != nil {
			return nil, fmt.Errorf("httpcache: new engine: %w", err)
		}
		storage = tiered.New(l1, l2)
	}

	return &Engine{cfg: cfg, storage: storage, instanceID: id, log: logger}, nil
}

// InstanceID returns the UUID tagging this Engine instance, as attached
// to every log event it emits.
func (e *Engine) InstanceID() uuid.UUID {
	return e.instanceID
}

func (e *Engine) siteID(siteID string) string {
	if !e.cfg.DoubleKeyCache {
		return ""
	}
	return siteID
}

// GetOption customizes a single Get/GetForSite call.
type GetOption func(*getOptions)

type getOptions struct {
	disconnected bool
}

// WithDisconnected signals that the caller could not reach the origin (a
// network error, or a deliberate offline mode) and asks the engine to
// apply its stale-serving allowance if cfg.ServeStaleOnError permits it,
// per spec §4.3/§6.
func WithDisconnected() GetOption {
	return func(o *getOptions) { o.disconnected = true }
}

// Get implements spec §4.11's read path.
func (e *Engine) Get(ctx context.Context, method, uri string, requestHeaders header.Map, policy CachePolicy, opts ...GetOption) (CachedResponse, bool, error) {
	return e.getSite(ctx, method, uri, requestHeaders, policy, "", opts...)
}

// GetForSite is Get with an explicit top-level-site identifier, honored
// only when the engine is configured with DoubleKeyCache.
func (e *Engine) GetForSite(ctx context.Context, method, uri string, requestHeaders header.Map, policy CachePolicy, siteID string, opts ...GetOption) (CachedResponse, bool, error) {
	return e.getSite(ctx, method, uri, requestHeaders, policy, siteID, opts...)
}

func (e *Engine) getSite(ctx context.Context, method, uri string, requestHeaders header.Map, policy CachePolicy, siteID string, opts ...GetOption) (CachedResponse, bool, error) {
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}
	disconnected := o.disconnected && e.cfg.serveStaleOnError()

	requestCC := cachecontrol.ParseRequest(headerValues(requestHeaders, "Cache-Control"))
	if requestCC.OnlyIfCached() {
		policy = PolicyCacheOnly
	}

	key := cachekey.Primary(method, uri, e.siteID(siteID))
	entry, found, err := e.storage.Get(ctx, key)
	if err != nil {
		return CachedResponse{}, false, fmt.Errorf("httpcache: get %q: %w", uri, err)
	}
	if !found {
		e.log.Debug().Str("uri", uri).Msg("cache miss")
		if policy == PolicyCacheOnly {
			return CachedResponse{}, false, ErrOnlyIfCached
		}
		return CachedResponse{}, false, nil
	}

	result := decider.CanReuse(decider.Input{
		RequestMethod:     method,
		RequestURI:        normalizeURI(uri),
		RequestHeaders:    requestHeaders,
		EntryURI:          entry.URI,
		EntryHeaders:      entry.Header,
		EntryStatusCode:   entry.StatusCode,
		EntryVaryHeaders:  entry.VaryHeaders,
		EntryIsInvalid:    entry.IsInvalid,
		EntryRequestTime:  entry.RequestTime,
		EntryResponseTime: entry.ResponseTime,
		CacheType:         e.cfg.cacheType(),
		HeuristicOptions:  e.cfg.heuristicOptions(),
		Now:               time.Now(),
		Disconnected:      disconnected,
		MaxStaleAge:       e.cfg.MaxStaleAge,
	}, cachekey.Matches)

	if result.State == decider.NotReusable {
		e.log.Debug().Str("uri", uri).Str("reason", result.Reason).Msg("stored entry not reusable")
		if policy == PolicyCacheOnly {
			return CachedResponse{}, false, ErrOnlyIfCached
		}
		return CachedResponse{}, false, nil
	}

	switch result.State {
	case decider.Reusable:
		return CachedResponse{Entry: entry, Age: result.Age, IsStale: !result.IsFresh, RequiresValidation: false}, true, nil
	default: // RequiresValidation
		if policy == PolicyCacheFirst || policy == PolicyCacheOnly {
			return CachedResponse{Entry: entry, Age: result.Age, IsStale: true, RequiresValidation: false}, true, nil
		}
		return CachedResponse{Entry: entry, Age: result.Age, IsStale: !result.IsFresh, RequiresValidation: true}, true, nil
	}
}

// Put implements spec §4.11's write path.
func (e *Engine) Put(ctx context.Context, method, uri string, statusCode int, requestHeaders, responseHeaders header.Map, body []byte, requestTime, responseTime time.Time) error {
	return e.putSite(ctx, method, uri, statusCode, requestHeaders, responseHeaders, body, requestTime, responseTime, "")
}

// PutForSite is Put with an explicit top-level-site identifier.
func (e *Engine) PutForSite(ctx context.Context, method, uri string, statusCode int, requestHeaders, responseHeaders header.Map, body []byte, requestTime, responseTime time.Time, siteID string) error {
	return e.putSite(ctx, method, uri, statusCode, requestHeaders, responseHeaders, body, requestTime, responseTime, siteID)
}

func (e *Engine) putSite(ctx context.Context, method, uri string, statusCode int, requestHeaders, responseHeaders header.Map, body []byte, requestTime, responseTime time.Time, siteID string) error {
	result := decider.CanStore(method, statusCode, requestHeaders, responseHeaders, e.cfg.cacheType())
	if !result.Storable {
		e.log.Debug().Str("uri", uri).Str("reason", result.Reason).Msg("response not storable")
		return nil
	}

	cleanHeaders := stripProhibitedHeaders(responseHeaders)
	varyFields := cachecontrol.FieldList(responseHeaders.Value("Vary"))
	varySnapshot := cachekey.VaryHeaderSnapshot(varyFields, requestHeaders)

	entry := store.Entry{
		Method:       cachecontrol.NormalizeMethod(method),
		URI:          normalizeURI(uri),
		StatusCode:   statusCode,
		Header:       cleanHeaders,
		Body:         body,
		RequestTime:  requestTime,
		ResponseTime: responseTime,
		VaryHeaders:  varySnapshot,
		IsIncomplete: statusCode == 206,
		ContentRange: responseHeaders.Value("Content-Range"),
	}

	key := cachekey.Primary(method, uri, e.siteID(siteID))
	if _, err := e.storage.Put(ctx, key, entry); err != nil {
		return fmt.Errorf("httpcache: put %q: %w", uri, err)
	}
	return nil
}

// UpdateFrom304 looks up the entry stored under method+uri, and if its
// validators match the 304 response's, replaces it with the merged
// entry per spec §4.5/§4.11.
func (e *Engine) UpdateFrom304(ctx context.Context, method, uri string, responseHeaders header.Map, requestTime, responseTime time.Time) (store.Entry, bool, error) {
	key := cachekey.Primary(method, uri, "")
	existing, found, err := e.storage.Get(ctx, key)
	if err != nil {
		return store.Entry{}, false, fmt.Errorf("httpcache: updateFrom304 %q: %w", uri, err)
	}
	if !found {
		return store.Entry{}, false, nil
	}
	if !validator.Matches(existing.Header, responseHeaders) {
		e.log.Debug().Str("uri", uri).Msg("304 validators do not match stored entry")
		return store.Entry{}, false, nil
	}

	updated := existing.Clone()
	updated.Header = validator.MergeFrom304(existing.Header, responseHeaders)
	updated.RequestTime = requestTime
	updated.ResponseTime = responseTime

	if _, err := e.storage.Put(ctx, key, updated); err != nil {
		return store.Entry{}, false, fmt.Errorf("httpcache: updateFrom304 %q: %w", uri, err)
	}
	return updated, true, nil
}

// FreshenFromHEAD implements spec §4.12's opt-in HEAD-based freshening:
// a caller that issued a conditional HEAD may offer its response here to
// update the stored GET's headers without refetching the body.
func (e *Engine) FreshenFromHEAD(ctx context.Context, uri string, headResponseHeaders header.Map, requestTime, responseTime time.Time) (store.Entry, bool, error) {
	key := cachekey.Primary("GET", uri, "")
	existing, found, err := e.storage.Get(ctx, key)
	if err != nil {
		return store.Entry{}, false, fmt.Errorf("httpcache: freshenFromHEAD %q: %w", uri, err)
	}
	if !found {
		return store.Entry{}, false, nil
	}

	mergedHeaders, ok := validator.MergeFromHEAD(existing.Header, headResponseHeaders)
	if !ok {
		return store.Entry{}, false, nil
	}

	updated := existing.Clone()
	updated.Header = mergedHeaders
	updated.RequestTime = requestTime
	updated.ResponseTime = responseTime

	if _, err := e.storage.Put(ctx, key, updated); err != nil {
		return store.Entry{}, false, fmt.Errorf("httpcache: freshenFromHEAD %q: %w", uri, err)
	}
	return updated, true, nil
}

// InvalidateOnUnsafeMethod delegates to the invalidator package per spec
// §4.6/§4.11.
func (e *Engine) InvalidateOnUnsafeMethod(ctx context.Context, method, uri string, statusCode int, responseHeaders header.Map) error {
	_, err := invalidator.InvalidateOnUnsafeMethod(ctx, e.storage, invalidator.Request{
		Method:         method,
		URI:            uri,
		StatusCode:     statusCode,
		ResponseHeader: responseHeaders,
		SiteID:         e.siteID(""),
	})
	if err != nil {
		return fmt.Errorf("httpcache: invalidateOnUnsafeMethod %q: %w", uri, err)
	}
	return nil
}

// GenerateValidationHeaders delegates to the validator package per spec
// §4.5/§4.11.
func (e *Engine) GenerateValidationHeaders(ctx context.Context, method, uri string, requestHeaders header.Map) (header.Map, error) {
	key := cachekey.Primary(method, uri, "")
	entry, found, err := e.storage.Get(ctx, key)
	if err != nil {
		return header.Map{}, fmt.Errorf("httpcache: generateValidationHeaders %q: %w", uri, err)
	}
	if !found {
		return requestHeaders.Clone(), nil
	}
	return validator.GenerateConditionalHeaders(requestHeaders, entry.Header), nil
}

// Clear removes every stored entry.
func (e *Engine) Clear(ctx context.Context) error {
	if err := e.storage.Clear(ctx); err != nil {
		return fmt.Errorf("httpcache: clear: %w", err)
	}
	return nil
}

// ClearExpired removes every entry that is no longer fresh, per spec
// §4.11: clearWhere(entry → !isFresh(entry, parse(entry.header("cache-control")))).
func (e *Engine) ClearExpired(ctx context.Context) error {
	now := time.Now()
	err := e.storage.ClearWhere(ctx, func(entry store.Entry) bool {
		cc := entry.CacheControl()
		return !freshness.IsFresh(cc, entry.Header, e.cfg.cacheType(), e.cfg.heuristicOptions(), entry.StatusCode, entry.RequestTime, entry.ResponseTime, now)
	})
	if err != nil {
		return fmt.Errorf("httpcache: clearExpired: %w", err)
	}
	return nil
}

// GetStats reports storage probes.
func (e *Engine) GetStats(ctx context.Context) (Stats, error) {
	n, err := e.storage.Size(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("httpcache: getStats: %w", err)
	}
	b, err := e.storage.SizeInBytes(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("httpcache: getStats: %w", err)
	}
	return Stats{Entries: n, Bytes: b}, nil
}

// Close releases the underlying storage's resources.
func (e *Engine) Close() error {
	if err := e.storage.Close(); err != nil {
		return fmt.Errorf("httpcache: close: %w", err)
	}
	return nil
}

func headerValues(h header.Map, name string) []string {
	v, ok := h.Get(name)
	if !ok || v == "" {
		return nil
	}
	return []string{v}
}

func stripProhibitedHeaders(h header.Map) header.Map {
	return h.Clone().Remove(cachecontrol.ProhibitedStoredHeaders()...)
}

func normalizeURI(uri string) string {
	for i := 0; i < len(uri); i++ {
		if uri[i] == '#' {
			return uri[:i]
		}
	}
	return uri
}
