package httpcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kallax-dev/httpcache/header"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Config{DatabasePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestS1FreshHitEndToEnd(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	t0 := time.Now().Add(-30 * time.Second)
	responseTime := t0.Add(100 * time.Millisecond)
	body := []byte{1, 2, 3}

	err := e.Put(ctx, "GET", "https://example.com/a", 200,
		header.New(),
		header.New().Set("Cache-Control", "max-age=300").Set("Date", t0.Format(time.RFC1123)),
		body, t0, responseTime)
	require.NoError(t, err)

	resp, found, err := e.Get(ctx, "GET", "https://example.com/a", header.New(), PolicyStandard)
	require.NoError(t, err)
	require.True(t, found)
	require.False(t, resp.IsStale)
	require.False(t, resp.RequiresValidation)
	require.Equal(t, body, resp.Entry.Body)
}

func TestS2StaleThenUpdateFrom304(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	past := time.Now().Add(-600 * time.Second)
	err := e.Put(ctx, "GET", "https://example.com/b", 200,
		header.New(),
		header.New().Set("Cache-Control", "max-age=300").Set("Date", past.Format(time.RFC1123)).Set("ETag", `"v0"`),
		[]byte("body"), past, past)
	require.NoError(t, err)

	resp, found, err := e.Get(ctx, "GET", "https://example.com/b", header.New(), PolicyStandard)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, resp.IsStale)
	require.True(t, resp.RequiresValidation)

	now := time.Now()
	updated, ok, err := e.UpdateFrom304(ctx, "GET", "https://example.com/b",
		header.New().Set("ETag", `"v0"`).Set("Date", now.Format(time.RFC1123)),
		now, now)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `"v0"`, updated.Header.Value("ETag"))

	resp2, found2, err := e.Get(ctx, "GET", "https://example.com/b", header.New(), PolicyStandard)
	require.NoError(t, err)
	require.True(t, found2)
	require.False(t, resp2.IsStale)
}

func TestS3OnlyIfCachedMiss(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, found, err := e.Get(ctx, "GET", "https://example.com/absent",
		header.New().Set("Cache-Control", "only-if-cached"), PolicyStandard)
	require.ErrorIs(t, err, ErrOnlyIfCached)
	require.False(t, found)
}

func TestS4UnsafeMethodInvalidatesGET(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.Put(ctx, "GET", "https://example.com/a", 200,
		header.New(), header.New().Set("Cache-Control", "max-age=3600"), []byte("x"),
		time.Now(), time.Now())
	require.NoError(t, err)

	_, found, err := e.Get(ctx, "GET", "https://example.com/a", header.New(), PolicyStandard)
	require.NoError(t, err)
	require.True(t, found)

	err = e.InvalidateOnUnsafeMethod(ctx, "POST", "https://example.com/a", 201, header.New())
	require.NoError(t, err)

	_, found2, err := e.Get(ctx, "GET", "https://example.com/a", header.New(), PolicyStandard)
	require.NoError(t, err)
	require.False(t, found2)
}

func TestS5VaryMismatchEndToEnd(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.Put(ctx, "GET", "https://example.com/c", 200,
		header.New().Set("Accept-Language", "en"),
		header.New().Set("Cache-Control", "max-age=300").Set("Vary", "Accept-Language"),
		[]byte("english"), time.Now(), time.Now())
	require.NoError(t, err)

	_, found, err := e.Get(ctx, "GET", "https://example.com/c",
		header.New().Set("Accept-Language", "fr"), PolicyStandard)
	require.NoError(t, err)
	require.False(t, found)
}

func TestS6AuthorizationGateEndToEnd(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.Put(ctx, "GET", "https://example.com/d", 200,
		header.New().Set("Authorization", "Bearer xyz"),
		header.New().Set("Cache-Control", "max-age=60"),
		[]byte("secret"), time.Now(), time.Now())
	require.NoError(t, err)

	_, found, err := e.Get(ctx, "GET", "https://example.com/d", header.New(), PolicyStandard)
	require.NoError(t, err)
	require.False(t, found, "authenticated response without public/must-revalidate/s-maxage must not have been stored")
}

func TestGetServesStaleWhenDisconnectedAndServeStaleOnError(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	past := time.Now().Add(-600 * time.Second)
	err := e.Put(ctx, "GET", "https://example.com/e", 200,
		header.New(), header.New().Set("Cache-Control", "max-age=300").Set("Date", past.Format(time.RFC1123)),
		[]byte("body"), past, past)
	require.NoError(t, err)

	resp, found, err := e.Get(ctx, "GET", "https://example.com/e", header.New(), PolicyStandard, WithDisconnected())
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, resp.IsStale)
	require.False(t, resp.RequiresValidation)
}

func TestGetDoesNotServeStaleWhenNotDisconnected(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	past := time.Now().Add(-600 * time.Second)
	err := e.Put(ctx, "GET", "https://example.com/f", 200,
		header.New(), header.New().Set("Cache-Control", "max-age=300").Set("Date", past.Format(time.RFC1123)),
		[]byte("body"), past, past)
	require.NoError(t, err)

	resp, found, err := e.Get(ctx, "GET", "https://example.com/f", header.New(), PolicyStandard)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, resp.RequiresValidation)
}

func TestClearExpiredRemovesStaleEntriesOnly(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	past := time.Now().Add(-1000 * time.Second)
	err := e.Put(ctx, "GET", "https://example.com/stale", 200,
		header.New(), header.New().Set("Cache-Control", "max-age=10").Set("Date", past.Format(time.RFC1123)),
		[]byte("x"), past, past)
	require.NoError(t, err)

	now := time.Now()
	err = e.Put(ctx, "GET", "https://example.com/fresh", 200,
		header.New(), header.New().Set("Cache-Control", "max-age=3600").Set("Date", now.Format(time.RFC1123)),
		[]byte("x"), now, now)
	require.NoError(t, err)

	err = e.ClearExpired(ctx)
	require.NoError(t, err)

	_, staleFound, _ := e.Get(ctx, "GET", "https://example.com/stale", header.New(), PolicyStandard)
	require.False(t, staleFound)
	_, freshFound, _ := e.Get(ctx, "GET", "https://example.com/fresh", header.New(), PolicyStandard)
	require.True(t, freshFound)
}

func TestGetStatsReportsStoredEntries(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.Put(ctx, "GET", "https://example.com/a", 200,
		header.New(), header.New().Set("Cache-Control", "max-age=60"), []byte("x"),
		time.Now(), time.Now())
	require.NoError(t, err)

	stats, err := e.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Entries)
	require.Greater(t, stats.Bytes, int64(0))
}

func TestBundledValueAPIMatchesPrimitiveAPI(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	now := time.Now()
	err := e.PutResponse(ctx, "GET", "https://example.com/bundled", header.New(), CacheResponse{
		StatusCode:   200,
		Headers:      header.New().Set("Cache-Control", "max-age=60"),
		Body:         []byte("bundled"),
		RequestTime:  now,
		ResponseTime: now,
	}, "")
	require.NoError(t, err)

	resp, found, err := e.GetRequest(ctx, CacheRequest{
		Method: "GET",
		URI:    "https://example.com/bundled",
		Policy: PolicyStandard,
	})
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("bundled"), resp.Entry.Body)
}
