package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kallax-dev/httpcache/header"
	"github.com/kallax-dev/httpcache/store"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func openTestBounded(t *testing.T, cfg Config) *Store {
	t.Helper()
	s, err := Open(":memory:", cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	entry := store.Entry{
		Method:       "GET",
		URI:          "https://example.com/a",
		StatusCode:   200,
		Header:       header.New().Set("Cache-Control", "max-age=60").Set("ETag", `"v1"`),
		Body:         []byte("hello world"),
		RequestTime:  now,
		ResponseTime: now,
		VaryHeaders:  map[string]string{"accept-language": "en"},
	}

	ok, err := s.Put(ctx, "k1", entry)
	if err != nil || !ok {
		t.Fatalf("put failed: ok=%v err=%v", ok, err)
	}

	got, found, err := s.Get(ctx, "k1")
	if err != nil || !found {
		t.Fatalf("get failed: found=%v err=%v", found, err)
	}
	if got.Method != "GET" || got.URI != entry.URI || got.StatusCode != 200 {
		t.Fatalf("round-tripped entry mismatch: %+v", got)
	}
	if got.Header.Value("Cache-Control") != "max-age=60" {
		t.Fatalf("header round-trip mismatch: %q", got.Header.Value("Cache-Control"))
	}
	if string(got.Body) != "hello world" {
		t.Fatalf("body round-trip mismatch: %q", got.Body)
	}
	if got.VaryHeaders["accept-language"] != "en" {
		t.Fatalf("vary headers round-trip mismatch: %+v", got.VaryHeaders)
	}
}

func TestGetMissReturnsNotFoundFalse(t *testing.T) {
	s := openTest(t)
	_, found, err := s.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected a miss")
	}
}

func TestPutUpsertsOnConflict(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	now := time.Now()

	s.Put(ctx, "k1", store.Entry{Method: "GET", URI: "https://example.com/a", StatusCode: 200, Header: header.New(), RequestTime: now, ResponseTime: now})
	s.Put(ctx, "k1", store.Entry{Method: "GET", URI: "https://example.com/a", StatusCode: 404, Header: header.New(), RequestTime: now, ResponseTime: now})

	got, found, err := s.Get(ctx, "k1")
	if err != nil || !found {
		t.Fatalf("get failed: found=%v err=%v", found, err)
	}
	if got.StatusCode != 404 {
		t.Fatalf("expected the replacing put to win, got status %d", got.StatusCode)
	}

	n, err := s.Size(ctx)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one row after upsert, got %d", n)
	}
}

func TestRemoveAndContains(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	now := time.Now()
	s.Put(ctx, "k1", store.Entry{Method: "GET", URI: "https://example.com/a", StatusCode: 200, Header: header.New(), RequestTime: now, ResponseTime: now})

	if ok, _ := s.Contains(ctx, "k1"); !ok {
		t.Fatal("expected k1 to be present")
	}
	removed, err := s.Remove(ctx, "k1")
	if err != nil || !removed {
		t.Fatalf("remove failed: removed=%v err=%v", removed, err)
	}
	if ok, _ := s.Contains(ctx, "k1"); ok {
		t.Fatal("expected k1 to be gone")
	}
}

func TestClearWhere(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	now := time.Now()
	s.Put(ctx, "k1", store.Entry{Method: "GET", URI: "https://example.com/a", StatusCode: 200, Header: header.New(), RequestTime: now, ResponseTime: now})
	s.Put(ctx, "k2", store.Entry{Method: "GET", URI: "https://example.com/b", StatusCode: 404, Header: header.New(), RequestTime: now, ResponseTime: now})

	err := s.ClearWhere(ctx, func(e store.Entry) bool { return e.StatusCode == 404 })
	if err != nil {
		t.Fatalf("clearWhere: %v", err)
	}

	if ok, _ := s.Contains(ctx, "k1"); !ok {
		t.Fatal("k1 should survive")
	}
	if ok, _ := s.Contains(ctx, "k2"); ok {
		t.Fatal("k2 should have been cleared")
	}
}

func TestSizeInBytesSumsEntrySizes(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	now := time.Now()
	entry := store.Entry{Method: "GET", URI: "https://example.com/a", StatusCode: 200, Header: header.New(), Body: []byte("12345"), RequestTime: now, ResponseTime: now}
	s.Put(ctx, "k1", entry)

	bytes, err := s.SizeInBytes(ctx)
	if err != nil {
		t.Fatalf("sizeInBytes: %v", err)
	}
	if bytes != int64(entry.Size()) {
		t.Fatalf("expected %d bytes, got %d", entry.Size(), bytes)
	}
}

func TestEvictOldestByAccessTime(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	now := time.Now()
	s.Put(ctx, "k1", store.Entry{Method: "GET", URI: "https://example.com/a", StatusCode: 200, Header: header.New(), RequestTime: now, ResponseTime: now})
	s.Put(ctx, "k2", store.Entry{Method: "GET", URI: "https://example.com/b", StatusCode: 200, Header: header.New(), RequestTime: now, ResponseTime: now})

	// touch k2 to make it more recently accessed than k1.
	s.Get(ctx, "k2")

	evicted, err := s.EvictOldest(ctx, "access_time")
	if err != nil || !evicted {
		t.Fatalf("evictOldest failed: evicted=%v err=%v", evicted, err)
	}
	if ok, _ := s.Contains(ctx, "k1"); ok {
		t.Fatal("expected k1 (least recently accessed) to have been evicted")
	}
	if ok, _ := s.Contains(ctx, "k2"); !ok {
		t.Fatal("k2 should survive eviction")
	}
}

func TestPutRejectsEntryLargerThanMaxBytes(t *testing.T) {
	s := openTestBounded(t, Config{MaxBytes: 4})
	ctx := context.Background()
	now := time.Now()

	ok, err := s.Put(ctx, "k1", store.Entry{
		Method: "GET", URI: "https://example.com/a", StatusCode: 200,
		Header: header.New(), Body: []byte("this body is far larger than four bytes"),
		RequestTime: now, ResponseTime: now,
	})
	if ok {
		t.Fatal("expected put to reject an oversized entry")
	}
	if !errors.Is(err, store.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestPutEvictsToStayWithinMaxEntries(t *testing.T) {
	s := openTestBounded(t, Config{MaxEntries: 2, Strategy: store.EvictionFIFO})
	ctx := context.Background()
	now := time.Now()

	for _, key := range []string{"k1", "k2", "k3"} {
		ok, err := s.Put(ctx, key, store.Entry{
			Method: "GET", URI: "https://example.com/" + key, StatusCode: 200,
			Header: header.New(), RequestTime: now, ResponseTime: now,
		})
		if err != nil || !ok {
			t.Fatalf("put %q failed: ok=%v err=%v", key, ok, err)
		}
	}

	n, err := s.Size(ctx)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected eviction to cap the durable tier at 2 entries, got %d", n)
	}
	if ok, _ := s.Contains(ctx, "k1"); ok {
		t.Fatal("k1 was inserted first and should have been evicted under FIFO")
	}
	if ok, _ := s.Contains(ctx, "k3"); !ok {
		t.Fatal("k3 was inserted last and should be resident")
	}
}

func TestKeysReturnsAllStoredKeys(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	now := time.Now()
	s.Put(ctx, "k1", store.Entry{Method: "GET", URI: "https://example.com/a", StatusCode: 200, Header: header.New(), RequestTime: now, ResponseTime: now})
	s.Put(ctx, "k2", store.Entry{Method: "GET", URI: "https://example.com/b", StatusCode: 200, Header: header.New(), RequestTime: now, ResponseTime: now})

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
}
