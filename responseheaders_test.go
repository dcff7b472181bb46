package httpcache

import (
	"testing"
	"time"

	"github.com/kallax-dev/httpcache/header"
	"github.com/kallax-dev/httpcache/store"
)

func TestResponseHeadersFreshHit(t *testing.T) {
	resp := CachedResponse{Entry: store.Entry{Header: header.New()}, Age: 30 * time.Second}
	h := ResponseHeaders(resp, false)
	if h.Value("Age") != "30" {
		t.Fatalf("expected Age=30, got %q", h.Value("Age"))
	}
	if h.Value("X-Cache") != string(XCacheHit) {
		t.Fatalf("expected HIT, got %q", h.Value("X-Cache"))
	}
	if h.Has("Warning") {
		t.Fatal("a fresh hit must not carry a Warning header")
	}
}

func TestResponseHeadersStale(t *testing.T) {
	resp := CachedResponse{Entry: store.Entry{Header: header.New()}, Age: 600 * time.Second, IsStale: true}
	h := ResponseHeaders(resp, false)
	if h.Value("X-Cache") != string(XCacheHitStale) {
		t.Fatalf("expected HIT-STALE, got %q", h.Value("X-Cache"))
	}
	if h.Value("Warning") != `110 - "Response is Stale"` {
		t.Fatalf("unexpected Warning: %q", h.Value("Warning"))
	}
}

func TestResponseHeadersRevalidationFailed(t *testing.T) {
	resp := CachedResponse{Entry: store.Entry{Header: header.New().Set("Warning", "199 - \"Miscellaneous\"")}, Age: 5 * time.Second}
	h := ResponseHeaders(resp, true)
	if h.Value("Warning") != `199 - "Miscellaneous", 111 - "Revalidation Failed"` {
		t.Fatalf("expected existing Warning to be preserved and appended, got %q", h.Value("Warning"))
	}
}

func TestMissHeaders(t *testing.T) {
	h := MissHeaders()
	if h.Value("X-Cache") != string(XCacheMiss) {
		t.Fatalf("expected MISS, got %q", h.Value("X-Cache"))
	}
}
