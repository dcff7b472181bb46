package cachekey

import (
	"testing"

	"github.com/kallax-dev/httpcache/header"
)

func TestPrimaryDeterministic(t *testing.T) {
	a := Primary("GET", "https://example.com/foo", "")
	b := Primary("get", "https://example.com/foo", "")
	if a != b {
		t.Fatal("method case should not affect the key")
	}
	c := Primary("GET", "https://example.com/foo#section", "")
	if a != c {
		t.Fatal("fragment should be stripped before hashing")
	}
}

func TestPrimaryFixedLength(t *testing.T) {
	k := Primary("GET", "https://example.com/", "")
	if len(k) != 64 {
		t.Fatalf("expected a 64-char hex sha256 digest, got %d chars", len(k))
	}
}

func TestVaryEmptyIsPrimaryKey(t *testing.T) {
	primary := Primary("GET", "https://example.com/", "")
	if Vary(primary, nil, header.New(), "") != primary {
		t.Fatal("no Vary fields should leave the key unchanged")
	}
}

func TestVaryWildcardNeverMatchesAndIsDistinct(t *testing.T) {
	primary := Primary("GET", "https://example.com/", "")
	wildcard := Vary(primary, []string{"*"}, header.New(), "")
	if wildcard == primary {
		t.Fatal("wildcard Vary key must differ from the primary key")
	}
}

func TestVaryKeyDependsOnNormalizedRequestValue(t *testing.T) {
	primary := Primary("GET", "https://example.com/", "")
	reqEN := header.New().Set("Accept-Language", "  en   ")
	reqEN2 := header.New().Set("Accept-Language", "en")
	reqFR := header.New().Set("Accept-Language", "fr")

	k1 := Vary(primary, []string{"Accept-Language"}, reqEN, "")
	k2 := Vary(primary, []string{"Accept-Language"}, reqEN2, "")
	k3 := Vary(primary, []string{"Accept-Language"}, reqFR, "")

	if k1 != k2 {
		t.Fatal("whitespace normalization should make these keys equal")
	}
	if k1 == k3 {
		t.Fatal("different Accept-Language values should produce different keys")
	}
}

func TestVaryKeyFieldOrderIndependent(t *testing.T) {
	primary := Primary("GET", "https://example.com/", "")
	req := header.New().Set("Accept-Language", "en").Set("Accept-Encoding", "gzip")

	k1 := Vary(primary, []string{"Accept-Language", "Accept-Encoding"}, req, "")
	k2 := Vary(primary, []string{"Accept-Encoding", "Accept-Language"}, req, "")
	if k1 != k2 {
		t.Fatal("field nomination order should not affect the key")
	}
}

func TestDoubleKeyingPartitionsBySite(t *testing.T) {
	a := Primary("GET", "https://example.com/", "siteA")
	b := Primary("GET", "https://example.com/", "siteB")
	c := Primary("GET", "https://example.com/", "")
	if a == b || a == c || b == c {
		t.Fatal("different site identifiers must partition the key space")
	}
}

func TestVaryHeaderSnapshotAndMatches(t *testing.T) {
	req := header.New().Set("Accept-Language", "en")
	snapshot := VaryHeaderSnapshot([]string{"Accept-Language"}, req)

	matchReq := header.New().Set("Accept-Language", "en")
	if !Matches(snapshot, matchReq) {
		t.Fatal("identical normalized value should match")
	}
	mismatchReq := header.New().Set("Accept-Language", "fr")
	if Matches(snapshot, mismatchReq) {
		t.Fatal("different normalized value should not match")
	}
}

func TestVaryHeaderSnapshotWildcardNeverMatches(t *testing.T) {
	snapshot := VaryHeaderSnapshot([]string{"*"}, header.New())
	if Matches(snapshot, header.New()) {
		t.Fatal("wildcard snapshot must never match")
	}
}

func TestVaryHeaderSnapshotAbsentFieldMustMatchAbsent(t *testing.T) {
	snapshot := VaryHeaderSnapshot([]string{"Accept-Language"}, header.New())
	if !Matches(snapshot, header.New()) {
		t.Fatal("absent on both sides should match")
	}
	if Matches(snapshot, header.New().Set("Accept-Language", "en")) {
		t.Fatal("absent at storage time should not match a present value now")
	}
}
