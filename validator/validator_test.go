package validator

import (
	"testing"

	"github.com/kallax-dev/httpcache/header"
)

func TestGenerateConditionalHeaders(t *testing.T) {
	req := header.New().Set("Accept", "text/html")
	stored := header.New().Set("ETag", `"v1"`).Set("Last-Modified", "Mon, 01 Jan 2024 00:00:00 GMT")

	cond := GenerateConditionalHeaders(req, stored)
	if cond.Value("If-None-Match") != `"v1"` {
		t.Fatal("expected If-None-Match from stored ETag")
	}
	if cond.Value("If-Modified-Since") != "Mon, 01 Jan 2024 00:00:00 GMT" {
		t.Fatal("expected If-Modified-Since from stored Last-Modified")
	}
	if cond.Value("Accept") != "text/html" {
		t.Fatal("original request headers must be preserved")
	}
}

func TestGenerateConditionalHeadersNoValidators(t *testing.T) {
	req := header.New()
	stored := header.New()
	cond := GenerateConditionalHeaders(req, stored)
	if cond.Has("If-None-Match") || cond.Has("If-Modified-Since") {
		t.Fatal("no conditional headers should be added when no validators exist")
	}
}

func TestMatchesStrongETag(t *testing.T) {
	stored := header.New().Set("ETag", `"v1"`)
	response := header.New().Set("ETag", `"v1"`)
	if !Matches(stored, response) {
		t.Fatal("identical ETags should match")
	}
}

func TestMatchesStrongETagMismatch(t *testing.T) {
	stored := header.New().Set("ETag", `"v1"`)
	response := header.New().Set("ETag", `"v2"`)
	if Matches(stored, response) {
		t.Fatal("different ETags should not match")
	}
}

func TestMatchesWeakLastModified(t *testing.T) {
	stored := header.New().Set("Last-Modified", "Mon, 01 Jan 2024 00:00:00 GMT")
	response := header.New().Set("Last-Modified", "W/Mon, 01 Jan 2024 00:00:00 GMT")
	if !Matches(stored, response) {
		t.Fatal("weak prefix should be stripped before comparing Last-Modified")
	}
}

func TestMatchesNoValidatorsOnEitherSide(t *testing.T) {
	stored := header.New()
	response := header.New()
	if !Matches(stored, response) {
		t.Fatal("absence of validators on both sides should be treated as a match")
	}
}

func TestMatchesOneSidedValidatorDoesNotMatch(t *testing.T) {
	stored := header.New().Set("ETag", `"v1"`)
	response := header.New()
	if Matches(stored, response) {
		t.Fatal("a validator present only on one side must not match")
	}
}

func TestMergeFrom304ReplacesOnlyMergeableFields(t *testing.T) {
	stored := header.New().
		Set("ETag", `"v1"`).
		Set("Cache-Control", "max-age=60").
		Set("Content-Type", "text/html")
	response := header.New().
		Set("ETag", `"v2"`).
		Set("Cache-Control", "max-age=120").
		Set("Date", "Mon, 01 Jan 2024 00:00:00 GMT")

	merged := MergeFrom304(stored, response)
	if merged.Value("ETag") != `"v2"` {
		t.Fatal("ETag should be updated from the 304")
	}
	if merged.Value("Cache-Control") != "max-age=120" {
		t.Fatal("Cache-Control should be updated from the 304")
	}
	if merged.Value("Date") != "Mon, 01 Jan 2024 00:00:00 GMT" {
		t.Fatal("Date should be carried from the 304")
	}
	if merged.Value("Content-Type") != "text/html" {
		t.Fatal("non-mergeable fields must survive unchanged")
	}
}

func TestMergeFromHEADAgreesOnETag(t *testing.T) {
	stored := header.New().Set("ETag", `"v1"`).Set("Content-Length", "100")
	head := header.New().Set("ETag", `"v1"`).Set("Content-Length", "100").Set("Cache-Control", "max-age=60")

	merged, ok := MergeFromHEAD(stored, head)
	if !ok {
		t.Fatal("matching ETag and Content-Length should allow freshening")
	}
	if merged.Value("Cache-Control") != "max-age=60" {
		t.Fatal("freshened headers should come from the HEAD response")
	}
}

func TestMergeFromHEADContentLengthMismatchFails(t *testing.T) {
	stored := header.New().Set("ETag", `"v1"`).Set("Content-Length", "100")
	head := header.New().Set("ETag", `"v1"`).Set("Content-Length", "200")

	_, ok := MergeFromHEAD(stored, head)
	if ok {
		t.Fatal("a Content-Length mismatch must prevent freshening")
	}
}

func TestMergeFromHEADNoValidatorsFails(t *testing.T) {
	stored := header.New()
	head := header.New()
	_, ok := MergeFromHEAD(stored, head)
	if ok {
		t.Fatal("HEAD freshening requires an agreeing validator, unlike 304 handling")
	}
}

func TestLastModifiedTime(t *testing.T) {
	h := header.New().Set("Last-Modified", "Mon, 01 Jan 2024 00:00:00 GMT")
	if _, ok := LastModifiedTime(h); !ok {
		t.Fatal("expected a parseable Last-Modified")
	}
	if _, ok := LastModifiedTime(header.New()); ok {
		t.Fatal("absent Last-Modified should report not-ok")
	}
}
