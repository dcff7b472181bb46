// Package httpdate parses the date formats that Date, Expires, and
// Last-Modified carry in the wild.
//
// RFC 9111 specifies the standard HTTP-date grammar (RFC 9110 §5.6.7), but
// the spec this engine implements leaves the exact accepted grammar weakly
// specified and asks for both HTTP-date and ISO-8601 to be accepted. This
// mirrors what the always-cache teacher's rfc9111 package does for
// "httpDate" parsing, generalized to also accept RFC 3339.
package httpdate

import "time"

var layouts = []string{
	time.RFC1123,             // Mon, 02 Jan 2006 15:04:05 MST
	time.RFC1123Z,            // Mon, 02 Jan 2006 15:04:05 -0700
	time.RFC850,              // Monday, 02-Jan-06 15:04:05 MST
	time.ANSIC,               // Mon Jan  2 15:04:05 2006
	time.RFC3339,             // 2006-01-02T15:04:05Z07:00
	"2006-01-02T15:04:05",    // RFC 3339 without a zone
	"2006-01-02 15:04:05",    // space-separated variant seen in the wild
	"2006-01-02",             // date-only ISO-8601
}

// Parse attempts each accepted layout in turn and returns the first
// successful result. It returns an error if no layout matches.
func Parse(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// httpDateLayout is time.RFC1123 with the zone pinned to the literal "GMT",
// as required by RFC 9110 §5.6.7 (time.RFC1123 alone renders "UTC").
const httpDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// Format renders t using the canonical HTTP-date form (RFC 9110 §5.6.7),
// the form the engine always generates on output (e.g. for a synthesized
// Date header).
func Format(t time.Time) string {
	return t.UTC().Format(httpDateLayout)
}
