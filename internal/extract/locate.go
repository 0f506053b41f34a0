package extract

import "strings"

// locate searches, in order: a fenced block labelled as JSON, any fenced
// block, the first top-level brace-delimited span. The first hit wins and
// becomes the working text for every later tier.
func locate(raw string) (string, bool) {
	if body, ok := fencedBlock(raw, "json"); ok {
		return body, true
	}
	if body, ok := fencedBlock(raw, ""); ok {
		return body, true
	}
	if span, ok := braceSpan(raw); ok {
		return span, true
	}
	return "", false
}

// fencedBlock extracts the body of the first ``` fence. With a label, only
// a fence opened as ```<label> matches; with an empty label any fence
// matches and its language token is skipped. An unterminated fence yields
// everything after the opener so later tiers can repair a truncated block.
func fencedBlock(raw, label string) (string, bool) {
	marker := "```" + label
	idx := indexFold(raw, marker)
	if idx < 0 {
		return "", false
	}
	rest := raw[idx+len(marker):]
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 {
		return "", false
	}
	body := rest[nl+1:]
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	body = strings.TrimSpace(body)
	return body, body != ""
}

// indexFold is a case-insensitive strings.Index for ASCII markers.
func indexFold(s, marker string) int {
	return strings.Index(strings.ToLower(s), strings.ToLower(marker))
}

// braceSpan returns the first top-level {...} span. When the text ends
// before the span closes, the open tail is returned so the balancing and
// salvage tiers still have something structural to work with.
func braceSpan(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	sc := newScanner()
	for i := start; i < len(raw); i++ {
		sc.feed(raw[i])
		if sc.depth() == 0 && !sc.inString {
			return raw[start : i+1], true
		}
	}
	return raw[start:], true
}
