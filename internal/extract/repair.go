package extract

import (
	"regexp"
	"strings"
)

var (
	// ",}" and ",]" — trailing separator before a closer.
	trailingSeparator = regexp.MustCompile(`,(\s*[}\]])`)
	// "}" or "]" at end of line followed by "{" or "[" opening the next —
	// adjacent structures missing their separator.
	adjacentClosers = regexp.MustCompile(`(?m)([}\]])[ \t]*\n([ \t]*[{\[])`)
	// a string ending one line and another opening the next.
	adjacentStrings = regexp.MustCompile(`(?m)"[ \t]*\n([ \t]*")`)
	// `"key":` with nothing after it.
	danglingField = regexp.MustCompile(`"(?:[^"\\]|\\.)*"\s*:\s*$`)
)

// sanitize applies the tier-3 textual repairs. It is idempotent: repaired
// text no longer matches any of the patterns.
func sanitize(text string) string {
	out := adjacentClosers.ReplaceAllString(text, "$1,\n$2")
	out = adjacentStrings.ReplaceAllString(out, "\",\n$1")
	out = trailingSeparator.ReplaceAllString(out, "$1")
	return out
}

// scanner walks JSON-ish text tracking quoted-string state (honoring
// escapes) and the stack of open braces/brackets outside strings.
type scanner struct {
	inString bool
	escaped  bool
	quotes   int
	stack    []byte
}

func newScanner() *scanner { return &scanner{} }

func (s *scanner) feed(c byte) {
	if s.inString {
		switch {
		case s.escaped:
			s.escaped = false
		case c == '\\':
			s.escaped = true
		case c == '"':
			s.inString = false
			s.quotes++
		}
		return
	}
	switch c {
	case '"':
		s.inString = true
		s.quotes++
	case '{', '[':
		s.stack = append(s.stack, c)
	case '}':
		s.pop('{')
	case ']':
		s.pop('[')
	}
}

func (s *scanner) pop(open byte) {
	if n := len(s.stack); n > 0 && s.stack[n-1] == open {
		s.stack = s.stack[:n-1]
	}
}

func (s *scanner) feedString(text string) {
	for i := 0; i < len(text); i++ {
		s.feed(text[i])
	}
}

func (s *scanner) depth() int { return len(s.stack) }

// closers returns the closing delimiters for the open stack, innermost
// first, so appending them in order matches the current nesting.
func (s *scanner) closers() string {
	var b strings.Builder
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

// unbalanced reports whether open braces/brackets outnumber their closers
// or a string literal never terminates — the tier-4 trigger.
func unbalanced(text string) bool {
	sc := newScanner()
	sc.feedString(text)
	return sc.depth() > 0 || sc.inString
}

// balance assumes the text was truncated mid-structure and closes it: an
// odd quote count means an unterminated string literal; a bare `"key":`
// tail gets a null completion; then exactly the missing closers are
// appended in nesting order. Structure only — no field values are invented.
func balance(text string) string {
	sc := newScanner()
	sc.feedString(text)
	repaired := text
	if sc.inString {
		repaired += `"`
	}
	trimmed := strings.TrimRight(repaired, " \t\r\n")
	if danglingField.MatchString(trimmed) {
		repaired = trimmed + " null"
	} else if strings.HasSuffix(trimmed, ",") {
		repaired = strings.TrimSuffix(trimmed, ",")
	}
	return repaired + sc.closers()
}
