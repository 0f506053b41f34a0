package extract

import (
	"encoding/json"
	"strings"
)

// salvage rebuilds a parseable text line by line. Lines are accumulated
// while nesting and string state stay consistent; the first line boundary
// where depth returns to zero closes a complete structural unit and ends
// the walk. An incomplete final line (one that leaves a string open) is
// dropped entirely rather than guessed at; whatever structures remain open
// are closed as in the balancing tier, and trailing separators before
// closers are stripped.
func salvage(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return text
	}
	lines := strings.Split(text[start:], "\n")
	sc := newScanner()
	kept := make([]string, 0, len(lines))
	opened := false
	for _, line := range lines {
		sc.feedString(line)
		kept = append(kept, line)
		if sc.depth() > 0 {
			opened = true
		}
		if opened && sc.depth() == 0 && !sc.inString {
			// complete structural unit; ignore anything after it
			break
		}
		sc.feed('\n')
	}
	if sc.inString && len(kept) > 0 {
		kept = kept[:len(kept)-1]
		sc = newScanner()
		sc.feedString(strings.Join(kept, "\n"))
	}
	joined := strings.TrimRight(strings.Join(kept, "\n"), " \t\r\n,")
	joined = trailingSeparator.ReplaceAllString(joined, "$1")
	return joined + sc.closers()
}

// bestEffort is the last resort: find the first top-level key whose value
// opens an array, then harvest every syntactically complete object span
// from the remainder, parsing each individually. A span that fails to
// parse is retried once with its own structure closed. Spans that parse
// land in the key's array; when none do, the result is an explicit empty
// array under that key rather than a whole-extraction failure.
func bestEffort(text string) (map[string]any, bool) {
	key, rest, ok := firstArrayKey(text)
	if !ok {
		return nil, false
	}
	items := make([]any, 0, 4)
	for _, span := range objectSpans(rest) {
		var item map[string]any
		if err := json.Unmarshal([]byte(span), &item); err == nil {
			items = append(items, item)
			continue
		}
		repaired := balance(sanitize(span))
		if err := json.Unmarshal([]byte(repaired), &item); err == nil {
			items = append(items, item)
		}
	}
	return map[string]any{key: items}, true
}

// firstArrayKey scans for the first `"key": [` at depth one and returns
// the key plus the text following the opening bracket.
func firstArrayKey(text string) (string, string, bool) {
	sc := newScanner()
	i := 0
	for i < len(text) {
		c := text[i]
		if sc.inString || c != '"' || sc.depth() != 1 {
			sc.feed(c)
			i++
			continue
		}
		key, end, ok := readString(text, i)
		if !ok {
			return "", "", false
		}
		j := skipSpace(text, end)
		if j < len(text) && text[j] == ':' {
			j = skipSpace(text, j+1)
			if j < len(text) && text[j] == '[' {
				return key, text[j+1:], true
			}
		}
		sc.feedString(text[i:end])
		i = end
	}
	return "", "", false
}

// readString decodes the JSON string literal starting at text[start] == '"'.
func readString(text string, start int) (string, int, bool) {
	sc := newScanner()
	for i := start; i < len(text); i++ {
		sc.feed(text[i])
		if i > start && !sc.inString {
			var decoded string
			if err := json.Unmarshal([]byte(text[start:i+1]), &decoded); err != nil {
				return "", 0, false
			}
			return decoded, i + 1, true
		}
	}
	return "", 0, false
}

func skipSpace(text string, i int) int {
	for i < len(text) {
		switch text[i] {
		case ' ', '\t', '\r', '\n':
			i++
		default:
			return i
		}
	}
	return i
}

// objectSpans walks the text with brace counting and returns every
// object-shaped span, including a trailing unterminated one (its repair is
// the caller's problem).
func objectSpans(text string) []string {
	var spans []string
	sc := newScanner()
	start := -1
	for i := 0; i < len(text); i++ {
		c := text[i]
		if start < 0 && !sc.inString && c == '{' {
			start = i
		}
		sc.feed(c)
		if start >= 0 && sc.depth() == 0 && !sc.inString && c == '}' {
			spans = append(spans, text[start:i+1])
			start = -1
		}
		// the enclosing array closed; nothing object-shaped follows
		if start < 0 && !sc.inString && c == ']' && sc.depth() == 0 {
			break
		}
	}
	if start >= 0 {
		spans = append(spans, text[start:])
	}
	return spans
}
