package extract

import (
	"regexp"
	"sort"
	"strings"
)

// maxSpanAttempts caps how many bracket spans LocateJSON tries to parse, which
// keeps bracket-heavy prose from turning the search quadratic.
const maxSpanAttempts = 64

var fencePattern = regexp.MustCompile("(?is)```[ \\t]*(?:json)?[ \\t]*\\r?\\n?(.*?)```")

type span struct{ start, end int } // end is exclusive

// LocateJSON finds a JSON object or array embedded in free text such as an LLM
// reply. Fenced code blocks are tried first, then balanced {...} / [...] spans;
// within each stage the longest span that parses wins, earliest on ties.
func LocateJSON(text string) (Value, error) {
	if v, ok := fromFences(text); ok {
		return v, nil
	}
	if v, ok := fromSpans(text); ok {
		return v, nil
	}
	return Value{}, ErrNoJSONFound
}

func fromFences(text string) (Value, bool) {
	var (
		best    Value
		bestLen = -1
	)
	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		body := strings.TrimSpace(m[1])
		if len(body) <= bestLen {
			continue
		}
		v, err := ParseString(body)
		if err != nil || (v.Kind() != KindObject && v.Kind() != KindArray) {
			continue
		}
		best, bestLen = v, len(body)
	}
	return best, bestLen >= 0
}

func fromSpans(text string) (Value, bool) {
	spans := balancedSpans(text)
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].end-spans[i].start > spans[j].end-spans[j].start
	})
	for i, s := range spans {
		if i >= maxSpanAttempts {
			break
		}
		if v, err := ParseString(text[s.start:s.end]); err == nil {
			return v, true
		}
	}
	return Value{}, false
}

// balancedSpans returns every matched bracket pair in one pass, ordered by start.
// Quotes only count inside brackets, so apostrophes and stray quotes in the
// surrounding prose do not hide the JSON. A mismatched closer discards the
// open brackets collected so far.
func balancedSpans(text string) []span {
	type open struct {
		pos   int
		close byte
	}
	var (
		stack    []open
		spans    []span
		inString bool
		escaped  bool
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"', c == '\n':
				// JSON strings cannot span lines; a newline means the quote was prose.
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if len(stack) > 0 {
				inString = true
			}
		case '{':
			stack = append(stack, open{pos: i, close: '}'})
		case '[':
			stack = append(stack, open{pos: i, close: ']'})
		case '}', ']':
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			if top.close != c {
				stack = stack[:0]
				continue
			}
			stack = stack[:len(stack)-1]
			spans = append(spans, span{start: top.pos, end: i + 1})
		}
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	return spans
}
