package extract

import (
	"strconv"
	"strings"
)

// SegmentKind is the navigation step a Segment performs.
type SegmentKind int

const (
	SegmentRoot SegmentKind = iota
	SegmentField
	SegmentIndex
	SegmentWildcard
	// SegmentReparse treats the current string value as a new JSON document.
	SegmentReparse
)

type Segment struct {
	Kind  SegmentKind
	Name  string // SegmentField
	Index int    // SegmentIndex
}

// String renders the segment as it appears in a path.
func (s Segment) String() string {
	switch s.Kind {
	case SegmentRoot:
		return "$"
	case SegmentField:
		return "." + s.Name
	case SegmentIndex:
		return "[" + strconv.Itoa(s.Index) + "]"
	case SegmentWildcard:
		return "[*]"
	case SegmentReparse:
		return ".$"
	default:
		return "?"
	}
}

// Path is a parsed extraction path. The zero value is not valid; use ParsePath
// or RootPath. Paths are immutable and safe to share between goroutines.
type Path struct {
	segments []Segment
}

// RootPath is the identity path "$".
func RootPath() Path {
	return Path{segments: []Segment{{Kind: SegmentRoot}}}
}

// Segments returns a copy of the segments; index 0 is always the root.
func (p Path) Segments() []Segment {
	return append([]Segment(nil), p.segments...)
}

// IsRoot reports whether the path selects the whole input.
func (p Path) IsRoot() bool {
	return len(p.segments) <= 1
}

func (p Path) String() string {
	var sb strings.Builder
	for _, s := range p.segments {
		sb.WriteString(s.String())
	}
	if sb.Len() == 0 {
		return "$"
	}
	return sb.String()
}

// ParsePath parses expressions such as "$.choices[0].message.content.$.user.name".
//
//	path    := "$" segment*
//	segment := "." name | "[" digits "]" | "[*]" | ".$"
//
// A field name runs until the next '.' or '['; the name "$" is the reparse marker.
func ParsePath(path string) (Path, error) {
	fail := func(offset int, reason string) (Path, error) {
		return Path{}, &InvalidPathError{Path: path, Offset: offset, Reason: reason}
	}

	if !strings.HasPrefix(path, "$") {
		return fail(0, "path must start with '$'")
	}

	segments := []Segment{{Kind: SegmentRoot}}
	i := 1
	for i < len(path) {
		switch path[i] {
		case '.':
			start := i + 1
			end := start
			for end < len(path) && path[end] != '.' && path[end] != '[' {
				if path[end] == ']' {
					return fail(end, "unexpected ']'")
				}
				end++
			}
			name := path[start:end]
			switch name {
			case "":
				return fail(start, "empty field name")
			case "$":
				segments = append(segments, Segment{Kind: SegmentReparse})
			default:
				segments = append(segments, Segment{Kind: SegmentField, Name: name})
			}
			i = end
		case '[':
			closing := strings.IndexByte(path[i+1:], ']')
			if closing < 0 {
				return fail(i, "unterminated '['")
			}
			body := path[i+1 : i+1+closing]
			if body == "*" {
				segments = append(segments, Segment{Kind: SegmentWildcard})
			} else {
				if body == "" || strings.TrimLeft(body, "0123456789") != "" {
					return fail(i+1, "index must be a non-negative integer or '*'")
				}
				idx, err := strconv.Atoi(body)
				if err != nil {
					return fail(i+1, "index out of integer range")
				}
				segments = append(segments, Segment{Kind: SegmentIndex, Index: idx})
			}
			i += closing + 2
		default:
			return fail(i, "expected '.' or '['")
		}
	}

	return Path{segments: segments}, nil
}

// MustParsePath is ParsePath for literals known to be valid.
func MustParsePath(path string) Path {
	p, err := ParsePath(path)
	if err != nil {
		panic(err)
	}
	return p
}
