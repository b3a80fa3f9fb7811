// Package extract navigates JSON documents with "$"-rooted paths. A path can
// step into JSON that is itself embedded as a string (optionally fenced in
// Markdown) with the ".$" reparse marker, to any depth.
package extract

import (
	"errors"
	"fmt"
	"strconv"
)

// Extract resolves path against raw text. The text is parsed as JSON when it is
// a valid document; otherwise it is navigated as a plain string, which only
// succeeds for "$" or for paths that begin by reparsing it. "$" returns the raw
// text unchanged.
func Extract(raw string, path Path) (Value, error) {
	if path.IsRoot() {
		return String(raw), nil
	}
	root, err := ParseString(raw)
	if err != nil {
		root = String(raw)
	}
	return ExtractValue(root, path)
}

// ExtractValue resolves path against an already parsed value.
//
// Segments are applied in a single loop. After a wildcard the value is a
// projection: the remaining segments are applied to every element and the
// results are collected in order. Projections nest per wildcard and are never
// flattened.
func ExtractValue(root Value, path Path) (Value, error) {
	segments := path.segments
	if len(segments) == 0 {
		return root, nil
	}

	current := root
	depth := 0 // number of active wildcard projections
	for i, seg := range segments {
		if i == 0 && seg.Kind == SegmentRoot {
			continue
		}
		next, err := applyAt(current, seg, depth)
		if err != nil {
			var stepErr *stepError
			if errors.As(err, &stepErr) {
				return Value{}, &ExtractionError{
					Path:         path.String(),
					SegmentIndex: i,
					Segment:      seg,
					Reason:       stepErr.reason,
					Err:          stepErr.kind,
				}
			}
			return Value{}, err
		}
		current = next
		if seg.Kind == SegmentWildcard {
			depth++
		}
	}
	return current, nil
}

type stepError struct {
	kind   error
	reason string
}

func (e *stepError) Error() string { return e.reason }

func stepFail(kind error, format string, args ...any) error {
	return &stepError{kind: kind, reason: fmt.Sprintf(format, args...)}
}

// applyAt applies seg at projection depth: depth 0 is the value itself, depth n
// maps over the elements of n nested arrays.
func applyAt(v Value, seg Segment, depth int) (Value, error) {
	if depth == 0 {
		return apply(v, seg)
	}
	items := make([]Value, len(v.items))
	for i, item := range v.items {
		out, err := applyAt(item, seg, depth-1)
		if err != nil {
			var stepErr *stepError
			if errors.As(err, &stepErr) {
				return Value{}, stepFail(stepErr.kind, "element %d: %s", i, stepErr.reason)
			}
			return Value{}, err
		}
		items[i] = out
	}
	return Value{kind: KindArray, items: items}, nil
}

func apply(v Value, seg Segment) (Value, error) {
	switch seg.Kind {
	case SegmentField:
		if v.kind != KindObject {
			return Value{}, stepFail(ErrNotObject, "cannot read field %q of %s", seg.Name, v.kind)
		}
		field, ok := v.Field(seg.Name)
		if !ok {
			return Value{}, stepFail(ErrMissingField, "field %q not found", seg.Name)
		}
		return field, nil

	case SegmentIndex:
		if v.kind != KindArray {
			return Value{}, stepFail(ErrNotArray, "cannot index %s", v.kind)
		}
		if seg.Index >= len(v.items) {
			return Value{}, stepFail(ErrIndexOutOfRange, "index %d out of range for array of length %d", seg.Index, len(v.items))
		}
		return v.items[seg.Index], nil

	case SegmentWildcard:
		if v.kind != KindArray {
			return Value{}, stepFail(ErrNotArray, "cannot apply [*] to %s", v.kind)
		}
		return v, nil

	case SegmentReparse:
		return reparse(v)

	case SegmentRoot:
		return Value{}, stepFail(ErrUnexpectedRoot, "'$' is only valid at the start of a path")

	default:
		return Value{}, fmt.Errorf("unknown segment kind %d", seg.Kind)
	}
}

// reparse turns a string (or number) into the JSON document it contains.
func reparse(v Value) (Value, error) {
	var text string
	switch v.kind {
	case KindString, KindNumber:
		text = v.text
	default:
		return Value{}, stepFail(ErrNotReparsable, "cannot reparse %s, expected string", v.kind)
	}
	if doc, err := ParseString(text); err == nil {
		return doc, nil
	}
	doc, err := LocateJSON(text)
	if err != nil {
		return Value{}, stepFail(ErrNotReparsable, "%v in %s", err, preview(text))
	}
	return doc, nil
}

func preview(s string) string {
	const limit = 60
	r := []rune(s)
	if len(r) > limit {
		return strconv.Quote(string(r[:limit]) + "...")
	}
	return strconv.Quote(s)
}
