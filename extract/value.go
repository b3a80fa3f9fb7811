package extract

import (
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindAbsent Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Member is a single object entry. Objects keep members in document order.
type Member struct {
	Key   string
	Value Value
}

// Value is an immutable JSON value or Absent. Numbers keep their literal text so
// that rendering reproduces what the document contained.
type Value struct {
	kind    Kind
	text    string // string contents or number literal
	boolean bool
	members []Member
	items   []Value
}

func Absent() Value { return Value{} }

func Null() Value { return Value{kind: KindNull} }

func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

func String(s string) Value { return Value{kind: KindString, text: s} }

// Number builds a number from its JSON literal, e.g. "42" or "1.5e3".
func Number(literal string) Value { return Value{kind: KindNumber, text: literal} }

// Object builds an object; a repeated key replaces the earlier value in place.
func Object(members ...Member) Value {
	out := make([]Member, 0, len(members))
	for _, m := range members {
		replaced := false
		for i := range out {
			if out[i].Key == m.Key {
				out[i].Value = m.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, m)
		}
	}
	return Value{kind: KindObject, members: out}
}

func Array(items ...Value) Value {
	return Value{kind: KindArray, items: append([]Value{}, items...)}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Str returns the contents of a string value.
func (v Value) Str() (string, bool) {
	return v.text, v.kind == KindString
}

// Float returns the numeric value of a number.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.text, 64)
	return f, err == nil
}

func (v Value) BoolValue() (bool, bool) {
	return v.boolean, v.kind == KindBool
}

// Field looks up an object member by name.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.members {
		if m.Key == name {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Members returns a copy of the object members in document order.
func (v Value) Members() []Member {
	return append([]Member(nil), v.members...)
}

// Items returns a copy of the array elements.
func (v Value) Items() []Value {
	return append([]Value(nil), v.items...)
}

// Len is the number of members or elements; zero for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindObject:
		return len(v.members)
	case KindArray:
		return len(v.items)
	default:
		return 0
	}
}

// Text is the display form: strings unquoted, numbers as written, literals as
// JSON keywords, objects and arrays as compact JSON. Absent renders empty.
func (v Value) Text() string {
	switch v.kind {
	case KindAbsent:
		return ""
	case KindString:
		return v.text
	default:
		return v.JSON()
	}
}

// JSON renders compact JSON with members in insertion order, so equal
// structures built from the same document always serialise identically.
func (v Value) JSON() string {
	var sb strings.Builder
	v.write(&sb, "", 0)
	return sb.String()
}

// Indent renders indented JSON, used for diffs.
func (v Value) Indent(indent string) string {
	var sb strings.Builder
	v.write(&sb, indent, 0)
	return sb.String()
}

func (v Value) write(sb *strings.Builder, indent string, depth int) {
	switch v.kind {
	case KindAbsent:
		// nothing
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.boolean))
	case KindNumber:
		sb.WriteString(v.text)
	case KindString:
		writeQuoted(sb, v.text)
	case KindObject:
		if len(v.members) == 0 {
			sb.WriteString("{}")
			return
		}
		sb.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				sb.WriteByte(',')
			}
			newline(sb, indent, depth+1)
			writeQuoted(sb, m.Key)
			sb.WriteByte(':')
			if indent != "" {
				sb.WriteByte(' ')
			}
			m.Value.write(sb, indent, depth+1)
		}
		newline(sb, indent, depth)
		sb.WriteByte('}')
	case KindArray:
		if len(v.items) == 0 {
			sb.WriteString("[]")
			return
		}
		sb.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				sb.WriteByte(',')
			}
			newline(sb, indent, depth+1)
			item.write(sb, indent, depth+1)
		}
		newline(sb, indent, depth)
		sb.WriteByte(']')
	}
}

func newline(sb *strings.Builder, indent string, depth int) {
	if indent == "" {
		return
	}
	sb.WriteByte('\n')
	for i := 0; i < depth; i++ {
		sb.WriteString(indent)
	}
}

const hexDigits = "0123456789abcdef"

// writeQuoted escapes like a JSON encoder without HTML escaping, leaving
// non-ASCII text readable.
func writeQuoted(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				sb.WriteString(`\u00`)
				sb.WriteByte(hexDigits[r>>4])
				sb.WriteByte(hexDigits[r&0xF])
				continue
			}
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
}

// MarshalJSON lets verdicts and results embed values directly.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindAbsent {
		return []byte("null"), nil
	}
	return []byte(v.JSON()), nil
}

// Equal reports structural equality: object key order is ignored, arrays are
// compared element by element, numbers by value, and a string holding a number
// equals that number.
func Equal(a, b Value) bool {
	switch {
	case a.kind == KindObject && b.kind == KindObject:
		if len(a.members) != len(b.members) {
			return false
		}
		for _, m := range a.members {
			other, ok := b.Field(m.Key)
			if !ok || !Equal(m.Value, other) {
				return false
			}
		}
		return true
	case a.kind == KindArray && b.kind == KindArray:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	case a.kind == KindObject || a.kind == KindArray || b.kind == KindObject || b.kind == KindArray:
		return false
	}
	return scalarEqual(a, b)
}

func scalarEqual(a, b Value) bool {
	if a.kind == KindString && b.kind == KindString && a.text == b.text {
		return true
	}
	an, aok := asNumber(a)
	bn, bok := asNumber(b)
	if aok || bok {
		return aok && bok && numberEqual(an, bn)
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindBool:
		return a.boolean == b.boolean
	case KindString:
		return a.text == b.text
	case KindAbsent, KindNull:
		return true
	default:
		return false
	}
}

// asNumber treats numbers, and strings whose trimmed text is a JSON number
// literal, as numbers.
func asNumber(v Value) (Value, bool) {
	switch v.kind {
	case KindNumber:
		return v, true
	case KindString:
		n, err := ParseString(strings.TrimSpace(v.text))
		if err == nil && n.kind == KindNumber {
			return n, true
		}
	}
	return Value{}, false
}

// numberEqual compares by value. Literals outside float64 range only equal
// the same literal.
func numberEqual(a, b Value) bool {
	af, aok := a.Float()
	bf, bok := b.Float()
	if aok && bok {
		return af == bf
	}
	return a.text == b.text
}
