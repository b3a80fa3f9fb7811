package extract

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
	"github.com/bytedance/sonic"
)

var errInvalidJSON = errors.New("invalid JSON")

// maxDecodeDepth bounds nesting of a single document. Reparse markers start a
// fresh document, so this limits one level of embedding, not the whole path.
const maxDecodeDepth = 512

// Parse strictly decodes a complete JSON document into a Value, keeping object
// member order. Surrounding whitespace is allowed, trailing content is not.
func Parse(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Value{}, fmt.Errorf("%w: empty document", errInvalidJSON)
	}
	if !sonic.Valid(data) {
		return Value{}, errInvalidJSON
	}
	raw, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	return decode(raw, dataType, 0)
}

// ParseString is Parse for text input.
func ParseString(s string) (Value, error) {
	return Parse([]byte(s))
}

func decode(raw []byte, dataType jsonparser.ValueType, depth int) (Value, error) {
	if depth > maxDecodeDepth {
		return Value{}, fmt.Errorf("%w: nesting deeper than %d", errInvalidJSON, maxDecodeDepth)
	}

	switch dataType {
	case jsonparser.Null:
		return Null(), nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(raw)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", errInvalidJSON, err)
		}
		return Bool(b), nil
	case jsonparser.Number:
		return Number(string(raw)), nil
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", errInvalidJSON, err)
		}
		return String(s), nil
	case jsonparser.Array:
		items := make([]Value, 0)
		var itemErr error
		_, err := jsonparser.ArrayEach(raw, func(value []byte, vt jsonparser.ValueType, _ int, err error) {
			if itemErr != nil {
				return
			}
			if err != nil {
				itemErr = err
				return
			}
			item, err := decode(value, vt, depth+1)
			if err != nil {
				itemErr = err
				return
			}
			items = append(items, item)
		})
		if itemErr != nil {
			return Value{}, itemErr
		}
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", errInvalidJSON, err)
		}
		return Value{kind: KindArray, items: items}, nil
	case jsonparser.Object:
		members := make([]Member, 0)
		err := jsonparser.ObjectEach(raw, func(key []byte, value []byte, vt jsonparser.ValueType, _ int) error {
			item, err := decode(value, vt, depth+1)
			if err != nil {
				return err
			}
			members = append(members, Member{Key: string(key), Value: item})
			return nil
		})
		if err != nil {
			return Value{}, err
		}
		return Object(members...), nil
	default:
		return Value{}, fmt.Errorf("%w: unexpected token", errInvalidJSON)
	}
}
