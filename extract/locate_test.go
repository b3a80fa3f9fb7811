package extract_test

import (
	"strings"
	"testing"

	"github.com/mykhaliev/llm-judge/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateJSON(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "Fenced block with json label",
			text:     "prefix ```json\n{\"x\":1}\n``` suffix",
			expected: `{"x":1}`,
		},
		{
			name:     "Fenced block without label",
			text:     "Result:\n```\n[1, 2]\n```",
			expected: `[1,2]`,
		},
		{
			name:     "Uppercase label",
			text:     "```JSON\n{\"a\": \"b\"}\n```",
			expected: `{"a":"b"}`,
		},
		{
			name:     "Longest parsing fence wins",
			text:     "```json\n{\"a\":1}\n```\nand\n```json\n{\"a\":1,\"b\":2}\n```",
			expected: `{"a":1,"b":2}`,
		},
		{
			name:     "Broken fence falls back to spans",
			text:     "```json\n{broken\n```\nbut then {\"x\": 2}",
			expected: `{"x":2}`,
		},
		{
			name:     "Fenced block with Chinese prose",
			text:     "以下是JSON数据：\n\n```json\n{\"name\": \"测试\", \"value\": 123}\n```\n\n请查看。",
			expected: `{"name":"测试","value":123}`,
		},
		{
			name:     "Bare object in prose",
			text:     `The answer is {"a": {"b": [1, 2]}} as shown.`,
			expected: `{"a":{"b":[1,2]}}`,
		},
		{
			name:     "Longest span wins",
			text:     `small {"a":1} and bigger {"b":{"c":2}}`,
			expected: `{"b":{"c":2}}`,
		},
		{
			name:     "Brackets inside strings are skipped",
			text:     `Result: {"msg": "say \"hi}\" [now]"} done`,
			expected: `{"msg":"say \"hi}\" [now]"}`,
		},
		{
			name:     "Quote in surrounding prose",
			text:     `He said "look here: {"ok": true}`,
			expected: `{"ok":true}`,
		},
		{
			name:     "Unbalanced prose bracket before JSON",
			text:     `note (see [1 here) {"ok": 1}`,
			expected: `{"ok":1}`,
		},
		{
			name:     "Array at top level",
			text:     `items: [{"id": 1}, {"id": 2}].`,
			expected: `[{"id":1},{"id":2}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := extract.LocateJSON(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v.JSON())
		})
	}
}

func TestLocateJSON_NotFound(t *testing.T) {
	inputs := []string{
		"",
		"nothing to see here",
		"{not json}",
		"[unclosed",
		"```json\nnope\n```",
		`"just a string"`,
	}

	for _, text := range inputs {
		_, err := extract.LocateJSON(text)
		assert.ErrorIs(t, err, extract.ErrNoJSONFound, "text %q", text)
	}
}

func TestLocateJSON_ManyBrackets(t *testing.T) {
	text := strings.Repeat("[x] ", 500) + `{"found": true}`
	v, err := extract.LocateJSON(text)
	require.NoError(t, err)
	assert.Equal(t, `{"found":true}`, v.JSON())
}
