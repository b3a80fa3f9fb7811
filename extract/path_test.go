package extract_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/mykhaliev/llm-judge/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Path Parsing Tests
// ============================================================================

func TestParsePath_Valid(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected []extract.Segment
	}{
		{
			name:     "Root only",
			path:     "$",
			expected: []extract.Segment{{Kind: extract.SegmentRoot}},
		},
		{
			name: "Nested fields",
			path: "$.a.b",
			expected: []extract.Segment{
				{Kind: extract.SegmentRoot},
				{Kind: extract.SegmentField, Name: "a"},
				{Kind: extract.SegmentField, Name: "b"},
			},
		},
		{
			name: "Index and wildcard",
			path: "$.items[3][*]",
			expected: []extract.Segment{
				{Kind: extract.SegmentRoot},
				{Kind: extract.SegmentField, Name: "items"},
				{Kind: extract.SegmentIndex, Index: 3},
				{Kind: extract.SegmentWildcard},
			},
		},
		{
			name: "Reparse markers",
			path: "$.choices[0].message.content.$.user.name",
			expected: []extract.Segment{
				{Kind: extract.SegmentRoot},
				{Kind: extract.SegmentField, Name: "choices"},
				{Kind: extract.SegmentIndex, Index: 0},
				{Kind: extract.SegmentField, Name: "message"},
				{Kind: extract.SegmentField, Name: "content"},
				{Kind: extract.SegmentReparse},
				{Kind: extract.SegmentField, Name: "user"},
				{Kind: extract.SegmentField, Name: "name"},
			},
		},
		{
			name: "Consecutive reparse markers",
			path: "$.$.$",
			expected: []extract.Segment{
				{Kind: extract.SegmentRoot},
				{Kind: extract.SegmentReparse},
				{Kind: extract.SegmentReparse},
			},
		},
		{
			name: "Index directly after root",
			path: "$[0]",
			expected: []extract.Segment{
				{Kind: extract.SegmentRoot},
				{Kind: extract.SegmentIndex, Index: 0},
			},
		},
		{
			name: "Unicode field names",
			path: "$.用户.姓名",
			expected: []extract.Segment{
				{Kind: extract.SegmentRoot},
				{Kind: extract.SegmentField, Name: "用户"},
				{Kind: extract.SegmentField, Name: "姓名"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := extract.ParsePath(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.Segments())
		})
	}
}

func TestParsePath_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		offset int
	}{
		{name: "Empty", path: "", offset: 0},
		{name: "Missing root", path: "a.b", offset: 0},
		{name: "Unterminated bracket", path: "$.a[1", offset: 3},
		{name: "Non-integer index", path: "$[x]", offset: 2},
		{name: "Negative index", path: "$[-1]", offset: 2},
		{name: "Empty index", path: "$[]", offset: 2},
		{name: "Trailing dot", path: "$.", offset: 2},
		{name: "Double dot", path: "$..a", offset: 2},
		{name: "Stray character after root", path: "$a", offset: 1},
		{name: "Stray closing bracket", path: "$.a]", offset: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extract.ParsePath(tt.path)
			require.Error(t, err)

			var pathErr *extract.InvalidPathError
			require.True(t, errors.As(err, &pathErr))
			assert.Equal(t, tt.path, pathErr.Path)
			assert.Equal(t, tt.offset, pathErr.Offset)
			assert.NotEmpty(t, pathErr.Reason)
		})
	}
}

func TestParsePath_RoundTrip(t *testing.T) {
	paths := []string{
		"$",
		"$.a",
		"$.a.b.c",
		"$[0]",
		"$[*]",
		"$.items[*].name",
		"$.choices[0].message.content.$.user.name",
		"$.response.data.$.result.info.$.final",
		"$.$",
		"$[12][*][0].x.$",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			first, err := extract.ParsePath(path)
			require.NoError(t, err)
			assert.Equal(t, path, first.String())

			second, err := extract.ParsePath(first.String())
			require.NoError(t, err)
			assert.Equal(t, first.Segments(), second.Segments())
		})
	}
}

func TestPath_IsRoot(t *testing.T) {
	assert.True(t, extract.RootPath().IsRoot())
	assert.True(t, extract.MustParsePath("$").IsRoot())
	assert.False(t, extract.MustParsePath("$.a").IsRoot())
	assert.Equal(t, "$", extract.RootPath().String())
}

func TestMustParsePath_Panics(t *testing.T) {
	assert.Panics(t, func() { extract.MustParsePath("nope") })
}

// ============================================================================
// Path Cache Tests
// ============================================================================

func TestPathCache_ReusesParsedPaths(t *testing.T) {
	cache := extract.NewPathCache()

	first, err := cache.Parse("$.a.b")
	require.NoError(t, err)
	second, err := cache.Parse("$.a.b")
	require.NoError(t, err)

	assert.Equal(t, first.Segments(), second.Segments())
	assert.Equal(t, 1, cache.Len())
}

func TestPathCache_DoesNotCacheErrors(t *testing.T) {
	cache := extract.NewPathCache()

	_, err := cache.Parse("$[")
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestPathCache_ConcurrentAccess(t *testing.T) {
	cache := extract.NewPathCache()
	paths := []string{"$.a", "$.b[0]", "$.c.$.d", "$[*].e"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := paths[i%len(paths)]
			p, err := cache.Parse(path)
			assert.NoError(t, err)
			assert.Equal(t, path, p.String())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, len(paths), cache.Len())
}

func ExampleParsePath() {
	p, _ := extract.ParsePath("$.choices[0].message.content.$.score")
	for _, s := range p.Segments() {
		fmt.Print(s, " ")
	}
	fmt.Println()
	// Output: $ .choices [0] .message .content .$ .score
}
