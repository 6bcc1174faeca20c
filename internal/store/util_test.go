package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIDRanges_RoundTrip covers R1: CompressIDRanges/ExpandIDRanges
// must round-trip for contiguous runs, singletons, and a mix of both.
func TestIDRanges_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		ids  []int64
	}{
		{name: "single contiguous run", ids: []int64{1, 2, 3, 4, 5}},
		{name: "all singletons", ids: []int64{1, 3, 5, 7}},
		{name: "mixed runs and singletons", ids: []int64{1, 2, 3, 7, 9, 10, 11, 20}},
		{name: "one id", ids: []int64{42}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			compressed := CompressIDRanges(tc.ids)
			expanded, err := ExpandIDRanges(compressed)
			require.NoError(t, err)
			assert.Equal(t, tc.ids, expanded)
		})
	}
}

// TestCompressIDRanges_Empty covers the empty-slice edge case: no ids
// compresses to the empty string, and expanding it back gives nil.
func TestCompressIDRanges_Empty(t *testing.T) {
	assert.Equal(t, "", CompressIDRanges(nil))

	expanded, err := ExpandIDRanges("")
	require.NoError(t, err)
	assert.Nil(t, expanded)
}

// TestCompressIDRanges_Format pins the exact "a, b-c, d" rendering the
// Context Document's redacted-id summary depends on.
func TestCompressIDRanges_Format(t *testing.T) {
	assert.Equal(t, "1-3, 5, 7-9", CompressIDRanges([]int64{1, 2, 3, 5, 7, 8, 9}))
}

// TestExpandIDRanges_InvalidInput covers the parser's error path on
// malformed range strings.
func TestExpandIDRanges_InvalidInput(t *testing.T) {
	_, err := ExpandIDRanges("not-a-range-at-all-x")
	assert.Error(t, err)
}
