package yakushima

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSliceKeyShortKeyIsTerminal(t *testing.T) {
	slice, tag, rest := sliceKey([]byte{1, 2, 3})
	require.Equal(t, lengthTag(3), tag)
	require.Nil(t, rest)
	require.Equal(t, encodeSlice(slice, tag), []byte{1, 2, 3})
}

func TestSliceKeyExactlyEightBytes(t *testing.T) {
	key := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	slice, tag, rest := sliceKey(key)
	require.Equal(t, lengthTag(8), tag)
	require.Nil(t, rest)
	require.Equal(t, key, encodeSlice(slice, tag))
}

func TestSliceKeyLongKeyContinues(t *testing.T) {
	key := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	slice, tag, rest := sliceKey(key)
	require.Equal(t, lengthTagContinues, tag)
	require.Equal(t, []byte{9, 10}, rest)
	require.Equal(t, key[:8], encodeSlice(slice, tag))
}

func TestCompareSliceTagOrdersBySliceThenTag(t *testing.T) {
	require.Negative(t, compareSliceTag(1, 2, 2, 2))
	require.Positive(t, compareSliceTag(3, 2, 2, 2))
	require.Negative(t, compareSliceTag(5, 2, 5, 3))
	require.Zero(t, compareSliceTag(5, 4, 5, 4))
}

func TestCompareSliceTagContinuesSortsAfterTerminal(t *testing.T) {
	// A key that continues to the next layer shares the same 8-byte slice
	// as a shorter terminal key; the terminal key must sort first.
	require.Negative(t, compareSliceTag(42, 8, 42, lengthTagContinues))
}
