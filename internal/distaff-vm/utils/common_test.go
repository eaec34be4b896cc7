package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsPowerOfTwo(t *testing.T) {
	require.False(t, IsPowerOfTwo(0))
	require.True(t, IsPowerOfTwo(1))
	require.True(t, IsPowerOfTwo(2))
	require.False(t, IsPowerOfTwo(3))
	require.True(t, IsPowerOfTwo(1024))
	require.False(t, IsPowerOfTwo(1023))
}

func TestLog2(t *testing.T) {
	require.Equal(t, 0, Log2(1))
	require.Equal(t, 5, Log2(32))
	require.Equal(t, 10, Log2(1024))
}

func TestNextPowerOfTwo(t *testing.T) {
	require.Equal(t, 1, NextPowerOfTwo(0))
	require.Equal(t, 1, NextPowerOfTwo(1))
	require.Equal(t, 2, NextPowerOfTwo(2))
	require.Equal(t, 4, NextPowerOfTwo(3))
	require.Equal(t, 32, NextPowerOfTwo(17))
}

func TestUniqueSorted(t *testing.T) {
	require.Equal(t, []int{1, 2, 5, 9}, UniqueSorted([]int{9, 2, 5, 2, 1, 9}))
	require.Empty(t, UniqueSorted(nil))
}
