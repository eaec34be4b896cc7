package utils

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
)

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	hash, err := core.Blake3_256.Func()
	require.NoError(t, err)
	return NewChannel(hash, core.NewElement(42),
		[]core.Element{core.NewElement(1)}, []core.Element{core.NewElement(2)})
}

func TestChannelDeterminism(t *testing.T) {
	c1 := newTestChannel(t)
	c2 := newTestChannel(t)
	require.Equal(t, c1.State(), c2.State())

	c1.Absorb([]byte("commitment"))
	c2.Absorb([]byte("commitment"))
	require.Equal(t, c1.State(), c2.State())
	require.True(t, c1.DrawElement().Equal(c2.DrawElement()))

	c2.Absorb([]byte("more"))
	require.NotEqual(t, c1.State(), c2.State())
}

func TestChannelSeedIncludesPublicValues(t *testing.T) {
	hash, err := core.Blake3_256.Func()
	require.NoError(t, err)

	c1 := NewChannel(hash, core.NewElement(42), nil, nil)
	c2 := NewChannel(hash, core.NewElement(43), nil, nil)
	require.NotEqual(t, c1.State(), c2.State())

	c3 := NewChannel(hash, core.NewElement(42), []core.Element{core.One}, nil)
	require.NotEqual(t, c1.State(), c3.State())
}

func TestGrindAndVerifyNonce(t *testing.T) {
	c1 := newTestChannel(t)
	nonce := c1.Grind(8)

	c2 := newTestChannel(t)
	require.NoError(t, c2.VerifyNonce(nonce, 8))
	require.Equal(t, c1.State(), c2.State())

	// a mismatched nonce is rejected with overwhelming probability; find a
	// value that fails the check
	c3 := newTestChannel(t)
	bad := nonce + 1
	for c3.VerifyNonce(bad, 8) == nil {
		c3 = newTestChannel(t)
		bad++
	}
}

func TestGrindFindsSmallestNonce(t *testing.T) {
	c1 := newTestChannel(t)
	nonce := c1.Grind(4)

	// every smaller nonce must fail the grinding check
	for candidate := uint64(0); candidate < nonce; candidate++ {
		c := newTestChannel(t)
		require.Error(t, c.VerifyNonce(candidate, 4), "nonce %d", candidate)
	}
}

func TestDrawQueryPositions(t *testing.T) {
	c := newTestChannel(t)
	positions, err := c.DrawQueryPositions(32, 1024, 16)
	require.NoError(t, err)
	require.Len(t, positions, 32)

	seen := make(map[int]bool)
	for i, p := range positions {
		require.GreaterOrEqual(t, p, 0)
		require.Less(t, p, 1024)
		require.NotZero(t, p%16, "position %d coincides with a trace point", p)
		require.False(t, seen[p], "position %d is duplicated", p)
		seen[p] = true
		if i > 0 {
			require.Greater(t, p, positions[i-1], "positions must be sorted")
		}
	}

	// determinism
	c2 := newTestChannel(t)
	positions2, err := c2.DrawQueryPositions(32, 1024, 16)
	require.NoError(t, err)
	require.Equal(t, positions, positions2)
}
