package core

import (
	"crypto/sha256"
	"math/big"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestElementBasicArithmetic(t *testing.T) {
	r := NewElementFromString("183274128963471623841749812374918237491")

	// identities
	require.True(t, r.Add(Zero).Equal(r))
	require.True(t, r.Mul(One).Equal(r))
	require.True(t, r.Mul(Zero).IsZero())

	// addition within bounds
	require.Equal(t, "5", NewElement(2).Add(NewElement(3)).String())

	// overflow wraps around the modulus
	pm1 := NewElementFromBig(new(big.Int).Sub(Modulus, big.NewInt(1)))
	require.True(t, pm1.Add(One).IsZero())
	require.True(t, pm1.Add(NewElement(2)).IsOne())

	// subtraction and underflow
	require.Equal(t, "2", NewElement(5).Sub(NewElement(3)).String())
	expected := NewElementFromBig(new(big.Int).Sub(Modulus, big.NewInt(2)))
	require.True(t, NewElement(3).Sub(NewElement(5)).Equal(expected))

	// negation
	require.True(t, r.Add(r.Neg()).IsZero())

	// multiplication overflow
	require.True(t, pm1.Mul(pm1).IsOne())
	require.True(t, pm1.Mul(NewElement(2)).Equal(NewElement(2).Neg()))
}

func TestElementInv(t *testing.T) {
	require.True(t, One.Inv().IsOne())
	require.True(t, Zero.Inv().IsZero())

	r := NewElementFromString("271828182845904523536028747135266249775")
	require.True(t, r.Mul(r.Inv()).IsOne())
	require.True(t, r.Div(r).IsOne())
}

func TestElementExp(t *testing.T) {
	r := NewElement(5)
	require.True(t, r.ExpUint(0).IsOne())
	require.True(t, r.ExpUint(1).Equal(r))
	require.Equal(t, "125", r.ExpUint(3).String())
	require.True(t, Zero.ExpUint(12).IsZero())
}

func TestInvMany(t *testing.T) {
	seed := sha256.Sum256([]byte("batch-inversion"))
	values := RandomSeries(seed, 64)
	values[10] = Zero

	inverses := InvMany(values)
	for i, v := range values {
		if v.IsZero() {
			require.True(t, inverses[i].IsZero())
		} else {
			require.True(t, v.Mul(inverses[i]).IsOne(), "index %d", i)
		}
	}
}

func TestRootOfUnity(t *testing.T) {
	for _, order := range []int{2, 4, 16, 1024, 1 << 20} {
		root, err := RootOfUnity(order)
		require.NoError(t, err)
		require.True(t, root.ExpUint(uint64(order)).IsOne(), "order %d", order)
		require.False(t, root.ExpUint(uint64(order/2)).IsOne(), "root of order %d is not primitive", order)
	}

	_, err := RootOfUnity(0)
	require.Error(t, err)
	_, err = RootOfUnity(3)
	require.Error(t, err)
	_, err = RootOfUnity(MaxRootOrder * 2)
	require.Error(t, err)
}

func TestGeneratorIsOutsideEvaluationDomains(t *testing.T) {
	// the coset generator must not fall into any power-of-two subgroup
	require.False(t, Generator.ExpUint(uint64(MaxRootOrder)).IsOne())
}

func TestPowerSeries(t *testing.T) {
	b := NewElement(3)
	series := PowerSeries(b, 5)
	require.Len(t, series, 5)
	require.True(t, series[0].IsOne())
	require.Equal(t, "81", series[4].String())
}

func TestElementSerialization(t *testing.T) {
	seed := sha256.Sum256([]byte("serialization"))
	for i, v := range RandomSeries(seed, 16) {
		bytes := v.Bytes()
		require.Len(t, bytes, ElementSize)
		parsed, err := NewElementFromBytes(bytes)
		require.NoError(t, err)
		require.True(t, parsed.Equal(v), "round trip failed at index %d", i)
	}

	_, err := NewElementFromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestRandomSeriesDeterminism(t *testing.T) {
	seed := sha256.Sum256([]byte("determinism"))
	a := RandomSeries(seed, 32)
	b := RandomSeries(seed, 32)
	for i := range a {
		require.True(t, a[i].Equal(b[i]))
	}

	other := sha256.Sum256([]byte("determinism-2"))
	c := RandomSeries(other, 32)
	same := true
	for i := range a {
		if !a[i].Equal(c[i]) {
			same = false
		}
	}
	require.False(t, same, "different seeds should produce different series")
}

func TestFieldProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	genElement := gen.UInt64().Map(func(v uint64) Element {
		seed := sha256.Sum256([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24),
			byte(v >> 32), byte(v >> 40), byte(v >> 48), byte(v >> 56)})
		return FromSeed(seed)
	})

	properties.Property("addition commutes", prop.ForAll(
		func(a, b Element) bool {
			return a.Add(b).Equal(b.Add(a))
		}, genElement, genElement))

	properties.Property("multiplication distributes over addition", prop.ForAll(
		func(a, b, c Element) bool {
			left := a.Mul(b.Add(c))
			right := a.Mul(b).Add(a.Mul(c))
			return left.Equal(right)
		}, genElement, genElement, genElement))

	properties.Property("nonzero elements have inverses", prop.ForAll(
		func(a Element) bool {
			if a.IsZero() {
				return true
			}
			return a.Mul(a.Inv()).IsOne()
		}, genElement))

	properties.TestingRun(t)
}
