package core

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLagrangeInterpolate(t *testing.T) {
	seed := sha256.Sum256([]byte("lagrange"))
	coeffs := RandomSeries(seed, 8)

	xs := RandomSeries(sha256.Sum256([]byte("xs")), 8)
	ys := make([]Element, len(xs))
	for i, x := range xs {
		ys[i] = EvalPoly(coeffs, x)
	}

	recovered, err := Interpolate(xs, ys)
	require.NoError(t, err)
	for i := range coeffs {
		require.True(t, recovered[i].Equal(coeffs[i]), "coefficient %d", i)
	}
}

func TestInterpolateMatchesFFT(t *testing.T) {
	size := 32
	seed := sha256.Sum256([]byte("interpolate-vs-fft"))
	values := RandomSeries(seed, size)

	root, err := RootOfUnity(size)
	require.NoError(t, err)
	domain := PowerSeries(root, size)

	viaLagrange, err := Interpolate(domain, values)
	require.NoError(t, err)

	viaFFT := append([]Element(nil), values...)
	require.NoError(t, InterpolateFFT(viaFFT))

	for i := range viaFFT {
		require.True(t, viaLagrange[i].Equal(viaFFT[i]), "coefficient %d", i)
	}
}

func TestPolyArithmetic(t *testing.T) {
	a := []Element{NewElement(1), NewElement(2), NewElement(3)}
	b := []Element{NewElement(5), NewElement(7)}

	sum := AddPolys(a, b)
	require.Equal(t, "6", sum[0].String())
	require.Equal(t, "9", sum[1].String())
	require.Equal(t, "3", sum[2].String())

	diff := SubPolys(sum, b)
	for i := range a {
		require.True(t, diff[i].Equal(a[i]))
	}

	// (1 + 2x + 3x^2)(5 + 7x) = 5 + 17x + 29x^2 + 21x^3
	product := MulPolys(a, b)
	require.Equal(t, "5", product[0].String())
	require.Equal(t, "17", product[1].String())
	require.Equal(t, "29", product[2].String())
	require.Equal(t, "21", product[3].String())

	scaled := MulPolyScalar(a, NewElement(2))
	require.Equal(t, "2", scaled[0].String())
	require.Equal(t, "4", scaled[1].String())
	require.Equal(t, "6", scaled[2].String())
}

func TestSynDiv(t *testing.T) {
	// (x - 3)(x + 5) = x^2 + 2x - 15
	root := NewElement(3)
	p := MulPolys([]Element{root.Neg(), One}, []Element{NewElement(5), One})

	quotient := SynDiv(p, root)
	require.Equal(t, "5", quotient[0].String())
	require.True(t, quotient[1].IsOne())
}

func TestSynDivExpanded(t *testing.T) {
	n := 8
	root, err := RootOfUnity(n)
	require.NoError(t, err)
	domain := PowerSeries(root, n)
	exclude := domain[n-1]

	// build Z(x) = (x^n - 1) / (x - exclude) as the product of the
	// remaining linear factors
	z := []Element{One}
	for i := 0; i < n-1; i++ {
		z = MulPolys(z, []Element{domain[i].Neg(), One})
	}

	// multiply by a random quotient and divide back out
	seed := sha256.Sum256([]byte("syn-div-expanded"))
	q := RandomSeries(seed, 5)
	p := MulPolys(q, z)
	padded := make([]Element, 16)
	copy(padded, p)

	result := SynDivExpanded(padded, n, exclude)
	for i := range q {
		require.True(t, result[i].Equal(q[i]), "coefficient %d", i)
	}
	for i := len(q); i < len(result); i++ {
		require.True(t, result[i].IsZero(), "coefficient %d should be zero", i)
	}
}

func TestShiftDomain(t *testing.T) {
	size := 16
	seed := sha256.Sum256([]byte("shift-domain"))
	coeffs := RandomSeries(seed, size)

	root, err := RootOfUnity(size)
	require.NoError(t, err)
	domain := PowerSeries(root, size)

	shifted := ShiftDomain(coeffs, Generator)
	for i, x := range domain {
		expected := EvalPoly(coeffs, x.Mul(Generator))
		require.True(t, EvalPoly(shifted, x).Equal(expected), "point %d", i)
	}
}

func TestDegreeOf(t *testing.T) {
	require.Equal(t, 0, DegreeOf([]Element{Zero, Zero}))
	require.Equal(t, 2, DegreeOf([]Element{One, Zero, NewElement(4), Zero}))
}
