package core

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFFTMatchesDirectEvaluation(t *testing.T) {
	for _, size := range []int{4, 8, 16, 64, 256} {
		seed := sha256.Sum256([]byte{byte(size)})
		coeffs := RandomSeries(seed, size)

		root, err := RootOfUnity(size)
		require.NoError(t, err)
		domain := PowerSeries(root, size)

		evaluations := append([]Element(nil), coeffs...)
		require.NoError(t, FFT(evaluations, root))

		for i, x := range domain {
			require.True(t, evaluations[i].Equal(EvalPoly(coeffs, x)),
				"size %d, point %d", size, i)
		}
	}
}

func TestFFTRoundTrip(t *testing.T) {
	seed := sha256.Sum256([]byte("fft-round-trip"))
	coeffs := RandomSeries(seed, 128)

	values := append([]Element(nil), coeffs...)
	require.NoError(t, EvalPolyFFT(values))
	require.NoError(t, InterpolateFFT(values))

	for i := range coeffs {
		require.True(t, values[i].Equal(coeffs[i]), "coefficient %d", i)
	}
}

func TestFFTRejectsBadDomains(t *testing.T) {
	root, err := RootOfUnity(8)
	require.NoError(t, err)

	require.Error(t, FFT(make([]Element, 6), root))
	require.Error(t, FFT(make([]Element, 16), root))
}

func TestPermuteIsInvolution(t *testing.T) {
	seed := sha256.Sum256([]byte("permute"))
	original := RandomSeries(seed, 64)

	values := append([]Element(nil), original...)
	Permute(values)
	Permute(values)
	for i := range original {
		require.True(t, values[i].Equal(original[i]))
	}
}
