package protocols

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
	"github.com/distaffvm/distaff-vm/internal/distaff-vm/utils"
)

// buildLowDegreeEvaluations evaluates a random polynomial of the given
// degree over a root-of-unity domain of the given size.
func buildLowDegreeEvaluations(t *testing.T, domainSize, degreePlus1 int) ([]core.Element, []core.Element) {
	t.Helper()
	seed := sha256.Sum256([]byte{byte(domainSize), byte(degreePlus1)})
	evaluations := make([]core.Element, domainSize)
	copy(evaluations, core.RandomSeries(seed, degreePlus1))
	require.NoError(t, core.EvalPolyFFT(evaluations))

	root, err := core.RootOfUnity(domainSize)
	require.NoError(t, err)
	return evaluations, core.PowerSeries(root, domainSize)
}

func friTestPositions(t *testing.T, domainSize, extensionFactor int) []int {
	t.Helper()
	hash, err := core.Blake3_256.Func()
	require.NoError(t, err)
	channel := utils.NewChannel(hash, core.NewElement(7), nil, nil)
	positions, err := channel.DrawQueryPositions(16, domainSize, extensionFactor)
	require.NoError(t, err)
	return positions
}

func TestFriProveVerify(t *testing.T) {
	const domainSize = 1024
	const degreePlus1 = 64
	const extensionFactor = 16

	hash, err := core.Blake3_256.Func()
	require.NoError(t, err)

	evaluations, domain := buildLowDegreeEvaluations(t, domainSize, degreePlus1)
	layers, err := friReduce(evaluations, domain, hash)
	require.NoError(t, err)

	positions := friTestPositions(t, domainSize, extensionFactor)
	proof, err := friBuildProof(layers, positions)
	require.NoError(t, err)

	sampled := make([]core.Element, len(positions))
	for i, p := range positions {
		sampled[i] = evaluations[p]
	}
	require.NoError(t, FriVerify(proof, sampled, positions, degreePlus1, domainSize, extensionFactor, hash))
}

func TestFriRejectsHighDegree(t *testing.T) {
	const domainSize = 1024
	const degreePlus1 = 64
	const extensionFactor = 16

	hash, err := core.Blake3_256.Func()
	require.NoError(t, err)

	evaluations, domain := buildLowDegreeEvaluations(t, domainSize, degreePlus1)
	layers, err := friReduce(evaluations, domain, hash)
	require.NoError(t, err)

	positions := friTestPositions(t, domainSize, extensionFactor)
	proof, err := friBuildProof(layers, positions)
	require.NoError(t, err)

	sampled := make([]core.Element, len(positions))
	for i, p := range positions {
		sampled[i] = evaluations[p]
	}

	// claiming a lower degree must fail the remainder check
	err = FriVerify(proof, sampled, positions, degreePlus1/4, domainSize, extensionFactor, hash)
	require.Error(t, err)
}

func TestFriRejectsInconsistentEvaluations(t *testing.T) {
	const domainSize = 1024
	const degreePlus1 = 64
	const extensionFactor = 16

	hash, err := core.Blake3_256.Func()
	require.NoError(t, err)

	evaluations, domain := buildLowDegreeEvaluations(t, domainSize, degreePlus1)
	layers, err := friReduce(evaluations, domain, hash)
	require.NoError(t, err)

	positions := friTestPositions(t, domainSize, extensionFactor)
	proof, err := friBuildProof(layers, positions)
	require.NoError(t, err)

	sampled := make([]core.Element, len(positions))
	for i, p := range positions {
		sampled[i] = evaluations[p]
	}
	sampled[0] = sampled[0].Add(core.One)

	err = FriVerify(proof, sampled, positions, degreePlus1, domainSize, extensionFactor, hash)
	require.Error(t, err)
}

func TestFriRejectsTamperedLayer(t *testing.T) {
	const domainSize = 1024
	const degreePlus1 = 64
	const extensionFactor = 16

	hash, err := core.Blake3_256.Func()
	require.NoError(t, err)

	evaluations, domain := buildLowDegreeEvaluations(t, domainSize, degreePlus1)
	layers, err := friReduce(evaluations, domain, hash)
	require.NoError(t, err)

	positions := friTestPositions(t, domainSize, extensionFactor)
	proof, err := friBuildProof(layers, positions)
	require.NoError(t, err)

	proof.Layers[0].Values[0][1] = proof.Layers[0].Values[0][1].Add(core.One)

	sampled := make([]core.Element, len(positions))
	for i, p := range positions {
		sampled[i] = evaluations[p]
	}
	err = FriVerify(proof, sampled, positions, degreePlus1, domainSize, extensionFactor, hash)
	require.Error(t, err)
}
