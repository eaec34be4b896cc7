package protocols

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/vm"
)

func buildTestProof(t *testing.T) ([]byte, *StarkProof) {
	t.Helper()
	trace := executeForTest(t, "push.3 push.5 add", nil, nil, nil)
	outputs := trace.StackOutputs(1)
	proofBytes, err := Prove(trace, nil, outputs, testOptions())
	require.NoError(t, err)
	proof, err := DeserializeProof(proofBytes)
	require.NoError(t, err)
	return proofBytes, proof
}

func TestProofSerializationRoundTrip(t *testing.T) {
	proofBytes, proof := buildTestProof(t)

	reencoded, err := proof.Serialize()
	require.NoError(t, err)
	require.Equal(t, proofBytes, reencoded)
}

func TestProofContext(t *testing.T) {
	_, proof := buildTestProof(t)

	require.Equal(t, 32, proof.TraceLength)
	require.Equal(t, 16, proof.Options.ExtensionFactor)
	require.Equal(t, 16, proof.Options.NumQueries)
	require.Equal(t, 4, proof.Options.GrindingFactor)
	require.Equal(t, 1, proof.Layout.CtxDepth)
	require.Equal(t, 0, proof.Layout.LoopDepth)
	require.Equal(t, vm.MinUserStackWidth, proof.Layout.UserStackWidth)
	require.Equal(t, 512, proof.DomainSize())
	require.Len(t, proof.Fri.Remainder, 128)
	require.Len(t, proof.PublicOutputs, 1)
}

func TestProofTruncation(t *testing.T) {
	proofBytes, _ := buildTestProof(t)

	for _, cut := range []int{1, 8, 32, 64, len(proofBytes) / 2, len(proofBytes) - 1} {
		_, err := DeserializeProof(proofBytes[:cut])
		require.Error(t, err, "truncating to %d bytes must fail", cut)
		require.True(t, errors.Is(err, ErrProofTruncated) || errors.Is(err, ErrProofMalformed))
	}

	// trailing garbage is malformed
	_, err := DeserializeProof(append(append([]byte(nil), proofBytes...), 0x00))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrProofMalformed))
}

func TestProofRejectsBadContext(t *testing.T) {
	proofBytes, _ := buildTestProof(t)

	// invalid extension factor
	tampered := append([]byte(nil), proofBytes...)
	tampered[7] = 9
	_, err := DeserializeProof(tampered)
	require.Error(t, err)

	// invalid trace length
	tampered = append([]byte(nil), proofBytes...)
	tampered[3] = 33
	_, err = DeserializeProof(tampered)
	require.Error(t, err)
}
