package protocols

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
)

func TestDefaultOptionsAreValid(t *testing.T) {
	options := DefaultProofOptions()
	require.NoError(t, options.Validate())
	require.Equal(t, DefaultExtensionFactor, options.ExtensionFactor)
	require.Equal(t, DefaultNumQueries, options.NumQueries)
	require.Equal(t, DefaultGrindingFactor, options.GrindingFactor)
}

func TestOptionValidation(t *testing.T) {
	base := DefaultProofOptions()

	require.Error(t, base.WithExtensionFactor(8).Validate())
	require.Error(t, base.WithExtensionFactor(48).Validate())
	require.NoError(t, base.WithExtensionFactor(16).Validate())
	require.NoError(t, base.WithExtensionFactor(64).Validate())

	require.Error(t, base.WithNumQueries(0).Validate())
	require.Error(t, base.WithNumQueries(129).Validate())
	require.NoError(t, base.WithNumQueries(1).Validate())
	require.NoError(t, base.WithNumQueries(128).Validate())

	require.Error(t, base.WithGrindingFactor(-1).Validate())
	require.Error(t, base.WithGrindingFactor(33).Validate())
	require.NoError(t, base.WithGrindingFactor(0).Validate())
	require.NoError(t, base.WithGrindingFactor(32).Validate())

	require.Error(t, base.WithHashFn(core.HashKind(9)).Validate())
	for _, kind := range []core.HashKind{core.Blake3_256, core.Sha3_256, core.Rescue} {
		require.NoError(t, base.WithHashFn(kind).Validate())
	}
}

func TestSecurityLevel(t *testing.T) {
	options := DefaultProofOptions()
	// 48 queries * log2(32/8) + 16 grinding bits
	require.Equal(t, 48*2+16, options.SecurityLevel())
}
