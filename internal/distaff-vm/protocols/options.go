package protocols

import (
	"fmt"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
)

// Default proof parameters.
const (
	DefaultExtensionFactor = 32
	DefaultNumQueries      = 48
	DefaultGrindingFactor  = 16
)

// ProofOptions control the soundness/size trade-offs of a STARK proof.
type ProofOptions struct {
	// ExtensionFactor is the blowup factor of the low-degree extension
	// domain relative to the trace domain.
	ExtensionFactor int

	// NumQueries is the number of positions sampled from the extended
	// domain.
	NumQueries int

	// GrindingFactor is the number of leading zero bits required from the
	// proof-of-work nonce.
	GrindingFactor int

	// HashFn selects the Merkle tree and transcript hash function.
	HashFn core.HashKind
}

// DefaultProofOptions returns the default proof parameters.
func DefaultProofOptions() ProofOptions {
	return ProofOptions{
		ExtensionFactor: DefaultExtensionFactor,
		NumQueries:      DefaultNumQueries,
		GrindingFactor:  DefaultGrindingFactor,
		HashFn:          core.Blake3_256,
	}
}

// Validate checks all option values against their allowed domains.
func (o ProofOptions) Validate() error {
	switch o.ExtensionFactor {
	case 16, 32, 64:
	default:
		return fmt.Errorf("extension factor must be one of 16, 32, 64; got %d", o.ExtensionFactor)
	}
	if o.NumQueries < 1 || o.NumQueries > 128 {
		return fmt.Errorf("number of queries must be between 1 and 128, got %d", o.NumQueries)
	}
	if o.GrindingFactor < 0 || o.GrindingFactor > 32 {
		return fmt.Errorf("grinding factor must be between 0 and 32, got %d", o.GrindingFactor)
	}
	if _, err := o.HashFn.Func(); err != nil {
		return err
	}
	return nil
}

// WithExtensionFactor returns a copy of the options with the extension
// factor replaced.
func (o ProofOptions) WithExtensionFactor(factor int) ProofOptions {
	o.ExtensionFactor = factor
	return o
}

// WithNumQueries returns a copy of the options with the query count
// replaced.
func (o ProofOptions) WithNumQueries(count int) ProofOptions {
	o.NumQueries = count
	return o
}

// WithGrindingFactor returns a copy of the options with the grinding factor
// replaced.
func (o ProofOptions) WithGrindingFactor(factor int) ProofOptions {
	o.GrindingFactor = factor
	return o
}

// WithHashFn returns a copy of the options with the hash function replaced.
func (o ProofOptions) WithHashFn(kind core.HashKind) ProofOptions {
	o.HashFn = kind
	return o
}

// SecurityLevel estimates the soundness of a proof in bits: each query
// contributes log2 of the inverse rate, and grinding adds its zero bits.
func (o ProofOptions) SecurityLevel() int {
	r := o.ExtensionFactor / MaxConstraintDegree
	bits := 0
	for v := r; v > 1; v /= 2 {
		bits++
	}
	return o.NumQueries*bits + o.GrindingFactor
}
