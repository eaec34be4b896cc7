package core

import (
	"fmt"

	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"
)

// HashFunc computes a 32-byte digest of the input. Merkle trees and the
// Fiat-Shamir channel are parameterized over this type.
type HashFunc func(data []byte) [32]byte

// HashKind identifies a supported hash function on the proof wire.
type HashKind uint8

const (
	// Blake3_256 selects the BLAKE3 hash with a 256-bit digest.
	Blake3_256 HashKind = iota

	// Sha3_256 selects the SHA3-256 hash.
	Sha3_256

	// Rescue selects the field-native Rescue sponge hash.
	Rescue
)

// String returns the canonical name of the hash function.
func (k HashKind) String() string {
	switch k {
	case Blake3_256:
		return "blake3_256"
	case Sha3_256:
		return "sha3_256"
	case Rescue:
		return "rescue"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Func returns the hash function implementation for the kind.
func (k HashKind) Func() (HashFunc, error) {
	switch k {
	case Blake3_256:
		return func(data []byte) [32]byte {
			return blake3.Sum256(data)
		}, nil
	case Sha3_256:
		return func(data []byte) [32]byte {
			return sha3.Sum256(data)
		}, nil
	case Rescue:
		return RescueHash, nil
	default:
		return nil, fmt.Errorf("unsupported hash function: %d", uint8(k))
	}
}
