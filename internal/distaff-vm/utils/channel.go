package utils

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/bits-and-blooms/bitset"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
)

// Channel implements the Fiat-Shamir transcript shared by the prover and the
// verifier. The state evolves as state = H(state || data) on every
// absorption; challenge draws never consume wire bytes, so both sides stay
// in lockstep as long as absorption order matches.
type Channel struct {
	hash  core.HashFunc
	state [32]byte
}

// NewChannel creates a transcript seeded with the program hash and the
// public inputs and outputs.
func NewChannel(hash core.HashFunc, programHash core.Element, inputs, outputs []core.Element) *Channel {
	c := &Channel{hash: hash}
	seed := programHash.Bytes()
	for _, v := range inputs {
		seed = append(seed, v.Bytes()...)
	}
	for _, v := range outputs {
		seed = append(seed, v.Bytes()...)
	}
	c.state = hash(seed)
	return c
}

// Absorb mixes data into the transcript state.
func (c *Channel) Absorb(data []byte) {
	c.state = c.hash(append(c.state[:], data...))
}

// AbsorbRoot mixes a Merkle root into the transcript state.
func (c *Channel) AbsorbRoot(root [32]byte) {
	c.Absorb(root[:])
}

// State returns a copy of the current transcript state.
func (c *Channel) State() [32]byte {
	return c.state
}

// DrawElement derives a pseudo-random field element from the current state
// without mutating it.
func (c *Channel) DrawElement() core.Element {
	return core.FromSeed(c.state)
}

// DrawElements derives a sequence of pseudo-random field elements from the
// current state without mutating it.
func (c *Channel) DrawElements(count int) []core.Element {
	return core.RandomSeries(c.state, count)
}

// Grind searches for the smallest 64-bit nonce such that hashing the
// transcript state together with the nonce yields a digest with at least
// grindingFactor leading zero bits. The winning digest becomes the new
// state, so query positions depend on the grind.
func (c *Channel) Grind(grindingFactor int) uint64 {
	var nonce uint64
	for {
		digest, ok := c.tryNonce(nonce, grindingFactor)
		if ok {
			c.state = digest
			return nonce
		}
		nonce++
	}
}

// VerifyNonce checks a proof-of-work nonce against the transcript state and,
// on success, advances the state the same way Grind does.
func (c *Channel) VerifyNonce(nonce uint64, grindingFactor int) error {
	digest, ok := c.tryNonce(nonce, grindingFactor)
	if !ok {
		return fmt.Errorf("nonce %d does not satisfy grinding factor %d", nonce, grindingFactor)
	}
	c.state = digest
	return nil
}

func (c *Channel) tryNonce(nonce uint64, grindingFactor int) ([32]byte, bool) {
	input := make([]byte, 40)
	copy(input, c.state[:])
	binary.LittleEndian.PutUint64(input[32:], nonce)
	digest := c.hash(input)
	leading := bits.LeadingZeros64(binary.BigEndian.Uint64(digest[:8]))
	return digest, leading >= grindingFactor
}

// DrawQueryPositions samples distinct query positions in [0, domainSize)
// from the current state. Positions that are multiples of the extension
// factor are rejected because they coincide with trace domain points, and
// duplicates are rejected with a bitset. Positions are returned in
// ascending order.
func (c *Channel) DrawQueryPositions(count, domainSize, extensionFactor int) ([]int, error) {
	if !IsPowerOfTwo(domainSize) {
		return nil, fmt.Errorf("domain size must be a power of 2, got %d", domainSize)
	}
	mask := uint32(domainSize - 1)

	taken := bitset.New(uint(domainSize))
	result := make([]int, 0, count)

	var block [36]byte
	copy(block[:32], c.state[:])
	for counter := uint32(0); len(result) < count; counter++ {
		if counter == 0xFFFFFFFF {
			return nil, fmt.Errorf("failed to draw %d distinct query positions", count)
		}
		binary.LittleEndian.PutUint32(block[32:], counter)
		digest := c.hash(block[:])
		for off := 0; off+4 <= len(digest) && len(result) < count; off += 4 {
			p := int(binary.LittleEndian.Uint32(digest[off:]) & mask)
			if p%extensionFactor == 0 {
				continue
			}
			if taken.Test(uint(p)) {
				continue
			}
			taken.Set(uint(p))
			result = append(result, p)
		}
	}

	return UniqueSorted(result), nil
}
