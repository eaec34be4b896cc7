package core

import (
	"bytes"
	"fmt"
	"math/bits"
)

// MerkleTree commits to a vector of byte rows. Leaves are numbered in domain
// order; internal nodes hash the concatenation of their two children.
type MerkleTree struct {
	hash   HashFunc
	leaves [][]byte
	// nodes is a 1-indexed heap: nodes[1] is the root, leaf i hashes into
	// nodes[len(leaves)+i].
	nodes [][32]byte
}

// BatchProof is an authentication proof for a set of leaves. Sibling digests
// are recorded in the deterministic bottom-up order in which the verifier
// consumes them, so only the minimum set of nodes is transmitted.
type BatchProof struct {
	Depth int
	Nodes [][32]byte
}

// NewMerkleTree builds a Merkle tree over the provided leaves. The number of
// leaves must be a power of two greater than 1.
func NewMerkleTree(leaves [][]byte, hash HashFunc) (*MerkleTree, error) {
	n := len(leaves)
	if n < 2 || n&(n-1) != 0 {
		return nil, fmt.Errorf("number of leaves must be a power of 2 greater than 1, got %d", n)
	}

	nodes := make([][32]byte, 2*n)
	for i, leaf := range leaves {
		nodes[n+i] = hash(leaf)
	}
	for i := n - 1; i > 0; i-- {
		nodes[i] = hash(append(nodes[2*i][:], nodes[2*i+1][:]...))
	}

	return &MerkleTree{hash: hash, leaves: leaves, nodes: nodes}, nil
}

// Root returns the Merkle root.
func (t *MerkleTree) Root() [32]byte {
	return t.nodes[1]
}

// LeafCount returns the number of leaves in the tree.
func (t *MerkleTree) LeafCount() int {
	return len(t.leaves)
}

// Leaf returns the raw bytes of the leaf at the given index.
func (t *MerkleTree) Leaf(index int) []byte {
	return t.leaves[index]
}

// ProveBatch builds an authentication proof for the leaves at the given
// indices. Indices must be sorted in ascending order and free of duplicates.
func (t *MerkleTree) ProveBatch(indices []int) (*BatchProof, error) {
	n := len(t.leaves)
	for i, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("leaf index %d out of range [0, %d)", idx, n)
		}
		if i > 0 && indices[i-1] >= idx {
			return nil, fmt.Errorf("leaf indices must be sorted and unique")
		}
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("no leaf indices provided")
	}

	proof := &BatchProof{Depth: bits.TrailingZeros(uint(n))}

	positions := make([]int, len(indices))
	for i, idx := range indices {
		positions[i] = n + idx
	}

	for positions[0] > 1 {
		next := positions[:0]
		for i := 0; i < len(positions); {
			p := positions[i]
			if p%2 == 0 && i+1 < len(positions) && positions[i+1] == p+1 {
				// both children are known to the verifier
				i += 2
			} else {
				proof.Nodes = append(proof.Nodes, t.nodes[p^1])
				i++
			}
			next = append(next, p/2)
		}
		positions = next
	}

	return proof, nil
}

// VerifyBatch reconstructs the Merkle root from the provided leaves and
// proof and compares it against the expected root. The traversal mirrors
// ProveBatch exactly, so node consumption order is deterministic.
func VerifyBatch(root [32]byte, indices []int, leaves [][]byte, proof *BatchProof, hash HashFunc) bool {
	if len(indices) == 0 || len(indices) != len(leaves) || proof == nil {
		return false
	}
	n := 1 << proof.Depth

	positions := make([]int, len(indices))
	digests := make(map[int][32]byte, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= n {
			return false
		}
		if i > 0 && indices[i-1] >= idx {
			return false
		}
		positions[i] = n + idx
		digests[n+idx] = hash(leaves[i])
	}

	nodeIdx := 0
	for positions[0] > 1 {
		next := positions[:0]
		for i := 0; i < len(positions); {
			p := positions[i]
			var left, right [32]byte
			if p%2 == 0 && i+1 < len(positions) && positions[i+1] == p+1 {
				left, right = digests[p], digests[p+1]
				i += 2
			} else {
				if nodeIdx >= len(proof.Nodes) {
					return false
				}
				sibling := proof.Nodes[nodeIdx]
				nodeIdx++
				if p%2 == 0 {
					left, right = digests[p], sibling
				} else {
					left, right = sibling, digests[p]
				}
				i++
			}
			digests[p/2] = hash(append(left[:], right[:]...))
			next = append(next, p/2)
		}
		positions = next
	}

	if nodeIdx != len(proof.Nodes) {
		return false
	}
	rootDigest := digests[1]
	return bytes.Equal(rootDigest[:], root[:])
}
