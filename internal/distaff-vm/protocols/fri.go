package protocols

import (
	"fmt"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
	"github.com/distaffvm/distaff-vm/internal/distaff-vm/utils"
)

// Radix-4 FRI. Each layer folds the codeword by interpolating degree-3
// polynomials through quadruples of evaluations and collapsing them at a
// pseudo-random point derived from the layer commitment. Folding stops when
// the remainder fits into MaxRemainderLength values, which travel in the
// proof in the clear.

// MaxRemainderLength is the upper bound on the size of the final FRI layer.
const MaxRemainderLength = 256

// FriLayer is one committed FRI layer on the wire: the layer root plus the
// queried quadruples with their authentication proof.
type FriLayer struct {
	Root   [32]byte
	Values [][4]core.Element
	Proof  *core.BatchProof
}

// FriProof is the low-degree proof for the composition polynomial.
type FriProof struct {
	Layers    []FriLayer
	Remainder []core.Element
}

// friLayerTree couples a layer's Merkle tree with its quartic rows.
type friLayerTree struct {
	tree *core.MerkleTree
	rows [][4]core.Element
}

// friReduce folds the evaluations down to the remainder layer, committing
// every intermediate layer into a Merkle tree.
func friReduce(evaluations []core.Element, domain []core.Element, hash core.HashFunc) ([]*friLayerTree, error) {
	if len(evaluations) != len(domain) {
		return nil, fmt.Errorf("evaluations and domain must have equal lengths")
	}

	rows, err := core.Transpose(evaluations, 1)
	if err != nil {
		return nil, err
	}
	tree, err := commitQuarticRows(rows, hash)
	if err != nil {
		return nil, err
	}

	var result []*friLayerTree
	current := &friLayerTree{tree: tree, rows: rows}

	for current.tree.LeafCount()*4 > MaxRemainderLength {
		depth := len(result)
		stride := 1
		for i := 0; i < depth; i++ {
			stride *= 4
		}
		xs, err := core.Transpose(domain, stride)
		if err != nil {
			return nil, err
		}

		polys, err := core.InterpolateBatch(xs, current.rows)
		if err != nil {
			return nil, err
		}

		alpha := core.FromSeed(current.tree.Root())
		column := make([]core.Element, len(polys))
		for i, poly := range polys {
			column[i] = core.EvalQuartic(poly, alpha)
		}

		nextRows, err := core.Transpose(column, 1)
		if err != nil {
			return nil, err
		}
		nextTree, err := commitQuarticRows(nextRows, hash)
		if err != nil {
			return nil, err
		}

		result = append(result, current)
		current = &friLayerTree{tree: nextTree, rows: nextRows}
	}

	result = append(result, current)
	return result, nil
}

// friBuildProof assembles layer openings for the queried positions. For
// every layer the positions are remapped onto the rows containing them; the
// remainder is emitted wholesale.
func friBuildProof(layers []*friLayerTree, positions []int) (*FriProof, error) {
	proof := &FriProof{}
	domainSize := layers[0].tree.LeafCount() * 4
	positions = append([]int(nil), positions...)

	for _, layer := range layers[:len(layers)-1] {
		positions = augmentedPositions(positions, domainSize)

		values := make([][4]core.Element, len(positions))
		for i, p := range positions {
			values[i] = layer.rows[p]
		}
		batch, err := layer.tree.ProveBatch(positions)
		if err != nil {
			return nil, fmt.Errorf("failed to build FRI layer proof: %w", err)
		}
		proof.Layers = append(proof.Layers, FriLayer{
			Root:   layer.tree.Root(),
			Values: values,
			Proof:  batch,
		})
		domainSize /= 4
	}

	// flatten the last layer back into evaluation order
	last := layers[len(layers)-1]
	m := len(last.rows)
	proof.Remainder = make([]core.Element, m*4)
	for i, row := range last.rows {
		for t := 0; t < 4; t++ {
			proof.Remainder[i+t*m] = row[t]
		}
	}
	return proof, nil
}

// friRoots returns the layer roots absorbed into the transcript: one per
// committed layer, excluding the remainder.
func friRoots(layers []*friLayerTree) [][32]byte {
	roots := make([][32]byte, 0, len(layers)-1)
	for _, layer := range layers[:len(layers)-1] {
		roots = append(roots, layer.tree.Root())
	}
	return roots
}

// FriVerify checks a FRI proof against the claimed evaluations at the
// queried positions and the maximum composition degree.
func FriVerify(proof *FriProof, evaluations []core.Element, positions []int,
	maxDegreePlus1, domainSize, extensionFactor int, hash core.HashFunc) error {

	if len(proof.Layers) == 0 {
		return fmt.Errorf("proof has no layers")
	}
	if len(evaluations) != len(positions) {
		return fmt.Errorf("number of evaluations does not match number of positions")
	}

	domainRoot, err := core.RootOfUnity(domainSize)
	if err != nil {
		return err
	}

	// quartic offsets: the four 4th roots of unity scaled into the domain
	quarticRoots := [4]core.Element{
		core.One,
		domainRoot.ExpUint(uint64(domainSize / 4)),
		domainRoot.ExpUint(uint64(domainSize / 2)),
		domainRoot.ExpUint(uint64(domainSize * 3 / 4)),
	}

	positions = append([]int(nil), positions...)
	evaluations = append([]core.Element(nil), evaluations...)

	for depth, layer := range proof.Layers {
		augmented := augmentedPositions(positions, domainSize)
		if len(layer.Values) != len(augmented) {
			return fmt.Errorf("wrong number of layer values at depth %d", depth)
		}

		// claimed evaluations must appear in the committed rows
		columnValues, err := columnValuesAt(layer.Values, positions, augmented, domainSize)
		if err != nil {
			return fmt.Errorf("layer %d: %w", depth, err)
		}
		for i := range evaluations {
			if !evaluations[i].Equal(columnValues[i]) {
				return fmt.Errorf("evaluations did not match column values at depth %d", depth)
			}
		}

		// authentication paths
		leaves := make([][]byte, len(layer.Values))
		for i, row := range layer.Values {
			leaves[i] = serializeQuarticRow(row)
		}
		if !core.VerifyBatch(layer.Root, augmented, leaves, layer.Proof, hash) {
			return fmt.Errorf("verification of layer Merkle proof failed at depth %d", depth)
		}

		// fold the queried rows and compare against the next layer
		xs := make([][4]core.Element, len(augmented))
		for i, p := range augmented {
			xe := domainRoot.ExpUint(uint64(p))
			for t := 0; t < 4; t++ {
				xs[i][t] = quarticRoots[t].Mul(xe)
			}
		}
		polys, err := core.InterpolateBatch(xs, layer.Values)
		if err != nil {
			return err
		}
		alpha := core.FromSeed(layer.Root)
		evaluations = make([]core.Element, len(polys))
		for i, poly := range polys {
			evaluations[i] = core.EvalQuartic(poly, alpha)
		}

		domainRoot = domainRoot.ExpUint(4)
		maxDegreePlus1 /= 4
		domainSize /= 4
		positions = augmented
	}

	// remainder values must agree with the last derived column
	if len(proof.Remainder) != domainSize {
		return fmt.Errorf("remainder has %d values, expected %d", len(proof.Remainder), domainSize)
	}
	for i, p := range positions {
		if !proof.Remainder[p].Equal(evaluations[i]) {
			return fmt.Errorf("remainder values are inconsistent with the last layer column")
		}
	}

	return verifyRemainder(proof.Remainder, maxDegreePlus1, domainRoot, extensionFactor)
}

// verifyRemainder checks that the remainder is a polynomial of the expected
// degree: a subset of the values is interpolated and the rest must lie on
// the interpolant. Positions which coincide with trace domain points are
// excluded, mirroring query sampling.
func verifyRemainder(remainder []core.Element, maxDegreePlus1 int, domainRoot core.Element, extensionFactor int) error {
	if maxDegreePlus1 > len(remainder) {
		return fmt.Errorf("remainder degree is greater than number of remainder values")
	}

	var positions []int
	for i := range remainder {
		if i%extensionFactor != 0 {
			positions = append(positions, i)
		}
	}

	domain := core.PowerSeries(domainRoot, len(remainder))
	xs := make([]core.Element, maxDegreePlus1)
	ys := make([]core.Element, maxDegreePlus1)
	for i := 0; i < maxDegreePlus1; i++ {
		xs[i] = domain[positions[i]]
		ys[i] = remainder[positions[i]]
	}
	poly, err := core.Interpolate(xs, ys)
	if err != nil {
		return err
	}

	for i := maxDegreePlus1; i < len(positions); i++ {
		p := positions[i]
		if !core.EvalPoly(poly, domain[p]).Equal(remainder[p]) {
			return fmt.Errorf("remainder is not a valid degree %d polynomial", maxDegreePlus1-1)
		}
	}
	return nil
}

// helper functions

func commitQuarticRows(rows [][4]core.Element, hash core.HashFunc) (*core.MerkleTree, error) {
	leaves := make([][]byte, len(rows))
	for i, row := range rows {
		leaves[i] = serializeQuarticRow(row)
	}
	return core.NewMerkleTree(leaves, hash)
}

func serializeQuarticRow(row [4]core.Element) []byte {
	leaf := make([]byte, 0, 4*core.ElementSize)
	for _, v := range row {
		leaf = append(leaf, v.Bytes()...)
	}
	return leaf
}

// augmentedPositions maps positions onto the rows of the quartic value
// matrix containing them.
func augmentedPositions(positions []int, columnLength int) []int {
	rowLength := columnLength / 4
	mapped := make([]int, len(positions))
	for i, p := range positions {
		mapped[i] = p % rowLength
	}
	return utils.UniqueSorted(mapped)
}

// columnValuesAt extracts the value at every original position from the
// quartic rows fetched at the augmented positions.
func columnValuesAt(values [][4]core.Element, positions, augmented []int, columnLength int) ([]core.Element, error) {
	rowLength := columnLength / 4
	result := make([]core.Element, len(positions))
	for i, p := range positions {
		idx := -1
		for j, ap := range augmented {
			if ap == p%rowLength {
				idx = j
				break
			}
		}
		if idx == -1 {
			return nil, fmt.Errorf("position %d is not covered by the layer rows", p)
		}
		result[i] = values[idx][p/rowLength]
	}
	return result, nil
}
