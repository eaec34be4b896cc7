package protocols

import (
	"fmt"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
)

// ErrConstraintUnsatisfied is returned when a transition constraint does
// not vanish on the trace domain; the trace does not describe a valid
// execution and no proof can be produced.
var ErrConstraintUnsatisfied = fmt.Errorf("transition constraint evaluated to a non-zero value at a trace step")

// ConstraintTable evaluates all constraint combinations over the constraint
// evaluation domain and folds them into a single constraint polynomial.
type ConstraintTable struct {
	evaluator *Evaluator
	trace     *TraceTable

	iEvals []core.Element
	fEvals []core.Element
	tEvals []core.Element
}

// NewConstraintTable evaluates boundary and transition constraint
// combinations at every point of the evaluation domain. Transition
// constraints are checked to vanish on the trace domain; a violation means
// the trace is invalid.
func NewConstraintTable(trace *TraceTable, evaluator *Evaluator) (*ConstraintTable, error) {
	domainSize := evaluator.DomainSize()
	stride := trace.DomainSize() / domainSize
	if stride == 0 || trace.DomainSize()%domainSize != 0 {
		return nil, fmt.Errorf("extension factor %d is too small for constraint degree %d",
			trace.extensionFactor, MaxConstraintDegree)
	}

	evRoot, err := core.RootOfUnity(domainSize)
	if err != nil {
		return nil, err
	}
	domain := core.PowerSeries(evRoot, domainSize)

	ct := &ConstraintTable{
		evaluator: evaluator,
		trace:     trace,
		iEvals:    make([]core.Element, domainSize),
		fEvals:    make([]core.Element, domainSize),
		tEvals:    make([]core.Element, domainSize),
	}

	lastTraceStep := domainSize - MaxConstraintDegree
	for step := 0; step < domainSize; step++ {
		current, err := trace.LdeState(step * stride)
		if err != nil {
			return nil, err
		}
		next, err := trace.LdeState((step*stride + stride*MaxConstraintDegree) % trace.DomainSize())
		if err != nil {
			return nil, err
		}
		x := domain[step]

		iValue, fValue := evaluator.EvaluateBoundaries(current, x)
		ct.iEvals[step] = iValue
		ct.fEvals[step] = fValue

		if step%MaxConstraintDegree == 0 && step < lastTraceStep {
			// on the trace domain every transition constraint must vanish
			raw := evaluator.EvaluateTransitionRaw(current, next, step)
			for i, v := range raw {
				if !v.IsZero() {
					return nil, fmt.Errorf("%w: constraint %d at step %d",
						ErrConstraintUnsatisfied, i, step/MaxConstraintDegree)
				}
			}
			continue
		}
		ct.tEvals[step] = evaluator.EvaluateTransition(current, next, x, step)
	}

	return ct, nil
}

// CombinePolys interpolates the three constraint combinations, divides each
// by its vanishing polynomial, and sums them into the constraint
// polynomial.
func (ct *ConstraintTable) CombinePolys() (*ConstraintPoly, error) {
	// input boundary: divide by (x - 1)
	iPoly := append([]core.Element(nil), ct.iEvals...)
	if err := core.InterpolateFFT(iPoly); err != nil {
		return nil, err
	}
	iQuotient := core.SynDiv(iPoly, core.One)

	// output boundary: divide by (x - x_at_last_step)
	fPoly := append([]core.Element(nil), ct.fEvals...)
	if err := core.InterpolateFFT(fPoly); err != nil {
		return nil, err
	}
	fQuotient := core.SynDiv(fPoly, ct.evaluator.XAtLastStep())

	// transitions: divide by (x^n - 1) / (x - x_at_last_step)
	tPoly := append([]core.Element(nil), ct.tEvals...)
	if err := core.InterpolateFFT(tPoly); err != nil {
		return nil, err
	}
	tQuotient := core.SynDivExpanded(tPoly, ct.trace.Length(), ct.evaluator.XAtLastStep())

	combined := core.AddPolys(core.AddPolys(iQuotient, fQuotient), tQuotient)
	padded := make([]core.Element, ct.evaluator.DomainSize())
	copy(padded, combined)

	return &ConstraintPoly{coefficients: padded}, nil
}

// ConstraintPoly is the combined constraint polynomial.
type ConstraintPoly struct {
	coefficients []core.Element
	evaluations  []core.Element
	tree         *core.MerkleTree
}

// EvalAt evaluates the constraint polynomial at an out-of-domain point.
func (p *ConstraintPoly) EvalAt(x core.Element) core.Element {
	return core.EvalPoly(p.coefficients, x)
}

// Extend evaluates the constraint polynomial over the extended domain.
func (p *ConstraintPoly) Extend(domainSize int) error {
	if domainSize < len(p.coefficients) {
		return fmt.Errorf("extension domain %d is smaller than the constraint polynomial", domainSize)
	}
	evaluations := make([]core.Element, domainSize)
	copy(evaluations, p.coefficients)
	if err := core.EvalPolyFFT(evaluations); err != nil {
		return err
	}
	p.evaluations = evaluations
	return nil
}

// Evaluations returns the constraint polynomial values over the extended
// domain.
func (p *ConstraintPoly) Evaluations() []core.Element {
	return p.evaluations
}

// Commit puts the extended evaluations into a Merkle tree; leaf j packs the
// values at positions 2j and 2j+1.
func (p *ConstraintPoly) Commit(hash core.HashFunc) ([32]byte, error) {
	if p.evaluations == nil {
		return [32]byte{}, fmt.Errorf("constraint polynomial must be extended before commitment")
	}
	leaves := make([][]byte, len(p.evaluations)/ConstraintLeafSpan)
	for j := range leaves {
		leaf := make([]byte, 0, ConstraintLeafSpan*core.ElementSize)
		for i := 0; i < ConstraintLeafSpan; i++ {
			leaf = append(leaf, p.evaluations[j*ConstraintLeafSpan+i].Bytes()...)
		}
		leaves[j] = leaf
	}
	tree, err := core.NewMerkleTree(leaves, hash)
	if err != nil {
		return [32]byte{}, fmt.Errorf("failed to commit constraint evaluations: %w", err)
	}
	p.tree = tree
	return tree.Root(), nil
}

// Tree returns the constraint commitment tree.
func (p *ConstraintPoly) Tree() *core.MerkleTree {
	return p.tree
}

// ConstraintLeafSpan is the number of extended-domain positions packed into
// one constraint tree leaf.
const ConstraintLeafSpan = 2

// ConstraintPositions maps extended-domain query positions to the
// constraint tree leaves covering them.
func ConstraintPositions(positions []int) []int {
	mapped := make([]int, len(positions))
	for i, p := range positions {
		mapped[i] = p / ConstraintLeafSpan
	}
	return uniqueSortedInts(mapped)
}

func uniqueSortedInts(values []int) []int {
	seen := make(map[int]bool, len(values))
	var result []int
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	for i := 1; i < len(result); i++ {
		for j := i; j > 0 && result[j-1] > result[j]; j-- {
			result[j-1], result[j] = result[j], result[j-1]
		}
	}
	return result
}
