package protocols

import (
	"fmt"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
	"github.com/distaffvm/distaff-vm/internal/distaff-vm/vm"
)

// MaxConstraintDegree is the highest composition degree of any transition
// constraint; it also fixes the size of the constraint evaluation domain
// relative to the trace.
const MaxConstraintDegree = 8

// periodicColumn is a 16-step cycle of constants viewed as a polynomial
// over the trace domain. Values can be resolved on the constraint
// evaluation domain by index, or at an arbitrary out-of-domain point by
// evaluating the cycle polynomial.
type periodicColumn struct {
	poly     []core.Element // interpolant over the 16-step cycle domain
	extended []core.Element // evaluations over the extended cycle domain
}

func newPeriodicColumn(cycle []core.Element, extensionFactor int) (*periodicColumn, error) {
	poly := append([]core.Element(nil), cycle...)
	if err := core.InterpolateFFT(poly); err != nil {
		return nil, err
	}
	extended := make([]core.Element, len(cycle)*extensionFactor)
	copy(extended, poly)
	if err := core.EvalPolyFFT(extended); err != nil {
		return nil, err
	}
	return &periodicColumn{poly: poly, extended: extended}, nil
}

// at returns the column value at a step of the extended domain.
func (c *periodicColumn) at(step int) core.Element {
	return c.extended[step%len(c.extended)]
}

// evalAt returns the column value at an arbitrary point x of a trace with
// the given length.
func (c *periodicColumn) evalAt(x core.Element, traceLength int) core.Element {
	numCycles := uint64(traceLength / vm.BaseCycleLength)
	return core.EvalPoly(c.poly, x.ExpUint(numCycles))
}

// Evaluator computes boundary and transition constraint combinations for
// both the prover (over the constraint evaluation domain) and the verifier
// (at the out-of-domain point z).
type Evaluator struct {
	layout      vm.TraceLayout
	traceLength int
	domainSize  int

	decoder *decoderEvaluator
	stack   *stackEvaluator

	tDegrees []int
	tCoeffs  []core.Element
	iCoeffs  []core.Element
	fCoeffs  []core.Element

	programHash core.Element
	inputs      []core.Element
	outputs     []core.Element

	ark4Cols []*periodicColumn
	ark6Cols []*periodicColumn
	maskCols []*periodicColumn

	xAtLastStep core.Element
}

// NewEvaluator creates a constraint evaluator. Pseudo-random combination
// coefficients are derived from the trace commitment.
func NewEvaluator(traceRoot [32]byte, layout vm.TraceLayout, traceLength int,
	programHash core.Element, inputs, outputs []core.Element) (*Evaluator, error) {

	if err := layout.Validate(); err != nil {
		return nil, err
	}

	decoder := newDecoderEvaluator(layout)
	stack := newStackEvaluator(layout)
	tDegrees := append(append([]int(nil), decoder.constraintDegrees()...), stack.constraintDegrees()...)

	numI := core.SpongeWidth + layout.CtxDepth + layout.LoopDepth + layout.UserStackWidth
	numF := 1 + len(outputs)
	coeffs := core.RandomSeries(traceRoot, 2*(len(tDegrees)+numI+numF))

	traceRootOfUnity, err := core.RootOfUnity(traceLength)
	if err != nil {
		return nil, err
	}

	e := &Evaluator{
		layout:      layout,
		traceLength: traceLength,
		domainSize:  traceLength * MaxConstraintDegree,
		decoder:     decoder,
		stack:       stack,
		tDegrees:    tDegrees,
		tCoeffs:     coeffs[:2*len(tDegrees)],
		iCoeffs:     coeffs[2*len(tDegrees) : 2*(len(tDegrees)+numI)],
		fCoeffs:     coeffs[2*(len(tDegrees)+numI):],
		programHash: programHash,
		inputs:      inputs,
		outputs:     outputs,
		xAtLastStep: traceRootOfUnity.ExpUint(uint64(traceLength - 1)),
	}

	// periodic constant columns extended over the evaluation domain
	extension := MaxConstraintDegree
	for j := 0; j < 2*core.SpongeWidth; j++ {
		cycle := make([]core.Element, vm.BaseCycleLength)
		for r := 0; r < vm.BaseCycleLength; r++ {
			cycle[r] = core.Ark4(r)[j]
		}
		col, err := newPeriodicColumn(cycle, extension)
		if err != nil {
			return nil, err
		}
		e.ark4Cols = append(e.ark4Cols, col)
	}
	for j := 0; j < 2*core.HashStateWidth; j++ {
		cycle := make([]core.Element, vm.BaseCycleLength)
		for r := 0; r < vm.BaseCycleLength; r++ {
			cycle[r] = core.Ark6(r)[j]
		}
		col, err := newPeriodicColumn(cycle, extension)
		if err != nil {
			return nil, err
		}
		e.ark6Cols = append(e.ark6Cols, col)
	}
	for _, mask := range [][]core.Element{tendMask, prefixMask, hashrMask} {
		col, err := newPeriodicColumn(mask, extension)
		if err != nil {
			return nil, err
		}
		e.maskCols = append(e.maskCols, col)
	}

	return e, nil
}

// TransitionConstraintCount returns the number of transition constraints.
func (e *Evaluator) TransitionConstraintCount() int {
	return len(e.tDegrees)
}

// DomainSize returns the size of the constraint evaluation domain.
func (e *Evaluator) DomainSize() int {
	return e.domainSize
}

// TargetDegree returns the degree all constraints are adjusted to before
// being combined.
func (e *Evaluator) TargetDegree() int {
	return e.domainSize - 1
}

// XAtLastStep returns the trace domain point of the last trace row.
func (e *Evaluator) XAtLastStep() core.Element {
	return e.xAtLastStep
}

// EvaluateTransitionRaw evaluates every transition constraint without
// combining; used to detect unsatisfied constraints on the trace domain.
// The step indexes the constraint evaluation domain.
func (e *Evaluator) EvaluateTransitionRaw(current, next *vm.TraceState, step int) []core.Element {
	ark4, ark6, masks := e.constantsAtStep(step)
	return e.rawVector(current, next, ark4, ark6, masks)
}

// EvaluateTransition evaluates the pseudo-random combination of all
// transition constraints at a step of the constraint evaluation domain.
func (e *Evaluator) EvaluateTransition(current, next *vm.TraceState, x core.Element, step int) core.Element {
	ark4, ark6, masks := e.constantsAtStep(step)
	raw := e.rawVector(current, next, ark4, ark6, masks)
	return e.combineTransition(raw, x)
}

// EvaluateTransitionAt evaluates the transition combination at an arbitrary
// out-of-domain point; periodic constants are resolved by evaluating their
// cycle polynomials.
func (e *Evaluator) EvaluateTransitionAt(current, next *vm.TraceState, x core.Element) core.Element {
	ark4 := make([]core.Element, 2*core.SpongeWidth)
	for j := range ark4 {
		ark4[j] = e.ark4Cols[j].evalAt(x, e.traceLength)
	}
	ark6 := make([]core.Element, 2*core.HashStateWidth)
	for j := range ark6 {
		ark6[j] = e.ark6Cols[j].evalAt(x, e.traceLength)
	}
	var masks [3]core.Element
	for j := range masks {
		masks[j] = e.maskCols[j].evalAt(x, e.traceLength)
	}
	raw := e.rawVector(current, next, ark4, ark6, masks)
	return e.combineTransition(raw, x)
}

// EvaluateBoundaries evaluates the input and output boundary combinations
// at a point; the vanishing polynomial division is left to the caller.
func (e *Evaluator) EvaluateBoundaries(state *vm.TraceState, x core.Element) (core.Element, core.Element) {
	xp := x.ExpUint(e.adjustmentDegree(1))

	iValue := e.combinePairs(e.boundaryValuesI(state), e.iCoeffs, xp)
	fValue := e.combinePairs(e.boundaryValuesF(state), e.fCoeffs, xp)
	return iValue, fValue
}

// boundaryValuesI returns the residues of all input boundary constraints.
func (e *Evaluator) boundaryValuesI(state *vm.TraceState) []core.Element {
	var values []core.Element
	for _, v := range state.Sponge() {
		values = append(values, v)
	}
	for _, v := range state.CtxStack() {
		values = append(values, v)
	}
	for _, v := range state.LoopStack() {
		values = append(values, v)
	}
	stack := state.UserStack()
	for i, v := range stack {
		expected := core.Zero
		if i < len(e.inputs) {
			expected = e.inputs[i]
		}
		values = append(values, v.Sub(expected))
	}
	return values
}

// boundaryValuesF returns the residues of all output boundary constraints.
func (e *Evaluator) boundaryValuesF(state *vm.TraceState) []core.Element {
	values := []core.Element{state.Sponge()[0].Sub(e.programHash)}
	stack := state.UserStack()
	for i := range e.outputs {
		values = append(values, stack[i].Sub(e.outputs[i]))
	}
	return values
}

func (e *Evaluator) combinePairs(values, coeffs []core.Element, xp core.Element) core.Element {
	raw := core.Zero
	adjusted := core.Zero
	for i, v := range values {
		raw = raw.Add(v.Mul(coeffs[2*i]))
		adjusted = adjusted.Add(v.Mul(coeffs[2*i+1]))
	}
	return raw.Add(adjusted.Mul(xp))
}

func (e *Evaluator) rawVector(current, next *vm.TraceState, ark4, ark6 []core.Element, masks [3]core.Element) []core.Element {
	result := make([]core.Element, len(e.tDegrees))
	e.decoder.evaluate(current, next, ark4, masks, result[:e.decoder.constraintCount()])
	e.stack.evaluate(current, next, ark6, result[e.decoder.constraintCount():])
	return result
}

func (e *Evaluator) combineTransition(raw []core.Element, x core.Element) core.Element {
	result := core.Zero
	xPowers := make(map[int]core.Element, MaxConstraintDegree)
	for i, v := range raw {
		result = result.Add(v.Mul(e.tCoeffs[2*i]))

		d := e.tDegrees[i]
		xp, ok := xPowers[d]
		if !ok {
			xp = x.ExpUint(e.adjustmentDegree(d))
			xPowers[d] = xp
		}
		result = result.Add(v.Mul(xp).Mul(e.tCoeffs[2*i+1]))
	}
	return result
}

// IncrementalTraceDegree returns the power of x which raises a trace
// quotient to the common target degree in the DEEP composition.
func (e *Evaluator) IncrementalTraceDegree() uint64 {
	return e.adjustmentDegree(1)
}

// adjustmentDegree returns the power of x which raises a constraint of the
// declared degree to the common target degree.
func (e *Evaluator) adjustmentDegree(degree int) uint64 {
	return uint64(e.TargetDegree() - (e.traceLength-1)*degree)
}

func (e *Evaluator) constantsAtStep(step int) ([]core.Element, []core.Element, [3]core.Element) {
	ark4 := make([]core.Element, 2*core.SpongeWidth)
	for j := range ark4 {
		ark4[j] = e.ark4Cols[j].at(step)
	}
	ark6 := make([]core.Element, 2*core.HashStateWidth)
	for j := range ark6 {
		ark6[j] = e.ark6Cols[j].at(step)
	}
	var masks [3]core.Element
	for j := range masks {
		masks[j] = e.maskCols[j].at(step)
	}
	return ark4, ark6, masks
}

// EvaluateConstraintsAt recomputes the combined constraint value at an
// out-of-domain point from a pair of trace states, dividing each
// combination by its vanishing polynomial. The verifier uses this to derive
// C(z) from the DEEP trace states.
func (e *Evaluator) EvaluateConstraintsAt(current, next *vm.TraceState, x core.Element) (core.Element, error) {
	iValue, fValue := e.EvaluateBoundaries(current, x)
	tValue := e.EvaluateTransitionAt(current, next, x)

	zI := x.Sub(core.One)
	zF := x.Sub(e.xAtLastStep)
	if zI.IsZero() || zF.IsZero() {
		return core.Zero, fmt.Errorf("out-of-domain point coincides with a boundary step")
	}

	result := iValue.Div(zI)
	result = result.Add(fValue.Div(zF))

	// Z(x) = (x^n - 1) / (x - x_at_last_step)
	zT := x.ExpUint(uint64(e.traceLength)).Sub(core.One).Div(zF)
	if zT.IsZero() {
		return core.Zero, fmt.Errorf("out-of-domain point coincides with a trace step")
	}
	result = result.Add(tValue.Div(zT))
	return result, nil
}
