package protocols

import (
	"fmt"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
)

// DEEP composition: trace and constraint polynomials are opened at an
// out-of-domain point z drawn from the transcript, and the quotients
// (P(x) - P(z)) / (x - z) are folded into a single low-degree polynomial
// which FRI attests to.

// CompositionCoefficients are the pseudo-random coefficients of the DEEP
// linear combination. They are drawn from the transcript state right after
// the constraint commitment, skipping the first draw which is consumed by
// the DEEP point z itself.
type CompositionCoefficients struct {
	Trace1      []core.Element
	Trace2      []core.Element
	T1Degree    core.Element
	T2Degree    core.Element
	Constraints core.Element
}

// DrawZAndCoefficients derives the DEEP point and the composition
// coefficients from a transcript seed.
func DrawZAndCoefficients(seed [32]byte, traceWidth int) (core.Element, *CompositionCoefficients) {
	draws := core.RandomSeries(seed, 1+2*traceWidth+3)
	z := draws[0]
	return z, &CompositionCoefficients{
		Trace1:      draws[1 : 1+traceWidth],
		Trace2:      draws[1+traceWidth : 1+2*traceWidth],
		T1Degree:    draws[1+2*traceWidth],
		T2Degree:    draws[1+2*traceWidth+1],
		Constraints: draws[1+2*traceWidth+2],
	}
}

// DeepValues are the out-of-domain openings carried in the proof.
type DeepValues struct {
	Z             core.Element
	TraceAtZ1     []core.Element
	TraceAtZ2     []core.Element
	ConstraintsAt core.Element
}

// NewDeepValues opens the trace polynomials at z and z * omega and the
// constraint polynomial at z.
func NewDeepValues(z core.Element, trace *TraceTable, cPoly *ConstraintPoly) (*DeepValues, error) {
	traceRoot, err := core.RootOfUnity(trace.Length())
	if err != nil {
		return nil, err
	}
	nextZ := z.Mul(traceRoot)
	return &DeepValues{
		Z:             z,
		TraceAtZ1:     trace.EvalPolysAt(z),
		TraceAtZ2:     trace.EvalPolysAt(nextZ),
		ConstraintsAt: cPoly.EvalAt(z),
	}, nil
}

// ComposeEvaluations evaluates the DEEP composition polynomial over the
// extended domain. The degree adjustment raises the trace quotients to the
// common target degree so that a single FRI bound covers every term.
func ComposeEvaluations(trace *TraceTable, cPoly *ConstraintPoly, deep *DeepValues,
	cc *CompositionCoefficients, evaluator *Evaluator) ([]core.Element, error) {

	domainSize := trace.DomainSize()
	ldeRoot, err := core.RootOfUnity(domainSize)
	if err != nil {
		return nil, err
	}
	traceRoot, err := core.RootOfUnity(trace.Length())
	if err != nil {
		return nil, err
	}
	nextZ := deep.Z.Mul(traceRoot)

	domain := core.PowerSeries(ldeRoot, domainSize)

	// batch-invert the DEEP denominators over the whole domain
	denom1 := make([]core.Element, domainSize)
	denom2 := make([]core.Element, domainSize)
	for i, x := range domain {
		denom1[i] = x.Sub(deep.Z)
		denom2[i] = x.Sub(nextZ)
	}
	denom1 = core.InvMany(denom1)
	denom2 = core.InvMany(denom2)

	incremental := evaluator.adjustmentDegree(1)
	cEvals := cPoly.Evaluations()

	result := make([]core.Element, domainSize)
	for i, x := range domain {
		row := trace.LdeRow(i)

		composition := core.Zero
		for j, value := range row {
			t1 := value.Sub(deep.TraceAtZ1[j]).Mul(denom1[i])
			composition = composition.Add(t1.Mul(cc.Trace1[j]))

			t2 := value.Sub(deep.TraceAtZ2[j]).Mul(denom2[i])
			composition = composition.Add(t2.Mul(cc.Trace2[j]))
		}

		// raise the trace part to the composition degree
		xp := x.ExpUint(incremental)
		adjusted := composition.Mul(xp).Mul(cc.T2Degree)
		composition = composition.Mul(cc.T1Degree).Add(adjusted)

		// constraint quotient
		cQuotient := cEvals[i].Sub(deep.ConstraintsAt).Mul(denom1[i])
		composition = composition.Add(cQuotient.Mul(cc.Constraints))

		result[i] = composition
	}
	return result, nil
}

// ComposeAtPositions recomputes the DEEP composition at queried positions
// from proof data; the verifier checks these values against the first FRI
// layer.
func ComposeAtPositions(positions []int, traceRows [][]core.Element, constraintValues []core.Element,
	deep *DeepValues, cc *CompositionCoefficients, domainSize, traceLength int,
	incremental uint64) ([]core.Element, error) {

	if len(positions) != len(traceRows) || len(positions) != len(constraintValues) {
		return nil, fmt.Errorf("positions, trace rows and constraint values must have equal lengths")
	}

	ldeRoot, err := core.RootOfUnity(domainSize)
	if err != nil {
		return nil, err
	}
	traceRoot, err := core.RootOfUnity(traceLength)
	if err != nil {
		return nil, err
	}
	nextZ := deep.Z.Mul(traceRoot)

	result := make([]core.Element, len(positions))
	for i, position := range positions {
		x := ldeRoot.ExpUint(uint64(position))

		composition := core.Zero
		for j, value := range traceRows[i] {
			t1 := value.Sub(deep.TraceAtZ1[j]).Div(x.Sub(deep.Z))
			composition = composition.Add(t1.Mul(cc.Trace1[j]))

			t2 := value.Sub(deep.TraceAtZ2[j]).Div(x.Sub(nextZ))
			composition = composition.Add(t2.Mul(cc.Trace2[j]))
		}

		xp := x.ExpUint(incremental)
		adjusted := composition.Mul(xp).Mul(cc.T2Degree)
		composition = composition.Mul(cc.T1Degree).Add(adjusted)

		cQuotient := constraintValues[i].Sub(deep.ConstraintsAt).Div(x.Sub(deep.Z))
		composition = composition.Add(cQuotient.Mul(cc.Constraints))

		result[i] = composition
	}
	return result, nil
}
