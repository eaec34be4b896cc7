package protocols

import (
	"fmt"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
	"github.com/distaffvm/distaff-vm/internal/distaff-vm/logger"
	"github.com/distaffvm/distaff-vm/internal/distaff-vm/utils"
	"github.com/distaffvm/distaff-vm/internal/distaff-vm/vm"
)

// ErrTraceMalformed is returned when an execution trace fails structural or
// boundary validation before proving starts.
var ErrTraceMalformed = fmt.Errorf("execution trace is malformed")

// Prove generates a STARK proof attesting that the program committed to by
// the trace's program hash was executed with the declared public inputs and
// produced the declared outputs. Any failure is fatal: no partial proof is
// ever returned.
func Prove(trace *vm.ExecutionTrace, inputs, outputs []core.Element, options ProofOptions) ([]byte, error) {
	log := logger.Logger()

	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid proof options: %w", err)
	}
	hash, err := options.HashFn.Func()
	if err != nil {
		return nil, err
	}

	table, err := NewTraceTable(trace)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTraceMalformed, err)
	}
	if err := checkBoundaries(trace, inputs, outputs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTraceMalformed, err)
	}

	// 1 ----- interpolate the trace and extend it over the LDE domain
	if err := table.Interpolate(); err != nil {
		return nil, err
	}
	if err := table.Extend(options.ExtensionFactor); err != nil {
		return nil, err
	}
	traceRoot, err := table.Commit(hash)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("length", table.Length()).Int("width", table.Width()).
		Msg("committed execution trace")

	// 2 ----- evaluate constraints and build the constraint polynomial
	evaluator, err := NewEvaluator(traceRoot, table.Layout(), table.Length(),
		trace.ProgramHash, inputs, outputs)
	if err != nil {
		return nil, err
	}
	constraintTable, err := NewConstraintTable(table, evaluator)
	if err != nil {
		return nil, err
	}
	cPoly, err := constraintTable.CombinePolys()
	if err != nil {
		return nil, err
	}
	if err := cPoly.Extend(table.DomainSize()); err != nil {
		return nil, err
	}
	constraintRoot, err := cPoly.Commit(hash)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("constraints", evaluator.TransitionConstraintCount()).
		Msg("committed constraint evaluations")

	// 3 ----- derive the DEEP point and build the composition polynomial
	channel := utils.NewChannel(hash, trace.ProgramHash, inputs, outputs)
	channel.AbsorbRoot(traceRoot)
	channel.AbsorbRoot(constraintRoot)
	z, cc := DrawZAndCoefficients(channel.State(), table.Width())

	deep, err := NewDeepValues(z, table, cPoly)
	if err != nil {
		return nil, err
	}
	evaluations, err := ComposeEvaluations(table, cPoly, deep, cc, evaluator)
	if err != nil {
		return nil, err
	}

	// 4 ----- run FRI over the composition evaluations
	ldeRoot, err := core.RootOfUnity(table.DomainSize())
	if err != nil {
		return nil, err
	}
	domain := core.PowerSeries(ldeRoot, table.DomainSize())
	friLayers, err := friReduce(evaluations, domain, hash)
	if err != nil {
		return nil, err
	}
	for _, root := range friRoots(friLayers) {
		channel.AbsorbRoot(root)
	}

	remainder := friLayers[len(friLayers)-1]
	channel.Absorb(serializeRemainder(remainder))

	// 5 ----- grind the proof-of-work nonce and sample query positions
	nonce := channel.Grind(options.GrindingFactor)
	positions, err := channel.DrawQueryPositions(options.NumQueries, table.DomainSize(), options.ExtensionFactor)
	if err != nil {
		return nil, err
	}
	log.Debug().Uint64("nonce", nonce).Int("queries", len(positions)).
		Msg("sampled query positions")

	// 6 ----- open the committed trees at the sampled positions
	traceRows := make([][]core.Element, len(positions))
	for i, p := range positions {
		traceRows[i] = table.LdeRow(p)
	}
	traceProof, err := table.Tree().ProveBatch(positions)
	if err != nil {
		return nil, err
	}

	cPositions := ConstraintPositions(positions)
	constraintLeaves := make([][]core.Element, len(cPositions))
	for i, p := range cPositions {
		leaf := make([]core.Element, ConstraintLeafSpan)
		for j := 0; j < ConstraintLeafSpan; j++ {
			leaf[j] = cPoly.Evaluations()[p*ConstraintLeafSpan+j]
		}
		constraintLeaves[i] = leaf
	}
	constraintProof, err := cPoly.Tree().ProveBatch(cPositions)
	if err != nil {
		return nil, err
	}

	friProof, err := friBuildProof(friLayers, positions)
	if err != nil {
		return nil, err
	}

	proof := &StarkProof{
		Options:          options,
		TraceLength:      table.Length(),
		Layout:           table.Layout(),
		PublicInputs:     inputs,
		PublicOutputs:    outputs,
		TraceRoot:        traceRoot,
		ConstraintRoot:   constraintRoot,
		TraceRows:        traceRows,
		TraceProof:       traceProof,
		ConstraintLeaves: constraintLeaves,
		ConstraintProof:  constraintProof,
		Fri:              friProof,
		Deep:             deep,
		PowNonce:         nonce,
	}
	return proof.Serialize()
}

// checkBoundaries validates the boundary rows of a trace against the
// declared public values before any expensive work happens.
func checkBoundaries(trace *vm.ExecutionTrace, inputs, outputs []core.Element) error {
	if len(inputs) > vm.MaxPublicInputs {
		return fmt.Errorf("too many public inputs: %d", len(inputs))
	}
	if len(outputs) > vm.MaxOutputs {
		return fmt.Errorf("too many public outputs: %d", len(outputs))
	}

	for i := range trace.Sponge {
		if !trace.Sponge[i][0].IsZero() {
			return fmt.Errorf("sponge register %d is not zero at the first step", i)
		}
	}
	for i := 0; i < len(trace.Stack)-1; i++ {
		expected := core.Zero
		if i < len(inputs) {
			expected = inputs[i]
		}
		if !trace.Stack[i+1][0].Equal(expected) {
			return fmt.Errorf("stack register %d does not match the public inputs", i)
		}
	}

	last := trace.Length() - 1
	if !trace.Sponge[0][last].Equal(trace.ProgramHash) {
		return fmt.Errorf("sponge does not converge to the program hash")
	}
	for i := range outputs {
		if !trace.Stack[i+1][last].Equal(outputs[i]) {
			return fmt.Errorf("stack register %d does not match the public outputs", i)
		}
	}
	return nil
}

func serializeRemainder(layer *friLayerTree) []byte {
	m := len(layer.rows)
	out := make([]byte, 0, m*4*core.ElementSize)
	values := make([]core.Element, m*4)
	for i, row := range layer.rows {
		for t := 0; t < 4; t++ {
			values[i+t*m] = row[t]
		}
	}
	for _, v := range values {
		out = append(out, v.Bytes()...)
	}
	return out
}
