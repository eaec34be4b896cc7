package protocols

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
	"github.com/distaffvm/distaff-vm/internal/distaff-vm/vm"
)

func TestTraceTablePipeline(t *testing.T) {
	trace := executeForTest(t, "push.3 push.5 add", nil, nil, nil)
	table, err := NewTraceTable(trace)
	require.NoError(t, err)
	require.Equal(t, 32, table.Length())

	require.NoError(t, table.Interpolate())

	// trace polynomials evaluate back to the original register values
	root, err := core.RootOfUnity(table.Length())
	require.NoError(t, err)
	for row := 0; row < table.Length(); row += 7 {
		x := root.ExpUint(uint64(row))
		values := table.EvalPolysAt(x)
		state, err := table.State(row)
		require.NoError(t, err)
		for i, v := range state.Registers() {
			require.True(t, values[i].Equal(v), "row %d, register %d", row, i)
		}
	}

	require.NoError(t, table.Extend(16))
	require.Equal(t, 512, table.DomainSize())

	// the extension agrees with the trace on the embedded trace domain
	for row := 0; row < table.Length(); row += 5 {
		state, err := table.State(row)
		require.NoError(t, err)
		ldeState, err := table.LdeState(row * 16)
		require.NoError(t, err)
		for i := range state.Registers() {
			require.True(t, state.Registers()[i].Equal(ldeState.Registers()[i]),
				"row %d, register %d", row, i)
		}
	}

	hash, err := core.Blake3_256.Func()
	require.NoError(t, err)
	traceRoot, err := table.Commit(hash)
	require.NoError(t, err)

	// committed leaves open correctly
	positions := []int{1, 17, 100, 511}
	proof, err := table.Tree().ProveBatch(positions)
	require.NoError(t, err)
	leaves := make([][]byte, len(positions))
	for i, p := range positions {
		leaves[i] = SerializeStateRow(table.LdeRow(p))
	}
	require.True(t, core.VerifyBatch(traceRoot, positions, leaves, proof, hash))
}

func TestConstraintTableDetectsValidTrace(t *testing.T) {
	trace := executeForTest(t, "push.1 while.true push.0 end", nil, nil, nil)
	table, err := NewTraceTable(trace)
	require.NoError(t, err)
	require.NoError(t, table.Interpolate())
	require.NoError(t, table.Extend(16))

	hash, err := core.Blake3_256.Func()
	require.NoError(t, err)
	traceRoot, err := table.Commit(hash)
	require.NoError(t, err)

	evaluator, err := NewEvaluator(traceRoot, table.Layout(), table.Length(),
		trace.ProgramHash, nil, trace.StackOutputs(1))
	require.NoError(t, err)

	// a valid trace satisfies every transition constraint on the trace
	// domain; NewConstraintTable enforces this internally
	_, err = NewConstraintTable(table, evaluator)
	require.NoError(t, err)
}

func TestConstraintPolyOpensConsistently(t *testing.T) {
	trace := executeForTest(t, "push.3 push.5 add", nil, nil, nil)
	table, err := NewTraceTable(trace)
	require.NoError(t, err)
	require.NoError(t, table.Interpolate())
	require.NoError(t, table.Extend(16))

	hash, err := core.Blake3_256.Func()
	require.NoError(t, err)
	traceRoot, err := table.Commit(hash)
	require.NoError(t, err)

	evaluator, err := NewEvaluator(traceRoot, table.Layout(), table.Length(),
		trace.ProgramHash, nil, trace.StackOutputs(1))
	require.NoError(t, err)
	constraintTable, err := NewConstraintTable(table, evaluator)
	require.NoError(t, err)
	cPoly, err := constraintTable.CombinePolys()
	require.NoError(t, err)
	require.NoError(t, cPoly.Extend(table.DomainSize()))

	// the constraint value recomputed from trace states at an arbitrary
	// point must match the combined polynomial evaluated there
	z := core.NewElementFromString("987654321987654321987654321987654321")
	traceRootOfUnity, err := core.RootOfUnity(table.Length())
	require.NoError(t, err)

	stateZ1, err := traceStateAt(table, z)
	require.NoError(t, err)
	stateZ2, err := traceStateAt(table, z.Mul(traceRootOfUnity))
	require.NoError(t, err)

	fromStates, err := evaluator.EvaluateConstraintsAt(stateZ1, stateZ2, z)
	require.NoError(t, err)
	require.True(t, fromStates.Equal(cPoly.EvalAt(z)),
		"constraint evaluations must be consistent between prover and verifier")
}

func traceStateAt(table *TraceTable, x core.Element) (*vm.TraceState, error) {
	return vm.NewTraceState(table.EvalPolysAt(x), table.Layout())
}

func TestTraceTableValidation(t *testing.T) {
	trace := executeForTest(t, "push.3 push.5 add", nil, nil, nil)

	// chop one row off a register column to break the shape
	trace.Sponge[0] = trace.Sponge[0][:31]
	_, err := NewTraceTable(trace)
	require.Error(t, err)
}
