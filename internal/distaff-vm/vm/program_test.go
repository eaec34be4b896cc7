package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
)

func mustSpan(t *testing.T, ops []UserOp, hints map[int]core.Element) *Span {
	t.Helper()
	span, err := NewSpan(ops, hints)
	require.NoError(t, err)
	return span
}

func TestSpanPadding(t *testing.T) {
	span := mustSpan(t, []UserOp{OpAdd}, nil)
	require.Len(t, span.Ops(), SpanLength)
	require.Equal(t, OpAdd, span.Ops()[0])
	for _, op := range span.Ops()[1:] {
		require.Equal(t, OpNoop, op)
	}

	_, err := NewSpan(nil, nil)
	require.Error(t, err)
	_, err = NewSpan(make([]UserOp, SpanLength+1), nil)
	require.Error(t, err)

	// PUSH without an operand hint is invalid
	_, err = NewSpan([]UserOp{OpPush}, nil)
	require.Error(t, err)
}

func TestProgramHashDeterminism(t *testing.T) {
	build := func(value uint64) *Program {
		span := mustSpan(t, []UserOp{OpPush, OpAdd}, map[int]core.Element{0: core.NewElement(value)})
		program, err := NewProgram([]Block{span})
		require.NoError(t, err)
		return program
	}

	require.True(t, build(5).Hash().Equal(build(5).Hash()))

	// changing a push operand changes the program hash
	require.False(t, build(5).Hash().Equal(build(6).Hash()))
}

func TestProgramHashDependsOnStructure(t *testing.T) {
	flat := mustSpan(t, []UserOp{OpNoop, OpAdd}, nil)
	flatProgram, err := NewProgram([]Block{flat})
	require.NoError(t, err)

	inner, err := NewGroup([]Block{mustSpan(t, []UserOp{OpNoop, OpAdd}, nil)})
	require.NoError(t, err)
	grouped, err := NewProgram([]Block{mustSpan(t, []UserOp{OpNoop}, nil), inner})
	require.NoError(t, err)

	require.False(t, flatProgram.Hash().Equal(grouped.Hash()),
		"wrapping code in a group must change the program hash")
}

func TestSwitchValidation(t *testing.T) {
	tBranch := []Block{mustSpan(t, []UserOp{OpAssert, OpAdd}, nil)}
	fBranch := []Block{mustSpan(t, []UserOp{OpNot, OpAssert}, nil)}

	_, err := NewSwitch(tBranch, fBranch)
	require.NoError(t, err)

	// the true branch must start with ASSERT
	_, err = NewSwitch([]Block{mustSpan(t, []UserOp{OpAdd}, nil)}, fBranch)
	require.Error(t, err)

	// the false branch must start with NOT ASSERT
	_, err = NewSwitch(tBranch, []Block{mustSpan(t, []UserOp{OpAssert}, nil)})
	require.Error(t, err)
}

func TestLoopValidation(t *testing.T) {
	body := []Block{mustSpan(t, []UserOp{OpAssert, OpAdd}, nil)}
	loop, err := NewLoop(body)
	require.NoError(t, err)

	// the skip branch is the canonical NOT ASSERT span
	skip := loop.Skip()
	require.Len(t, skip, 1)
	skipSpan := skip[0].(*Span)
	require.Equal(t, OpNot, skipSpan.Ops()[0])
	require.Equal(t, OpAssert, skipSpan.Ops()[1])

	_, err = NewLoop([]Block{mustSpan(t, []UserOp{OpAdd}, nil)})
	require.Error(t, err)
}

func TestBlockHashPairs(t *testing.T) {
	tBranch := []Block{mustSpan(t, []UserOp{OpAssert, OpAdd}, nil)}
	fBranch := []Block{mustSpan(t, []UserOp{OpNot, OpAssert}, nil)}
	sw, err := NewSwitch(tBranch, fBranch)
	require.NoError(t, err)

	v0, v1 := sw.Hash()
	require.False(t, v0.Equal(v1))
	require.True(t, v0.Equal(hashSeq(tBranch, false)))
	require.True(t, v1.Equal(hashSeq(fBranch, false)))

	group, err := NewGroup(tBranch)
	require.NoError(t, err)
	g0, g1 := group.Hash()
	require.True(t, g0.Equal(v0))
	require.True(t, g1.IsZero())
}

func TestOpcodeDecomposition(t *testing.T) {
	// composite value round-trips through the bit decomposition
	for _, op := range []UserOp{OpNoop, OpAssert, OpAdd, OpBinAcc, OpPush, OpCmp, OpHashR} {
		ld := op.LdBits()
		hd := op.HdBits()
		value := uint64(0)
		for i, bit := range ld {
			value += bit << i
		}
		for i, bit := range hd {
			value += bit << (NumLdOpBits + i)
		}
		require.Equal(t, uint64(op), value, "opcode %s", op)
	}

	require.True(t, OpPush.IsHighDegree())
	require.True(t, OpCmp.IsHighDegree())
	require.True(t, OpHashR.IsHighDegree())
	require.False(t, OpAdd.IsHighDegree())
}
