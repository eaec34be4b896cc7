package protocols

import (
	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
	"github.com/distaffvm/distaff-vm/internal/distaff-vm/vm"
)

// Stack transition constraints. The first result slot aggregates auxiliary
// checks (assertions, binary conditions, comparison flags); the remaining
// slots follow the user stack registers.

var stackHeadDegrees = []int{
	7,                // aux constraints
	8, 8, 8, 8, 8, 8, // the first 6 user stack registers, which HASHR touches
}

const stackRestDegree = 6

// CMP stack layout, top first.
const (
	cmpPow2Idx = 0
	cmpXBitIdx = 1
	cmpYBitIdx = 2
	cmpGtIdx   = 3
	cmpLtIdx   = 4
	cmpYAccIdx = 5
	cmpXAccIdx = 6
)

type stackEvaluator struct {
	width   int
	degrees []int
}

func newStackEvaluator(layout vm.TraceLayout) *stackEvaluator {
	degrees := append([]int(nil), stackHeadDegrees...)
	for len(degrees) < layout.UserStackWidth+1 {
		degrees = append(degrees, stackRestDegree)
	}
	degrees = degrees[:layout.UserStackWidth+1]
	return &stackEvaluator{width: layout.UserStackWidth, degrees: degrees}
}

func (s *stackEvaluator) constraintCount() int {
	return len(s.degrees)
}

func (s *stackEvaluator) constraintDegrees() []int {
	return s.degrees
}

// evaluate writes the aux constraint into result[0] and one constraint per
// user stack register into result[1:]. ark6 holds the HASHR round constants
// resolved at the evaluation point.
func (s *stackEvaluator) evaluate(current, next *vm.TraceState, ark6 []core.Element, result []core.Element) {
	ld := current.LdOpFlags()
	hd := current.HdOpFlags()
	aux := current.Aux()
	cur := current.UserStack()
	nxt := next.UserStack()

	evals := make([]core.Element, s.width)
	auxResult := core.Zero
	agg := func(v core.Element) { auxResult = auxResult.Add(v) }

	// no-op and flow-op rows keep the stack frozen
	enforceNoChange(evals, cur, nxt, ld[vm.OpNoop])

	// assertions
	agg(enforceAssert(evals, cur, nxt, ld[vm.OpAssert]))
	agg(enforceAssertEq(evals, cur, nxt, ld[vm.OpAssertEq]))

	// input operations: READ and PUSH shift the stack right by one with an
	// unconstrained top; READ2 shifts by two
	enforceShiftRight(evals, cur, nxt, 1, ld[vm.OpRead])
	enforceShiftRight(evals, cur, nxt, 1, hd[1])
	enforceShiftRight(evals, cur, nxt, 2, ld[vm.OpRead2])

	// stack manipulation
	enforceDup(evals, cur, nxt, 1, ld[vm.OpDup])
	enforceDup(evals, cur, nxt, 2, ld[vm.OpDup2])
	enforceDup(evals, cur, nxt, 4, ld[vm.OpDup4])
	enforcePad2(evals, cur, nxt, ld[vm.OpPad2])
	enforceShiftLeft(evals, cur, nxt, 1, ld[vm.OpDrop])
	enforceShiftLeft(evals, cur, nxt, 4, ld[vm.OpDrop4])
	enforceSwap(evals, cur, nxt, ld[vm.OpSwap])
	enforceSwap2(evals, cur, nxt, ld[vm.OpSwap2])
	enforceSwap4(evals, cur, nxt, ld[vm.OpSwap4])
	enforceRoll4(evals, cur, nxt, ld[vm.OpRoll4])
	enforceRoll8(evals, cur, nxt, ld[vm.OpRoll8])

	// arithmetic and boolean operations
	enforceAdd(evals, cur, nxt, ld[vm.OpAdd])
	enforceMul(evals, cur, nxt, ld[vm.OpMul])
	agg(enforceAnd(evals, cur, nxt, ld[vm.OpAnd]))
	agg(enforceOr(evals, cur, nxt, ld[vm.OpOr]))
	enforceInv(evals, cur, nxt, ld[vm.OpInv])
	enforceNeg(evals, cur, nxt, ld[vm.OpNeg])
	agg(enforceNot(evals, cur, nxt, ld[vm.OpNot]))

	// comparisons
	agg(enforceEq(evals, cur, nxt, aux, ld[vm.OpEq]))
	agg(enforceBinAcc(evals, cur, nxt, aux, ld[vm.OpBinAcc]))
	agg(enforceCmp(evals, cur, nxt, aux, hd[2]))

	// conditional selection
	agg(enforceChoose(evals, cur, nxt, ld[vm.OpChoose]))
	agg(enforceChoose2(evals, cur, nxt, ld[vm.OpChoose2]))

	// hashing
	enforceHashR(evals, cur, nxt, ark6, hd[3])

	result[0] = auxResult
	copy(result[1:], evals)
}

// helper enforcement functions; every function aggregates its contribution
// multiplied by the operation flag

func enforceNoChange(result, cur, nxt []core.Element, flag core.Element) {
	for i := range result {
		result[i] = result[i].Add(flag.Mul(nxt[i].Sub(cur[i])))
	}
}

// enforceShiftLeft ties next[i] to cur[i+shift]; the vacated tail registers
// are unconstrained.
func enforceShiftLeft(result, cur, nxt []core.Element, shift int, flag core.Element) {
	for i := 0; i < len(result)-shift; i++ {
		result[i] = result[i].Add(flag.Mul(nxt[i].Sub(cur[i+shift])))
	}
}

// enforceShiftRight ties next[i] to cur[i-shift]; the new top registers are
// unconstrained.
func enforceShiftRight(result, cur, nxt []core.Element, shift int, flag core.Element) {
	for i := shift; i < len(result); i++ {
		result[i] = result[i].Add(flag.Mul(nxt[i].Sub(cur[i-shift])))
	}
}

func enforceAssert(result, cur, nxt []core.Element, flag core.Element) core.Element {
	enforceShiftLeft(result, cur, nxt, 1, flag)
	return flag.Mul(core.One.Sub(cur[0]))
}

func enforceAssertEq(result, cur, nxt []core.Element, flag core.Element) core.Element {
	enforceShiftLeft(result, cur, nxt, 2, flag)
	return flag.Mul(cur[0].Sub(cur[1]))
}

func enforceDup(result, cur, nxt []core.Element, count int, flag core.Element) {
	for i := 0; i < count; i++ {
		result[i] = result[i].Add(flag.Mul(nxt[i].Sub(cur[i])))
	}
	enforceShiftRight(result, cur, nxt, count, flag)
}

func enforcePad2(result, cur, nxt []core.Element, flag core.Element) {
	result[0] = result[0].Add(flag.Mul(nxt[0]))
	result[1] = result[1].Add(flag.Mul(nxt[1]))
	enforceShiftRight(result, cur, nxt, 2, flag)
}

func enforceSwap(result, cur, nxt []core.Element, flag core.Element) {
	result[0] = result[0].Add(flag.Mul(nxt[0].Sub(cur[1])))
	result[1] = result[1].Add(flag.Mul(nxt[1].Sub(cur[0])))
	for i := 2; i < len(result); i++ {
		result[i] = result[i].Add(flag.Mul(nxt[i].Sub(cur[i])))
	}
}

func enforceSwap2(result, cur, nxt []core.Element, flag core.Element) {
	result[0] = result[0].Add(flag.Mul(nxt[0].Sub(cur[2])))
	result[1] = result[1].Add(flag.Mul(nxt[1].Sub(cur[3])))
	result[2] = result[2].Add(flag.Mul(nxt[2].Sub(cur[0])))
	result[3] = result[3].Add(flag.Mul(nxt[3].Sub(cur[1])))
	for i := 4; i < len(result); i++ {
		result[i] = result[i].Add(flag.Mul(nxt[i].Sub(cur[i])))
	}
}

func enforceSwap4(result, cur, nxt []core.Element, flag core.Element) {
	for i := 0; i < 4; i++ {
		result[i] = result[i].Add(flag.Mul(nxt[i].Sub(cur[i+4])))
		result[i+4] = result[i+4].Add(flag.Mul(nxt[i+4].Sub(cur[i])))
	}
	for i := 8; i < len(result); i++ {
		result[i] = result[i].Add(flag.Mul(nxt[i].Sub(cur[i])))
	}
}

func enforceRoll4(result, cur, nxt []core.Element, flag core.Element) {
	result[0] = result[0].Add(flag.Mul(nxt[0].Sub(cur[3])))
	for i := 1; i < 4; i++ {
		result[i] = result[i].Add(flag.Mul(nxt[i].Sub(cur[i-1])))
	}
	for i := 4; i < len(result); i++ {
		result[i] = result[i].Add(flag.Mul(nxt[i].Sub(cur[i])))
	}
}

func enforceRoll8(result, cur, nxt []core.Element, flag core.Element) {
	result[0] = result[0].Add(flag.Mul(nxt[0].Sub(cur[7])))
	for i := 1; i < 8; i++ {
		result[i] = result[i].Add(flag.Mul(nxt[i].Sub(cur[i-1])))
	}
	for i := 8; i < len(result); i++ {
		result[i] = result[i].Add(flag.Mul(nxt[i].Sub(cur[i])))
	}
}

func enforceAdd(result, cur, nxt []core.Element, flag core.Element) {
	result[0] = result[0].Add(flag.Mul(nxt[0].Sub(cur[0].Add(cur[1]))))
	enforceShiftLeft(result[1:], cur[1:], nxt[1:], 1, flag)
}

func enforceMul(result, cur, nxt []core.Element, flag core.Element) {
	result[0] = result[0].Add(flag.Mul(nxt[0].Sub(cur[0].Mul(cur[1]))))
	enforceShiftLeft(result[1:], cur[1:], nxt[1:], 1, flag)
}

func enforceAnd(result, cur, nxt []core.Element, flag core.Element) core.Element {
	result[0] = result[0].Add(flag.Mul(nxt[0].Sub(cur[0].Mul(cur[1]))))
	enforceShiftLeft(result[1:], cur[1:], nxt[1:], 1, flag)
	return flag.Mul(isBinary(cur[0]).Add(isBinary(cur[1])))
}

func enforceOr(result, cur, nxt []core.Element, flag core.Element) core.Element {
	or := cur[0].Add(cur[1]).Sub(cur[0].Mul(cur[1]))
	result[0] = result[0].Add(flag.Mul(nxt[0].Sub(or)))
	enforceShiftLeft(result[1:], cur[1:], nxt[1:], 1, flag)
	return flag.Mul(isBinary(cur[0]).Add(isBinary(cur[1])))
}

func enforceInv(result, cur, nxt []core.Element, flag core.Element) {
	result[0] = result[0].Add(flag.Mul(cur[0].Mul(nxt[0]).Sub(core.One)))
	for i := 1; i < len(result); i++ {
		result[i] = result[i].Add(flag.Mul(nxt[i].Sub(cur[i])))
	}
}

func enforceNeg(result, cur, nxt []core.Element, flag core.Element) {
	result[0] = result[0].Add(flag.Mul(nxt[0].Add(cur[0])))
	for i := 1; i < len(result); i++ {
		result[i] = result[i].Add(flag.Mul(nxt[i].Sub(cur[i])))
	}
}

func enforceNot(result, cur, nxt []core.Element, flag core.Element) core.Element {
	result[0] = result[0].Add(flag.Mul(nxt[0].Sub(core.One.Sub(cur[0]))))
	for i := 1; i < len(result); i++ {
		result[i] = result[i].Add(flag.Mul(nxt[i].Sub(cur[i])))
	}
	return flag.Mul(isBinary(cur[0]))
}

// enforceEq checks that the stack top becomes 1 when the two top values are
// equal and 0 otherwise; the aux register carries the inverse of their
// difference.
func enforceEq(result, cur, nxt []core.Element, aux, flag core.Element) core.Element {
	diff := cur[0].Sub(cur[1])
	opResult := core.One.Sub(diff.Mul(aux))
	result[0] = result[0].Add(flag.Mul(nxt[0].Sub(opResult)))
	enforceShiftLeft(result[1:], cur[1:], nxt[1:], 1, flag)
	return flag.Mul(nxt[0].Mul(diff))
}

// enforceBinAcc folds one secret bit (carried in the aux register) into a
// binary accumulator: [pow2, acc, ...].
func enforceBinAcc(result, cur, nxt []core.Element, aux, flag core.Element) core.Element {
	result[0] = result[0].Add(flag.Mul(nxt[0].Mul(core.NewElement(2)).Sub(cur[0])))
	acc := cur[1].Add(aux.Mul(cur[0]))
	result[1] = result[1].Add(flag.Mul(nxt[1].Sub(acc)))
	for i := 2; i < len(result); i++ {
		result[i] = result[i].Add(flag.Mul(nxt[i].Sub(cur[i])))
	}
	return flag.Mul(isBinary(aux))
}

// enforceCmp checks one step of the bitwise comparison of two values; the
// aux register carries the not-set flag derived from the gt/lt trackers.
func enforceCmp(result, cur, nxt []core.Element, aux, flag core.Element) core.Element {
	xBit := nxt[cmpXBitIdx]
	yBit := nxt[cmpYBitIdx]
	result[cmpXBitIdx] = result[cmpXBitIdx].Add(flag.Mul(isBinary(xBit)))
	result[cmpYBitIdx] = result[cmpYBitIdx].Add(flag.Mul(isBinary(yBit)))

	bitGt := xBit.Mul(core.One.Sub(yBit))
	bitLt := yBit.Mul(core.One.Sub(xBit))
	gt := cur[cmpGtIdx].Add(bitGt.Mul(aux))
	lt := cur[cmpLtIdx].Add(bitLt.Mul(aux))
	result[cmpGtIdx] = result[cmpGtIdx].Add(flag.Mul(nxt[cmpGtIdx].Sub(gt)))
	result[cmpLtIdx] = result[cmpLtIdx].Add(flag.Mul(nxt[cmpLtIdx].Sub(lt)))

	pow2 := cur[cmpPow2Idx]
	yAcc := cur[cmpYAccIdx].Add(yBit.Mul(pow2))
	xAcc := cur[cmpXAccIdx].Add(xBit.Mul(pow2))
	result[cmpYAccIdx] = result[cmpYAccIdx].Add(flag.Mul(nxt[cmpYAccIdx].Sub(yAcc)))
	result[cmpXAccIdx] = result[cmpXAccIdx].Add(flag.Mul(nxt[cmpXAccIdx].Sub(xAcc)))

	result[cmpPow2Idx] = result[cmpPow2Idx].Add(flag.Mul(nxt[cmpPow2Idx].Mul(core.NewElement(2)).Sub(pow2)))

	for i := cmpXAccIdx + 1; i < len(result); i++ {
		result[i] = result[i].Add(flag.Mul(nxt[i].Sub(cur[i])))
	}

	notSet := core.One.Sub(cur[cmpLtIdx]).Mul(core.One.Sub(cur[cmpGtIdx]))
	return flag.Mul(aux.Sub(notSet))
}

func enforceChoose(result, cur, nxt []core.Element, flag core.Element) core.Element {
	cond := cur[2]
	selected := cond.Mul(cur[0]).Add(core.One.Sub(cond).Mul(cur[1]))
	result[0] = result[0].Add(flag.Mul(nxt[0].Sub(selected)))
	enforceShiftLeft(result[1:], cur[1:], nxt[1:], 2, flag)
	return flag.Mul(isBinary(cond))
}

func enforceChoose2(result, cur, nxt []core.Element, flag core.Element) core.Element {
	cond := cur[4]
	notCond := core.One.Sub(cond)
	result[0] = result[0].Add(flag.Mul(nxt[0].Sub(cond.Mul(cur[0]).Add(notCond.Mul(cur[2])))))
	result[1] = result[1].Add(flag.Mul(nxt[1].Sub(cond.Mul(cur[1]).Add(notCond.Mul(cur[3])))))
	enforceShiftLeft(result[2:], cur[2:], nxt[2:], 4, flag)
	return flag.Mul(isBinary(cond))
}

// enforceHashR checks one width-6 Rescue round over the first 6 user stack
// registers by meeting the half-rounds in the middle.
func enforceHashR(result, cur, nxt []core.Element, ark6 []core.Element, flag core.Element) {
	fwd := make([]core.Element, core.HashStateWidth)
	copy(fwd, cur[:core.HashStateWidth])
	for i := 0; i < core.HashStateWidth; i++ {
		fwd[i] = fwd[i].Add(ark6[i])
	}
	core.ApplySbox(fwd)
	core.ApplyMds6(fwd)

	bwd := make([]core.Element, core.HashStateWidth)
	copy(bwd, nxt[:core.HashStateWidth])
	core.ApplyInvMds6(bwd)
	core.ApplySbox(bwd)
	for i := 0; i < core.HashStateWidth; i++ {
		bwd[i] = bwd[i].Sub(ark6[core.HashStateWidth+i])
	}

	for i := 0; i < core.HashStateWidth; i++ {
		result[i] = result[i].Add(flag.Mul(fwd[i].Sub(bwd[i])))
	}
	for i := core.HashStateWidth; i < len(result); i++ {
		result[i] = result[i].Add(flag.Mul(nxt[i].Sub(cur[i])))
	}
}
