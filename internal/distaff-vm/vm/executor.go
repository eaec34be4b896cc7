package vm

import (
	"fmt"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
	"github.com/distaffvm/distaff-vm/internal/distaff-vm/utils"
)

// MinTraceLength is the minimum number of rows in an execution trace.
const MinTraceLength = 32

// MaxTraceLength bounds the number of rows in an execution trace.
const MaxTraceLength = 1 << 20

// MaxCtxDepth bounds the depth of the context stack.
const MaxCtxDepth = 16

// MaxLoopDepth bounds the depth of the loop stack.
const MaxLoopDepth = 8

// MinUserStackWidth is the smallest number of user stack registers recorded
// in a trace; CMP and HASHR need at least this many.
const MinUserStackWidth = 8

// MaxUserStackWidth bounds the number of user stack registers.
const MaxUserStackWidth = 31

// ExecutionTrace holds the register traces produced by executing a program,
// before padding-independent post-processing by the prover.
type ExecutionTrace struct {
	Sponge    [core.SpongeWidth][]core.Element
	CfBits    [NumCfOpBits][]core.Element
	LdBits    [NumLdOpBits][]core.Element
	HdBits    [NumHdOpBits][]core.Element
	CtxStack  [][]core.Element
	LoopStack [][]core.Element
	// Stack[0] is the aux register; Stack[1..] are the user stack registers.
	Stack [][]core.Element

	ProgramHash core.Element
}

// Length returns the number of rows in the trace.
func (t *ExecutionTrace) Length() int {
	return len(t.Sponge[0])
}

// Width returns the total number of registers in the trace.
func (t *ExecutionTrace) Width() int {
	return core.SpongeWidth + NumCfOpBits + NumLdOpBits + NumHdOpBits +
		len(t.CtxStack) + len(t.LoopStack) + len(t.Stack)
}

// Registers returns all register traces as a flat column-major matrix in
// canonical order: sponge, cf bits, ld bits, hd bits, context stack, loop
// stack, aux + user stack.
func (t *ExecutionTrace) Registers() [][]core.Element {
	result := make([][]core.Element, 0, t.Width())
	for i := range t.Sponge {
		result = append(result, t.Sponge[i])
	}
	for i := range t.CfBits {
		result = append(result, t.CfBits[i])
	}
	for i := range t.LdBits {
		result = append(result, t.LdBits[i])
	}
	for i := range t.HdBits {
		result = append(result, t.HdBits[i])
	}
	result = append(result, t.CtxStack...)
	result = append(result, t.LoopStack...)
	result = append(result, t.Stack...)
	return result
}

// StackOutputs returns the top `count` user stack values of the last row.
func (t *ExecutionTrace) StackOutputs(count int) []core.Element {
	last := t.Length() - 1
	result := make([]core.Element, count)
	for i := 0; i < count; i++ {
		if i+1 < len(t.Stack) {
			result[i] = t.Stack[i+1][last]
		}
	}
	return result
}

// executor drives one program execution and records register snapshots.
type executor struct {
	program *Program
	inputs  *ProgramInputs

	step   int
	sponge []core.Element
	ctx    []core.Element
	loop   []core.Element
	stack  []core.Element // stack[0] is the top
	tapeA  int
	tapeB  int

	rows []rowSnapshot

	maxCtx   int
	maxLoop  int
	maxStack int
}

type rowSnapshot struct {
	sponge []core.Element
	cf     FlowOp
	user   UserOp
	ctx    []core.Element
	loop   []core.Element
	aux    core.Element
	stack  []core.Element
}

// ExecuteProgram runs a program against the provided inputs and returns the
// register traces padded to a power-of-two length.
func ExecuteProgram(program *Program, inputs *ProgramInputs) (*ExecutionTrace, error) {
	e := &executor{
		program: program,
		inputs:  inputs,
		sponge:  make([]core.Element, core.SpongeWidth),
		stack:   append([]core.Element(nil), inputs.PublicInputs()...),
	}
	e.maxStack = len(e.stack)

	if err := e.traverseBranch(program.Root().Body(), core.Zero, true, true); err != nil {
		return nil, err
	}

	return e.buildTrace(program.Hash())
}

// traverseBranch executes a block sequence framed by BEGIN and TEND/FEND.
// The root sequence skips BEGIN; its parent accumulator is zero.
func (e *executor) traverseBranch(body []Block, siblingHash core.Element, isTrueBranch, skipBegin bool) error {
	if !skipBegin {
		if err := e.execBegin(); err != nil {
			return err
		}
	}

	if err := e.traverse(body[0]); err != nil {
		return err
	}
	for _, block := range body[1:] {
		if _, ok := block.(*Span); ok {
			e.execNoop()
		}
		if err := e.traverse(block); err != nil {
			return err
		}
	}

	// alignment slot before the block end
	e.execNoop()

	if err := e.execEnd(siblingHash, isTrueBranch); err != nil {
		return err
	}
	for i := 0; i < core.AccNumRounds; i++ {
		e.execNoop()
	}
	return nil
}

func (e *executor) traverse(block Block) error {
	switch b := block.(type) {
	case *Span:
		for i, op := range b.Ops() {
			if err := e.execUserOp(op, b.Hint(i)); err != nil {
				return err
			}
		}
		return nil

	case *Group:
		return e.traverseBranch(b.Body(), core.Zero, true, false)

	case *Switch:
		cond, err := e.stackTop()
		if err != nil {
			return err
		}
		switch {
		case cond.IsOne():
			return e.traverseBranch(b.TrueBranch(), hashSeq(b.FalseBranch(), false), true, false)
		case cond.IsZero():
			return e.traverseBranch(b.FalseBranch(), hashSeq(b.TrueBranch(), false), false, false)
		default:
			return fmt.Errorf("cannot select a branch based on a non-binary condition %s", cond)
		}

	case *Loop:
		cond, err := e.stackTop()
		if err != nil {
			return err
		}
		switch {
		case cond.IsOne():
			return e.traverseLoop(b)
		case cond.IsZero():
			return e.traverseBranch(b.Skip(), b.BodyHash(), false, false)
		default:
			return fmt.Errorf("cannot enter a loop based on a non-binary condition %s", cond)
		}

	default:
		return fmt.Errorf("unknown block type %T", block)
	}
}

func (e *executor) traverseLoop(l *Loop) error {
	if err := e.execLoop(l.BodyHash()); err != nil {
		return err
	}

	for iteration := 0; ; iteration++ {
		if iteration >= MaxTraceLength {
			return fmt.Errorf("loop exceeded %d iterations", MaxTraceLength)
		}

		if err := e.traverse(l.Body()[0]); err != nil {
			return err
		}
		for _, block := range l.Body()[1:] {
			if _, ok := block.(*Span); ok {
				e.execNoop()
			}
			if err := e.traverse(block); err != nil {
				return err
			}
		}

		cond, err := e.stackTop()
		if err != nil {
			return err
		}
		switch {
		case cond.IsOne():
			if err := e.execWrap(l.BodyHash()); err != nil {
				return err
			}
		case cond.IsZero():
			if err := e.execBreak(l.BodyHash()); err != nil {
				return err
			}
			if err := e.execEnd(l.SkipHash(), true); err != nil {
				return err
			}
			for i := 0; i < core.AccNumRounds; i++ {
				e.execNoop()
			}
			return nil
		default:
			return fmt.Errorf("cannot exit a loop based on a non-binary condition %s", cond)
		}
	}
}

// flow operations

func (e *executor) execBegin() error {
	if e.step%BaseCycleLength != BaseCycleLength-1 {
		return fmt.Errorf("BEGIN is misaligned at step %d", e.step)
	}
	if len(e.ctx) >= MaxCtxDepth {
		return fmt.Errorf("context stack overflow at step %d", e.step)
	}
	e.record(OpBegin, OpNoop, core.Zero)
	e.ctx = append([]core.Element{e.sponge[0]}, e.ctx...)
	e.trackDepths()
	e.sponge = make([]core.Element, core.SpongeWidth)
	e.step++
	return nil
}

func (e *executor) execLoop(bodyImage core.Element) error {
	if e.step%BaseCycleLength != BaseCycleLength-1 {
		return fmt.Errorf("LOOP is misaligned at step %d", e.step)
	}
	if len(e.ctx) >= MaxCtxDepth {
		return fmt.Errorf("context stack overflow at step %d", e.step)
	}
	if len(e.loop) >= MaxLoopDepth {
		return fmt.Errorf("loop stack overflow at step %d", e.step)
	}
	e.record(OpLoop, OpNoop, core.Zero)
	e.ctx = append([]core.Element{e.sponge[0]}, e.ctx...)
	e.loop = append([]core.Element{bodyImage}, e.loop...)
	e.trackDepths()
	e.sponge = make([]core.Element, core.SpongeWidth)
	e.step++
	return nil
}

func (e *executor) execWrap(bodyImage core.Element) error {
	if e.step%BaseCycleLength != BaseCycleLength-1 {
		return fmt.Errorf("WRAP is misaligned at step %d", e.step)
	}
	if !e.sponge[0].Equal(bodyImage) {
		return fmt.Errorf("loop image mismatch at step %d", e.step)
	}
	e.record(OpWrap, OpNoop, core.Zero)
	e.sponge = make([]core.Element, core.SpongeWidth)
	e.step++
	return nil
}

func (e *executor) execBreak(bodyImage core.Element) error {
	if e.step%BaseCycleLength != BaseCycleLength-1 {
		return fmt.Errorf("BREAK is misaligned at step %d", e.step)
	}
	if !e.sponge[0].Equal(bodyImage) {
		return fmt.Errorf("loop image mismatch at step %d", e.step)
	}
	e.record(OpBreak, OpNoop, core.Zero)
	e.loop = e.loop[1:]
	e.step++
	return nil
}

func (e *executor) execEnd(siblingHash core.Element, isTrueBranch bool) error {
	if e.step%BaseCycleLength != 0 {
		return fmt.Errorf("block end is misaligned at step %d", e.step)
	}
	op := OpTend
	if !isTrueBranch {
		op = OpFend
	}
	e.record(op, OpNoop, core.Zero)

	var parent core.Element
	if len(e.ctx) > 0 {
		parent = e.ctx[0]
		e.ctx = e.ctx[1:]
	}
	blockHash := e.sponge[0]
	if isTrueBranch {
		e.sponge = []core.Element{blockHash, siblingHash, parent, core.Zero}
	} else {
		e.sponge = []core.Element{siblingHash, blockHash, parent, core.Zero}
	}
	e.step++
	return nil
}

// execNoop executes a NOOP under HACC: one sponge round with zero injection.
func (e *executor) execNoop() {
	e.record(OpHacc, OpNoop, core.Zero)
	core.HashOpsRound(e.sponge, core.Zero, core.Zero, e.step%BaseCycleLength)
	e.step++
}

// user operations

func (e *executor) execUserOp(op UserOp, hint core.Element) error {
	if op == OpHashR && e.step%BaseCycleLength >= core.HashRNumRounds {
		return fmt.Errorf("HASHR is misaligned at step %d", e.step)
	}

	aux, err := e.auxValue(op)
	if err != nil {
		return err
	}
	e.record(OpHacc, op, aux)

	opValue := core.Zero
	if op == OpPush {
		opValue = hint
	}
	core.HashOpsRound(e.sponge, core.NewElement(uint64(op)), opValue, e.step%BaseCycleLength)

	if err := e.applyStackOp(op, hint); err != nil {
		return fmt.Errorf("step %d (%s): %w", e.step, op, err)
	}
	e.trackDepths()
	e.step++
	return nil
}

// auxValue computes the aux register value recorded alongside an operation.
func (e *executor) auxValue(op UserOp) (core.Element, error) {
	switch op {
	case OpEq:
		if len(e.stack) < 2 {
			return core.Zero, fmt.Errorf("stack underflow in EQ")
		}
		diff := e.stack[0].Sub(e.stack[1])
		if diff.IsZero() {
			return core.One, nil
		}
		return diff.Inv(), nil
	case OpCmp:
		// not_set flag: 1 until either comparison tracker fires
		if len(e.stack) < 7 {
			return core.Zero, fmt.Errorf("stack underflow in CMP")
		}
		gt, lt := e.stack[cmpGtIdx], e.stack[cmpLtIdx]
		return core.One.Sub(lt).Mul(core.One.Sub(gt)), nil
	case OpBinAcc:
		if e.tapeA >= len(e.inputs.SecretA()) {
			return core.Zero, fmt.Errorf("secret tape A is exhausted")
		}
		return e.inputs.SecretA()[e.tapeA], nil
	default:
		return core.Zero, nil
	}
}

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

func (e *executor) applyStackOp(op UserOp, hint core.Element) error {
	switch op {
	case OpNoop:
		return nil

	case OpPush:
		e.push(hint)
		return nil

	case OpAssert:
		top, err := e.pop(1)
		if err != nil {
			return err
		}
		if !top[0].IsOne() {
			return fmt.Errorf("assertion failed: stack top is %s", top[0])
		}
		return nil

	case OpAssertEq:
		vals, err := e.pop(2)
		if err != nil {
			return err
		}
		if !vals[0].Equal(vals[1]) {
			return fmt.Errorf("equality assertion failed: %s != %s", vals[0], vals[1])
		}
		return nil

	case OpDrop:
		_, err := e.pop(1)
		return err

	case OpDrop4:
		_, err := e.pop(4)
		return err

	case OpRead:
		if e.tapeA >= len(e.inputs.SecretA()) {
			return fmt.Errorf("secret tape A is exhausted")
		}
		e.push(e.inputs.SecretA()[e.tapeA])
		e.tapeA++
		return nil

	case OpRead2:
		if e.tapeA >= len(e.inputs.SecretA()) {
			return fmt.Errorf("secret tape A is exhausted")
		}
		if e.tapeB >= len(e.inputs.SecretB()) {
			return fmt.Errorf("secret tape B is exhausted")
		}
		e.push(e.inputs.SecretB()[e.tapeB])
		e.push(e.inputs.SecretA()[e.tapeA])
		e.tapeA++
		e.tapeB++
		return nil

	case OpDup:
		if len(e.stack) < 1 {
			return fmt.Errorf("stack underflow")
		}
		e.push(e.stack[0])
		return nil

	case OpDup2:
		if len(e.stack) < 2 {
			return fmt.Errorf("stack underflow")
		}
		a, b := e.stack[0], e.stack[1]
		e.push(b)
		e.push(a)
		return nil

	case OpDup4:
		if len(e.stack) < 4 {
			return fmt.Errorf("stack underflow")
		}
		for i := 3; i >= 0; i-- {
			e.push(e.stack[3])
		}
		return nil

	case OpPad2:
		e.push(core.Zero)
		e.push(core.Zero)
		return nil

	case OpSwap:
		if len(e.stack) < 2 {
			return fmt.Errorf("stack underflow")
		}
		e.stack[0], e.stack[1] = e.stack[1], e.stack[0]
		return nil

	case OpSwap2:
		if len(e.stack) < 4 {
			return fmt.Errorf("stack underflow")
		}
		e.stack[0], e.stack[1], e.stack[2], e.stack[3] = e.stack[2], e.stack[3], e.stack[0], e.stack[1]
		return nil

	case OpSwap4:
		if len(e.stack) < 8 {
			return fmt.Errorf("stack underflow")
		}
		for i := 0; i < 4; i++ {
			e.stack[i], e.stack[i+4] = e.stack[i+4], e.stack[i]
		}
		return nil

	case OpRoll4:
		if len(e.stack) < 4 {
			return fmt.Errorf("stack underflow")
		}
		e.stack[0], e.stack[1], e.stack[2], e.stack[3] = e.stack[3], e.stack[0], e.stack[1], e.stack[2]
		return nil

	case OpRoll8:
		if len(e.stack) < 8 {
			return fmt.Errorf("stack underflow")
		}
		last := e.stack[7]
		copy(e.stack[1:8], e.stack[0:7])
		e.stack[0] = last
		return nil

	case OpChoose:
		vals, err := e.pop(3)
		if err != nil {
			return err
		}
		x, y, cond := vals[0], vals[1], vals[2]
		switch {
		case cond.IsOne():
			e.push(x)
		case cond.IsZero():
			e.push(y)
		default:
			return fmt.Errorf("selection condition %s is not binary", cond)
		}
		return nil

	case OpChoose2:
		vals, err := e.pop(6)
		if err != nil {
			return err
		}
		x0, x1, y0, y1, cond := vals[0], vals[1], vals[2], vals[3], vals[4]
		switch {
		case cond.IsOne():
			e.push(x1)
			e.push(x0)
		case cond.IsZero():
			e.push(y1)
			e.push(y0)
		default:
			return fmt.Errorf("selection condition %s is not binary", cond)
		}
		return nil

	case OpAdd:
		vals, err := e.pop(2)
		if err != nil {
			return err
		}
		e.push(vals[0].Add(vals[1]))
		return nil

	case OpMul:
		vals, err := e.pop(2)
		if err != nil {
			return err
		}
		e.push(vals[0].Mul(vals[1]))
		return nil

	case OpAnd:
		vals, err := e.pop(2)
		if err != nil {
			return err
		}
		if err := requireBinary(vals...); err != nil {
			return err
		}
		e.push(vals[0].Mul(vals[1]))
		return nil

	case OpOr:
		vals, err := e.pop(2)
		if err != nil {
			return err
		}
		if err := requireBinary(vals...); err != nil {
			return err
		}
		e.push(vals[0].Add(vals[1]).Sub(vals[0].Mul(vals[1])))
		return nil

	case OpInv:
		if len(e.stack) < 1 {
			return fmt.Errorf("stack underflow")
		}
		if e.stack[0].IsZero() {
			return fmt.Errorf("cannot invert zero")
		}
		e.stack[0] = e.stack[0].Inv()
		return nil

	case OpNeg:
		if len(e.stack) < 1 {
			return fmt.Errorf("stack underflow")
		}
		e.stack[0] = e.stack[0].Neg()
		return nil

	case OpNot:
		if len(e.stack) < 1 {
			return fmt.Errorf("stack underflow")
		}
		if err := requireBinary(e.stack[0]); err != nil {
			return err
		}
		e.stack[0] = core.One.Sub(e.stack[0])
		return nil

	case OpEq:
		vals, err := e.pop(2)
		if err != nil {
			return err
		}
		if vals[0].Equal(vals[1]) {
			e.push(core.One)
		} else {
			e.push(core.Zero)
		}
		return nil

	case OpBinAcc:
		if len(e.stack) < 2 {
			return fmt.Errorf("stack underflow")
		}
		bit := e.inputs.SecretA()[e.tapeA]
		e.tapeA++
		if err := requireBinary(bit); err != nil {
			return err
		}
		pow2 := e.stack[0]
		e.stack[1] = e.stack[1].Add(bit.Mul(pow2))
		e.stack[0] = pow2.Div(core.NewElement(2))
		return nil

	case OpCmp:
		if len(e.stack) < 7 {
			return fmt.Errorf("stack underflow")
		}
		if e.tapeA >= len(e.inputs.SecretA()) {
			return fmt.Errorf("secret tape A is exhausted")
		}
		if e.tapeB >= len(e.inputs.SecretB()) {
			return fmt.Errorf("secret tape B is exhausted")
		}
		xBit := e.inputs.SecretA()[e.tapeA]
		yBit := e.inputs.SecretB()[e.tapeB]
		e.tapeA++
		e.tapeB++
		if err := requireBinary(xBit, yBit); err != nil {
			return err
		}

		pow2 := e.stack[cmpPow2Idx]
		gt, lt := e.stack[cmpGtIdx], e.stack[cmpLtIdx]
		notSet := core.One.Sub(lt).Mul(core.One.Sub(gt))

		bitGt := xBit.Mul(core.One.Sub(yBit))
		bitLt := yBit.Mul(core.One.Sub(xBit))

		e.stack[cmpXBitIdx] = xBit
		e.stack[cmpYBitIdx] = yBit
		e.stack[cmpGtIdx] = gt.Add(bitGt.Mul(notSet))
		e.stack[cmpLtIdx] = lt.Add(bitLt.Mul(notSet))
		e.stack[cmpYAccIdx] = e.stack[cmpYAccIdx].Add(yBit.Mul(pow2))
		e.stack[cmpXAccIdx] = e.stack[cmpXAccIdx].Add(xBit.Mul(pow2))
		e.stack[cmpPow2Idx] = pow2.Div(core.NewElement(2))
		return nil

	case OpHashR:
		if len(e.stack) < core.HashStateWidth {
			return fmt.Errorf("stack underflow")
		}
		core.HashRRound(e.stack[:core.HashStateWidth], e.step%BaseCycleLength)
		return nil

	default:
		return fmt.Errorf("operation is not supported")
	}
}

// bookkeeping

func (e *executor) push(v core.Element) {
	e.stack = append([]core.Element{v}, e.stack...)
}

func (e *executor) pop(count int) ([]core.Element, error) {
	if len(e.stack) < count {
		return nil, fmt.Errorf("stack underflow: need %d values, have %d", count, len(e.stack))
	}
	vals := append([]core.Element(nil), e.stack[:count]...)
	e.stack = e.stack[count:]
	return vals, nil
}

func (e *executor) stackTop() (core.Element, error) {
	if len(e.stack) == 0 {
		return core.Zero, fmt.Errorf("stack underflow at step %d", e.step)
	}
	return e.stack[0], nil
}

func requireBinary(vals ...core.Element) error {
	for _, v := range vals {
		if !v.IsZero() && !v.IsOne() {
			return fmt.Errorf("value %s is not binary", v)
		}
	}
	return nil
}

func (e *executor) trackDepths() {
	if len(e.ctx) > e.maxCtx {
		e.maxCtx = len(e.ctx)
	}
	if len(e.loop) > e.maxLoop {
		e.maxLoop = len(e.loop)
	}
	if len(e.stack) > e.maxStack {
		e.maxStack = len(e.stack)
	}
}

// record snapshots the current state together with the operation bits of
// the operation about to execute.
func (e *executor) record(cf FlowOp, user UserOp, aux core.Element) {
	e.rows = append(e.rows, rowSnapshot{
		sponge: append([]core.Element(nil), e.sponge...),
		cf:     cf,
		user:   user,
		ctx:    append([]core.Element(nil), e.ctx...),
		loop:   append([]core.Element(nil), e.loop...),
		aux:    aux,
		stack:  append([]core.Element(nil), e.stack...),
	})
}

func (e *executor) buildTrace(programHash core.Element) (*ExecutionTrace, error) {
	// final state row carries VOID bits and freezes every register
	e.record(OpVoid, OpNoop, core.Zero)

	length := len(e.rows)
	padded := utils.NextPowerOfTwo(length)
	if padded < MinTraceLength {
		padded = MinTraceLength
	}
	if padded > MaxTraceLength {
		return nil, fmt.Errorf("execution trace exceeds %d rows", MaxTraceLength)
	}
	for len(e.rows) < padded {
		e.record(OpVoid, OpNoop, core.Zero)
	}

	if e.maxStack > MaxUserStackWidth {
		return nil, fmt.Errorf("user stack depth %d exceeds %d registers", e.maxStack, MaxUserStackWidth)
	}
	stackWidth := MinUserStackWidth
	for stackWidth < e.maxStack {
		stackWidth *= 2
	}
	if stackWidth > MaxUserStackWidth {
		stackWidth = MaxUserStackWidth
	}

	ctxDepth := e.maxCtx
	if ctxDepth == 0 {
		ctxDepth = 1
	}
	loopDepth := e.maxLoop

	trace := &ExecutionTrace{
		CtxStack:    make([][]core.Element, ctxDepth),
		LoopStack:   make([][]core.Element, loopDepth),
		Stack:       make([][]core.Element, stackWidth+1),
		ProgramHash: programHash,
	}
	n := len(e.rows)
	for i := range trace.Sponge {
		trace.Sponge[i] = make([]core.Element, n)
	}
	for i := range trace.CfBits {
		trace.CfBits[i] = make([]core.Element, n)
	}
	for i := range trace.LdBits {
		trace.LdBits[i] = make([]core.Element, n)
	}
	for i := range trace.HdBits {
		trace.HdBits[i] = make([]core.Element, n)
	}
	for i := range trace.CtxStack {
		trace.CtxStack[i] = make([]core.Element, n)
	}
	for i := range trace.LoopStack {
		trace.LoopStack[i] = make([]core.Element, n)
	}
	for i := range trace.Stack {
		trace.Stack[i] = make([]core.Element, n)
	}

	for r, row := range e.rows {
		for i := 0; i < core.SpongeWidth; i++ {
			trace.Sponge[i][r] = row.sponge[i]
		}
		cfBits := row.cf.Bits()
		for i := range cfBits {
			trace.CfBits[i][r] = core.NewElement(cfBits[i])
		}
		ldBits := row.user.LdBits()
		for i := range ldBits {
			trace.LdBits[i][r] = core.NewElement(ldBits[i])
		}
		hdBits := row.user.HdBits()
		for i := range hdBits {
			trace.HdBits[i][r] = core.NewElement(hdBits[i])
		}
		for i := 0; i < ctxDepth && i < len(row.ctx); i++ {
			trace.CtxStack[i][r] = row.ctx[i]
		}
		for i := 0; i < loopDepth && i < len(row.loop); i++ {
			trace.LoopStack[i][r] = row.loop[i]
		}
		trace.Stack[0][r] = row.aux
		for i := 0; i < stackWidth && i < len(row.stack); i++ {
			trace.Stack[i+1][r] = row.stack[i]
		}
	}

	return trace, nil
}
