package vm

import (
	"fmt"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
)

// A program is a tree of blocks. Sequences alternate instruction spans and
// control blocks; every sequence starts with a span. The hash of a block is
// a pair (v0, v1) folded into the parent sponge with HashAcc, and the
// program hash is the fold of the root block with a zero parent.

// SpanLength is the number of user operations in one instruction span; a
// span occupies cycle steps 0..14 of a 16-step segment, leaving step 15 for
// the control flow slot.
const SpanLength = 15

// BaseCycleLength is the alignment period of control flow operations.
const BaseCycleLength = core.CycleLength

// Block is a node of the program tree.
type Block interface {
	blockNode()
}

// Span is a straight-line sequence of exactly SpanLength user operations.
// PUSH operands are carried out-of-band in the hints map, keyed by the
// operation index.
type Span struct {
	ops   []UserOp
	hints map[int]core.Element
}

// Group wraps a sequence of blocks into a single block.
type Group struct {
	body []Block
}

// Switch selects between two branches based on the stack top. The true
// branch starts with ASSERT, the false branch with NOT ASSERT.
type Switch struct {
	tBranch []Block
	fBranch []Block
}

// Loop repeats its body while the stack top is 1. The skip branch is the
// canonical NOT ASSERT span executed when the loop is never entered.
type Loop struct {
	body []Block
	skip []Block
}

// Program is an executable program graph; the root is always a group.
type Program struct {
	root *Group
}

func (*Span) blockNode()   {}
func (*Group) blockNode()  {}
func (*Switch) blockNode() {}
func (*Loop) blockNode()   {}

// NewSpan creates a span from user operations; the sequence is NOOP-padded
// to SpanLength.
func NewSpan(ops []UserOp, hints map[int]core.Element) (*Span, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("instruction span must contain at least one instruction")
	}
	if len(ops) > SpanLength {
		return nil, fmt.Errorf("instruction span cannot contain more than %d instructions, got %d", SpanLength, len(ops))
	}
	padded := make([]UserOp, SpanLength)
	copy(padded, ops)
	for i := len(ops); i < SpanLength; i++ {
		padded[i] = OpNoop
	}
	for i, op := range padded {
		if op == OpPush {
			if _, ok := hints[i]; !ok {
				return nil, fmt.Errorf("value for PUSH operation at step %d is missing", i)
			}
		}
	}
	copied := make(map[int]core.Element, len(hints))
	for k, v := range hints {
		if k >= SpanLength {
			return nil, fmt.Errorf("hint out of bounds: step %d exceeds span length", k)
		}
		copied[k] = v
	}
	return &Span{ops: padded, hints: copied}, nil
}

// Ops returns the operations of the span.
func (s *Span) Ops() []UserOp {
	return s.ops
}

// Hint returns the PUSH operand at the given operation index, or zero.
func (s *Span) Hint(index int) core.Element {
	return s.hints[index]
}

// Hash absorbs the span operations into the sponge state, one meta-round per
// operation at schedule indices 0..14.
func (s *Span) Hash(state []core.Element) {
	for i, op := range s.ops {
		core.HashOpsRound(state, core.NewElement(uint64(op)), s.Hint(i), i)
	}
}

// NewGroup creates a group block.
func NewGroup(body []Block) (*Group, error) {
	if err := validateSequence(body); err != nil {
		return nil, err
	}
	return &Group{body: body}, nil
}

// Body returns the blocks of the group.
func (g *Group) Body() []Block {
	return g.body
}

// Hash returns the (v0, v1) pair of the group.
func (g *Group) Hash() (core.Element, core.Element) {
	return hashSeq(g.body, false), core.Zero
}

// NewSwitch creates a switch block from its two branches.
func NewSwitch(tBranch, fBranch []Block) (*Switch, error) {
	if err := validateSequence(tBranch); err != nil {
		return nil, fmt.Errorf("true branch: %w", err)
	}
	if err := validateSequence(fBranch); err != nil {
		return nil, fmt.Errorf("false branch: %w", err)
	}
	if !sequenceStartsWith(tBranch, OpAssert) {
		return nil, fmt.Errorf("true branch must start with ASSERT")
	}
	if !sequenceStartsWith(fBranch, OpNot, OpAssert) {
		return nil, fmt.Errorf("false branch must start with NOT ASSERT")
	}
	return &Switch{tBranch: tBranch, fBranch: fBranch}, nil
}

// TrueBranch returns the blocks of the true branch.
func (s *Switch) TrueBranch() []Block {
	return s.tBranch
}

// FalseBranch returns the blocks of the false branch.
func (s *Switch) FalseBranch() []Block {
	return s.fBranch
}

// Hash returns the (v0, v1) pair of the switch.
func (s *Switch) Hash() (core.Element, core.Element) {
	return hashSeq(s.tBranch, false), hashSeq(s.fBranch, false)
}

// NewLoop creates a loop block; the skip branch is generated automatically.
func NewLoop(body []Block) (*Loop, error) {
	if err := validateSequence(body); err != nil {
		return nil, err
	}
	if !sequenceStartsWith(body, OpAssert) {
		return nil, fmt.Errorf("loop body must start with ASSERT")
	}
	skipSpan, err := NewSpan([]UserOp{OpNot, OpAssert}, nil)
	if err != nil {
		return nil, err
	}
	return &Loop{body: body, skip: []Block{skipSpan}}, nil
}

// Body returns the blocks of the loop body.
func (l *Loop) Body() []Block {
	return l.body
}

// Skip returns the blocks executed when the loop is never entered.
func (l *Loop) Skip() []Block {
	return l.skip
}

// BodyHash returns the loop image: the hash of one completed iteration.
func (l *Loop) BodyHash() core.Element {
	return hashSeq(l.body, true)
}

// SkipHash returns the hash of the skip branch.
func (l *Loop) SkipHash() core.Element {
	return hashSeq(l.skip, false)
}

// Hash returns the (v0, v1) pair of the loop.
func (l *Loop) Hash() (core.Element, core.Element) {
	return l.BodyHash(), l.SkipHash()
}

// NewProgram creates a program from a sequence of blocks.
func NewProgram(body []Block) (*Program, error) {
	root, err := NewGroup(body)
	if err != nil {
		return nil, err
	}
	return &Program{root: root}, nil
}

// Root returns the root group of the program.
func (p *Program) Root() *Group {
	return p.root
}

// Hash returns the program hash: the fold of the root block pair with a
// zero parent accumulator.
func (p *Program) Hash() core.Element {
	v0, v1 := p.root.Hash()
	return core.HashAcc(v0, v1, core.Zero)
}

// blockHash returns the (v0, v1) pair of any control block.
func blockHash(block Block) (core.Element, core.Element, error) {
	switch b := block.(type) {
	case *Group:
		v0, v1 := b.Hash()
		return v0, v1, nil
	case *Switch:
		v0, v1 := b.Hash()
		return v0, v1, nil
	case *Loop:
		v0, v1 := b.Hash()
		return v0, v1, nil
	default:
		return core.Zero, core.Zero, fmt.Errorf("block has no control hash")
	}
}

// hashSeq hashes a sequence of blocks into a single value, mirroring the
// executor's cycle schedule exactly: span operations land on schedule
// indices 0..14, alignment rounds on index 15, and control block results are
// folded with HashAcc. Loop bodies skip the final alignment round because
// the WRAP or BREAK operation occupies their step 15 slot.
func hashSeq(blocks []Block, isLoopBody bool) core.Element {
	state := make([]core.Element, core.SpongeWidth)

	for i, block := range blocks {
		if span, ok := block.(*Span); ok {
			if i > 0 {
				// alignment round between consecutive spans
				core.HashOpsRound(state, core.Zero, core.Zero, BaseCycleLength-1)
			}
			span.Hash(state)
			continue
		}
		v0, v1, err := blockHash(block)
		if err != nil {
			// sequences are validated at construction; unreachable
			panic(err)
		}
		state = core.HashAccState(v0, v1, state[0])
	}

	if !isLoopBody {
		core.HashOpsRound(state, core.Zero, core.Zero, BaseCycleLength-1)
	}
	return state[0]
}

func validateSequence(blocks []Block) error {
	if len(blocks) == 0 {
		return fmt.Errorf("a sequence of blocks must contain at least one block")
	}
	if _, ok := blocks[0].(*Span); !ok {
		return fmt.Errorf("a sequence of blocks must start with an instruction span")
	}
	return nil
}

func sequenceStartsWith(blocks []Block, ops ...UserOp) bool {
	span, ok := blocks[0].(*Span)
	if !ok {
		return false
	}
	for i, op := range ops {
		if span.ops[i] != op {
			return false
		}
	}
	return true
}
