package vm

import (
	"fmt"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
)

// NumStaticRegisters is the number of decoder registers that do not depend
// on program shape: the sponge and the opcode bits.
const NumStaticRegisters = core.SpongeWidth + NumCfOpBits + NumLdOpBits + NumHdOpBits

// NumCfOps and NumLdOps are the sizes of the flow and low-degree operation
// flag spaces.
const (
	NumCfOps = 1 << NumCfOpBits
	NumLdOps = 1 << NumLdOpBits
	NumHdOps = 1 << NumHdOpBits
)

// TraceLayout describes the register layout of a trace row.
type TraceLayout struct {
	CtxDepth       int
	LoopDepth      int
	UserStackWidth int
}

// Width returns the total number of registers in a row.
func (l TraceLayout) Width() int {
	return NumStaticRegisters + l.CtxDepth + l.LoopDepth + 1 + l.UserStackWidth
}

// Validate checks the layout bounds.
func (l TraceLayout) Validate() error {
	if l.CtxDepth < 1 || l.CtxDepth > MaxCtxDepth {
		return fmt.Errorf("context stack depth must be between 1 and %d, got %d", MaxCtxDepth, l.CtxDepth)
	}
	if l.LoopDepth < 0 || l.LoopDepth > MaxLoopDepth {
		return fmt.Errorf("loop stack depth must be between 0 and %d, got %d", MaxLoopDepth, l.LoopDepth)
	}
	if l.UserStackWidth < MinUserStackWidth || l.UserStackWidth > MaxUserStackWidth {
		return fmt.Errorf("user stack width must be between %d and %d, got %d",
			MinUserStackWidth, MaxUserStackWidth, l.UserStackWidth)
	}
	return nil
}

// LayoutOf returns the layout of an execution trace.
func LayoutOf(t *ExecutionTrace) TraceLayout {
	return TraceLayout{
		CtxDepth:       len(t.CtxStack),
		LoopDepth:      len(t.LoopStack),
		UserStackWidth: len(t.Stack) - 1,
	}
}

// TraceState is a view over the registers of a single trace row.
type TraceState struct {
	layout    TraceLayout
	registers []core.Element
}

// NewTraceState wraps a register row in a state view.
func NewTraceState(registers []core.Element, layout TraceLayout) (*TraceState, error) {
	if len(registers) != layout.Width() {
		return nil, fmt.Errorf("expected %d registers, got %d", layout.Width(), len(registers))
	}
	return &TraceState{layout: layout, registers: registers}, nil
}

// Registers returns the underlying register row.
func (s *TraceState) Registers() []core.Element {
	return s.registers
}

// Layout returns the register layout.
func (s *TraceState) Layout() TraceLayout {
	return s.layout
}

// Sponge returns the 4 sponge registers.
func (s *TraceState) Sponge() []core.Element {
	return s.registers[0:core.SpongeWidth]
}

// CfOpBits returns the 3 control flow opcode bits.
func (s *TraceState) CfOpBits() []core.Element {
	off := core.SpongeWidth
	return s.registers[off : off+NumCfOpBits]
}

// LdOpBits returns the 5 low-degree opcode bits.
func (s *TraceState) LdOpBits() []core.Element {
	off := core.SpongeWidth + NumCfOpBits
	return s.registers[off : off+NumLdOpBits]
}

// HdOpBits returns the 2 high-degree opcode bits.
func (s *TraceState) HdOpBits() []core.Element {
	off := core.SpongeWidth + NumCfOpBits + NumLdOpBits
	return s.registers[off : off+NumHdOpBits]
}

// CtxStack returns the context stack registers.
func (s *TraceState) CtxStack() []core.Element {
	off := NumStaticRegisters
	return s.registers[off : off+s.layout.CtxDepth]
}

// LoopStack returns the loop stack registers.
func (s *TraceState) LoopStack() []core.Element {
	off := NumStaticRegisters + s.layout.CtxDepth
	return s.registers[off : off+s.layout.LoopDepth]
}

// Aux returns the auxiliary stack register.
func (s *TraceState) Aux() core.Element {
	return s.registers[NumStaticRegisters+s.layout.CtxDepth+s.layout.LoopDepth]
}

// UserStack returns the user stack registers, top first.
func (s *TraceState) UserStack() []core.Element {
	off := NumStaticRegisters + s.layout.CtxDepth + s.layout.LoopDepth + 1
	return s.registers[off:]
}

// OpCode returns the composite user opcode value absorbed into the sponge.
func (s *TraceState) OpCode() core.Element {
	result := core.Zero
	for i, bit := range s.LdOpBits() {
		result = result.Add(bit.Mul(core.NewElement(1 << i)))
	}
	for i, bit := range s.HdOpBits() {
		result = result.Add(bit.Mul(core.NewElement(1 << (NumLdOpBits + i))))
	}
	return result
}

// CfOpFlags returns the 8 control flow operation flags: products of the cf
// opcode bits selecting exactly one flow operation when the bits are binary.
func (s *TraceState) CfOpFlags() [NumCfOps]core.Element {
	return bitProducts3(s.CfOpBits())
}

// LdOpFlags returns the 32 low-degree operation flags.
func (s *TraceState) LdOpFlags() [NumLdOps]core.Element {
	bits := s.LdOpBits()
	var flags [NumLdOps]core.Element
	for op := 0; op < NumLdOps; op++ {
		flag := core.One
		for i := 0; i < NumLdOpBits; i++ {
			if op>>i&1 == 1 {
				flag = flag.Mul(bits[i])
			} else {
				flag = flag.Mul(core.One.Sub(bits[i]))
			}
		}
		flags[op] = flag
	}
	return flags
}

// HdOpFlags returns the 4 high-degree operation flags.
func (s *TraceState) HdOpFlags() [NumHdOps]core.Element {
	bits := s.HdOpBits()
	var flags [NumHdOps]core.Element
	for op := 0; op < NumHdOps; op++ {
		flag := core.One
		for i := 0; i < NumHdOpBits; i++ {
			if op>>i&1 == 1 {
				flag = flag.Mul(bits[i])
			} else {
				flag = flag.Mul(core.One.Sub(bits[i]))
			}
		}
		flags[op] = flag
	}
	return flags
}

func bitProducts3(bits []core.Element) [NumCfOps]core.Element {
	var flags [NumCfOps]core.Element
	for op := 0; op < NumCfOps; op++ {
		flag := core.One
		for i := 0; i < NumCfOpBits; i++ {
			if op>>i&1 == 1 {
				flag = flag.Mul(bits[i])
			} else {
				flag = flag.Mul(core.One.Sub(bits[i]))
			}
		}
		flags[op] = flag
	}
	return flags
}
