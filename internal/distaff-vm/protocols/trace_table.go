package protocols

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
	"github.com/distaffvm/distaff-vm/internal/distaff-vm/utils"
	"github.com/distaffvm/distaff-vm/internal/distaff-vm/vm"
)

// TraceTable owns the register traces of one execution through the stages
// of the proving pipeline: interpolation into trace polynomials, low-degree
// extension, and Merkle commitment. Every stage produces a new buffer; the
// previous stage's output is never mutated.
type TraceTable struct {
	layout    vm.TraceLayout
	registers [][]core.Element

	polys [][]core.Element
	lde   [][]core.Element
	tree  *core.MerkleTree

	extensionFactor int
}

// NewTraceTable validates an execution trace and wraps it for proving.
func NewTraceTable(trace *vm.ExecutionTrace) (*TraceTable, error) {
	length := trace.Length()
	if !utils.IsPowerOfTwo(length) {
		return nil, fmt.Errorf("trace length must be a power of 2, got %d", length)
	}
	if length < vm.MinTraceLength {
		return nil, fmt.Errorf("trace length must be at least %d, got %d", vm.MinTraceLength, length)
	}
	if length > vm.MaxTraceLength {
		return nil, fmt.Errorf("trace length cannot exceed %d, got %d", vm.MaxTraceLength, length)
	}
	layout := vm.LayoutOf(trace)
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	registers := trace.Registers()
	if len(registers) != layout.Width() {
		return nil, fmt.Errorf("trace width mismatch: expected %d registers, got %d", layout.Width(), len(registers))
	}
	for i, column := range registers {
		if len(column) != length {
			return nil, fmt.Errorf("register %d has %d rows, expected %d", i, len(column), length)
		}
	}
	return &TraceTable{layout: layout, registers: registers}, nil
}

// Layout returns the register layout of the trace.
func (t *TraceTable) Layout() vm.TraceLayout {
	return t.layout
}

// Length returns the number of rows in the unextended trace.
func (t *TraceTable) Length() int {
	return len(t.registers[0])
}

// Width returns the number of registers.
func (t *TraceTable) Width() int {
	return len(t.registers)
}

// DomainSize returns the size of the low-degree extension domain.
func (t *TraceTable) DomainSize() int {
	return t.Length() * t.extensionFactor
}

// State returns the trace state at a row of the unextended trace.
func (t *TraceTable) State(row int) (*vm.TraceState, error) {
	registers := make([]core.Element, t.Width())
	for i := range t.registers {
		registers[i] = t.registers[i][row]
	}
	return vm.NewTraceState(registers, t.layout)
}

// Interpolate computes the trace polynomials: for every register, the
// unique interpolant of its column over the trace domain.
func (t *TraceTable) Interpolate() error {
	t.polys = make([][]core.Element, t.Width())
	for i, column := range t.registers {
		poly := append([]core.Element(nil), column...)
		if err := core.InterpolateFFT(poly); err != nil {
			return fmt.Errorf("failed to interpolate register %d: %w", i, err)
		}
		t.polys[i] = poly
	}
	return nil
}

// Extend evaluates every trace polynomial over the extended domain.
// Columns are extended in parallel; each extension works on its own buffer.
func (t *TraceTable) Extend(extensionFactor int) error {
	if t.polys == nil {
		return fmt.Errorf("trace must be interpolated before extension")
	}
	t.extensionFactor = extensionFactor
	domainSize := t.Length() * extensionFactor

	t.lde = make([][]core.Element, t.Width())
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i := range t.polys {
		g.Go(func() error {
			extended := make([]core.Element, domainSize)
			copy(extended, t.polys[i])
			if err := core.EvalPolyFFT(extended); err != nil {
				return fmt.Errorf("failed to extend register %d: %w", i, err)
			}
			t.lde[i] = extended
			return nil
		})
	}
	return g.Wait()
}

// Commit hashes every extended trace row into a Merkle tree leaf and
// returns the root. Leaf i is the concatenation of all register values at
// extended domain position i.
func (t *TraceTable) Commit(hash core.HashFunc) ([32]byte, error) {
	if t.lde == nil {
		return [32]byte{}, fmt.Errorf("trace must be extended before commitment")
	}
	domainSize := t.DomainSize()
	leaves := make([][]byte, domainSize)

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	chunk := (domainSize + runtime.NumCPU() - 1) / runtime.NumCPU()
	for start := 0; start < domainSize; start += chunk {
		end := start + chunk
		if end > domainSize {
			end = domainSize
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				leaves[i] = t.serializeRow(i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return [32]byte{}, err
	}

	tree, err := core.NewMerkleTree(leaves, hash)
	if err != nil {
		return [32]byte{}, fmt.Errorf("failed to commit trace: %w", err)
	}
	t.tree = tree
	return tree.Root(), nil
}

// Tree returns the trace commitment tree.
func (t *TraceTable) Tree() *core.MerkleTree {
	return t.tree
}

// LdeState returns the trace state at a position of the extended domain.
func (t *TraceTable) LdeState(position int) (*vm.TraceState, error) {
	registers := make([]core.Element, t.Width())
	for i := range t.lde {
		registers[i] = t.lde[i][position]
	}
	return vm.NewTraceState(registers, t.layout)
}

// LdeRow returns the register values at a position of the extended domain.
func (t *TraceTable) LdeRow(position int) []core.Element {
	registers := make([]core.Element, t.Width())
	for i := range t.lde {
		registers[i] = t.lde[i][position]
	}
	return registers
}

// EvalPolysAt evaluates every trace polynomial at an out-of-domain point.
func (t *TraceTable) EvalPolysAt(x core.Element) []core.Element {
	result := make([]core.Element, t.Width())
	for i, poly := range t.polys {
		result[i] = core.EvalPoly(poly, x)
	}
	return result
}

// Poly returns the coefficients of one trace polynomial.
func (t *TraceTable) Poly(register int) []core.Element {
	return t.polys[register]
}

func (t *TraceTable) serializeRow(position int) []byte {
	row := make([]byte, 0, t.Width()*core.ElementSize)
	for i := range t.lde {
		row = append(row, t.lde[i][position].Bytes()...)
	}
	return row
}

// SerializeStateRow serializes a register row the same way trace leaves are
// serialized; the verifier uses it to check query rows against the trace
// commitment.
func SerializeStateRow(registers []core.Element) []byte {
	row := make([]byte, 0, len(registers)*core.ElementSize)
	for _, v := range registers {
		row = append(row, v.Bytes()...)
	}
	return row
}
