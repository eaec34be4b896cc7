package protocols

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
	"github.com/distaffvm/distaff-vm/internal/distaff-vm/vm"
)

// Proof parse errors.
var (
	ErrProofTruncated = fmt.Errorf("proof is truncated")
	ErrProofMalformed = fmt.Errorf("proof is malformed")
)

// StarkProof is the complete proof of one program execution. The wire
// layout is length-prefixed with big-endian integers; field elements are
// 16-byte little-endian.
type StarkProof struct {
	Options     ProofOptions
	TraceLength int
	Layout      vm.TraceLayout

	PublicInputs  []core.Element
	PublicOutputs []core.Element

	TraceRoot      [32]byte
	ConstraintRoot [32]byte

	TraceRows  [][]core.Element
	TraceProof *core.BatchProof

	ConstraintLeaves [][]core.Element
	ConstraintProof  *core.BatchProof

	Fri *FriProof

	Deep *DeepValues

	PowNonce uint64
}

// DomainSize returns the size of the extended evaluation domain.
func (p *StarkProof) DomainSize() int {
	return p.TraceLength * p.Options.ExtensionFactor
}

// Serialize encodes the proof into its wire representation.
func (p *StarkProof) Serialize() ([]byte, error) {
	var buf bytes.Buffer

	// 1. context
	write(&buf, uint32(p.TraceLength))
	write(&buf, uint8(p.Layout.Width()))
	write(&buf, uint8(p.Layout.CtxDepth))
	write(&buf, uint8(p.Layout.LoopDepth))
	write(&buf, uint8(p.Options.ExtensionFactor))
	write(&buf, uint8(p.Options.NumQueries))
	write(&buf, uint8(p.Options.GrindingFactor))
	write(&buf, uint8(p.Options.HashFn))

	// 2. public inputs and outputs
	writeElementVector(&buf, p.PublicInputs)
	writeElementVector(&buf, p.PublicOutputs)

	// 3, 4. commitments
	buf.Write(p.TraceRoot[:])
	buf.Write(p.ConstraintRoot[:])

	// 5, 6. FRI roots and remainder
	write(&buf, uint8(len(p.Fri.Layers)))
	for _, layer := range p.Fri.Layers {
		buf.Write(layer.Root[:])
	}
	writeElementVector(&buf, p.Fri.Remainder)

	// 7. queried trace and constraint rows with their batch proofs
	write(&buf, uint16(len(p.TraceRows)))
	for _, row := range p.TraceRows {
		for _, v := range row {
			buf.Write(v.Bytes())
		}
	}
	writeBatchProof(&buf, p.TraceProof)

	write(&buf, uint16(len(p.ConstraintLeaves)))
	for _, leaf := range p.ConstraintLeaves {
		for _, v := range leaf {
			buf.Write(v.Bytes())
		}
	}
	writeBatchProof(&buf, p.ConstraintProof)

	// 8. per-layer FRI openings
	for _, layer := range p.Fri.Layers {
		write(&buf, uint16(len(layer.Values)))
		for _, row := range layer.Values {
			for _, v := range row {
				buf.Write(v.Bytes())
			}
		}
		writeBatchProof(&buf, layer.Proof)
	}

	// DEEP openings
	writeElementVector(&buf, p.Deep.TraceAtZ1)
	writeElementVector(&buf, p.Deep.TraceAtZ2)
	buf.Write(p.Deep.ConstraintsAt.Bytes())

	// 9. proof-of-work nonce
	write(&buf, p.PowNonce)

	return buf.Bytes(), nil
}

// DeserializeProof decodes a proof from its wire representation.
func DeserializeProof(data []byte) (*StarkProof, error) {
	r := &proofReader{reader: bytes.NewReader(data)}
	p := &StarkProof{}

	// 1. context
	p.TraceLength = int(r.readUint32())
	width := int(r.readUint8())
	p.Layout.CtxDepth = int(r.readUint8())
	p.Layout.LoopDepth = int(r.readUint8())
	p.Options.ExtensionFactor = int(r.readUint8())
	p.Options.NumQueries = int(r.readUint8())
	p.Options.GrindingFactor = int(r.readUint8())
	p.Options.HashFn = core.HashKind(r.readUint8())
	if r.err != nil {
		return nil, r.fail()
	}
	if err := p.Options.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofMalformed, err)
	}
	p.Layout.UserStackWidth = width - vm.NumStaticRegisters - p.Layout.CtxDepth - p.Layout.LoopDepth - 1
	if err := p.Layout.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofMalformed, err)
	}
	if p.TraceLength < vm.MinTraceLength || p.TraceLength > vm.MaxTraceLength ||
		p.TraceLength&(p.TraceLength-1) != 0 {
		return nil, fmt.Errorf("%w: invalid trace length %d", ErrProofMalformed, p.TraceLength)
	}

	// 2. public inputs and outputs
	p.PublicInputs = r.readElementVector(vm.MaxPublicInputs)
	p.PublicOutputs = r.readElementVector(vm.MaxOutputs)

	// 3, 4. commitments
	p.TraceRoot = r.readDigest()
	p.ConstraintRoot = r.readDigest()

	// 5, 6. FRI roots and remainder
	numLayers := int(r.readUint8())
	p.Fri = &FriProof{}
	for i := 0; i < numLayers; i++ {
		p.Fri.Layers = append(p.Fri.Layers, FriLayer{Root: r.readDigest()})
	}
	p.Fri.Remainder = r.readElementVector(MaxRemainderLength)

	// 7. queried trace and constraint rows
	numRows := int(r.readUint16())
	if r.err == nil && numRows > p.Options.NumQueries {
		return nil, fmt.Errorf("%w: too many trace rows", ErrProofMalformed)
	}
	for i := 0; i < numRows; i++ {
		p.TraceRows = append(p.TraceRows, r.readElements(width))
	}
	p.TraceProof = r.readBatchProof()

	numLeaves := int(r.readUint16())
	if r.err == nil && numLeaves > p.Options.NumQueries {
		return nil, fmt.Errorf("%w: too many constraint leaves", ErrProofMalformed)
	}
	for i := 0; i < numLeaves; i++ {
		p.ConstraintLeaves = append(p.ConstraintLeaves, r.readElements(ConstraintLeafSpan))
	}
	p.ConstraintProof = r.readBatchProof()

	// 8. per-layer FRI openings
	for i := range p.Fri.Layers {
		numValues := int(r.readUint16())
		if r.err == nil && numValues > p.Options.NumQueries {
			return nil, fmt.Errorf("%w: too many layer values", ErrProofMalformed)
		}
		for j := 0; j < numValues; j++ {
			row := r.readElements(4)
			if r.err == nil {
				p.Fri.Layers[i].Values = append(p.Fri.Layers[i].Values,
					[4]core.Element{row[0], row[1], row[2], row[3]})
			}
		}
		p.Fri.Layers[i].Proof = r.readBatchProof()
	}

	// DEEP openings
	p.Deep = &DeepValues{}
	p.Deep.TraceAtZ1 = r.readElementVector(width)
	p.Deep.TraceAtZ2 = r.readElementVector(width)
	if r.err == nil && (len(p.Deep.TraceAtZ1) != width || len(p.Deep.TraceAtZ2) != width) {
		return nil, fmt.Errorf("%w: wrong number of DEEP trace values", ErrProofMalformed)
	}
	p.Deep.ConstraintsAt = r.readElement()

	// 9. proof-of-work nonce
	p.PowNonce = r.readUint64()

	if r.err != nil {
		return nil, r.fail()
	}
	if r.reader.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrProofMalformed, r.reader.Len())
	}
	return p, nil
}

// wire helpers

func write(buf *bytes.Buffer, v any) {
	// writing to a bytes.Buffer cannot fail
	_ = binary.Write(buf, binary.BigEndian, v)
}

func writeElementVector(buf *bytes.Buffer, values []core.Element) {
	write(buf, uint16(len(values)))
	for _, v := range values {
		buf.Write(v.Bytes())
	}
}

func writeBatchProof(buf *bytes.Buffer, proof *core.BatchProof) {
	write(buf, uint8(proof.Depth))
	write(buf, uint16(len(proof.Nodes)))
	for _, node := range proof.Nodes {
		buf.Write(node[:])
	}
}

type proofReader struct {
	reader *bytes.Reader
	err    error
}

func (r *proofReader) fail() error {
	if r.err == io.EOF || r.err == io.ErrUnexpectedEOF {
		return ErrProofTruncated
	}
	return fmt.Errorf("%w: %v", ErrProofMalformed, r.err)
}

func (r *proofReader) read(v any) {
	if r.err != nil {
		return
	}
	r.err = binary.Read(r.reader, binary.BigEndian, v)
}

func (r *proofReader) readUint8() uint8 {
	var v uint8
	r.read(&v)
	return v
}

func (r *proofReader) readUint16() uint16 {
	var v uint16
	r.read(&v)
	return v
}

func (r *proofReader) readUint32() uint32 {
	var v uint32
	r.read(&v)
	return v
}

func (r *proofReader) readUint64() uint64 {
	var v uint64
	r.read(&v)
	return v
}

func (r *proofReader) readDigest() [32]byte {
	var v [32]byte
	if r.err != nil {
		return v
	}
	_, err := io.ReadFull(r.reader, v[:])
	r.err = err
	return v
}

func (r *proofReader) readElement() core.Element {
	var raw [core.ElementSize]byte
	if r.err != nil {
		return core.Zero
	}
	if _, err := io.ReadFull(r.reader, raw[:]); err != nil {
		r.err = err
		return core.Zero
	}
	v, err := core.NewElementFromBytes(raw[:])
	if err != nil {
		r.err = err
		return core.Zero
	}
	return v
}

func (r *proofReader) readElements(count int) []core.Element {
	result := make([]core.Element, count)
	for i := range result {
		result[i] = r.readElement()
	}
	return result
}

func (r *proofReader) readElementVector(maxLength int) []core.Element {
	count := int(r.readUint16())
	if r.err != nil {
		return nil
	}
	if count > maxLength {
		r.err = fmt.Errorf("vector length %d exceeds maximum %d", count, maxLength)
		return nil
	}
	return r.readElements(count)
}

func (r *proofReader) readBatchProof() *core.BatchProof {
	proof := &core.BatchProof{}
	proof.Depth = int(r.readUint8())
	count := int(r.readUint16())
	if r.err != nil {
		return proof
	}
	if proof.Depth > 32 || count > 1<<14 {
		r.err = fmt.Errorf("batch proof is too large")
		return proof
	}
	for i := 0; i < count; i++ {
		proof.Nodes = append(proof.Nodes, r.readDigest())
	}
	return proof
}
