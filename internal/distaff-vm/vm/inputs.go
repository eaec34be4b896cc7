package vm

import (
	"fmt"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
)

// MaxPublicInputs bounds the number of values which may be placed onto the
// stack before execution starts.
const MaxPublicInputs = 8

// MaxOutputs bounds the number of stack values which may be declared as
// public outputs of a program.
const MaxOutputs = 8

// ProgramInputs holds the public and secret inputs of a single execution.
// Secret tape A feeds READ, BINACC and the x bits of CMP; tape B feeds the
// second value of READ2 and the y bits of CMP.
type ProgramInputs struct {
	public  []core.Element
	secretA []core.Element
	secretB []core.Element
}

// NewProgramInputs creates inputs from public values and two secret tapes.
func NewProgramInputs(public, secretA, secretB []core.Element) (*ProgramInputs, error) {
	if len(public) > MaxPublicInputs {
		return nil, fmt.Errorf("expected no more than %d public inputs, but received %d", MaxPublicInputs, len(public))
	}
	return &ProgramInputs{
		public:  append([]core.Element(nil), public...),
		secretA: append([]core.Element(nil), secretA...),
		secretB: append([]core.Element(nil), secretB...),
	}, nil
}

// FromPublicInputs creates inputs with empty secret tapes.
func FromPublicInputs(public []core.Element) (*ProgramInputs, error) {
	return NewProgramInputs(public, nil, nil)
}

// PublicInputs returns the public input values; index 0 is the stack top.
func (p *ProgramInputs) PublicInputs() []core.Element {
	return p.public
}

// SecretA returns the primary secret input tape.
func (p *ProgramInputs) SecretA() []core.Element {
	return p.secretA
}

// SecretB returns the secondary secret input tape.
func (p *ProgramInputs) SecretB() []core.Element {
	return p.secretB
}
