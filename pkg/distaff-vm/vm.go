package distaffvm

import (
	"errors"
	"math/big"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
	"github.com/distaffvm/distaff-vm/internal/distaff-vm/protocols"
	"github.com/distaffvm/distaff-vm/internal/distaff-vm/vm"
)

// Value is a single field element on the VM stack or input tapes,
// represented as a big integer on the public API surface.
type Value = *big.Int

// ProofOptions re-exports the proving parameters.
type ProofOptions = protocols.ProofOptions

// HashKind re-exports the hash function selector.
type HashKind = core.HashKind

// Hash function selectors.
const (
	Blake3_256 = core.Blake3_256
	Sha3_256   = core.Sha3_256
	Rescue     = core.Rescue
)

// DefaultProofOptions returns the default proving parameters.
func DefaultProofOptions() ProofOptions {
	return protocols.DefaultProofOptions()
}

// Program is a compiled program graph.
type Program struct {
	inner *vm.Program
}

// Hash returns the program hash as a big integer.
func (p *Program) Hash() Value {
	return p.inner.Hash().Big()
}

// ProgramInputs bundle the public stack initialization and the two secret
// input tapes of one execution.
type ProgramInputs struct {
	Public  []Value
	SecretA []Value
	SecretB []Value
}

// ExecutionResult carries the outcome of running a program without proving.
type ExecutionResult struct {
	Outputs     []Value
	TraceLength int
	ProgramHash Value
}

// Compile parses assembly source into an executable program.
func Compile(source string) (*Program, error) {
	program, err := vm.Compile(source)
	if err != nil {
		return nil, newError(ErrCompilation, "failed to compile program", err)
	}
	return &Program{inner: program}, nil
}

// Run executes a program and returns the declared number of outputs from
// the top of the final stack.
func Run(program *Program, inputs ProgramInputs, numOutputs int) (*ExecutionResult, error) {
	trace, err := execute(program, inputs)
	if err != nil {
		return nil, err
	}
	return &ExecutionResult{
		Outputs:     toValues(trace.StackOutputs(numOutputs)),
		TraceLength: trace.Length(),
		ProgramHash: trace.ProgramHash.Big(),
	}, nil
}

// Prove executes a program and generates a STARK proof of the execution.
// It returns the public outputs and the serialized proof.
func Prove(program *Program, inputs ProgramInputs, numOutputs int, options ProofOptions) ([]Value, []byte, error) {
	if err := options.Validate(); err != nil {
		return nil, nil, newError(ErrInvalidOptions, "invalid proof options", err)
	}
	if numOutputs < 0 || numOutputs > vm.MaxOutputs {
		return nil, nil, newError(ErrInvalidOptions, "invalid number of outputs", nil)
	}

	trace, err := execute(program, inputs)
	if err != nil {
		return nil, nil, err
	}

	publicInputs := toElements(inputs.Public)
	outputs := trace.StackOutputs(numOutputs)

	proof, err := protocols.Prove(trace, publicInputs, outputs, options)
	if err != nil {
		return nil, nil, classifyProverError(err)
	}
	return toValues(outputs), proof, nil
}

// Verify checks a serialized proof against a program hash and the declared
// public inputs and outputs.
func Verify(programHash Value, publicInputs, outputs []Value, proof []byte) error {
	err := protocols.Verify(core.NewElementFromBig(programHash),
		toElements(publicInputs), toElements(outputs), proof)
	if err != nil {
		return classifyVerifierError(err)
	}
	return nil
}

// helpers

func execute(program *Program, inputs ProgramInputs) (*vm.ExecutionTrace, error) {
	programInputs, err := vm.NewProgramInputs(toElements(inputs.Public),
		toElements(inputs.SecretA), toElements(inputs.SecretB))
	if err != nil {
		return nil, newError(ErrExecution, "invalid program inputs", err)
	}
	trace, err := vm.ExecuteProgram(program.inner, programInputs)
	if err != nil {
		return nil, newError(ErrExecution, "program execution failed", err)
	}
	return trace, nil
}

func classifyProverError(err error) error {
	switch {
	case errors.Is(err, protocols.ErrConstraintUnsatisfied):
		return newError(ErrConstraintUnsatisfied, "trace does not satisfy transition constraints", err)
	case errors.Is(err, protocols.ErrTraceMalformed):
		return newError(ErrTraceMalformed, "execution trace is malformed", err)
	default:
		return newError(ErrUnknown, "proof generation failed", err)
	}
}

func classifyVerifierError(err error) error {
	switch {
	case errors.Is(err, protocols.ErrProofTruncated):
		return newError(ErrProofTruncated, "proof is truncated", err)
	case errors.Is(err, protocols.ErrProofMalformed):
		return newError(ErrProofMalformed, "proof is malformed", err)
	case errors.Is(err, protocols.ErrGrindingInsufficient):
		return newError(ErrGrindingInsufficient, "proof of work verification failed", err)
	case errors.Is(err, protocols.ErrMerkleVerifyFail):
		return newError(ErrMerkleVerifyFail, "Merkle authentication failed", err)
	case errors.Is(err, protocols.ErrQueryConstraintFail):
		return newError(ErrQueryConstraintFail, "queried values are inconsistent", err)
	case errors.Is(err, protocols.ErrCompositionCheckFail):
		return newError(ErrCompositionCheckFail, "composition check failed", err)
	case errors.Is(err, protocols.ErrFriVerifyFail):
		return newError(ErrFriVerifyFail, "low-degree proof verification failed", err)
	default:
		return newError(ErrUnknown, "proof verification failed", err)
	}
}

func toElements(values []Value) []core.Element {
	result := make([]core.Element, len(values))
	for i, v := range values {
		if v != nil {
			result[i] = core.NewElementFromBig(v)
		}
	}
	return result
}

func toValues(elements []core.Element) []Value {
	result := make([]Value, len(elements))
	for i, e := range elements {
		result[i] = e.Big()
	}
	return result
}
