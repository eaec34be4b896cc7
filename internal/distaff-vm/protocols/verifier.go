package protocols

import (
	"fmt"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
	"github.com/distaffvm/distaff-vm/internal/distaff-vm/utils"
	"github.com/distaffvm/distaff-vm/internal/distaff-vm/vm"
)

// Verifier rejection reasons, in check order.
var (
	ErrGrindingInsufficient = fmt.Errorf("proof-of-work nonce verification failed")
	ErrMerkleVerifyFail     = fmt.Errorf("verification of Merkle authentication paths failed")
	ErrQueryConstraintFail  = fmt.Errorf("queried values are inconsistent with the proof")
	ErrCompositionCheckFail = fmt.Errorf("composition polynomial check failed")
	ErrFriVerifyFail        = fmt.Errorf("verification of low-degree proof failed")
)

// Verify checks a serialized proof against a program hash and the declared
// public inputs and outputs. Checks run in a fixed order - parse, proof of
// work, Merkle paths, composition identity, FRI - and the first failure is
// returned.
func Verify(programHash core.Element, inputs, outputs []core.Element, proofBytes []byte) error {
	proof, err := DeserializeProof(proofBytes)
	if err != nil {
		return err
	}
	if !elementsEqual(proof.PublicInputs, inputs) {
		return fmt.Errorf("%w: public inputs do not match the proof", ErrProofMalformed)
	}
	if !elementsEqual(proof.PublicOutputs, outputs) {
		return fmt.Errorf("%w: public outputs do not match the proof", ErrProofMalformed)
	}
	hash, err := proof.Options.HashFn.Func()
	if err != nil {
		return err
	}
	domainSize := proof.DomainSize()

	// 1 ----- replay the transcript, check the proof of work, and derive
	// the query positions
	channel := utils.NewChannel(hash, programHash, inputs, outputs)
	channel.AbsorbRoot(proof.TraceRoot)
	channel.AbsorbRoot(proof.ConstraintRoot)
	z, cc := DrawZAndCoefficients(channel.State(), proof.Layout.Width())

	for _, layer := range proof.Fri.Layers {
		channel.AbsorbRoot(layer.Root)
	}
	channel.Absorb(serializeRemainderValues(proof.Fri.Remainder))

	if err := channel.VerifyNonce(proof.PowNonce, proof.Options.GrindingFactor); err != nil {
		return fmt.Errorf("%w: %v", ErrGrindingInsufficient, err)
	}
	positions, err := channel.DrawQueryPositions(proof.Options.NumQueries, domainSize, proof.Options.ExtensionFactor)
	if err != nil {
		return err
	}
	if len(proof.TraceRows) != len(positions) {
		return fmt.Errorf("%w: expected %d trace rows, got %d", ErrQueryConstraintFail, len(positions), len(proof.TraceRows))
	}

	// 2 ----- verify trace and constraint Merkle paths
	traceLeaves := make([][]byte, len(positions))
	for i, row := range proof.TraceRows {
		traceLeaves[i] = SerializeStateRow(row)
	}
	if !core.VerifyBatch(proof.TraceRoot, positions, traceLeaves, proof.TraceProof, hash) {
		return fmt.Errorf("%w: trace commitment", ErrMerkleVerifyFail)
	}

	cPositions := ConstraintPositions(positions)
	if len(proof.ConstraintLeaves) != len(cPositions) {
		return fmt.Errorf("%w: expected %d constraint leaves, got %d", ErrQueryConstraintFail, len(cPositions), len(proof.ConstraintLeaves))
	}
	constraintLeaves := make([][]byte, len(cPositions))
	for i, leaf := range proof.ConstraintLeaves {
		constraintLeaves[i] = SerializeStateRow(leaf)
	}
	if !core.VerifyBatch(proof.ConstraintRoot, cPositions, constraintLeaves, proof.ConstraintProof, hash) {
		return fmt.Errorf("%w: constraint commitment", ErrMerkleVerifyFail)
	}

	// 3 ----- recompute the constraint value at the DEEP point from the
	// trace states carried in the proof
	evaluator, err := NewEvaluator(proof.TraceRoot, proof.Layout, proof.TraceLength,
		programHash, inputs, outputs)
	if err != nil {
		return err
	}
	stateZ1, err := vm.NewTraceState(proof.Deep.TraceAtZ1, proof.Layout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProofMalformed, err)
	}
	stateZ2, err := vm.NewTraceState(proof.Deep.TraceAtZ2, proof.Layout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProofMalformed, err)
	}
	deep := &DeepValues{
		Z:         z,
		TraceAtZ1: proof.Deep.TraceAtZ1,
		TraceAtZ2: proof.Deep.TraceAtZ2,
	}
	constraintsAtZ, err := evaluator.EvaluateConstraintsAt(stateZ1, stateZ2, z)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCompositionCheckFail, err)
	}
	if !constraintsAtZ.Equal(proof.Deep.ConstraintsAt) {
		return fmt.Errorf("%w: constraint evaluation at the DEEP point does not match", ErrCompositionCheckFail)
	}
	deep.ConstraintsAt = constraintsAtZ

	// 4 ----- assemble the composition evaluations at the queried positions
	constraintValues, err := constraintValuesAt(positions, cPositions, proof.ConstraintLeaves)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQueryConstraintFail, err)
	}
	composed, err := ComposeAtPositions(positions, proof.TraceRows, constraintValues,
		deep, cc, domainSize, proof.TraceLength, evaluator.IncrementalTraceDegree())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCompositionCheckFail, err)
	}

	// 5 ----- verify the low-degree proof
	maxDegreePlus1 := evaluator.DomainSize()
	if err := FriVerify(proof.Fri, composed, positions, maxDegreePlus1,
		domainSize, proof.Options.ExtensionFactor, hash); err != nil {
		return fmt.Errorf("%w: %v", ErrFriVerifyFail, err)
	}
	return nil
}

// constraintValuesAt maps every query position to its constraint evaluation
// from the packed constraint leaves.
func constraintValuesAt(positions, cPositions []int, leaves [][]core.Element) ([]core.Element, error) {
	result := make([]core.Element, len(positions))
	for i, p := range positions {
		idx := -1
		for j, cp := range cPositions {
			if cp == p/ConstraintLeafSpan {
				idx = j
				break
			}
		}
		if idx == -1 {
			return nil, fmt.Errorf("position %d is not covered by the constraint leaves", p)
		}
		result[i] = leaves[idx][p%ConstraintLeafSpan]
	}
	return result, nil
}

func serializeRemainderValues(values []core.Element) []byte {
	out := make([]byte, 0, len(values)*core.ElementSize)
	for _, v := range values {
		out = append(out, v.Bytes()...)
	}
	return out
}

func elementsEqual(a, b []core.Element) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
