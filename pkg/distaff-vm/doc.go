// Package distaffvm is the public API of the Distaff zero-knowledge virtual
// machine. It compiles small stack programs, executes them against public
// and secret inputs, and produces transparent STARK proofs attesting that a
// program identified by its hash was run on the declared public inputs and
// yielded the declared outputs.
//
// A typical round trip:
//
//	program, err := distaffvm.Compile("push.3 push.5 add")
//	outputs, proof, err := distaffvm.Prove(program, distaffvm.ProgramInputs{}, 1,
//	    distaffvm.DefaultProofOptions())
//	err = distaffvm.Verify(program.Hash(), nil, outputs, proof)
//
// The prover is a pure function of the execution trace, the public values
// and the proof options; proofs are byte-for-byte deterministic.
package distaffvm
