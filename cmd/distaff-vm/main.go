package main

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/logger"
	distaffvm "github.com/distaffvm/distaff-vm/pkg/distaff-vm"
)

var (
	inputsFlag  []string
	outputsFlag int
	queriesFlag int
	blowupFlag  int
	grindFlag   int
	verboseFlag bool
)

func main() {
	root := &cobra.Command{
		Use:   "distaff-vm",
		Short: "Distaff zero-knowledge virtual machine",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verboseFlag {
				logger.SetLevel(zerolog.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")

	runCmd := &cobra.Command{
		Use:   "run [program]",
		Short: "Execute a program and print its outputs",
		Args:  cobra.ExactArgs(1),
		RunE:  runProgram,
	}
	addExecutionFlags(runCmd)

	proveCmd := &cobra.Command{
		Use:   "prove [program]",
		Short: "Execute a program and produce a STARK proof",
		Args:  cobra.ExactArgs(1),
		RunE:  proveProgram,
	}
	addExecutionFlags(proveCmd)
	proveCmd.Flags().IntVar(&queriesFlag, "queries", 48, "number of query positions")
	proveCmd.Flags().IntVar(&blowupFlag, "blowup", 32, "low-degree extension factor")
	proveCmd.Flags().IntVar(&grindFlag, "grinding", 16, "proof-of-work grinding factor")

	root.AddCommand(runCmd, proveCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addExecutionFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&inputsFlag, "inputs", "i", nil, "public stack inputs, top first")
	cmd.Flags().IntVarP(&outputsFlag, "outputs", "o", 1, "number of stack outputs")
}

func runProgram(cmd *cobra.Command, args []string) error {
	program, inputs, err := compileWithInputs(args[0])
	if err != nil {
		return err
	}
	result, err := distaffvm.Run(program, inputs, outputsFlag)
	if err != nil {
		return err
	}
	fmt.Printf("program hash: %x\n", result.ProgramHash)
	fmt.Printf("trace length: %d\n", result.TraceLength)
	fmt.Printf("outputs:      %s\n", formatValues(result.Outputs))
	return nil
}

func proveProgram(cmd *cobra.Command, args []string) error {
	program, inputs, err := compileWithInputs(args[0])
	if err != nil {
		return err
	}
	options := distaffvm.DefaultProofOptions().
		WithNumQueries(queriesFlag).
		WithExtensionFactor(blowupFlag).
		WithGrindingFactor(grindFlag)

	outputs, proof, err := distaffvm.Prove(program, inputs, outputsFlag, options)
	if err != nil {
		return err
	}
	fmt.Printf("program hash: %x\n", program.Hash())
	fmt.Printf("outputs:      %s\n", formatValues(outputs))
	fmt.Printf("proof size:   %d bytes\n", len(proof))
	fmt.Printf("proof:        %s...\n", hex.EncodeToString(proof[:32]))

	if err := distaffvm.Verify(program.Hash(), inputs.Public, outputs, proof); err != nil {
		return fmt.Errorf("self-verification failed: %w", err)
	}
	fmt.Println("proof verified")
	return nil
}

func compileWithInputs(source string) (*distaffvm.Program, distaffvm.ProgramInputs, error) {
	program, err := distaffvm.Compile(source)
	if err != nil {
		return nil, distaffvm.ProgramInputs{}, err
	}
	inputs := distaffvm.ProgramInputs{}
	for _, raw := range inputsFlag {
		v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
		if !ok {
			return nil, distaffvm.ProgramInputs{}, fmt.Errorf("invalid input value %q", raw)
		}
		inputs.Public = append(inputs.Public, v)
	}
	return program, inputs, nil
}

func formatValues(values []distaffvm.Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
