package vm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/distaffvm/distaff-vm/internal/distaff-vm/core"
)

// Minimal assembler for the VM. Source is a whitespace-separated list of
// instruction tokens; `if.true ... else ... endif` builds a switch block and
// `while.true ... end` builds a loop block. Instruction runs are split into
// 15-operation spans padded with NOOPs.

// Compile parses assembly source into a program.
func Compile(source string) (*Program, error) {
	tokens := strings.Fields(source)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("source contains no instructions")
	}

	body, rest, err := parseSequence(tokens, nil, "")
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("unexpected token %q", rest[0])
	}
	return NewProgram(body)
}

// parseSequence parses tokens until one of the terminators is reached and
// assembles the parsed instructions into a block sequence. The prefix
// operations are prepended to the first span.
func parseSequence(tokens []string, prefix []instruction, terminator string) ([]Block, []string, error) {
	instructions := append([]instruction(nil), prefix...)
	var blocks []Block

	flush := func() error {
		spans, err := buildSpans(instructions)
		if err != nil {
			return err
		}
		blocks = append(blocks, spans...)
		instructions = nil
		return nil
	}

	for len(tokens) > 0 {
		token := tokens[0]

		if token == terminator || (terminator == "endif" && token == "else") {
			if len(blocks) == 0 && len(instructions) == 0 {
				instructions = append(instructions, instruction{op: OpNoop})
			}
			if len(instructions) > 0 || len(blocks) == 0 {
				if err := flush(); err != nil {
					return nil, nil, err
				}
			}
			return blocks, tokens, nil
		}

		switch token {
		case "if.true":
			if len(blocks) == 0 && len(instructions) == 0 {
				// sequences must start with a span
				instructions = append(instructions, instruction{op: OpNoop})
			}
			if err := flush(); err != nil {
				return nil, nil, err
			}
			tBranch, rest, err := parseSequence(tokens[1:], []instruction{{op: OpAssert}}, "endif")
			if err != nil {
				return nil, nil, err
			}
			fBranch := []Block{}
			if len(rest) > 0 && rest[0] == "else" {
				fBranch, rest, err = parseSequence(rest[1:], []instruction{{op: OpNot}, {op: OpAssert}}, "endif")
				if err != nil {
					return nil, nil, err
				}
			} else {
				span, err := NewSpan([]UserOp{OpNot, OpAssert}, nil)
				if err != nil {
					return nil, nil, err
				}
				fBranch = []Block{span}
			}
			if len(rest) == 0 || rest[0] != "endif" {
				return nil, nil, fmt.Errorf("if.true block is missing endif")
			}
			sw, err := NewSwitch(tBranch, fBranch)
			if err != nil {
				return nil, nil, err
			}
			blocks = append(blocks, sw)
			tokens = rest[1:]

		case "while.true":
			if len(blocks) == 0 && len(instructions) == 0 {
				instructions = append(instructions, instruction{op: OpNoop})
			}
			if err := flush(); err != nil {
				return nil, nil, err
			}
			body, rest, err := parseSequence(tokens[1:], []instruction{{op: OpAssert}}, "end")
			if err != nil {
				return nil, nil, err
			}
			if len(rest) == 0 || rest[0] != "end" {
				return nil, nil, fmt.Errorf("while.true block is missing end")
			}
			lp, err := NewLoop(body)
			if err != nil {
				return nil, nil, err
			}
			blocks = append(blocks, lp)
			tokens = rest[1:]

		default:
			inst, err := parseInstruction(token)
			if err != nil {
				return nil, nil, err
			}
			instructions = append(instructions, inst)
			tokens = tokens[1:]
		}
	}

	if terminator != "" {
		return nil, nil, fmt.Errorf("block is missing %q terminator", terminator)
	}
	if len(instructions) == 0 && len(blocks) == 0 {
		instructions = append(instructions, instruction{op: OpNoop})
	}
	if len(instructions) > 0 || len(blocks) == 0 {
		if err := flush(); err != nil {
			return nil, nil, err
		}
	}
	return blocks, nil, nil
}

type instruction struct {
	op    UserOp
	value core.Element
}

func parseInstruction(token string) (instruction, error) {
	if rest, ok := strings.CutPrefix(token, "push."); ok {
		value, ok := new(big.Int).SetString(rest, 10)
		if !ok {
			return instruction{}, fmt.Errorf("invalid push operand %q", rest)
		}
		return instruction{op: OpPush, value: core.NewElementFromBig(value)}, nil
	}
	for op, name := range userOpNames {
		if name == token && op != OpPush {
			return instruction{op: op}, nil
		}
	}
	return instruction{}, fmt.Errorf("unknown instruction %q", token)
}

// buildSpans splits an instruction run into NOOP-padded 15-operation spans.
func buildSpans(instructions []instruction) ([]Block, error) {
	if len(instructions) == 0 {
		return nil, nil
	}
	var blocks []Block
	for start := 0; start < len(instructions); start += SpanLength {
		end := start + SpanLength
		if end > len(instructions) {
			end = len(instructions)
		}
		chunk := instructions[start:end]
		ops := make([]UserOp, len(chunk))
		hints := make(map[int]core.Element)
		for i, inst := range chunk {
			ops[i] = inst.op
			if inst.op == OpPush {
				hints[i] = inst.value
			}
		}
		span, err := NewSpan(ops, hints)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, span)
	}
	return blocks, nil
}
