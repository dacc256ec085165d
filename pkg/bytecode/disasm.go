package bytecode

import (
	"fmt"
	"io"
)

// Disassemble writes a human-readable listing of chunk to w: the constant
// pool followed by the instruction stream, grounded on the teacher CLI's
// disassembleFile helper but walking the packed byte stream instead of a
// slice of fixed-width Instruction structs.
func Disassemble(w io.Writer, name string, chunk *Chunk) {
	fmt.Fprintf(w, "=== %s ===\n", name)
	fmt.Fprintln(w, "Constants:")
	if len(chunk.Constants) == 0 {
		fmt.Fprintln(w, "  (empty)")
	}
	for i, c := range chunk.Constants {
		fmt.Fprintf(w, "  [%d] %s\n", i, formatConstant(c))
	}

	fmt.Fprintln(w, "Instructions:")
	offset := 0
	for offset < len(chunk.Code) {
		offset = disassembleInstruction(w, chunk, offset)
	}

	for i, c := range chunk.Constants {
		if c.Kind == ConstFunction && c.FunctionChunk != nil {
			fmt.Fprintln(w)
			Disassemble(w, fmt.Sprintf("%s (function %s, const %d)", name, c.FunctionName, i), c.FunctionChunk)
		}
	}
}

func formatConstant(c Constant) string {
	switch c.Kind {
	case ConstNumber:
		return fmt.Sprintf("number: %g", c.Number)
	case ConstString:
		return fmt.Sprintf("string: %q", c.Str)
	case ConstBoolean:
		return fmt.Sprintf("boolean: %t", c.Boolean)
	case ConstNull:
		return "null"
	case ConstFunction:
		return fmt.Sprintf("function: %s (%d params)", c.FunctionName, len(c.FunctionParams))
	default:
		return "unknown"
	}
}

func disassembleInstruction(w io.Writer, chunk *Chunk, offset int) int {
	op := Op(chunk.Code[offset])
	line := 0
	if offset < len(chunk.Lines) {
		line = chunk.Lines[offset]
	}
	fmt.Fprintf(w, "  %4d [line %4d] %-20s", offset, line, op)

	width := OperandWidth(op)
	switch width {
	case 0:
		fmt.Fprintln(w)
		return offset + 1
	case 1:
		operand := chunk.Code[offset+1]
		fmt.Fprintf(w, " %d\n", operand)
		return offset + 2
	case 2:
		operand := ReadUint16(chunk.Code, offset+1)
		fmt.Fprintf(w, " %d\n", operand)
		return offset + 3
	default:
		fmt.Fprintln(w)
		return offset + 1
	}
}
