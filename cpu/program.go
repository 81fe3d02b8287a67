package cpu

import (
	"fmt"
	"iter"
	"strings"
)

// Operand is a decoded instruction argument.
type Operand struct {
	IsReg bool     // Set if the operand names a register.
	Reg   Register // Register, if IsReg.
	Imm   int32    // Immediate value, if not IsReg.
}

func (opnd Operand) String() string {
	if opnd.IsReg {
		return opnd.Reg.String()
	}
	return fmt.Sprintf("#%d", opnd.Imm)
}

// Instruction is a single assembled source line.
type Instruction struct {
	LineNo   int      // Source line index, zero based.
	Text     string   // Original source text.
	Label    string   // Label defined on this line, if any.
	Blank    bool     // Set for blank, comment-only, label-only and directive lines.
	Mnemonic string   // Upper-cased mnemonic.
	Args     []string // Arguments after label, equate and expression resolution.

	Opcode   Opcode    // Decoded opcode, OP_UNKNOWN if not in the instruction set.
	Operands []Operand // Decoded operands.
	Err      error     // Operand decode error. The instruction executes as a NOP.
}

// Known returns true if the mnemonic is in the instruction set.
func (inst *Instruction) Known() bool {
	return inst.Opcode != OP_UNKNOWN
}

// String returns the canonical disassembly of the instruction.
func (inst *Instruction) String() string {
	if inst.Blank {
		return "NOP"
	}

	if inst.Err != nil || !inst.Known() {
		if len(inst.Args) == 0 {
			return inst.Mnemonic
		}
		return inst.Mnemonic + " " + strings.Join(inst.Args, ", ")
	}

	var args []string
	for _, opnd := range inst.Operands {
		args = append(args, opnd.String())
	}

	if len(args) == 0 {
		return inst.Mnemonic
	}

	return inst.Mnemonic + " " + strings.Join(args, ", ")
}

// Program is an assembled instruction stream.
type Program struct {
	Instructions []Instruction // One instruction per source line.
	LineMap      []int         // Instruction index to source line index.
	Labels       map[string]int
	Warnings     []error // Non-fatal assembly diagnostics.
}

// Len returns the length of the instruction stream.
func (prog *Program) Len() int {
	if prog == nil {
		return 0
	}
	return len(prog.Instructions)
}

// Debug returns the instruction at a program counter, or nil if out of range.
func (prog *Program) Debug(pc int) (inst *Instruction) {
	if pc < 0 || pc >= prog.Len() {
		return
	}

	return &prog.Instructions[pc]
}

// LineNo returns the source line for a program counter, or -1 if out of range.
func (prog *Program) LineNo(pc int) int {
	if pc < 0 || pc >= prog.Len() || pc >= len(prog.LineMap) {
		return -1
	}

	return prog.LineMap[pc]
}

// Listing iterates over the executable instructions by program counter.
func (prog *Program) Listing() iter.Seq2[int, *Instruction] {
	return func(yield func(pc int, inst *Instruction) bool) {
		for pc := range prog.Len() {
			inst := &prog.Instructions[pc]
			if inst.Blank {
				continue
			}
			if !yield(pc, inst) {
				return
			}
		}
	}
}
