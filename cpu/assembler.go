// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Predefined system equates
var sysEquate = map[string]string{
	"MEMORY_SIZE": fmt.Sprintf("%d", MEMORY_SIZE),
	"SP_INITIAL":  fmt.Sprintf("%d", SP_INITIAL),
}

var (
	reCharacter  = regexp.MustCompile(`'\\?[^']'`)
	reExpression = regexp.MustCompile(`\$\([^\$]*\)`)
	reSeparator  = regexp.MustCompile(`[\s,]+`)
	rePending    = regexp.MustCompile(`\$\{[0-9]+\}`)
)

// Assembler is a two pass assembler for the TONICS system.
//
// Every source line becomes exactly one instruction, so the program
// counter always maps back to a source line. Problems in the source
// never stop assembly: the offending line is kept as a NOP, and the
// problem is recorded in the program's warnings.
type Assembler struct {
	Verbose bool // If set, verbosely logs the assembler actions.

	predefine map[string]string // Predefines
	Label     map[string]int    // Map of labels to instruction indexes.
	Equate    map[string]string // Map of equates.

	warnings []error
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// warn records a non-fatal assembly diagnostic.
func (asm *Assembler) warn(lineno int, line string, err error) {
	err = ErrSyntax{LineNo: lineno, Line: line, Err: err}
	if asm.Verbose {
		log.Printf("%v", err)
	}
	asm.warnings = append(asm.warnings, err)
}

// valueOf returns the value of a numeric word, with an optional '#' prefix.
// Values wrap to 32 bits.
func valueOf(word string) (value int32, err error) {
	word = strings.TrimPrefix(word, "#")
	negative := strings.HasPrefix(word, "-")
	if negative {
		word = word[1:]
	}
	v64, perr := strconv.ParseUint(word, 0, 64)
	if perr != nil || len(word) == 0 {
		err = ErrParseNumber(word)
		return
	}

	value = int32(uint32(v64))
	if negative {
		value = -value
	}

	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int32, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var value32 int32
		value32, err = valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			continue
		}
		pred[key] = starlark.MakeInt(int(value32))
	}
	err = nil
	for key, index := range asm.Label {
		pred[key] = starlark.MakeInt(index)
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		err = ErrParseExpression(expr)
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = int32(st_int64)
	return
}

// characters expands 'c' character constants into their values.
func characters(line string) string {
	return reCharacter.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "r":
				str = "\r"
			case "t":
				str = "\t"
			case "e":
				str = "\033"
			case "'":
				str = "'"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%d", str[0])
	})
}

// parseLine splits a line into its label and words. Compile-time
// expressions are replaced by ${n} placeholders, and returned in exprs.
func (asm *Assembler) parseLine(text string, lineno int, index int) (inst Instruction, exprs []string) {
	inst = Instruction{
		LineNo: lineno,
		Text:   text,
		Blank:  true,
		Opcode: OP_NOP,
	}

	// Character constants may be ';'.
	line, _, _ := strings.Cut(characters(text), ";")
	line = strings.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	line = reExpression.ReplaceAllStringFunc(line, func(str string) string {
		exprs = append(exprs, str[2:len(str)-1])
		return fmt.Sprintf("${%d}", len(exprs)-1)
	})
	if strings.Contains(line, "$(") {
		asm.warn(lineno, text, ErrExpressionDangling)
		return
	}

	label, rest, found := strings.Cut(line, ":")
	if found {
		label = strings.TrimSpace(label)
		if len(label) > 0 {
			_, ok := asm.Label[label]
			if ok {
				asm.warn(lineno, text, ErrLabelDuplicate(label))
			}
			asm.Label[label] = index
			inst.Label = label
		}
		line = strings.TrimSpace(rest)
	}

	var words []string
	for _, word := range reSeparator.Split(line, -1) {
		if len(word) > 0 {
			words = append(words, word)
		}
	}

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if strings.EqualFold(words[0], ".equ") {
		if len(words) != 3 {
			asm.warn(lineno, text, ErrEquateSyntax)
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			asm.warn(lineno, text, ErrEquateDuplicate)
			return
		}
		value, err := asm.expand(words[2], exprs)
		if err != nil {
			asm.warn(lineno, text, err)
			return
		}
		asm.Equate[words[1]] = value
		exprs = nil
		return
	}

	inst.Blank = false
	inst.Mnemonic = strings.ToUpper(words[0])
	inst.Args = words[1:]
	inst.Opcode, _, _ = LookupOpcode(inst.Mnemonic)

	return
}

// expand replaces the ${n} placeholders in a word with evaluated expressions.
func (asm *Assembler) expand(word string, exprs []string) (out string, err error) {
	out = rePending.ReplaceAllStringFunc(word, func(str string) string {
		n, _ := strconv.Atoi(str[2 : len(str)-1])
		if n >= len(exprs) {
			return str
		}
		value, _err := asm.parenEval(exprs[n])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%d", value)
	})
	return
}

// resolve rewrites label and equate arguments, evaluates expressions,
// and decodes the operands.
func (asm *Assembler) resolve(inst *Instruction, exprs []string) {
	for n, arg := range inst.Args {
		index, ok := asm.Label[arg]
		if ok {
			inst.Args[n] = fmt.Sprintf("#%d", index)
			continue
		}

		equate, ok := asm.Equate[arg]
		if ok {
			inst.Args[n] = equate
		} else if name, isImm := strings.CutPrefix(arg, "#"); isImm {
			equate, ok = asm.Equate[name]
			if ok {
				inst.Args[n] = "#" + strings.TrimPrefix(equate, "#")
			}
		}

		if len(exprs) != 0 {
			value, err := asm.expand(inst.Args[n], exprs)
			if err != nil {
				inst.Err = err
				return
			}
			inst.Args[n] = value
		}
	}

	if !inst.Known() {
		return
	}

	inst.Operands, inst.Err = decode(inst.Mnemonic, inst.Args)
}

// decode converts arguments to operands, per the opcode format.
func decode(mnemonic string, args []string) (operands []Operand, err error) {
	_, format, _ := LookupOpcode(mnemonic)

	if len(args) < format.Args() {
		err = ErrOperandMissing
		return
	}

	reg := func(word string) (opnd Operand, err error) {
		r, ok := ParseRegister(word)
		if !ok {
			err = ErrParseRegister(word)
			return
		}
		opnd = Operand{IsReg: true, Reg: r}
		return
	}

	imm := func(word string) (opnd Operand, err error) {
		value, err := valueOf(word)
		if err != nil {
			return
		}
		opnd = Operand{Imm: value}
		return
	}

	val := func(word string) (opnd Operand, err error) {
		r, ok := ParseRegister(word)
		if ok {
			opnd = Operand{IsReg: true, Reg: r}
			return
		}
		return imm(word)
	}

	var decoders []func(string) (Operand, error)
	switch format {
	case FORMAT_NONE:
	case FORMAT_REG:
		decoders = append(decoders, reg)
	case FORMAT_IMM:
		decoders = append(decoders, imm)
	case FORMAT_REG_IMM:
		decoders = append(decoders, reg, imm)
	case FORMAT_REG_REG:
		decoders = append(decoders, reg, reg)
	case FORMAT_REG_VAL:
		decoders = append(decoders, reg, val)
	case FORMAT_REG_REG_REG:
		decoders = append(decoders, reg, reg, reg)
	case FORMAT_REG_REG_IMM:
		decoders = append(decoders, reg, reg, imm)
	}

	for n, decoder := range decoders {
		var opnd Operand
		opnd, err = decoder(args[n])
		if err != nil {
			operands = nil
			return
		}
		operands = append(operands, opnd)
	}

	return
}

// Parse parses an input stream into a Program.
//
// The only error returned is from reading the input. Problems with the
// source text are recorded in Program.Warnings.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	data, err := io.ReadAll(input)
	if err != nil {
		return
	}

	asm.Label = make(map[string]int, 16)
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}
	asm.warnings = nil

	lines := strings.Split(string(data), "\n")

	prog = &Program{
		Instructions: make([]Instruction, 0, len(lines)),
		LineMap:      make([]int, 0, len(lines)),
	}

	// First pass: one instruction per line, and label collection.
	exprs := make([][]string, 0, len(lines))
	for lineno, text := range lines {
		text = strings.TrimSuffix(text, "\r")

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno+1, text)
		}

		inst, inst_exprs := asm.parseLine(text, lineno, len(prog.Instructions))
		prog.Instructions = append(prog.Instructions, inst)
		prog.LineMap = append(prog.LineMap, lineno)
		exprs = append(exprs, inst_exprs)
	}

	// Second pass: label, equate, and expression resolution.
	for n := range prog.Instructions {
		inst := &prog.Instructions[n]
		if inst.Blank {
			continue
		}
		asm.resolve(inst, exprs[n])
		if inst.Err != nil {
			asm.warn(inst.LineNo, inst.Text, inst.Err)
		}
	}

	prog.Labels = maps.Clone(asm.Label)
	prog.Warnings = asm.warnings

	return
}
