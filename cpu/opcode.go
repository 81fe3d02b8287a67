package cpu

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Opcode is the numeric instruction code, as reported in the instruction register.
type Opcode int

const (
	// Data movement
	OP_LOAD = Opcode(0x01)
	OP_MOV  = Opcode(0x02)
	OP_LDR  = Opcode(0x03)
	OP_STR  = Opcode(0x04)
	OP_LDRI = Opcode(0x05)
	OP_STRI = Opcode(0x06)
	OP_LEA  = Opcode(0x07)
	OP_SWAP = Opcode(0x08)

	// Arithmetic
	OP_ADD  = Opcode(0x10)
	OP_SUB  = Opcode(0x11)
	OP_MUL  = Opcode(0x12)
	OP_DIV  = Opcode(0x13)
	OP_ADDI = Opcode(0x14)
	OP_SUBI = Opcode(0x15)
	OP_MULI = Opcode(0x16)
	OP_DIVI = Opcode(0x17)
	OP_MOD  = Opcode(0x18)
	OP_MODI = Opcode(0x19)
	OP_POW  = Opcode(0x1a)
	OP_SQRT = Opcode(0x1b)
	OP_ABS  = Opcode(0x1c)
	OP_NEG  = Opcode(0x1d)
	OP_INC  = Opcode(0x1e)
	OP_DEC  = Opcode(0x1f)

	// Logic
	OP_AND  = Opcode(0x20)
	OP_OR   = Opcode(0x21)
	OP_XOR  = Opcode(0x22)
	OP_NOT  = Opcode(0x23)
	OP_SHL  = Opcode(0x24)
	OP_SHR  = Opcode(0x25)
	OP_ROL  = Opcode(0x26)
	OP_ROR  = Opcode(0x27)
	OP_NAND = Opcode(0x28)
	OP_NOR  = Opcode(0x29)

	// Bit manipulation
	OP_SETBIT  = Opcode(0x2a)
	OP_CLRBIT  = Opcode(0x2b)
	OP_TOGBIT  = Opcode(0x2c)
	OP_TESTBIT = Opcode(0x2d)
	OP_POPCNT  = Opcode(0x2e)
	OP_CLZ     = Opcode(0x2f)

	// Comparison
	OP_CMP   = Opcode(0x30)
	OP_CMPI  = Opcode(0x31)
	OP_TEST  = Opcode(0x32)
	OP_TESTI = Opcode(0x33)

	// Branch
	OP_JMP = Opcode(0x40)
	OP_JEQ = Opcode(0x41)
	OP_JNE = Opcode(0x42)
	OP_JLT = Opcode(0x43)
	OP_JGT = Opcode(0x44)
	OP_JLE = Opcode(0x45)
	OP_JGE = Opcode(0x46)
	OP_JZ  = Opcode(0x47)
	OP_JNZ = Opcode(0x48)
	OP_JC  = Opcode(0x49)
	OP_JNC = Opcode(0x4a)
	OP_JO  = Opcode(0x4b)
	OP_JNO = Opcode(0x4c)

	// Stack
	OP_PUSH  = Opcode(0x50)
	OP_POP   = Opcode(0x51)
	OP_CALL  = Opcode(0x52)
	OP_RET   = Opcode(0x53)
	OP_PUSHA = Opcode(0x54)
	OP_POPA  = Opcode(0x55)
	OP_PUSHF = Opcode(0x56)
	OP_POPF  = Opcode(0x57)

	// System
	OP_INT  = Opcode(0x60)
	OP_IRET = Opcode(0x62)
	OP_CLI  = Opcode(0x63)
	OP_STI  = Opcode(0x64)
	OP_HLT  = Opcode(0x65)
	OP_WAIT = Opcode(0x66)

	// Control
	OP_NOP   = Opcode(0x00)
	OP_DEBUG = Opcode(0xfd)
	OP_RESET = Opcode(0xfe)
	OP_HALT  = Opcode(0xff)

	OP_UNKNOWN = Opcode(-1) // Mnemonic not in the instruction set.
)

// Format describes the operands an opcode takes.
type Format int

const (
	FORMAT_NONE        = Format(iota) // no operands
	FORMAT_REG                        // r
	FORMAT_IMM                        // #imm or label
	FORMAT_REG_IMM                    // r, #imm
	FORMAT_REG_REG                    // r, r
	FORMAT_REG_VAL                    // r, r or #imm
	FORMAT_REG_REG_REG                // r, r, r
	FORMAT_REG_REG_IMM                // r, r, #imm
)

var formatArgs = [...]int{
	FORMAT_NONE:        0,
	FORMAT_REG:         1,
	FORMAT_IMM:         1,
	FORMAT_REG_IMM:     2,
	FORMAT_REG_REG:     2,
	FORMAT_REG_VAL:     2,
	FORMAT_REG_REG_REG: 3,
	FORMAT_REG_REG_IMM: 3,
}

// Args returns the number of operands required by the format.
func (format Format) Args() int {
	return formatArgs[format]
}

// opcodeInfo describes a mnemonic.
type opcodeInfo struct {
	Opcode Opcode
	Format Format
}

// opcodeMap maps mnemonics to opcodes.
var opcodeMap = map[string]opcodeInfo{
	"LOAD": {OP_LOAD, FORMAT_REG_IMM},
	"MOV":  {OP_MOV, FORMAT_REG_REG},
	"LDR":  {OP_LDR, FORMAT_REG_IMM},
	"STR":  {OP_STR, FORMAT_REG_IMM},
	"LDRI": {OP_LDRI, FORMAT_REG_REG},
	"STRI": {OP_STRI, FORMAT_REG_REG},
	"LEA":  {OP_LEA, FORMAT_REG_IMM},
	"SWAP": {OP_SWAP, FORMAT_REG_REG},

	"ADD":  {OP_ADD, FORMAT_REG_REG_REG},
	"SUB":  {OP_SUB, FORMAT_REG_REG_REG},
	"MUL":  {OP_MUL, FORMAT_REG_REG_REG},
	"DIV":  {OP_DIV, FORMAT_REG_REG_REG},
	"ADDI": {OP_ADDI, FORMAT_REG_REG_IMM},
	"SUBI": {OP_SUBI, FORMAT_REG_REG_IMM},
	"MULI": {OP_MULI, FORMAT_REG_REG_IMM},
	"DIVI": {OP_DIVI, FORMAT_REG_REG_IMM},
	"MOD":  {OP_MOD, FORMAT_REG_REG_REG},
	"MODI": {OP_MODI, FORMAT_REG_REG_IMM},
	"POW":  {OP_POW, FORMAT_REG_REG_REG},
	"SQRT": {OP_SQRT, FORMAT_REG_REG},
	"ABS":  {OP_ABS, FORMAT_REG_REG},
	"NEG":  {OP_NEG, FORMAT_REG_REG},
	"INC":  {OP_INC, FORMAT_REG},
	"DEC":  {OP_DEC, FORMAT_REG},

	"AND":  {OP_AND, FORMAT_REG_REG_REG},
	"OR":   {OP_OR, FORMAT_REG_REG_REG},
	"XOR":  {OP_XOR, FORMAT_REG_REG_REG},
	"NOT":  {OP_NOT, FORMAT_REG_REG},
	"SHL":  {OP_SHL, FORMAT_REG_REG_IMM},
	"SHR":  {OP_SHR, FORMAT_REG_REG_IMM},
	"ROL":  {OP_ROL, FORMAT_REG_REG_IMM},
	"ROR":  {OP_ROR, FORMAT_REG_REG_IMM},
	"NAND": {OP_NAND, FORMAT_REG_REG_REG},
	"NOR":  {OP_NOR, FORMAT_REG_REG_REG},

	"SETBIT":  {OP_SETBIT, FORMAT_REG_REG_IMM},
	"CLRBIT":  {OP_CLRBIT, FORMAT_REG_REG_IMM},
	"TOGBIT":  {OP_TOGBIT, FORMAT_REG_REG_IMM},
	"TESTBIT": {OP_TESTBIT, FORMAT_REG_IMM},
	"POPCNT":  {OP_POPCNT, FORMAT_REG_REG},
	"CLZ":     {OP_CLZ, FORMAT_REG_REG},

	"CMP":   {OP_CMP, FORMAT_REG_VAL},
	"CMPI":  {OP_CMPI, FORMAT_REG_IMM},
	"TEST":  {OP_TEST, FORMAT_REG_REG},
	"TESTI": {OP_TESTI, FORMAT_REG_IMM},

	"JMP": {OP_JMP, FORMAT_IMM},
	"JEQ": {OP_JEQ, FORMAT_IMM},
	"JNE": {OP_JNE, FORMAT_IMM},
	"JLT": {OP_JLT, FORMAT_IMM},
	"JGT": {OP_JGT, FORMAT_IMM},
	"JLE": {OP_JLE, FORMAT_IMM},
	"JGE": {OP_JGE, FORMAT_IMM},
	"JZ":  {OP_JZ, FORMAT_IMM},
	"JNZ": {OP_JNZ, FORMAT_IMM},
	"JC":  {OP_JC, FORMAT_IMM},
	"JNC": {OP_JNC, FORMAT_IMM},
	"JO":  {OP_JO, FORMAT_IMM},
	"JNO": {OP_JNO, FORMAT_IMM},

	"PUSH":  {OP_PUSH, FORMAT_REG},
	"POP":   {OP_POP, FORMAT_REG},
	"CALL":  {OP_CALL, FORMAT_IMM},
	"RET":   {OP_RET, FORMAT_NONE},
	"PUSHA": {OP_PUSHA, FORMAT_NONE},
	"POPA":  {OP_POPA, FORMAT_NONE},
	"PUSHF": {OP_PUSHF, FORMAT_NONE},
	"POPF":  {OP_POPF, FORMAT_NONE},

	"INT":  {OP_INT, FORMAT_IMM},
	"IRET": {OP_IRET, FORMAT_NONE},
	"CLI":  {OP_CLI, FORMAT_NONE},
	"STI":  {OP_STI, FORMAT_NONE},
	"HLT":  {OP_HLT, FORMAT_NONE},
	"WAIT": {OP_WAIT, FORMAT_NONE},

	"NOP":   {OP_NOP, FORMAT_NONE},
	"DEBUG": {OP_DEBUG, FORMAT_NONE},
	"RESET": {OP_RESET, FORMAT_NONE},
	"HALT":  {OP_HALT, FORMAT_NONE},
}

// LookupOpcode finds the opcode and operand format of a mnemonic.
func LookupOpcode(mnemonic string) (op Opcode, format Format, ok bool) {
	info, ok := opcodeMap[strings.ToUpper(mnemonic)]
	if !ok {
		op = OP_UNKNOWN
		return
	}

	op = info.Opcode
	format = info.Format
	return
}

// Mnemonics returns all known mnemonics, sorted.
func Mnemonics() (names []string) {
	return slices.Sorted(maps.Keys(opcodeMap))
}

// IsBranch returns true for the jump family.
func (op Opcode) IsBranch() bool {
	return op >= OP_JMP && op <= OP_JNO
}

func (op Opcode) String() string {
	for name, info := range opcodeMap {
		if info.Opcode == op {
			return name
		}
	}
	return fmt.Sprintf("0x%02x", int(op))
}
