package cpu

import (
	"strings"
)

// Register identifies a slot in the register file.
type Register int

const (
	REG_R0 = Register(iota) // General purpose
	REG_R1
	REG_R2
	REG_R3
	REG_R4
	REG_R5
	REG_R6
	REG_R7
	REG_SP // Stack pointer (bookkeeping counter)
	REG_LR // Link register
	REGISTER_COUNT
)

const (
	SP_INITIAL = 255 // Initial stack pointer value.
	GP_COUNT   = 8   // Number of general purpose registers.
)

var registerName = [REGISTER_COUNT]string{
	"R0", "R1", "R2", "R3", "R4", "R5", "R6", "R7", "SP", "LR",
}

func (reg Register) String() string {
	if reg < 0 || reg >= REGISTER_COUNT {
		return "R?"
	}
	return registerName[reg]
}

// ParseRegister looks up a register by name, case insensitive.
func ParseRegister(name string) (reg Register, ok bool) {
	name = strings.ToUpper(name)
	for n, regName := range registerName {
		if name == regName {
			reg = Register(n)
			ok = true
			return
		}
	}

	return
}

// Registers is the register file.
type Registers [REGISTER_COUNT]int32

// Reset restores the power-on values.
func (regs *Registers) Reset() {
	*regs = Registers{}
	regs[REG_SP] = SP_INITIAL
}
