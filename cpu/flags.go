package cpu

import (
	"fmt"
)

// Packed flag bits, as used by PUSHF and POPF.
const (
	FLAG_ZERO     = int32(1 << 0)
	FLAG_CARRY    = int32(1 << 1)
	FLAG_NEGATIVE = int32(1 << 2)
	FLAG_OVERFLOW = int32(1 << 3)
)

// Flags is the condition flag register.
type Flags struct {
	Zero      bool
	Carry     bool
	Negative  bool
	Overflow  bool
	Interrupt bool // Global interrupt enable.
}

// Pack the four arithmetic flags into a single word.
func (fl Flags) Pack() (value int32) {
	if fl.Zero {
		value |= FLAG_ZERO
	}
	if fl.Carry {
		value |= FLAG_CARRY
	}
	if fl.Negative {
		value |= FLAG_NEGATIVE
	}
	if fl.Overflow {
		value |= FLAG_OVERFLOW
	}
	return
}

// Unpack the four arithmetic flags from a word. The interrupt flag
// is unchanged.
func (fl *Flags) Unpack(value int32) {
	fl.Zero = (value & FLAG_ZERO) != 0
	fl.Carry = (value & FLAG_CARRY) != 0
	fl.Negative = (value & FLAG_NEGATIVE) != 0
	fl.Overflow = (value & FLAG_OVERFLOW) != 0
}

// setZN sets the zero and negative flags from a result.
func (fl *Flags) setZN(result int32) {
	fl.Zero = result == 0
	fl.Negative = result < 0
}

func (fl Flags) String() string {
	bit := func(set bool, name byte) byte {
		if set {
			return name
		}
		return '-'
	}
	return fmt.Sprintf("%c%c%c%c%c",
		bit(fl.Zero, 'Z'),
		bit(fl.Carry, 'C'),
		bit(fl.Negative, 'N'),
		bit(fl.Overflow, 'V'),
		bit(fl.Interrupt, 'I'))
}
