package emulator

import (
	"slices"
	"time"

	"github.com/ezrec/tonics/cpu"
	"github.com/ezrec/tonics/io"
)

// Snapshot is a copy of the machine state, for display.
type Snapshot struct {
	State  State
	Pc     int
	LineNo int // Source line of the program counter, or -1.
	Ir     cpu.Opcode

	Register cpu.Registers
	Flags    cpu.Flags
	Memory   cpu.Memory
	Stack    []int32
	Bus      cpu.Bus

	Output   string
	Screen   io.Screen
	Keyboard int // Queued key presses.

	Ticks   int           // Instructions executed since the start.
	Elapsed time.Duration // Time since the start.
}

// Rate returns the instructions executed per second.
func (snap *Snapshot) Rate() float64 {
	if snap.Elapsed <= 0 {
		return 0
	}
	return float64(snap.Ticks) / snap.Elapsed.Seconds()
}

// capture the machine state. The engine mutex must be held.
func (emu *Emulator) capture() (snap *Snapshot) {
	c := emu.Cpu
	snap = &Snapshot{
		State:    emu.state,
		Pc:       c.Pc,
		LineNo:   c.Program.LineNo(c.Pc),
		Ir:       c.Ir,
		Register: c.Register,
		Flags:    c.Flags,
		Memory:   c.Memory,
		Stack:    slices.Clone(c.Stack.Data),
		Bus:      c.Bus,
		Output:   emu.Interrupts.Output.String(),
		Screen:   *emu.Interrupts.Screen,
		Keyboard: emu.Interrupts.Keyboard.Len(),
		Ticks:    c.Ticks,
	}

	if !emu.started.IsZero() {
		snap.Elapsed = emu.Now().Sub(emu.started)
	}

	return
}
