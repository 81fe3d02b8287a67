package cpu

import (
	"fmt"
	"io"
	"iter"
	"log"
	"maps"
	"strings"
)

var _cpu_defines = map[string]string{
	"FLAG_ZERO":     fmt.Sprintf("%d", FLAG_ZERO),
	"FLAG_CARRY":    fmt.Sprintf("%d", FLAG_CARRY),
	"FLAG_NEGATIVE": fmt.Sprintf("%d", FLAG_NEGATIVE),
	"FLAG_OVERFLOW": fmt.Sprintf("%d", FLAG_OVERFLOW),
}

// Console messages written by the CPU.
const (
	MSG_HALTED  = "\n--- Program halted ---\n"
	MSG_UNKNOWN = "\nUnknown instruction: %v\n"
)

// Interrupter services software interrupts raised by INT.
type Interrupter interface {
	Interrupt(cpu *Cpu, vector int32)
}

// Cpu is the simulation context for the TONICS processor.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Program *Program // Currently loaded program.

	Pc       int       // Program counter, an index into the instruction stream.
	Ir       Opcode    // Opcode of the last executed instruction.
	Register Registers // Register file.
	Flags    Flags     // Flag register.
	Memory   Memory    // Data memory.
	Stack    Stack     // Call and data stack.
	Halted   bool      // Set by HALT.
	Bus      Bus       // Bus activity of the last executed instruction.

	Ticks int // Instructions executed since reset.

	Console     io.Writer   // Destination of diagnostics and halt messages.
	Interrupter Interrupter // Software interrupt dispatcher.
}

// NewCpu creates a new CPU in its reset state.
func NewCpu() (cpu *Cpu) {
	cpu = &Cpu{}
	cpu.Reset()

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	text += fmt.Sprintf("% 5s: %d\n", "pc", cpu.Pc)
	text += fmt.Sprintf("% 5s: %v\n", "flags", cpu.Flags)
	for reg := range REGISTER_COUNT {
		val := cpu.Register[reg]
		text += fmt.Sprintf("% 5s: %04X_%04X (%d)\n", reg, uint32(val)>>16, uint32(val)&0xffff, val)
	}
	val, ok := cpu.Stack.Peek()
	if ok {
		text += fmt.Sprintf("% 5s: %04X_%04X (%d deep)\n", "stack", uint32(val)>>16, uint32(val)&0xffff, cpu.Stack.Len())
	} else {
		text += fmt.Sprintf("% 5s: ----_----\n", "stack")
	}

	return
}

// ResetState reinitializes the registers, flags, memory and stack.
func (cpu *Cpu) ResetState() {
	cpu.Register.Reset()
	cpu.Flags = Flags{}
	cpu.Memory.Reset()
	cpu.Stack.Reset()
}

// Reset the CPU state.
// - Reinitializes the registers, flags, memory and stack.
// - Sets the program counter to the start of the program.
// - Zeros statistics counters.
func (cpu *Cpu) Reset() {
	cpu.ResetState()
	cpu.Pc = 0
	cpu.Ir = OP_NOP
	cpu.Halted = false
	cpu.Bus = Bus{}
	cpu.Ticks = 0
}

// Load a program, and reset the CPU.
func (cpu *Cpu) Load(prog *Program) {
	cpu.Program = prog
	cpu.Reset()
}

// print writes to the console, if any.
func (cpu *Cpu) print(format string, args ...any) {
	if cpu.Console == nil {
		return
	}
	fmt.Fprintf(cpu.Console, format, args...)
}

// target clamps a branch target to the instruction stream.
func (cpu *Cpu) target(pc int32) int {
	end := cpu.Program.Len()
	if pc < 0 || int(pc) > end {
		return end
	}
	return int(pc)
}

// Vector transfers control to an interrupt handler, saving the program
// counter and packed flags on the stack.
func (cpu *Cpu) Vector(handler int32) {
	cpu.Stack.Push(int32(cpu.Pc))
	cpu.Stack.Push(cpu.Flags.Pack())
	cpu.Register[REG_SP] -= 2
	cpu.Flags.Interrupt = true
	cpu.Pc = cpu.target(handler)
	cpu.Bus = Bus{Type: BUS_INTERRUPT, Address: handler, HasAddress: true, Data: int32(cpu.Pc)}

	if cpu.Verbose {
		log.Printf("vector: %d", cpu.Pc)
	}
}

// Tick executes the next instruction, skipping over blank lines.
// Returns ErrPcEnd when the end of the program is reached, and ErrHalted
// once HALT has been executed.
func (cpu *Cpu) Tick() (err error) {
	if cpu.Halted {
		err = ErrHalted
		return
	}

	prog := cpu.Program
	if prog == nil {
		err = ErrNoProgram
		return
	}

	for cpu.Pc < prog.Len() && prog.Instructions[cpu.Pc].Blank {
		cpu.Pc++
	}

	if cpu.Pc >= prog.Len() {
		err = ErrPcEnd
		return
	}

	inst := &prog.Instructions[cpu.Pc]
	if cpu.Verbose {
		log.Printf("%3d: %v", inst.LineNo+1, inst)
	}

	cpu.Execute(inst)
	cpu.Ticks++

	if cpu.Halted {
		err = ErrHalted
	}

	return
}

// Execute a single instruction, and advance the program counter.
func (cpu *Cpu) Execute(inst *Instruction) {
	pc := cpu.Pc
	next := pc + 1

	defer func() {
		cpu.Pc = next
	}()

	if inst.Blank {
		cpu.Ir = OP_NOP
		cpu.Bus = Bus{Type: BUS_NOP}
		return
	}

	cpu.Ir = inst.Opcode

	if !inst.Known() {
		cpu.print(MSG_UNKNOWN, inst.Mnemonic)
		cpu.Bus = Bus{Type: BUS_ERROR}
		return
	}

	if inst.Err != nil {
		if cpu.Verbose {
			log.Printf("%3d: %v: %v", inst.LineNo+1, inst.Text, inst.Err)
		}
		cpu.Bus = Bus{Type: BUS_ERROR}
		return
	}

	ops := inst.Operands
	regs := &cpu.Register
	fl := &cpu.Flags

	get := func(n int) int32 {
		if ops[n].IsReg {
			return regs[ops[n].Reg]
		}
		return ops[n].Imm
	}
	set := func(n int, value int32) {
		regs[ops[n].Reg] = value
	}
	bus := func(kind BusType, data int32) {
		cpu.Bus = Bus{Type: kind, Data: data}
	}
	busAt := func(kind BusType, addr int32, data int32) {
		cpu.Bus = Bus{Type: kind, Address: addr, HasAddress: true, Data: data}
	}
	branch := func(taken bool) {
		target := ops[0].Imm
		if taken {
			next = cpu.target(target)
			busAt(BUS_JUMP_TAKEN, target, int32(next))
		} else {
			busAt(BUS_JUMP_NOT_TAKEN, target, int32(next))
		}
	}
	push := func(value int32) {
		cpu.Stack.Push(value)
		regs[REG_SP]--
	}
	pop := func() (value int32, ok bool) {
		value, ok = cpu.Stack.Pop()
		if ok {
			regs[REG_SP]++
		}
		return
	}

	var result int32
	var carry, overflow bool

	switch inst.Opcode {
	// Data movement
	case OP_LOAD:
		set(0, get(1))
		bus(BUS_LOAD, get(1))
	case OP_MOV:
		set(0, get(1))
		bus(BUS_MOV, get(1))
	case OP_LDR:
		addr := get(1)
		set(0, cpu.Memory.Read(addr))
		busAt(BUS_LOAD_MEM, addr, get(0))
	case OP_STR:
		addr := get(1)
		cpu.store(inst, addr, get(0))
		busAt(BUS_STORE_MEM, addr, get(0))
	case OP_LDRI:
		addr := get(1)
		set(0, cpu.Memory.Read(addr))
		busAt(BUS_LOAD_INDIRECT, addr, get(0))
	case OP_STRI:
		addr := get(1)
		cpu.store(inst, addr, get(0))
		busAt(BUS_STORE_INDIRECT, addr, get(0))
	case OP_LEA:
		set(0, get(1))
		busAt(BUS_LEA, get(1), get(1))
	case OP_SWAP:
		a, b := get(0), get(1)
		set(0, b)
		set(1, a)
		bus(BUS_SWAP, b)

	// Arithmetic
	case OP_ADD, OP_ADDI:
		result, carry, overflow = add32(get(1), get(2))
		set(0, result)
		fl.setZN(result)
		fl.Carry = carry
		fl.Overflow = overflow
		bus(BUS_ALU, result)
	case OP_SUB, OP_SUBI:
		result, carry, overflow = sub32(get(1), get(2))
		set(0, result)
		fl.setZN(result)
		fl.Carry = carry
		fl.Overflow = overflow
		bus(BUS_ALU, result)
	case OP_MUL, OP_MULI:
		result, overflow = mul32(get(1), get(2))
		set(0, result)
		fl.setZN(result)
		fl.Overflow = overflow
		bus(BUS_ALU, result)
	case OP_DIV, OP_DIVI:
		result, overflow = div32(get(1), get(2))
		set(0, result)
		fl.setZN(result)
		fl.Overflow = overflow
		bus(BUS_ALU, result)
	case OP_MOD, OP_MODI:
		result, overflow = mod32(get(1), get(2))
		set(0, result)
		fl.setZN(result)
		fl.Overflow = overflow
		bus(BUS_ALU, result)
	case OP_POW:
		result, overflow = pow32(get(1), get(2))
		set(0, result)
		fl.setZN(result)
		fl.Overflow = overflow
		bus(BUS_ALU, result)
	case OP_SQRT:
		var negative bool
		result, negative = sqrt32(get(1))
		set(0, result)
		fl.Zero = result == 0
		fl.Negative = negative
		bus(BUS_ALU, result)
	case OP_ABS:
		src := get(1)
		result = src
		if src < 0 {
			result = -src
		}
		set(0, result)
		fl.Zero = result == 0
		fl.Negative = false
		fl.Overflow = src == -1<<31
		bus(BUS_ALU, result)
	case OP_NEG:
		src := get(1)
		result = -src
		set(0, result)
		fl.setZN(result)
		fl.Overflow = src == -1<<31
		bus(BUS_ALU, result)
	case OP_INC:
		result, carry, overflow = add32(get(0), 1)
		set(0, result)
		fl.setZN(result)
		fl.Carry = carry
		fl.Overflow = overflow
		bus(BUS_ALU, result)
	case OP_DEC:
		result, carry, overflow = sub32(get(0), 1)
		set(0, result)
		fl.setZN(result)
		fl.Carry = carry
		fl.Overflow = overflow
		bus(BUS_ALU, result)

	// Logic
	case OP_AND, OP_OR, OP_XOR, OP_NAND, OP_NOR:
		a, b := get(1), get(2)
		switch inst.Opcode {
		case OP_AND:
			result = a & b
		case OP_OR:
			result = a | b
		case OP_XOR:
			result = a ^ b
		case OP_NAND:
			result = ^(a & b)
		case OP_NOR:
			result = ^(a | b)
		}
		set(0, result)
		fl.setZN(result)
		bus(BUS_ALU, result)
	case OP_NOT:
		result = ^get(1)
		set(0, result)
		fl.setZN(result)
		bus(BUS_ALU, result)
	case OP_SHL, OP_ROL:
		if inst.Opcode == OP_SHL {
			result, carry = shl32(get(1), get(2))
		} else {
			result, carry = rol32(get(1), get(2))
		}
		set(0, result)
		fl.setZN(result)
		fl.Carry = carry
		bus(BUS_ALU, result)
	case OP_SHR:
		result, carry = shr32(get(1), get(2))
		set(0, result)
		fl.Zero = result == 0
		fl.Negative = false
		fl.Carry = carry
		bus(BUS_ALU, result)
	case OP_ROR:
		result, carry = ror32(get(1), get(2))
		set(0, result)
		fl.setZN(result)
		fl.Carry = carry
		bus(BUS_ALU, result)

	// Bit manipulation
	case OP_SETBIT:
		result = get(1) | (1 << (get(2) & 31))
		set(0, result)
		bus(BUS_BIT, result)
	case OP_CLRBIT:
		result = get(1) &^ (1 << (get(2) & 31))
		set(0, result)
		bus(BUS_BIT, result)
	case OP_TOGBIT:
		result = get(1) ^ (1 << (get(2) & 31))
		set(0, result)
		bus(BUS_BIT, result)
	case OP_TESTBIT:
		result = (get(0) >> (get(1) & 31)) & 1
		fl.Zero = result == 0
		fl.Carry = result == 1
		bus(BUS_BIT, result)
	case OP_POPCNT:
		result = popcnt32(get(1))
		set(0, result)
		fl.Zero = result == 0
		bus(BUS_BIT, result)
	case OP_CLZ:
		result = clz32(get(1))
		set(0, result)
		fl.Zero = result == 0
		bus(BUS_BIT, result)

	// Comparison
	case OP_CMP, OP_CMPI:
		a, b := get(0), get(1)
		exact := int64(a) - int64(b)
		fl.Zero = exact == 0
		fl.Negative = exact < 0
		fl.Carry = a < b
		bus(BUS_CMP, int32(exact))
	case OP_TEST, OP_TESTI:
		result = get(0) & get(1)
		fl.setZN(result)
		bus(BUS_CMP, result)

	// Branch
	case OP_JMP:
		branch(true)
	case OP_JEQ, OP_JZ:
		branch(fl.Zero)
	case OP_JNE, OP_JNZ:
		branch(!fl.Zero)
	case OP_JLT:
		branch(fl.Negative && !fl.Zero)
	case OP_JGT:
		branch(!fl.Negative && !fl.Zero)
	case OP_JLE:
		branch(fl.Negative || fl.Zero)
	case OP_JGE:
		branch(!fl.Negative || fl.Zero)
	case OP_JC:
		branch(fl.Carry)
	case OP_JNC:
		branch(!fl.Carry)
	case OP_JO:
		branch(fl.Overflow)
	case OP_JNO:
		branch(!fl.Overflow)

	// Stack
	case OP_PUSH:
		push(get(0))
		busAt(BUS_PUSH, regs[REG_SP], get(0))
	case OP_POP:
		value, ok := pop()
		if ok {
			set(0, value)
		}
		busAt(BUS_POP, regs[REG_SP], value)
	case OP_CALL:
		push(int32(pc + 1))
		next = cpu.target(ops[0].Imm)
		busAt(BUS_CALL, ops[0].Imm, int32(pc+1))
	case OP_RET:
		value, ok := pop()
		if ok {
			next = cpu.target(value)
		}
		busAt(BUS_RET, regs[REG_SP], value)
	case OP_PUSHA:
		for reg := REG_R0; reg <= REG_R7; reg++ {
			push(regs[reg])
		}
		busAt(BUS_PUSH, regs[REG_SP], regs[REG_R7])
	case OP_POPA:
		for reg := REG_R7; reg >= REG_R0; reg-- {
			value, ok := pop()
			if ok {
				regs[reg] = value
			}
		}
		busAt(BUS_POP, regs[REG_SP], regs[REG_R0])
	case OP_PUSHF:
		push(fl.Pack())
		busAt(BUS_PUSH, regs[REG_SP], fl.Pack())
	case OP_POPF:
		value, ok := pop()
		if ok {
			fl.Unpack(value)
		}
		busAt(BUS_POP, regs[REG_SP], value)

	// System
	case OP_INT:
		vector := ops[0].Imm
		bus(BUS_INTERRUPT, vector)
		if cpu.Interrupter != nil {
			cpu.Interrupter.Interrupt(cpu, vector)
		}
	case OP_IRET:
		if cpu.Stack.Len() >= 2 {
			flags, _ := pop()
			ret, _ := pop()
			fl.Unpack(flags)
			fl.Interrupt = true
			next = cpu.target(ret)
		}
		bus(BUS_IRET, int32(next))
	case OP_CLI:
		fl.Interrupt = false
		bus(BUS_NOP, 0)
	case OP_STI:
		fl.Interrupt = true
		bus(BUS_NOP, 0)
	case OP_HLT, OP_WAIT, OP_NOP:
		bus(BUS_NOP, 0)

	// Control
	case OP_HALT:
		cpu.print(MSG_HALTED)
		cpu.Halted = true
		next = pc
		bus(BUS_HALT, 0)
	case OP_RESET:
		cpu.ResetState()
		bus(BUS_RESET, 0)
	case OP_DEBUG:
		if cpu.Verbose {
			var regText []string
			for reg := range REGISTER_COUNT {
				regText = append(regText, fmt.Sprintf("%v=%d", reg, regs[reg]))
			}
			log.Printf("[DEBUG] PC=%d, Registers=%v", pc, strings.Join(regText, " "))
		}
		bus(BUS_DEBUG, int32(pc))
	}
}

// store writes to memory, dropping writes outside of memory.
func (cpu *Cpu) store(inst *Instruction, addr int32, value int32) {
	ok := cpu.Memory.Write(addr, value)
	if !ok && cpu.Verbose {
		log.Printf("%3d: %v: address %d out of range, write dropped", inst.LineNo+1, inst.Text, addr)
	}
}
