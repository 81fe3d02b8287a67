// Package cpu implements the processor and assembler for the TONICS system.
//
// The CPU consists of eight 32-bit general-purpose registers (R0-R7), a
// stack pointer (SP) and link register (LR), a flag register, 256 cells of
// memory, and a call/data stack that is separate from memory. The program
// counter indexes the assembled instruction stream, one instruction per
// source line, so the debugger can always map the program counter back to
// the source.
//
// The assembler provides a two-pass assembler for the TONICS instruction
// set, supporting labels, equates, and compile-time expression evaluation.
package cpu
