package io

import (
	"fmt"
	"iter"
	"log"
	"maps"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/ezrec/tonics/cpu"
	"github.com/ezrec/tonics/internal"
)

// Implemented interrupt vectors.
const (
	INT_PRINT_CHAR    = 1
	INT_PRINT_NEWLINE = 2
	INT_PRINT_NUMBER  = 3
	INT_GET_TIME      = 26
	INT_RANDOM_NUMBER = 33
	INT_PRINT_HEX     = 39
	INT_PRINT_BINARY  = 40
	INT_BEEP          = 45
	INT_PLAY_TONE     = 46

	INT_KEYBOARD_READ         = 96
	INT_KEYBOARD_STATUS       = 97
	INT_KEYBOARD_BUFFER_SIZE  = 98
	INT_KEYBOARD_CLEAR_BUFFER = 99

	INT_SCREEN_CLEAR       = 101
	INT_SCREEN_SET_PIXEL   = 102
	INT_SCREEN_GET_PIXEL   = 103
	INT_SCREEN_SET_COLOR   = 104
	INT_SCREEN_DRAW_LINE   = 105
	INT_SCREEN_DRAW_RECT   = 106
	INT_SCREEN_FILL_RECT   = 107
	INT_SCREEN_DRAW_CIRCLE = 108
	INT_SCREEN_SET_CURSOR  = 109
	INT_SCREEN_PRINT_CHAR  = 110

	INT_KEYBOARD_INT_ENABLE  = 120
	INT_KEYBOARD_INT_DISABLE = 121
	INT_KEYBOARD_INT_HANDLER = 122
	INT_KEYBOARD_SCAN_CODE   = 123
	INT_KEYBOARD_ASCII_CODE  = 124
)

// MSG_UNKNOWN_INT is written for vectors without an effect.
const MSG_UNKNOWN_INT = "[Unknown INT #%d]"

// interruptName is the system interrupt table. Only some vectors have an
// effect; the rest are named so programs can refer to them.
var interruptName = map[int32]string{
	1: "PRINT_CHAR", 2: "PRINT_NEWLINE", 3: "PRINT_NUMBER", 4: "PRINT_STRING",
	5: "READ_CHAR", 6: "READ_NUMBER", 7: "READ_STRING",

	8: "CLEAR_SCREEN", 9: "SET_CURSOR", 10: "GET_CURSOR", 11: "SET_COLOR",
	12: "SCROLL_UP", 13: "SCROLL_DOWN", 14: "DRAW_PIXEL", 15: "DRAW_LINE",
	16: "DRAW_RECT", 17: "DRAW_CIRCLE",

	101: "SCREEN_CLEAR", 102: "SCREEN_SET_PIXEL", 103: "SCREEN_GET_PIXEL",
	104: "SCREEN_SET_COLOR", 105: "SCREEN_DRAW_LINE", 106: "SCREEN_DRAW_RECT",
	107: "SCREEN_FILL_RECT", 108: "SCREEN_DRAW_CIRCLE", 109: "SCREEN_SET_CURSOR",
	110: "SCREEN_PRINT_CHAR",

	18: "FILE_OPEN", 19: "FILE_CLOSE", 20: "FILE_READ", 21: "FILE_WRITE",
	22: "FILE_SEEK", 23: "FILE_DELETE", 24: "DIR_LIST", 25: "DIR_CREATE",

	26: "GET_TIME", 27: "SET_TIME", 28: "GET_DATE", 29: "SET_DATE",
	30: "GET_MEMORY_INFO", 31: "GET_CPU_INFO", 32: "GET_SYSTEM_INFO",

	33: "RANDOM_NUMBER", 34: "RANDOM_SEED", 35: "MATH_PI", 36: "MATH_E",
	37: "MATH_LOG", 38: "MATH_EXP",

	39: "PRINT_HEX", 40: "PRINT_BINARY", 41: "PRINT_OCTAL", 42: "PRINT_FLOAT",
	43: "PRINT_SCIENTIFIC", 44: "FORMAT_NUMBER",

	45: "BEEP", 46: "PLAY_TONE", 47: "PLAY_NOTE", 48: "SET_VOLUME",
	49: "AUDIO_INIT", 50: "AUDIO_STOP",

	51: "NET_CONNECT", 52: "NET_DISCONNECT", 53: "NET_SEND", 54: "NET_RECEIVE",
	55: "NET_STATUS",

	56: "MALLOC", 57: "FREE", 58: "REALLOC", 59: "MEMINFO", 60: "GARBAGE_COLLECT",

	61: "PROCESS_CREATE", 62: "PROCESS_KILL", 63: "PROCESS_LIST", 64: "PROCESS_SWITCH",
	65: "THREAD_CREATE", 66: "THREAD_JOIN", 67: "MUTEX_LOCK", 68: "MUTEX_UNLOCK",

	69: "PORT_READ", 70: "PORT_WRITE", 71: "DMA_TRANSFER", 72: "INTERRUPT_ENABLE",
	73: "INTERRUPT_DISABLE", 74: "TIMER_SET", 75: "TIMER_GET",

	76: "HASH_MD5", 77: "HASH_SHA256", 78: "ENCRYPT_AES", 79: "DECRYPT_AES",
	80: "GENERATE_KEY",

	81: "COMPRESS_DATA", 82: "DECOMPRESS_DATA", 83: "COMPRESS_STRING",
	84: "DECOMPRESS_STRING",

	85: "DEBUG_PRINT", 86: "PROFILE_START", 87: "PROFILE_STOP", 88: "BENCHMARK",
	89: "TRACE_ENABLE", 90: "TRACE_DISABLE",

	91: "POWER_SAVE", 92: "POWER_RESTORE", 93: "CPU_FREQUENCY", 94: "BATTERY_STATUS",
	95: "THERMAL_STATUS",

	96: "KEYBOARD_READ", 97: "KEYBOARD_STATUS", 98: "KEYBOARD_BUFFER_SIZE",
	99: "KEYBOARD_CLEAR_BUFFER", 100: "KEYBOARD_SET_INTERRUPT",

	111: "MOUSE_READ", 112: "JOYSTICK_READ", 113: "SENSOR_READ", 114: "GPIO_SET",

	120: "KEYBOARD_INT_ENABLE", 121: "KEYBOARD_INT_DISABLE", 122: "KEYBOARD_INT_HANDLER",
	123: "KEYBOARD_SCAN_CODE", 124: "KEYBOARD_ASCII_CODE",
}

// InterruptName returns the name of an interrupt vector.
func InterruptName(vector int32) (name string, ok bool) {
	name, ok = interruptName[vector]
	return
}

// Interrupts dispatches software interrupts to the machine's surfaces.
type Interrupts struct {
	Verbose bool

	Output   *Output
	Screen   *Screen
	Keyboard *Keyboard
	Audio    *Audio

	Rand *rand.Rand       // Source for RANDOM_NUMBER.
	Now  func() time.Time // Clock for GET_TIME.
}

var _ cpu.Interrupter = (*Interrupts)(nil)

// NewInterrupts creates a dispatcher with fresh surfaces, and a random
// source from a seed.
func NewInterrupts(seed uint64) (ints *Interrupts) {
	ints = &Interrupts{
		Output:   &Output{},
		Screen:   &Screen{},
		Keyboard: &Keyboard{},
		Audio:    &Audio{},
		Rand:     rand.New(rand.NewPCG(seed, seed^0x544f4e494353)),
		Now:      time.Now,
	}
	ints.Reset()

	return
}

// Devices returns the surfaces driven by the dispatcher.
func (ints *Interrupts) Devices() []Device {
	return []Device{ints.Output, ints.Screen, ints.Keyboard, ints.Audio}
}

// Reset all the surfaces.
func (ints *Interrupts) Reset() {
	for _, dev := range ints.Devices() {
		dev.Reset()
	}
}

// Defines returns the INT_* vector names, and the defines of every surface.
func (ints *Interrupts) Defines() iter.Seq2[string, string] {
	vectors := map[string]string{}
	for vector, name := range interruptName {
		vectors["INT_"+name] = strconv.Itoa(int(vector))
	}

	seqs := []iter.Seq2[string, string]{maps.All(vectors)}
	for _, dev := range ints.Devices() {
		seqs = append(seqs, dev.Defines())
	}

	return internal.IterSeq2Concat(seqs...)
}

// or returns value, or fallback if value is zero.
func or(value int32, fallback int32) int32 {
	if value == 0 {
		return fallback
	}
	return value
}

// Interrupt services a software interrupt.
func (ints *Interrupts) Interrupt(c *cpu.Cpu, vector int32) {
	regs := &c.Register

	if ints.Verbose {
		name, _ := InterruptName(vector)
		log.Printf("interrupt %d (%v)", vector, name)
	}

	scr := ints.Screen
	kb := ints.Keyboard

	switch vector {
	case INT_PRINT_CHAR:
		ints.Output.WriteString(string(rune(uint16(or(regs[cpu.REG_R7], regs[cpu.REG_R1])))))
	case INT_PRINT_NEWLINE:
		ints.Output.WriteString("\n")
	case INT_PRINT_NUMBER:
		ints.Output.WriteString(strconv.FormatInt(int64(or(regs[cpu.REG_R7], regs[cpu.REG_R1])), 10))
	case INT_PRINT_HEX:
		ints.Output.WriteString(fmt.Sprintf("0x%X", or(regs[cpu.REG_R7], regs[cpu.REG_R1])))
	case INT_PRINT_BINARY:
		ints.Output.WriteString("0b" + strconv.FormatInt(int64(or(regs[cpu.REG_R7], regs[cpu.REG_R1])), 2))

	case INT_RANDOM_NUMBER:
		regs[cpu.REG_R0] = ints.Rand.Int32N(256)
	case INT_GET_TIME:
		regs[cpu.REG_R0] = int32(ints.Now().UnixMilli() % 1000000)

	case INT_BEEP:
		ints.Audio.Beep()
	case INT_PLAY_TONE:
		ints.Audio.Play(or(regs[cpu.REG_R0], TONE_FREQUENCY), or(regs[cpu.REG_R1], TONE_DURATION))

	case INT_KEYBOARD_INT_ENABLE:
		kb.Enabled = true
	case INT_KEYBOARD_INT_DISABLE:
		kb.Enabled = false
	case INT_KEYBOARD_INT_HANDLER:
		kb.Handler = regs[cpu.REG_R0]
	case INT_KEYBOARD_SCAN_CODE:
		regs[cpu.REG_R0] = kb.LastScanCode
	case INT_KEYBOARD_ASCII_CODE:
		regs[cpu.REG_R0] = kb.LastASCII
	case INT_KEYBOARD_READ:
		press, _ := kb.Read()
		regs[cpu.REG_R0] = press.ASCII
	case INT_KEYBOARD_STATUS:
		regs[cpu.REG_R0] = kb.Status()
	case INT_KEYBOARD_BUFFER_SIZE:
		regs[cpu.REG_R0] = int32(kb.Len())
	case INT_KEYBOARD_CLEAR_BUFFER:
		kb.Clear()

	case INT_SCREEN_CLEAR:
		scr.Clear()
	case INT_SCREEN_SET_PIXEL:
		scr.SetPixel(regs[cpu.REG_R0], regs[cpu.REG_R1], or(regs[cpu.REG_R2], 1))
	case INT_SCREEN_GET_PIXEL:
		value, ok := scr.Pixel(regs[cpu.REG_R0], regs[cpu.REG_R1])
		if ok {
			regs[cpu.REG_R0] = value
		}
	case INT_SCREEN_SET_COLOR:
		scr.SetColor(regs[cpu.REG_R0])
	case INT_SCREEN_DRAW_LINE:
		scr.DrawLine(regs[cpu.REG_R0], regs[cpu.REG_R1], regs[cpu.REG_R2], regs[cpu.REG_R3])
	case INT_SCREEN_DRAW_RECT:
		scr.DrawRect(regs[cpu.REG_R0], regs[cpu.REG_R1], regs[cpu.REG_R2], regs[cpu.REG_R3], false)
	case INT_SCREEN_FILL_RECT:
		scr.DrawRect(regs[cpu.REG_R0], regs[cpu.REG_R1], regs[cpu.REG_R2], regs[cpu.REG_R3], true)
	case INT_SCREEN_DRAW_CIRCLE:
		scr.DrawCircle(regs[cpu.REG_R0], regs[cpu.REG_R1], regs[cpu.REG_R2])
	case INT_SCREEN_SET_CURSOR:
		scr.SetCursor(regs[cpu.REG_R0], regs[cpu.REG_R1])
	case INT_SCREEN_PRINT_CHAR:
		scr.PrintChar(regs[cpu.REG_R0])

	default:
		ints.Output.WriteString(fmt.Sprintf(MSG_UNKNOWN_INT, vector))
	}
}
