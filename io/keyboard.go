package io

import (
	"fmt"
	"iter"
	"maps"
	"unicode/utf8"
)

const (
	KEYBOARD_CAPACITY = 16 // Queued key presses.

	KEY_STATUS_SHIFT    = 1 << 0
	KEY_STATUS_CTRL     = 1 << 1
	KEY_STATUS_ALT      = 1 << 2
	KEY_STATUS_CAPSLOCK = 1 << 3
	KEY_STATUS_PENDING  = 1 << 4 // Queue is not empty.
)

// KeyEvent is a host key event, using DOM KeyboardEvent code and key names.
type KeyEvent struct {
	Code     string // Physical key, ie "KeyA", "Digit1", "ArrowUp".
	Key      string // Produced key, ie "a", "!", "Enter".
	Shift    bool
	Ctrl     bool
	Alt      bool
	CapsLock bool
}

// KeyPress is a queued key press.
type KeyPress struct {
	ScanCode int32
	ASCII    int32
}

var scanCode = map[string]int32{
	"KeyA": 0x1e, "KeyB": 0x30, "KeyC": 0x2e, "KeyD": 0x20, "KeyE": 0x12,
	"KeyF": 0x21, "KeyG": 0x22, "KeyH": 0x23, "KeyI": 0x17, "KeyJ": 0x24,
	"KeyK": 0x25, "KeyL": 0x26, "KeyM": 0x32, "KeyN": 0x31, "KeyO": 0x18,
	"KeyP": 0x19, "KeyQ": 0x10, "KeyR": 0x13, "KeyS": 0x1f, "KeyT": 0x14,
	"KeyU": 0x16, "KeyV": 0x2f, "KeyW": 0x11, "KeyX": 0x2d, "KeyY": 0x15,
	"KeyZ": 0x2c,

	"Digit0": 0x0b, "Digit1": 0x02, "Digit2": 0x03, "Digit3": 0x04, "Digit4": 0x05,
	"Digit5": 0x06, "Digit6": 0x07, "Digit7": 0x08, "Digit8": 0x09, "Digit9": 0x0a,

	"Space":        0x39,
	"Enter":        0x1c,
	"Escape":       0x01,
	"Backspace":    0x0e,
	"Tab":          0x0f,
	"ShiftLeft":    0x2a,
	"ShiftRight":   0x36,
	"ControlLeft":  0x1d,
	"ControlRight": 0x1d,
	"AltLeft":      0x38,
	"AltRight":     0x38,
	"ArrowUp":      0x48,
	"ArrowDown":    0x50,
	"ArrowLeft":    0x4b,
	"ArrowRight":   0x4d,

	"F1": 0x3b, "F2": 0x3c, "F3": 0x3d, "F4": 0x3e, "F5": 0x3f, "F6": 0x40,
	"F7": 0x41, "F8": 0x42, "F9": 0x43, "F10": 0x44, "F11": 0x57, "F12": 0x58,
}

var specialASCII = map[string]int32{
	"Enter":      13,
	"Escape":     27,
	"Backspace":  8,
	"Tab":        9,
	"Space":      32,
	"ArrowUp":    128,
	"ArrowDown":  129,
	"ArrowLeft":  130,
	"ArrowRight": 131,
	"F1":         132,
	"F2":         133,
	"F3":         134,
	"F4":         135,
	"F5":         136,
	"F6":         137,
	"F7":         138,
	"F8":         139,
	"F9":         140,
	"F10":        141,
	"F11":        142,
	"F12":        143,
}

// ScanCode returns the scan code of a physical key, or 0 if unmapped.
func ScanCode(code string) int32 {
	return scanCode[code]
}

// ASCII returns the character code of a produced key, or 0 if it has none.
func ASCII(key string) int32 {
	if utf8.RuneCountInString(key) == 1 {
		r, _ := utf8.DecodeRuneInString(key)
		return int32(r)
	}

	return specialASCII[key]
}

// KeyFromByte converts a byte read from a terminal into a key event.
func KeyFromByte(b byte) (ev KeyEvent) {
	switch {
	case b >= 'a' && b <= 'z':
		ev.Code = fmt.Sprintf("Key%c", b-'a'+'A')
		ev.Key = string(rune(b))
	case b >= 'A' && b <= 'Z':
		ev.Code = fmt.Sprintf("Key%c", b)
		ev.Key = string(rune(b))
		ev.Shift = true
	case b >= '0' && b <= '9':
		ev.Code = fmt.Sprintf("Digit%c", b)
		ev.Key = string(rune(b))
	case b == ' ':
		ev.Code = "Space"
		ev.Key = " "
	case b == '\r' || b == '\n':
		ev.Code = "Enter"
		ev.Key = "Enter"
	case b == '\t':
		ev.Code = "Tab"
		ev.Key = "Tab"
	case b == 0x7f || b == 0x08:
		ev.Code = "Backspace"
		ev.Key = "Backspace"
	case b == 0x1b:
		ev.Code = "Escape"
		ev.Key = "Escape"
	case b >= 0x01 && b <= 0x1a:
		ev.Code = fmt.Sprintf("Key%c", b-1+'A')
		ev.Key = string(rune(b - 1 + 'a'))
		ev.Ctrl = true
	default:
		ev.Key = string(rune(b))
	}

	return
}

// Keyboard is a bounded queue of key presses, with the modifier state
// and the last pressed codes.
type Keyboard struct {
	ReadIndex  int
	WriteIndex int
	Size       int
	Data       [KEYBOARD_CAPACITY]KeyPress

	Shift    bool
	Ctrl     bool
	Alt      bool
	CapsLock bool

	LastScanCode int32
	LastASCII    int32

	Enabled bool  // Keyboard interrupts enabled.
	Handler int32 // Keyboard interrupt handler.
}

var _ Device = (*Keyboard)(nil)

// Defines returns an iter of defines for the keyboard.
func (kb *Keyboard) Defines() iter.Seq2[string, string] {
	return maps.All(map[string]string{
		"KEY_STATUS_SHIFT":    fmt.Sprintf("%d", KEY_STATUS_SHIFT),
		"KEY_STATUS_CTRL":     fmt.Sprintf("%d", KEY_STATUS_CTRL),
		"KEY_STATUS_ALT":      fmt.Sprintf("%d", KEY_STATUS_ALT),
		"KEY_STATUS_CAPSLOCK": fmt.Sprintf("%d", KEY_STATUS_CAPSLOCK),
		"KEY_STATUS_PENDING":  fmt.Sprintf("%d", KEY_STATUS_PENDING),
		"KEYBOARD_CAPACITY":   fmt.Sprintf("%d", KEYBOARD_CAPACITY),
	})
}

// Reset empties the queue, and clears the modifiers, codes and interrupt setup.
func (kb *Keyboard) Reset() {
	*kb = Keyboard{}
}

func (kb *Keyboard) modifiers(ev KeyEvent) {
	kb.Shift = ev.Shift
	kb.Ctrl = ev.Ctrl
	kb.Alt = ev.Alt
	kb.CapsLock = ev.CapsLock
}

// Press records a key down event. The last codes are always updated,
// and the press is queued unless the queue is full, when ErrKeyboardFull
// is returned.
func (kb *Keyboard) Press(ev KeyEvent) (err error) {
	kb.modifiers(ev)

	press := KeyPress{ScanCode: ScanCode(ev.Code), ASCII: ASCII(ev.Key)}
	kb.LastScanCode = press.ScanCode
	kb.LastASCII = press.ASCII

	if kb.Size >= KEYBOARD_CAPACITY {
		err = ErrKeyboardFull
		return
	}

	kb.Data[kb.WriteIndex] = press
	kb.WriteIndex++
	if kb.WriteIndex == KEYBOARD_CAPACITY {
		kb.WriteIndex = 0
	}
	kb.Size++

	return
}

// Release records a key up event.
func (kb *Keyboard) Release(ev KeyEvent) {
	kb.modifiers(ev)
}

// Read removes the oldest key press from the queue.
func (kb *Keyboard) Read() (press KeyPress, ok bool) {
	if kb.Size == 0 {
		return
	}

	press = kb.Data[kb.ReadIndex]
	kb.ReadIndex++
	if kb.ReadIndex == KEYBOARD_CAPACITY {
		kb.ReadIndex = 0
	}
	kb.Size--
	ok = true

	return
}

// Pending returns an iterator that drains the queue.
func (kb *Keyboard) Pending() iter.Seq[KeyPress] {
	return func(yield func(press KeyPress) bool) {
		for {
			press, ok := kb.Read()
			if !ok || !yield(press) {
				return
			}
		}
	}
}

// Len returns the number of queued key presses.
func (kb *Keyboard) Len() int {
	return kb.Size
}

// Clear empties the queue.
func (kb *Keyboard) Clear() {
	kb.ReadIndex = 0
	kb.WriteIndex = 0
	kb.Size = 0
}

// Status returns the KEY_STATUS_* bits.
func (kb *Keyboard) Status() (status int32) {
	if kb.Shift {
		status |= KEY_STATUS_SHIFT
	}
	if kb.Ctrl {
		status |= KEY_STATUS_CTRL
	}
	if kb.Alt {
		status |= KEY_STATUS_ALT
	}
	if kb.CapsLock {
		status |= KEY_STATUS_CAPSLOCK
	}
	if kb.Size > 0 {
		status |= KEY_STATUS_PENDING
	}
	return
}

// Vector returns the interrupt handler for a key press, if keyboard
// interrupts are enabled and a handler is set.
func (kb *Keyboard) Vector() (handler int32, ok bool) {
	if !kb.Enabled || kb.Handler <= 0 {
		return
	}

	handler = kb.Handler
	ok = true
	return
}
