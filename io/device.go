// Package io provides the interrupt surfaces of the TONICS machine: the
// text output, the framebuffer, the keyboard queue and the audio
// triggers, plus the dispatcher that routes INT vectors to them.
package io

import (
	"iter"
)

// Device is a surface driven by the interrupt dispatcher.
type Device interface {
	// Reset restores the device to its power-on state.
	Reset()
	// Defines returns the assembler equates of the device.
	Defines() iter.Seq2[string, string]
}
