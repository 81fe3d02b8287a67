package io

import (
	"io"
	"iter"
	"maps"
	"strings"
)

// Output accumulates the text produced by the machine. Everything
// written is also copied to Mirror, if set.
type Output struct {
	Mirror io.Writer

	text strings.Builder
}

var _ Device = (*Output)(nil)
var _ io.Writer = (*Output)(nil)

// Defines returns an iter of defines for the output.
func (out *Output) Defines() iter.Seq2[string, string] {
	return maps.All(map[string]string{})
}

// Reset discards the accumulated text.
func (out *Output) Reset() {
	out.text.Reset()
}

// Set replaces the accumulated text.
func (out *Output) Set(text string) {
	out.text.Reset()
	out.WriteString(text)
}

// Write appends to the accumulated text.
func (out *Output) Write(data []byte) (n int, err error) {
	n, _ = out.text.Write(data)
	if out.Mirror != nil {
		_, err = out.Mirror.Write(data)
	}

	return
}

// WriteString appends a string to the accumulated text.
func (out *Output) WriteString(text string) (n int, err error) {
	return out.Write([]byte(text))
}

// String returns the accumulated text.
func (out *Output) String() string {
	return out.text.String()
}

// Len returns the length of the accumulated text in bytes.
func (out *Output) Len() int {
	return out.text.Len()
}
