package io

import (
	"fmt"
	"iter"
	"maps"
	"time"
)

const (
	BEEP_FREQUENCY = 800 // Hz
	BEEP_DURATION  = 200 // ms
	TONE_FREQUENCY = 440 // Hz, when R0 is zero.
	TONE_DURATION  = 500 // ms, when R1 is zero.

	AUDIO_QUEUE_LIMIT = 64 // Pending tones kept; older ones are dropped.
)

// Tone is a triggered tone.
type Tone struct {
	Frequency int32
	Duration  time.Duration
}

func (tone Tone) String() string {
	return fmt.Sprintf("%dHz %v", tone.Frequency, tone.Duration)
}

// ToneSink receives tones as they are triggered.
type ToneSink interface {
	Play(tone Tone)
}

// Audio queues the tones triggered by BEEP and PLAY_TONE, for a host
// player to drain.
type Audio struct {
	Sink ToneSink // Optional, receives every tone.

	Queue []Tone
}

var _ Device = (*Audio)(nil)

// Defines returns an iter of defines for the audio device.
func (au *Audio) Defines() iter.Seq2[string, string] {
	return maps.All(map[string]string{
		"BEEP_FREQUENCY": fmt.Sprintf("%d", BEEP_FREQUENCY),
		"BEEP_DURATION":  fmt.Sprintf("%d", BEEP_DURATION),
	})
}

// Reset discards pending tones.
func (au *Audio) Reset() {
	au.Queue = nil
}

// Beep triggers the standard beep.
func (au *Audio) Beep() {
	au.Play(BEEP_FREQUENCY, BEEP_DURATION)
}

// Play triggers a tone of a frequency in Hz, for a duration in ms.
func (au *Audio) Play(frequency int32, ms int32) {
	tone := Tone{Frequency: frequency, Duration: time.Duration(ms) * time.Millisecond}

	if len(au.Queue) >= AUDIO_QUEUE_LIMIT {
		au.Queue = au.Queue[1:]
	}
	au.Queue = append(au.Queue, tone)

	if au.Sink != nil {
		au.Sink.Play(tone)
	}
}

// Drain removes and returns the pending tones.
func (au *Audio) Drain() (tones []Tone) {
	tones = au.Queue
	au.Queue = nil
	return
}
