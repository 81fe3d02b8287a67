package io

import (
	"io"
	"math"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	streamwav "github.com/youpy/go-wav"
)

const (
	WAV_SAMPLE_RATE  = 22050
	WAV_BIT_DEPTH    = 16
	WAV_AMPLITUDE    = 0.5 * math.MaxInt16
	WAV_TONE_MAXIMUM = 10 * time.Second // Longest tone rendered.
	WAV_MAXIMUM      = 60 * time.Second // Longest recording, later tones are dropped.
)

// WavRecorder renders triggered tones into a mono PCM recording, one
// after another.
type WavRecorder struct {
	SampleRate int // Defaults to WAV_SAMPLE_RATE.

	samples []int
}

var _ ToneSink = (*WavRecorder)(nil)

func (wr *WavRecorder) rate() int {
	if wr.SampleRate <= 0 {
		return WAV_SAMPLE_RATE
	}
	return wr.SampleRate
}

// Play renders a sine tone. Zero and negative frequencies render silence.
// Recording stops at WAV_MAXIMUM.
func (wr *WavRecorder) Play(tone Tone) {
	duration := min(max(tone.Duration, 0), WAV_TONE_MAXIMUM)
	rate := wr.rate()
	count := int(duration.Seconds() * float64(rate))

	limit := int(WAV_MAXIMUM.Seconds() * float64(rate))
	count = min(count, limit-len(wr.samples))

	step := 2 * math.Pi * float64(tone.Frequency) / float64(rate)
	for n := range count {
		value := 0
		if tone.Frequency > 0 {
			value = int(WAV_AMPLITUDE * math.Sin(step*float64(n)))
		}
		wr.samples = append(wr.samples, value)
	}
}

// Len returns the number of recorded samples.
func (wr *WavRecorder) Len() int {
	return len(wr.samples)
}

// Duration returns the length of the recording.
func (wr *WavRecorder) Duration() time.Duration {
	return time.Duration(len(wr.samples)) * time.Second / time.Duration(wr.rate())
}

// Save writes the recording as a WAV file. Seekable writers use a
// go-audio encoder; anything else, such as a pipe, is written in a
// single pass with the sample count known up front.
func (wr *WavRecorder) Save(w io.Writer) (err error) {
	if ws, ok := w.(io.WriteSeeker); ok {
		err = wr.encode(ws)
		return
	}

	err = wr.stream(w)
	return
}

func (wr *WavRecorder) encode(ws io.WriteSeeker) (err error) {
	rate := wr.rate()

	enc := wav.NewEncoder(ws, rate, WAV_BIT_DEPTH, 1, 1)
	if enc == nil {
		err = ErrWavEncoder
		return
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           wr.samples,
		SourceBitDepth: WAV_BIT_DEPTH,
	}

	err = enc.Write(buf)
	if err != nil {
		return
	}

	err = enc.Close()
	return
}

func (wr *WavRecorder) stream(w io.Writer) (err error) {
	enc := streamwav.NewWriter(w, uint32(len(wr.samples)), 1, uint32(wr.rate()), WAV_BIT_DEPTH)
	if enc == nil {
		err = ErrWavEncoder
		return
	}

	samples := make([]streamwav.Sample, len(wr.samples))
	for n, value := range wr.samples {
		samples[n].Values[0] = value
	}

	err = enc.WriteSamples(samples)
	return
}
