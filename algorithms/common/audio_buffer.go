package common

import (
	"fmt"
	"time"
)

// AudioBuffer holds decoded audio as per-channel float samples in [-1, 1].
//
// Buffers are treated as immutable once built: trimming, mixing and
// resampling return new buffers and never write into a shared one.
type AudioBuffer struct {
	Channels   [][]float64 `json:"-"`
	SampleRate int         `json:"sample_rate"`
}

// NewAudioBuffer validates channel layout and wraps the given samples.
func NewAudioBuffer(channels [][]float64, sampleRate int) (*AudioBuffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %d", sampleRate)
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("audio buffer needs at least one channel")
	}
	length := len(channels[0])
	for i, ch := range channels {
		if len(ch) != length {
			return nil, fmt.Errorf("channel %d has %d samples, expected %d", i, len(ch), length)
		}
	}
	return &AudioBuffer{Channels: channels, SampleRate: sampleRate}, nil
}

// NewMonoBuffer wraps a single channel.
func NewMonoBuffer(samples []float64, sampleRate int) (*AudioBuffer, error) {
	return NewAudioBuffer([][]float64{samples}, sampleRate)
}

// Deinterleave splits interleaved frames into channels.
func Deinterleave(interleaved []float64, numChannels, sampleRate int) (*AudioBuffer, error) {
	if numChannels <= 0 {
		return nil, fmt.Errorf("channel count must be positive: %d", numChannels)
	}
	frames := len(interleaved) / numChannels
	channels := make([][]float64, numChannels)
	for c := range channels {
		channels[c] = make([]float64, frames)
	}
	for i := range frames {
		for c := range numChannels {
			channels[c][i] = interleaved[i*numChannels+c]
		}
	}
	return NewAudioBuffer(channels, sampleRate)
}

// NumChannels returns the channel count
func (b *AudioBuffer) NumChannels() int {
	return len(b.Channels)
}

// Length returns the number of samples per channel
func (b *AudioBuffer) Length() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playing time of the buffer
func (b *AudioBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Length()) / float64(b.SampleRate) * float64(time.Second))
}

// Seconds returns the duration in seconds
func (b *AudioBuffer) Seconds() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Length()) / float64(b.SampleRate)
}

// Mono averages all channels into one. A mono buffer returns its own channel.
func (b *AudioBuffer) Mono() []float64 {
	if len(b.Channels) == 1 {
		return b.Channels[0]
	}
	out := make([]float64, b.Length())
	if len(b.Channels) == 0 {
		return out
	}
	scale := 1.0 / float64(len(b.Channels))
	for _, ch := range b.Channels {
		for i, v := range ch {
			out[i] += v * scale
		}
	}
	return out
}

// Interleaved returns samples frame by frame (L R L R ...).
func (b *AudioBuffer) Interleaved() []float64 {
	n := b.NumChannels()
	out := make([]float64, b.Length()*n)
	for c, ch := range b.Channels {
		for i, v := range ch {
			out[i*n+c] = v
		}
	}
	return out
}

// Slice copies samples in [start, end) into a new buffer. Bounds are clamped.
func (b *AudioBuffer) Slice(start, end int) *AudioBuffer {
	start = max(start, 0)
	end = min(end, b.Length())
	if end < start {
		end = start
	}
	channels := make([][]float64, len(b.Channels))
	for c, ch := range b.Channels {
		channels[c] = append([]float64(nil), ch[start:end]...)
	}
	return &AudioBuffer{Channels: channels, SampleRate: b.SampleRate}
}

// Clone deep-copies the buffer
func (b *AudioBuffer) Clone() *AudioBuffer {
	return b.Slice(0, b.Length())
}
