// Package capture records microphone input into AudioBuffers.
package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/RyanBlaney/sonido-tono/algorithms/common"
	"github.com/RyanBlaney/sonido-tono/audioerr"
	"github.com/RyanBlaney/sonido-tono/logging"
)

// RecordingSettings describes the requested capture stream. The processing
// flags are passed to the device as hints; devices that cannot honour them
// ignore them.
type RecordingSettings struct {
	SampleRate       int  `json:"sample_rate"`
	Channels         int  `json:"channels"`
	FramesPerBuffer  int  `json:"frames_per_buffer"`
	EchoCancellation bool `json:"echo_cancellation"`
	NoiseSuppression bool `json:"noise_suppression"`
	AutoGainControl  bool `json:"auto_gain_control"`
}

// DefaultRecordingSettings returns speech-oriented capture settings
func DefaultRecordingSettings() RecordingSettings {
	return RecordingSettings{
		SampleRate:       48000,
		Channels:         1,
		FramesPerBuffer:  1024,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}
}

func (s RecordingSettings) Validate() error {
	if s.SampleRate <= 0 {
		return audioerr.NewConfigError("sample_rate", s.SampleRate, "sample rate must be positive")
	}
	if s.Channels < 1 || s.Channels > 2 {
		return audioerr.NewConfigError("channels", s.Channels, "channels must be 1 or 2")
	}
	if s.FramesPerBuffer < 0 {
		return audioerr.NewConfigError("frames_per_buffer", s.FramesPerBuffer, "frames per buffer must not be negative")
	}
	return nil
}

// Device opens capture streams. onChunk receives interleaved samples and may
// be called from a device thread; the slice is only valid during the call.
type Device interface {
	Name() string
	Open(ctx context.Context, settings RecordingSettings, onChunk func([]float32)) (Stream, error)
}

// Stream is a running capture stream
type Stream interface {
	Stop() error
}

// Recording accumulates chunks from one capture stream
type Recording struct {
	settings RecordingSettings
	stream   Stream

	mu      sync.Mutex
	chunks  [][]float32
	samples int

	stopOnce sync.Once
	stopErr  error
}

// Start opens dev and begins collecting samples. A device that refuses to
// open yields a *audioerr.CaptureDeniedError.
func Start(ctx context.Context, dev Device, settings RecordingSettings) (*Recording, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	r := &Recording{settings: settings}
	stream, err := dev.Open(ctx, settings, r.append)
	if err != nil {
		if _, ok := audioerr.As[*audioerr.CaptureDeniedError](err); ok {
			return nil, err
		}
		return nil, audioerr.NewCaptureDeniedError(dev.Name(), err)
	}
	r.stream = stream

	logging.Debug("capture started", logging.Fields{
		"function":    "capture.Start",
		"device":      dev.Name(),
		"sample_rate": settings.SampleRate,
		"channels":    settings.Channels,
	})
	return r, nil
}

func (r *Recording) append(chunk []float32) {
	c := make([]float32, len(chunk))
	copy(c, chunk)

	r.mu.Lock()
	r.chunks = append(r.chunks, c)
	r.samples += len(c)
	r.mu.Unlock()
}

// Settings returns the settings the recording was started with
func (r *Recording) Settings() RecordingSettings {
	return r.settings
}

// Stop closes the stream. Safe to call more than once.
func (r *Recording) Stop() error {
	r.stopOnce.Do(func() {
		r.stopErr = r.stream.Stop()
	})
	return r.stopErr
}

// Buffer concatenates the chunks captured so far
func (r *Recording) Buffer() (*common.AudioBuffer, error) {
	r.mu.Lock()
	interleaved := make([]float64, 0, r.samples)
	for _, c := range r.chunks {
		for _, v := range c {
			interleaved = append(interleaved, float64(v))
		}
	}
	r.mu.Unlock()

	if len(interleaved) == 0 {
		return nil, fmt.Errorf("no audio captured")
	}
	ch := r.settings.Channels
	// Drop a trailing partial frame
	interleaved = interleaved[:len(interleaved)-len(interleaved)%ch]
	return common.Deinterleave(interleaved, ch, r.settings.SampleRate)
}
