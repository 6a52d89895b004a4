// Package analyzer owns loaded audio and its analysis for one or more named
// instances, e.g. a reference sample and a learner recording.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-tono/algorithms/common"
	"github.com/RyanBlaney/sonido-tono/algorithms/spectral"
	"github.com/RyanBlaney/sonido-tono/algorithms/temporal"
	"github.com/RyanBlaney/sonido-tono/algorithms/tonal"
	"github.com/RyanBlaney/sonido-tono/capture"
	"github.com/RyanBlaney/sonido-tono/logging"
	"github.com/RyanBlaney/sonido-tono/playback"
	"github.com/RyanBlaney/sonido-tono/transcode"
)

var (
	// ErrSuperseded is returned by an operation whose result was discarded
	// because a newer load or recompute started on the same instance
	ErrSuperseded = errors.New("result superseded by a newer operation")
	// ErrBusy is returned when an operation cannot overlap the current one
	ErrBusy = errors.New("instance busy")
	// ErrNoAudio is returned when an operation needs a loaded buffer
	ErrNoAudio = errors.New("no audio loaded")
	// ErrNotRecording is returned by StopRecording without an active recording
	ErrNotRecording = errors.New("not recording")
)

// Decoder turns a source into an AudioBuffer
type Decoder interface {
	DecodeSource(ctx context.Context, src transcode.Source) (*common.AudioBuffer, error)
}

// Options configures every instance created by a Manager
type Options struct {
	Decoder     Decoder
	Trim        temporal.TrimConfig
	Spectrogram spectral.SpectrogramConfig
	Params      tonal.YinParams

	Sink   playback.Sink  // nil disables playback
	Device capture.Device // nil disables recording

	// ProgressInterval is the playback progress refresh period
	ProgressInterval time.Duration
	// OnProgress, when set, receives every progress update (0-100) with the
	// instance name. Called from the progress goroutine.
	OnProgress func(name string, percent float64)

	Logger logging.Logger
}

// DefaultOptions returns options with the package defaults and a WAV/ffmpeg
// decoder. Sink and Device are left nil.
func DefaultOptions() Options {
	return Options{
		Decoder:          transcode.NewDecoder(transcode.DefaultDecoderConfig()),
		Trim:             temporal.DefaultTrimConfig(),
		Spectrogram:      spectral.DefaultSpectrogramConfig(),
		Params:           tonal.DefaultYinParams(),
		ProgressInterval: playback.DefaultProgressInterval,
	}
}

// Validate checks every nested configuration
func (o Options) Validate() error {
	if o.Decoder == nil {
		return fmt.Errorf("options: decoder is required")
	}
	if err := o.Trim.Validate(); err != nil {
		return err
	}
	if err := o.Spectrogram.Validate(); err != nil {
		return err
	}
	return o.Params.Validate()
}
