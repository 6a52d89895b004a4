//go:build !headless

package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/multierr"

	"github.com/RyanBlaney/sonido-tono/audioerr"
	"github.com/RyanBlaney/sonido-tono/logging"
)

// PortAudioDevice captures from the system default input
type PortAudioDevice struct{}

// NewDefaultDevice returns the system default input device
func NewDefaultDevice() Device {
	return PortAudioDevice{}
}

func (PortAudioDevice) Name() string { return "portaudio-default" }

func (d PortAudioDevice) Open(ctx context.Context, settings RecordingSettings, onChunk func([]float32)) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, audioerr.NewCaptureDeniedError(d.Name(), fmt.Errorf("initializing portaudio: %w", err))
	}

	if settings.EchoCancellation || settings.NoiseSuppression || settings.AutoGainControl {
		logging.Debug("input processing hints are not supported by portaudio", logging.Fields{
			"function":          "PortAudioDevice.Open",
			"echo_cancellation": settings.EchoCancellation,
			"noise_suppression": settings.NoiseSuppression,
			"auto_gain_control": settings.AutoGainControl,
		})
	}

	stream, err := portaudio.OpenDefaultStream(
		settings.Channels,            // input channels
		0,                            // output channels
		float64(settings.SampleRate), // sample rate
		settings.FramesPerBuffer,     // frames per buffer, 0 lets portaudio choose
		onChunk,
	)
	if err != nil {
		return nil, audioerr.NewCaptureDeniedError(d.Name(), multierr.Append(err, portaudio.Terminate()))
	}
	if err := stream.Start(); err != nil {
		err = multierr.Combine(err, stream.Close(), portaudio.Terminate())
		return nil, audioerr.NewCaptureDeniedError(d.Name(), err)
	}
	return &portAudioStream{stream: stream}, nil
}

type portAudioStream struct {
	stream *portaudio.Stream
	once   sync.Once
	err    error
}

func (s *portAudioStream) Stop() error {
	s.once.Do(func() {
		s.err = multierr.Combine(s.stream.Stop(), s.stream.Close(), portaudio.Terminate())
	})
	return s.err
}
