//go:build headless

package capture

import (
	"context"
	"errors"

	"github.com/RyanBlaney/sonido-tono/audioerr"
)

type nullDevice struct{}

// NewDefaultDevice returns a device that always refuses to open
func NewDefaultDevice() Device {
	return nullDevice{}
}

func (nullDevice) Name() string { return "headless" }

func (d nullDevice) Open(context.Context, RecordingSettings, func([]float32)) (Stream, error) {
	return nil, audioerr.NewCaptureDeniedError(d.Name(), errors.New("no capture device in headless build"))
}
