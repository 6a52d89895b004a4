// Package windowing provides taper functions applied to analysis frames
// before a frequency transform.
package windowing

import (
	"fmt"
	"math"
)

// Type names a window shape
type Type string

const (
	Hann        Type = "hann"
	Hamming     Type = "hamming"
	Blackman    Type = "blackman"
	Rectangular Type = "rectangular"
)

// Window holds precomputed periodic window coefficients
type Window struct {
	kind         Type
	coefficients []float64
}

// New creates a window of the given type and size
func New(kind Type, size int) (*Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive: %d", size)
	}

	coeffs := make([]float64, size)
	n := float64(size)
	for i := range coeffs {
		phase := 2 * math.Pi * float64(i) / n
		switch kind {
		case Hann:
			coeffs[i] = 0.5 * (1 - math.Cos(phase))
		case Hamming:
			coeffs[i] = 0.54 - 0.46*math.Cos(phase)
		case Blackman:
			coeffs[i] = 0.42 - 0.5*math.Cos(phase) + 0.08*math.Cos(2*phase)
		case Rectangular:
			coeffs[i] = 1.0
		default:
			return nil, fmt.Errorf("unknown window type: %q", kind)
		}
	}

	return &Window{kind: kind, coefficients: coeffs}, nil
}

// ApplyInPlace applies the window to a signal in-place
func (w *Window) ApplyInPlace(signal []float64) error {
	if len(signal) != len(w.coefficients) {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), len(w.coefficients))
	}
	for i, c := range w.coefficients {
		signal[i] *= c
	}
	return nil
}

// Size returns the window size
func (w *Window) Size() int {
	return len(w.coefficients)
}

// Type returns the window type
func (w *Window) Type() Type {
	return w.kind
}

// Coefficients returns a copy of the window coefficients
func (w *Window) Coefficients() []float64 {
	return append([]float64(nil), w.coefficients...)
}
