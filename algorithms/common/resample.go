package common

import (
	"math"
)

// InterpolationType defines interpolation method
type InterpolationType int

const (
	Linear InterpolationType = iota
	Cubic
)

// Interpolator provides fractional-index sampling for resampling
type Interpolator struct {
	method InterpolationType
}

// NewInterpolator creates a new interpolator
func NewInterpolator(method InterpolationType) *Interpolator {
	return &Interpolator{
		method: method,
	}
}

// Interpolate performs interpolation at fractional index
func (interp *Interpolator) Interpolate(data []float64, index float64) float64 {
	switch interp.method {
	case Cubic:
		return interp.cubicInterpolate(data, index)
	default:
		return interp.linearInterpolate(data, index)
	}
}

func (interp *Interpolator) linearInterpolate(data []float64, index float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	if index <= 0 {
		return data[0]
	}
	if index >= float64(len(data)-1) {
		return data[len(data)-1]
	}

	i := int(index)
	frac := index - float64(i)
	return data[i]*(1-frac) + data[i+1]*frac
}

// cubicInterpolate uses a Catmull-Rom spline through the four nearest samples
func (interp *Interpolator) cubicInterpolate(data []float64, index float64) float64 {
	n := len(data)
	if n < 4 {
		return interp.linearInterpolate(data, index)
	}
	if index <= 0 {
		return data[0]
	}
	if index >= float64(n-1) {
		return data[n-1]
	}

	i := int(index)
	t := index - float64(i)
	at := func(k int) float64 {
		return data[max(0, min(n-1, k))]
	}
	p0, p1, p2, p3 := at(i-1), at(i), at(i+1), at(i+2)

	return p1 + 0.5*t*(p2-p0+t*(2*p0-5*p1+4*p2-p3+t*(3*(p1-p2)+p3-p0)))
}

// ResampleSignal resamples a signal to a new sample rate
func (interp *Interpolator) ResampleSignal(signal []float64, originalRate, targetRate int) []float64 {
	if len(signal) == 0 || originalRate <= 0 || targetRate <= 0 || originalRate == targetRate {
		return signal
	}

	ratio := float64(originalRate) / float64(targetRate)
	newLength := int(math.Floor(float64(len(signal)) / ratio))
	if newLength <= 0 {
		return []float64{}
	}

	resampled := make([]float64, newLength)
	for i := range resampled {
		resampled[i] = interp.Interpolate(signal, float64(i)*ratio)
	}
	return resampled
}

// ResampleBuffer resamples every channel of b to targetRate.
func (interp *Interpolator) ResampleBuffer(b *AudioBuffer, targetRate int) *AudioBuffer {
	if b.SampleRate == targetRate || targetRate <= 0 {
		return b
	}
	channels := make([][]float64, len(b.Channels))
	for c, ch := range b.Channels {
		channels[c] = interp.ResampleSignal(ch, b.SampleRate, targetRate)
	}
	return &AudioBuffer{Channels: channels, SampleRate: targetRate}
}
