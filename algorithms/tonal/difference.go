package tonal

import (
	"math/cmplx"

	"github.com/RyanBlaney/sonido-tono/algorithms/spectral"
)

// DifferenceFunction computes the YIN difference curve d(tau) for
// tau in [0, len(frame)/2)
type DifferenceFunction interface {
	Compute(frame []float64) []float64
}

// NewDifferenceFunction returns the implementation for method
func NewDifferenceFunction(method DifferenceMethod) DifferenceFunction {
	switch method {
	case DifferenceDirect:
		return directDifference{}
	case DifferenceFFT:
		return &fftDifference{fft: spectral.NewFFT()}
	default:
		return &fftDifference{fft: spectral.NewFFT(), padded: true}
	}
}

type directDifference struct{}

func (directDifference) Compute(frame []float64) []float64 {
	w := len(frame) / 2
	d := make([]float64, w)
	for tau := 1; tau < w; tau++ {
		sum := 0.0
		for j := 0; j < w; j++ {
			delta := frame[j] - frame[j+tau]
			sum += delta * delta
		}
		d[tau] = sum
	}
	return d
}

// fftDifference computes the cross term as a correlation of the first half
// of the frame against the whole frame, and the two energy terms from prefix
// sums:
//
//	d(tau) = E(0) + E(tau) - 2 * sum_{j<W} x[j] x[j+tau]
//
// The circular variant transforms at the frame size. Its correlation wraps
// only for lags of N/2 and above, which are outside the difference range.
// The zero-padded variant transforms at the next power of two of at least
// 2N-1 points and never wraps.
type fftDifference struct {
	fft    *spectral.FFT
	padded bool
}

func (f *fftDifference) transformSize(n int) int {
	if f.padded {
		return spectral.NextPowerOfTwo(2*n - 1)
	}
	return n
}

func (f *fftDifference) Compute(frame []float64) []float64 {
	n := len(frame)
	w := n / 2
	d := make([]float64, w)
	if w == 0 {
		return d
	}

	size := f.transformSize(n)
	head := f.fft.Compute(spectral.ZeroPad(frame[:w], size))
	full := f.fft.Compute(spectral.ZeroPad(frame, size))
	for i := range full {
		full[i] *= cmplx.Conj(head[i])
	}
	cross := f.fft.ComputeInverseReal(full)

	// prefix[k] = sum of squares of frame[:k]
	prefix := make([]float64, n+1)
	for i, x := range frame {
		prefix[i+1] = prefix[i] + x*x
	}
	e0 := prefix[w]

	for tau := 1; tau < w; tau++ {
		etau := prefix[tau+w] - prefix[tau]
		d[tau] = max(0, e0+etau-2*cross[tau])
	}
	return d
}

// CMNDF returns the cumulative mean normalized difference of d.
// Lags whose running sum is zero normalize to 1.
func CMNDF(d []float64) []float64 {
	out := make([]float64, len(d))
	if len(d) == 0 {
		return out
	}
	out[0] = 1
	running := 0.0
	for tau := 1; tau < len(d); tau++ {
		running += d[tau]
		if running == 0 {
			out[tau] = 1
			continue
		}
		out[tau] = d[tau] * float64(tau) / running
	}
	return out
}
