package spectral

import (
	"github.com/mjibson/go-dsp/fft"
)

// FFT provides Fast Fourier Transform functionality backed by mjibson/go-dsp
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the forward transform of a real signal
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	// go-dsp handles all sizes, including non-power-of-2
	return fft.FFTReal(x)
}

// ComputeInverseReal computes the inverse transform (scaled by 1/N) and
// returns the real part only
func (f *FFT) ComputeInverseReal(x []complex128) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	result := fft.IFFT(x)
	realResult := make([]float64, len(result))
	for i, val := range result {
		realResult[i] = real(val)
	}
	return realResult
}

// ZeroPad copies x into a zeroed slice of length n (n >= len(x))
func ZeroPad(x []float64, n int) []float64 {
	padded := make([]float64, max(n, len(x)))
	copy(padded, x)
	return padded
}

// NextPowerOfTwo returns the smallest power of 2 greater than or equal to n
func NextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
