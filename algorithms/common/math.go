package common

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical functions used across algorithms using gonum for robustness

// SilenceFloorDBFS is reported for buffers with no energy
const SilenceFloorDBFS = -120.0

// RMS returns the root mean square of samples[start:start+length].
// The window is clipped to the slice; an empty window yields 0.
func RMS(samples []float64, start, length int) float64 {
	start = max(start, 0)
	end := min(start+length, len(samples))
	if end <= start {
		return 0.0
	}
	window := samples[start:end]
	return math.Sqrt(floats.Dot(window, window) / float64(len(window)))
}

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// StandardDeviation calculates the sample standard deviation
func StandardDeviation(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return stat.StdDev(data, nil)
}

// Median returns the middle element of the sorted values; for an even count
// the upper of the two middle elements is used. The input is not modified.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return sorted[len(sorted)/2]
}

// Clamp limits v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// DBFS returns the RMS level of the whole buffer in dB relative to full scale.
func DBFS(b *AudioBuffer) float64 {
	sumSquares := 0.0
	count := 0
	for _, ch := range b.Channels {
		sumSquares += floats.Dot(ch, ch)
		count += len(ch)
	}
	if count == 0 || sumSquares == 0 {
		return SilenceFloorDBFS
	}
	return 20 * math.Log10(math.Sqrt(sumSquares/float64(count)))
}

// Peak returns the largest absolute sample value across channels
func Peak(b *AudioBuffer) float64 {
	peak := 0.0
	for _, ch := range b.Channels {
		if len(ch) == 0 {
			continue
		}
		peak = math.Max(peak, math.Max(floats.Max(ch), -floats.Min(ch)))
	}
	return peak
}

// NormalizePeak returns a copy of b scaled so its peak sits at targetDBFS.
// Silent buffers are returned as an unscaled copy.
func NormalizePeak(b *AudioBuffer, targetDBFS float64) *AudioBuffer {
	out := b.Clone()
	peak := Peak(b)
	if peak == 0 {
		return out
	}
	gain := math.Pow(10, targetDBFS/20) / peak
	for _, ch := range out.Channels {
		floats.Scale(gain, ch)
	}
	return out
}
