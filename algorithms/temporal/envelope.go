package temporal

import (
	"github.com/RyanBlaney/sonido-tono/algorithms/common"
)

// ComputeRMS computes the RMS envelope with given frame and hop sizes.
// Frames that would run past the end of the signal are dropped.
func ComputeRMS(signal []float64, frameSize, hopSize int) []float64 {
	if len(signal) < frameSize || frameSize <= 0 || hopSize <= 0 {
		return []float64{}
	}

	numFrames := (len(signal)-frameSize)/hopSize + 1
	envelope := make([]float64, numFrames)
	for i := range numFrames {
		envelope[i] = common.RMS(signal, i*hopSize, frameSize)
	}
	return envelope
}
