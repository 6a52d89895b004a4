package tonal

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-tono/algorithms/common"
)

func sine(freq, amp float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func sineBuffer(t *testing.T, freq, amp float64, sampleRate int, seconds float64) *common.AudioBuffer {
	t.Helper()
	buf, err := common.NewMonoBuffer(sine(freq, amp, sampleRate, int(seconds*float64(sampleRate))), sampleRate)
	if err != nil {
		t.Fatalf("building test buffer: %v", err)
	}
	return buf
}

func framesOf(pitches ...float64) []PitchFrame {
	frames := make([]PitchFrame, len(pitches))
	for i, p := range pitches {
		frames[i] = PitchFrame{Pitch: p, Confidence: 0.9}
	}
	return frames
}

func pitchesOf(frames []PitchFrame) []float64 {
	out := make([]float64, len(frames))
	for i, f := range frames {
		out[i] = f.Pitch
	}
	return out
}
