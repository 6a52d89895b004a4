package tonal

import (
	"context"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-tono/algorithms/common"
	"github.com/RyanBlaney/sonido-tono/logging"
)

// Detector runs YIN over a buffer, one estimate per frame.
//
// Frames are FrameSize samples taken every HopSize samples from the mono
// mixdown; a trailing partial frame is dropped, never zero-padded.
// A Detector holds no per-run state and may be shared between goroutines.
type Detector struct {
	params     YinParams
	difference DifferenceFunction
}

// NewDetector validates params and builds a detector
func NewDetector(params YinParams) (*Detector, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		params:     params,
		difference: NewDifferenceFunction(params.Difference),
	}, nil
}

// Params returns the detector's parameters
func (d *Detector) Params() YinParams {
	return d.params
}

// Analyze estimates pitch for every full frame of buf. The context is checked
// between frames.
func (d *Detector) Analyze(ctx context.Context, buf *common.AudioBuffer) (*PitchTrack, error) {
	logger := logging.WithFields(logging.Fields{
		"function":   "Analyze",
		"difference": d.params.Difference.String(),
		"strategy":   d.params.Strategy.String(),
	})

	if buf == nil {
		return nil, fmt.Errorf("analyze: nil buffer")
	}

	samples := buf.Mono()
	track := &PitchTrack{
		SampleRate: buf.SampleRate,
		FrameSize:  d.params.FrameSize,
		HopSize:    d.params.HopSize,
	}
	if len(samples) < d.params.FrameSize {
		logger.Debug("buffer shorter than one frame", logging.Fields{"samples": len(samples)})
		return track, nil
	}

	numFrames := (len(samples)-d.params.FrameSize)/d.params.HopSize + 1
	track.Frames = make([]PitchFrame, numFrames)

	for i := range numFrames {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analyze interrupted at frame %d: %w", i, err)
		}
		start := i * d.params.HopSize
		frame := samples[start : start+d.params.FrameSize]
		track.Frames[i] = d.AnalyzeFrame(frame, buf.SampleRate)
	}

	logger.Debug("pitch analysis complete", logging.Fields{
		"frames": numFrames,
		"voiced": len(track.Voiced()),
	})
	return track, nil
}

// AnalyzeFrame runs the per-frame YIN steps on a single frame
func (d *Detector) AnalyzeFrame(frame []float64, sampleRate int) PitchFrame {
	p := d.params
	cmndf := CMNDF(d.difference.Compute(frame))

	tau := p.pickPeriod(cmndf, sampleRate)
	if tau < 0 {
		return PitchFrame{}
	}

	refined := float64(tau)
	if p.Interpolation {
		refined = parabolicInterpolation(cmndf, tau)
	}
	if refined <= 0 {
		return PitchFrame{}
	}

	pitch := float64(sampleRate) / refined
	if pitch < p.MinFreq || pitch > p.MaxFreq {
		return PitchFrame{}
	}

	idx := min(max(int(math.Round(refined)), 0), len(cmndf)-1)
	confidence := common.Clamp(1-cmndf[idx], 0, 1)

	if p.PowerGating && confidence > 0 && common.RMS(frame, 0, len(frame)) < p.MinPowerThreshold {
		confidence = 0
	}

	return PitchFrame{Pitch: pitch, Confidence: confidence}
}
