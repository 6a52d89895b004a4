package tonal

import (
	"fmt"

	"github.com/RyanBlaney/sonido-tono/audioerr"
)

// DifferenceMethod selects how the YIN difference function is computed
type DifferenceMethod int

const (
	// DifferenceDirect is the literal O(n^2) sum of squared differences
	DifferenceDirect DifferenceMethod = iota
	// DifferenceFFT correlates with a circular transform at the frame size.
	// Wraparound stays above the lags d(tau) is defined for.
	DifferenceFFT
	// DifferenceFFTZeroPadded uses a transform of at least 2N-1 points so the
	// correlation is linear; matches DifferenceDirect to rounding error.
	DifferenceFFTZeroPadded
)

var differenceNames = map[DifferenceMethod]string{
	DifferenceDirect:        "direct",
	DifferenceFFT:           "fft-autocorrelation",
	DifferenceFFTZeroPadded: "fft-zero-padded",
}

func (m DifferenceMethod) String() string {
	if name, ok := differenceNames[m]; ok {
		return name
	}
	return fmt.Sprintf("DifferenceMethod(%d)", int(m))
}

func (m DifferenceMethod) MarshalText() ([]byte, error) {
	if _, ok := differenceNames[m]; !ok {
		return nil, fmt.Errorf("unknown difference method %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *DifferenceMethod) UnmarshalText(text []byte) error {
	for k, name := range differenceNames {
		if name == string(text) {
			*m = k
			return nil
		}
	}
	return fmt.Errorf("unknown difference method %q", text)
}

// ThresholdStrategy selects how a period is picked from the CMNDF
type ThresholdStrategy int

const (
	// ThresholdSimple takes the first dip below threshold, anywhere in the curve
	ThresholdSimple ThresholdStrategy = iota
	// ThresholdAdaptive takes the deepest qualifying dip in the valid lag range
	ThresholdAdaptive
	// ThresholdFirstDip takes the earliest qualifying dip in the valid lag range
	ThresholdFirstDip
)

var strategyNames = map[ThresholdStrategy]string{
	ThresholdSimple:   "simple",
	ThresholdAdaptive: "adaptive",
	ThresholdFirstDip: "first-dip",
}

func (s ThresholdStrategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ThresholdStrategy(%d)", int(s))
}

func (s ThresholdStrategy) MarshalText() ([]byte, error) {
	if _, ok := strategyNames[s]; !ok {
		return nil, fmt.Errorf("unknown threshold strategy %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *ThresholdStrategy) UnmarshalText(text []byte) error {
	for k, name := range strategyNames {
		if name == string(text) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown threshold strategy %q", text)
}

// YinParams contains parameters for YIN analysis and pitch post-processing
type YinParams struct {
	FrameSize         int               `json:"frame_size"`         // Analysis window in samples
	HopSize           int               `json:"hop_size"`           // Stride between frames
	Threshold         float64           `json:"threshold"`          // CMNDF dip threshold
	FallbackThreshold float64           `json:"fallback_threshold"` // Looser threshold when no dip qualifies
	MinFreq           float64           `json:"min_freq"`           // Lowest accepted pitch (Hz)
	MaxFreq           float64           `json:"max_freq"`           // Highest accepted pitch (Hz)
	Interpolation     bool              `json:"interpolation"`      // Parabolic refinement of tau
	Difference        DifferenceMethod  `json:"difference"`         // Difference function variant
	Strategy          ThresholdStrategy `json:"strategy"`           // Period picking strategy

	PowerGating       bool    `json:"power_gating"`        // Zero confidence on quiet frames
	MinPowerThreshold float64 `json:"min_power_threshold"` // Frame RMS floor for gating

	OctaveCorrection     bool    `json:"octave_correction"`      // Bidirectional octave-jump correction
	OctaveRatioThreshold float64 `json:"octave_ratio_threshold"` // Relative tolerance around 2, 0.5, 4, 0.25
	MedianWindow         int     `json:"median_window"`          // Odd median filter length, 1 disables
}

// DefaultYinParams returns parameters tuned for speech
func DefaultYinParams() YinParams {
	return YinParams{
		FrameSize:            2048,
		HopSize:              512,
		Threshold:            0.1,
		FallbackThreshold:    0.25,
		MinFreq:              60.0,  // Low male voice
		MaxFreq:              500.0, // High tone-contour peak for female voices
		Interpolation:        true,
		Difference:           DifferenceFFTZeroPadded,
		Strategy:             ThresholdFirstDip,
		PowerGating:          true,
		MinPowerThreshold:    0.01,
		OctaveCorrection:     true,
		OctaveRatioThreshold: 0.1,
		MedianWindow:         5,
	}
}

// maxOctaveTolerance is where neighbouring octave bands start to overlap:
// 2(1+t) = 4(1-t)
const maxOctaveTolerance = 1.0 / 3

// Validate rejects parameter sets the detector cannot run with
func (p YinParams) Validate() error {
	switch {
	case p.FrameSize < 4:
		return audioerr.NewConfigError("frame_size", p.FrameSize, "frame size must be at least 4")
	case p.HopSize < 1:
		return audioerr.NewConfigError("hop_size", p.HopSize, "hop size must be positive")
	case p.Threshold <= 0 || p.Threshold > 1:
		return audioerr.NewConfigError("threshold", p.Threshold, "threshold must be in (0, 1]")
	case p.FallbackThreshold <= 0 || p.FallbackThreshold > 1:
		return audioerr.NewConfigError("fallback_threshold", p.FallbackThreshold, "fallback threshold must be in (0, 1]")
	case p.MinFreq <= 0:
		return audioerr.NewConfigError("min_freq", p.MinFreq, "min frequency must be positive")
	case p.MinFreq >= p.MaxFreq:
		return audioerr.NewConfigError("min_freq", [2]float64{p.MinFreq, p.MaxFreq}, "min frequency must be below max frequency")
	case p.MinPowerThreshold < 0:
		return audioerr.NewConfigError("min_power_threshold", p.MinPowerThreshold, "power floor must not be negative")
	case p.OctaveRatioThreshold < 0 || p.OctaveRatioThreshold >= maxOctaveTolerance:
		return audioerr.NewConfigError("octave_ratio_threshold", p.OctaveRatioThreshold, "octave ratio tolerance must be in [0, 1/3)")
	case p.MedianWindow < 1 || p.MedianWindow%2 == 0:
		return audioerr.NewConfigError("median_window", p.MedianWindow, "median window must be odd and at least 1")
	}
	if _, ok := differenceNames[p.Difference]; !ok {
		return audioerr.NewConfigError("difference", int(p.Difference), "unknown difference method")
	}
	if _, ok := strategyNames[p.Strategy]; !ok {
		return audioerr.NewConfigError("strategy", int(p.Strategy), "unknown threshold strategy")
	}
	return nil
}

// lagRange converts the frequency bounds into an inclusive tau range for a
// CMNDF of length n. The range is empty (lo > hi) when no lag fits.
func (p YinParams) lagRange(sampleRate, n int) (lo, hi int) {
	lo = max(2, int(float64(sampleRate)/p.MaxFreq))
	hi = min(n-2, int(float64(sampleRate)/p.MinFreq)+1)
	return lo, hi
}
