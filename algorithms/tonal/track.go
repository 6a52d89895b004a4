package tonal

import (
	"fmt"

	"github.com/RyanBlaney/sonido-tono/algorithms/common"
)

// Correction records which octave adjustment was applied to a frame
type Correction int

const (
	CorrectionNone Correction = iota
	CorrectionUpOctave
	CorrectionUpTwoOctaves
	CorrectionDownOctave
	CorrectionDownTwoOctaves
)

var correctionNames = map[Correction]string{
	CorrectionNone:           "none",
	CorrectionUpOctave:       "up-octave",
	CorrectionUpTwoOctaves:   "up-two-octaves",
	CorrectionDownOctave:     "down-octave",
	CorrectionDownTwoOctaves: "down-two-octaves",
}

func (c Correction) String() string {
	if name, ok := correctionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Correction(%d)", int(c))
}

func (c Correction) MarshalText() ([]byte, error) {
	if _, ok := correctionNames[c]; !ok {
		return nil, fmt.Errorf("unknown correction %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Correction) UnmarshalText(text []byte) error {
	for k, name := range correctionNames {
		if name == string(text) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown correction %q", text)
}

// factor is the multiplier the correction applies to a pitch
func (c Correction) factor() float64 {
	switch c {
	case CorrectionUpOctave:
		return 2
	case CorrectionUpTwoOctaves:
		return 4
	case CorrectionDownOctave:
		return 0.5
	case CorrectionDownTwoOctaves:
		return 0.25
	default:
		return 1
	}
}

// PitchFrame is the estimate for one analysis frame
type PitchFrame struct {
	Pitch      float64    `json:"pitch"`      // Hz, 0 when unvoiced
	Confidence float64    `json:"confidence"` // 0-1
	Correction Correction `json:"correction"`
}

// Voiced reports whether the frame carries a pitch
func (f PitchFrame) Voiced() bool {
	return f.Pitch > 0
}

// PitchTrack is the ordered frame sequence for one buffer
type PitchTrack struct {
	Frames     []PitchFrame `json:"frames"`
	SampleRate int          `json:"sample_rate"`
	FrameSize  int          `json:"frame_size"`
	HopSize    int          `json:"hop_size"`
}

// FrameTime returns the start time of frame i in seconds
func (t *PitchTrack) FrameTime(i int) float64 {
	if t.SampleRate == 0 {
		return 0
	}
	return float64(i*t.HopSize) / float64(t.SampleRate)
}

// Voiced returns the pitches of voiced frames in order
func (t *PitchTrack) Voiced() []float64 {
	pitches := make([]float64, 0, len(t.Frames))
	for _, f := range t.Frames {
		if f.Voiced() {
			pitches = append(pitches, f.Pitch)
		}
	}
	return pitches
}

// MedianPitch returns the median voiced pitch, 0 for a fully unvoiced track
func (t *PitchTrack) MedianPitch() float64 {
	return common.Median(t.Voiced())
}

// Clone returns a deep copy
func (t *PitchTrack) Clone() *PitchTrack {
	if t == nil {
		return nil
	}
	c := *t
	c.Frames = append([]PitchFrame(nil), t.Frames...)
	return &c
}
