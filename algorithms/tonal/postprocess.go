package tonal

import (
	"math"

	"github.com/RyanBlaney/sonido-tono/algorithms/common"
)

// MedianFilter replaces each frame's pitch with the median of the voiced
// pitches in the surrounding window. Frames whose window holds no voiced
// frame are kept as they are. Only Pitch changes.
func MedianFilter(frames []PitchFrame, window int) []PitchFrame {
	out := make([]PitchFrame, len(frames))
	copy(out, frames)
	if window <= 1 {
		return out
	}

	half := window / 2
	voiced := make([]float64, 0, window)
	for i := range frames {
		voiced = voiced[:0]
		for j := max(0, i-half); j <= min(len(frames)-1, i+half); j++ {
			if frames[j].Voiced() {
				voiced = append(voiced, frames[j].Pitch)
			}
		}
		if len(voiced) > 0 {
			out[i].Pitch = common.Median(voiced)
		}
	}
	return out
}

// octaveCandidates is checked in order. The 2x and 4x bands (and the 0.5x
// and 0.25x bands) meet at a tolerance of 1/3, so Validate keeps the
// tolerance below that.
var octaveCandidates = []struct {
	ratio      float64
	correction Correction
}{
	{2, CorrectionDownOctave},
	{4, CorrectionDownTwoOctaves},
	{0.5, CorrectionUpOctave},
	{0.25, CorrectionUpTwoOctaves},
}

// classifyJump returns the correction that undoes an octave jump from prev to
// cur, or CorrectionNone
func classifyJump(cur, prev float64, p YinParams) Correction {
	if cur <= 0 || prev <= 0 {
		return CorrectionNone
	}
	ratio := cur / prev
	for _, cand := range octaveCandidates {
		if math.Abs(ratio/cand.ratio-1) > p.OctaveRatioThreshold {
			continue
		}
		fixed := cur * cand.correction.factor()
		if fixed < p.MinFreq || fixed > p.MaxFreq {
			return CorrectionNone
		}
		return cand.correction
	}
	return CorrectionNone
}

// octavePass walks the pitches in the given direction, comparing each frame
// to its already-corrected neighbour
func octavePass(pitches []float64, p YinParams, forward bool) []Correction {
	n := len(pitches)
	tags := make([]Correction, n)
	corrected := append([]float64(nil), pitches...)

	step, first, stop := 1, 1, n
	if !forward {
		step, first, stop = -1, n-2, -1
	}
	for i := first; i != stop && i >= 0 && i < n; i += step {
		tag := classifyJump(corrected[i], corrected[i-step], p)
		if tag != CorrectionNone {
			corrected[i] *= tag.factor()
			tags[i] = tag
		}
	}
	return tags
}

// CorrectOctaveJumps applies an octave correction to a frame only when a
// forward and a backward pass both tag it with the same correction
func CorrectOctaveJumps(frames []PitchFrame, p YinParams) []PitchFrame {
	out := make([]PitchFrame, len(frames))
	copy(out, frames)
	if len(frames) < 2 {
		for i := range out {
			out[i].Correction = CorrectionNone
		}
		return out
	}

	pitches := make([]float64, len(frames))
	for i, f := range frames {
		pitches[i] = f.Pitch
	}
	fwd := octavePass(pitches, p, true)
	bwd := octavePass(pitches, p, false)

	for i := range out {
		if fwd[i] != CorrectionNone && fwd[i] == bwd[i] {
			out[i].Pitch = pitches[i] * fwd[i].factor()
			out[i].Correction = fwd[i]
		} else {
			out[i].Correction = CorrectionNone
		}
	}
	return out
}

// PostProcess median-filters the track and then corrects octave jumps when
// enabled. The input track is left untouched.
func PostProcess(track *PitchTrack, p YinParams) *PitchTrack {
	out := track.Clone()
	if out == nil {
		return nil
	}
	out.Frames = MedianFilter(out.Frames, p.MedianWindow)
	if p.OctaveCorrection {
		out.Frames = CorrectOctaveJumps(out.Frames, p)
	}
	return out
}
