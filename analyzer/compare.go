package analyzer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-tono/algorithms/stats"
	"github.com/RyanBlaney/sonido-tono/algorithms/tonal"
)

// Comparison scores a learner's intonation against a reference.
//
// Both contours are expressed in semitones relative to their own median
// pitch, so a learner speaking in a lower register is not penalised; the
// register difference is reported separately as OffsetSemitones.
type Comparison struct {
	ReferenceMedian float64 `json:"reference_median_hz"`
	LearnerMedian   float64 `json:"learner_median_hz"`
	OffsetSemitones float64 `json:"offset_semitones"` // learner relative to reference

	Distance      float64            `json:"distance"`       // DTW cost per path step, semitones
	MeanDeviation float64            `json:"mean_deviation"` // semitones
	MaxDeviation  float64            `json:"max_deviation"`  // semitones
	Correlation   float64            `json:"correlation"`    // Pearson over aligned pairs, 0 if undefined
	DiagonalRatio float64            `json:"diagonal_ratio"` // Share of path steps advancing both contours; low means uneven pacing
	Path          []stats.AlignPoint `json:"path"`           // indexes into the voiced contours
}

// SemitoneContour converts the voiced frames of a track to semitones
// relative to the track's median pitch
func SemitoneContour(track *tonal.PitchTrack) []float64 {
	if track == nil {
		return nil
	}
	ref := track.MedianPitch()
	if ref <= 0 {
		return nil
	}
	voiced := track.Voiced()
	out := make([]float64, len(voiced))
	for i, p := range voiced {
		out[i] = 12 * math.Log2(p/ref)
	}
	return out
}

// CompareTracks aligns the learner contour to the reference with DTW
func CompareTracks(reference, learner *tonal.PitchTrack) (*Comparison, error) {
	refContour := SemitoneContour(reference)
	learnContour := SemitoneContour(learner)
	if len(refContour) < 2 {
		return nil, fmt.Errorf("compare: reference has %d voiced frames, need at least 2", len(refContour))
	}
	if len(learnContour) < 2 {
		return nil, fmt.Errorf("compare: learner has %d voiced frames, need at least 2", len(learnContour))
	}

	dtw := stats.NewDTWAlignment()
	result, err := dtw.Align(learnContour, refContour)
	if err != nil {
		return nil, fmt.Errorf("compare: %w", err)
	}
	quality := dtw.GetAlignmentQuality(result)

	xs := make([]float64, len(result.Path))
	ys := make([]float64, len(result.Path))
	var sum, maxDev float64
	for i, p := range result.Path {
		xs[i] = refContour[p.RefIndex]
		ys[i] = learnContour[p.QueryIndex]
		sum += p.Cost
		maxDev = math.Max(maxDev, p.Cost)
	}

	corr := stat.Correlation(xs, ys, nil)
	if math.IsNaN(corr) || math.IsInf(corr, 0) {
		corr = 0
	}

	refMedian, learnMedian := reference.MedianPitch(), learner.MedianPitch()
	return &Comparison{
		ReferenceMedian: refMedian,
		LearnerMedian:   learnMedian,
		OffsetSemitones: 12 * math.Log2(learnMedian/refMedian),
		Distance:        result.Distance,
		MeanDeviation:   sum / float64(len(result.Path)),
		MaxDeviation:    maxDev,
		Correlation:     corr,
		DiagonalRatio:   quality["diagonal_ratio"],
		Path:            result.Path,
	}, nil
}
