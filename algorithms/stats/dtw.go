package stats

import (
	"fmt"
	"math"
)

// DTWAlignment aligns two 1D sequences with Dynamic Time Warping
//
// Used to line up a learner's pitch contour against a reference contour
// spoken at a different speed. Local cost is absolute difference; steps are
// the symmetric (i-1,j), (i,j-1), (i-1,j-1) pattern.
type DTWAlignment struct {
	constraintBand int // Sakoe-Chiba band, <= 0 disables
}

// DTWResult contains DTW alignment results
type DTWResult struct {
	Distance    float64      `json:"distance"`     // Accumulated cost / path length
	Path        []AlignPoint `json:"path"`         // Optimal alignment path, start to end
	QueryLength int          `json:"query_length"` // Length of query sequence
	RefLength   int          `json:"ref_length"`   // Length of reference sequence
	Constraint  int          `json:"constraint"`   // Band constraint used
}

// AlignPoint represents a point in the alignment path
type AlignPoint struct {
	QueryIndex int     `json:"query_index"`
	RefIndex   int     `json:"ref_index"`
	Cost       float64 `json:"cost"` // Local cost at this point
}

// NewDTWAlignment creates an unconstrained aligner
func NewDTWAlignment() *DTWAlignment {
	return &DTWAlignment{constraintBand: -1}
}

// NewDTWAlignmentWithBand restricts the path to |i-j| <= band. The band is
// widened to the length difference so a path always exists.
func NewDTWAlignmentWithBand(band int) *DTWAlignment {
	return &DTWAlignment{constraintBand: band}
}

// Align performs DTW alignment between two sequences
func (dtw *DTWAlignment) Align(query, reference []float64) (*DTWResult, error) {
	if len(query) == 0 || len(reference) == 0 {
		return nil, fmt.Errorf("empty sequences provided")
	}

	queryLen, refLen := len(query), len(reference)
	band := dtw.constraintBand
	if band > 0 {
		band = max(band, abs(queryLen-refLen))
	}

	// Padded by one row and column so the recurrence needs no edge cases
	cost := make([][]float64, queryLen+1)
	for i := range cost {
		cost[i] = make([]float64, refLen+1)
		for j := range cost[i] {
			cost[i][j] = math.Inf(1)
		}
	}
	cost[0][0] = 0

	for i := 1; i <= queryLen; i++ {
		for j := 1; j <= refLen; j++ {
			if band > 0 && abs(i-j) > band {
				continue
			}
			local := math.Abs(query[i-1] - reference[j-1])
			cost[i][j] = local + min(cost[i-1][j], cost[i][j-1], cost[i-1][j-1])
		}
	}

	path := dtw.backtrack(cost, query, reference)
	return &DTWResult{
		Distance:    cost[queryLen][refLen] / float64(len(path)),
		Path:        path,
		QueryLength: queryLen,
		RefLength:   refLen,
		Constraint:  band,
	}, nil
}

// backtrack walks from the end cell to (1,1) along minimum-cost predecessors
func (dtw *DTWAlignment) backtrack(cost [][]float64, query, reference []float64) []AlignPoint {
	i, j := len(query), len(reference)
	var path []AlignPoint
	for {
		path = append(path, AlignPoint{
			QueryIndex: i - 1,
			RefIndex:   j - 1,
			Cost:       math.Abs(query[i-1] - reference[j-1]),
		})
		if i == 1 && j == 1 {
			break
		}

		// Diagonal first so ties keep the path short
		nextI, nextJ := i-1, j-1
		best := cost[i-1][j-1]
		if cost[i-1][j] < best {
			nextI, nextJ, best = i-1, j, cost[i-1][j]
		}
		if cost[i][j-1] < best {
			nextI, nextJ = i, j-1
		}
		i, j = nextI, nextJ
	}

	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}

// GetAlignmentQuality calculates quality metrics for the alignment
func (dtw *DTWAlignment) GetAlignmentQuality(result *DTWResult) map[string]float64 {
	if result == nil || len(result.Path) == 0 {
		return map[string]float64{}
	}

	quality := make(map[string]float64)

	// Path efficiency (shorter paths are better for similar lengths)
	expectedLength := math.Max(float64(result.QueryLength), float64(result.RefLength))
	quality["path_efficiency"] = expectedLength / float64(len(result.Path))

	diagonalSteps := 0
	for i := 1; i < len(result.Path); i++ {
		if result.Path[i].QueryIndex > result.Path[i-1].QueryIndex &&
			result.Path[i].RefIndex > result.Path[i-1].RefIndex {
			diagonalSteps++
		}
	}
	if len(result.Path) > 1 {
		quality["diagonal_ratio"] = float64(diagonalSteps) / float64(len(result.Path)-1)
	} else {
		quality["diagonal_ratio"] = 1
	}

	totalCost := 0.0
	for _, point := range result.Path {
		totalCost += point.Cost
	}
	quality["average_cost"] = totalCost / float64(len(result.Path))
	quality["normalized_distance"] = result.Distance

	return quality
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
