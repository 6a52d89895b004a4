package tonal

// pickPeriod selects an integer lag from the CMNDF, or -1 when no lag
// qualifies
func (p YinParams) pickPeriod(cmndf []float64, sampleRate int) int {
	switch p.Strategy {
	case ThresholdSimple:
		return p.pickSimple(cmndf)
	case ThresholdAdaptive:
		return p.pickAdaptive(cmndf, sampleRate)
	default:
		return p.pickFirstDip(cmndf, sampleRate)
	}
}

func isLocalMin(c []float64, tau int) bool {
	return tau > 0 && tau < len(c)-1 && c[tau] < c[tau-1] && c[tau] <= c[tau+1]
}

func (p YinParams) pickSimple(c []float64) int {
	for tau := 2; tau < len(c); tau++ {
		if c[tau] < p.Threshold {
			for tau+1 < len(c) && c[tau+1] < c[tau] {
				tau++
			}
			return tau
		}
	}
	return -1
}

// dipTolerance is how close to the deepest dip another dip must be to count
// as equally deep. Multiples of a period dip to within rounding noise of each
// other, so the shortest of them wins.
const dipTolerance = 0.01

// deepestDip returns the smallest local minimum in [lo, hi] below limit whose
// value is within dipTolerance of the deepest such minimum, or -1
func deepestDip(c []float64, lo, hi int, limit float64) int {
	best := -1
	for tau := lo; tau <= hi; tau++ {
		if isLocalMin(c, tau) && c[tau] < limit && (best < 0 || c[tau] < c[best]) {
			best = tau
		}
	}
	if best < 0 {
		return -1
	}
	for tau := lo; tau < best; tau++ {
		if isLocalMin(c, tau) && c[tau] < limit && c[tau] <= c[best]+dipTolerance {
			return tau
		}
	}
	return best
}

func (p YinParams) pickAdaptive(c []float64, sampleRate int) int {
	lo, hi := p.lagRange(sampleRate, len(c))
	if tau := deepestDip(c, lo, hi, p.Threshold); tau >= 0 {
		return tau
	}
	return p.fallback(c, lo, hi)
}

func (p YinParams) pickFirstDip(c []float64, sampleRate int) int {
	lo, hi := p.lagRange(sampleRate, len(c))
	for tau := lo; tau <= hi; tau++ {
		if isLocalMin(c, tau) && c[tau] < p.Threshold {
			return tau
		}
	}
	return p.fallback(c, lo, hi)
}

// fallback returns the deepest local minimum in [lo, hi] if it clears the
// looser threshold
func (p YinParams) fallback(c []float64, lo, hi int) int {
	return deepestDip(c, lo, hi, p.FallbackThreshold)
}

// parabolicInterpolation refines tau using its two neighbours
func parabolicInterpolation(c []float64, tau int) float64 {
	if tau < 1 || tau >= len(c)-1 {
		return float64(tau)
	}
	s0, s1, s2 := c[tau-1], c[tau], c[tau+1]
	denom := 2 * (2*s1 - s2 - s0)
	if denom == 0 {
		return float64(tau)
	}
	return float64(tau) + (s2-s0)/denom
}
