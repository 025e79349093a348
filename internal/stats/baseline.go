package stats

import "math"

// MinBaselineSamples is the fewest points a baseline may be built from.
// Below it, detection yields no signal rather than an error.
const MinBaselineSamples = 3

// Baseline summarises a window of historical values.
type Baseline struct {
	Mean        float64
	StdDev      float64
	SampleCount int
}

// Valid reports whether the baseline carries enough samples to be used.
func (b Baseline) Valid() bool {
	return b.SampleCount >= MinBaselineSamples
}

// Compute builds a baseline from historical values. The result is marked
// invalid when fewer than MinBaselineSamples values are supplied.
func Compute(values []float64) Baseline {
	n := len(values)
	if n < MinBaselineSamples {
		return Baseline{SampleCount: n}
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(n)

	return Baseline{
		Mean:        mean,
		StdDev:      math.Sqrt(variance),
		SampleCount: n,
	}
}

// ChangeFraction returns (current-mean)/mean. The boolean is false when the
// mean is zero and the fraction is undefined.
func ChangeFraction(current, mean float64) (float64, bool) {
	if mean == 0 {
		return 0, false
	}
	return (current - mean) / mean, true
}

// ZScore normalises current against the distribution of values. A zero
// standard deviation yields 0.
func ZScore(values []float64, current float64) float64 {
	b := Compute(values)
	if b.StdDev == 0 {
		return 0
	}
	return (current - b.Mean) / b.StdDev
}
