package kpi

import "sort"

// Quantile computes the q-th quantile of values with linear
// interpolation between closest ranks, matching SQL PERCENTILE_CONT.
// The input does not need to be sorted. Returns ok false for an empty
// input so callers can surface a null instead of a zero.
func Quantile(values []float64, q float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1], true
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac, true
}

// Median is the 0.5 quantile
func Median(values []float64) (float64, bool) {
	return Quantile(values, 0.5)
}
