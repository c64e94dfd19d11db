package scoring

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// weightedValue pairs a decimal observation with its confidence weight.
type weightedValue struct {
	Value  decimal.Decimal
	Weight float64
}

// weightedMedian returns the first value, in ascending value order, whose
// cumulative weight reaches half the total weight. Entries with
// non-positive weight are ignored. ok is false when nothing remains.
func weightedMedian(samples []weightedValue) (decimal.Decimal, bool) {
	kept := make([]weightedValue, 0, len(samples))
	total := 0.0
	for _, s := range samples {
		if s.Weight > 0 {
			kept = append(kept, s)
			total += s.Weight
		}
	}
	if len(kept) == 0 {
		return decimal.Zero, false
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Value.LessThan(kept[j].Value) })

	half := total / 2
	cum := 0.0
	for _, s := range kept {
		cum += s.Weight
		if cum >= half {
			return s.Value, true
		}
	}
	return kept[len(kept)-1].Value, true
}

// weightedStdDev returns the biased weighted standard deviation
// sqrt(Σw(x−x̄w)² / Σw). ok is false with fewer than two positive-weight
// samples or zero total weight.
func weightedStdDev(values, weights []float64) (float64, bool) {
	if len(values) != len(weights) {
		return 0, false
	}

	totalW := 0.0
	positive := 0
	for _, w := range weights {
		if w > 0 {
			totalW += w
			positive++
		}
	}
	if positive < 2 || totalW == 0 {
		return 0, false
	}

	mean := 0.0
	for i, v := range values {
		if weights[i] > 0 {
			mean += weights[i] * v
		}
	}
	mean /= totalW

	variance := 0.0
	for i, v := range values {
		if weights[i] > 0 {
			d := v - mean
			variance += weights[i] * d * d
		}
	}
	variance /= totalW

	return math.Sqrt(variance), true
}

// sampleStdDev returns the n−1 standard deviation. ok is false for n < 2.
func sampleStdDev(values []float64) (float64, bool) {
	n := len(values)
	if n < 2 {
		return 0, false
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n - 1)

	return math.Sqrt(variance), true
}

// decimalMin returns the smallest value in vals. ok is false for an
// empty slice.
func decimalMin(vals []decimal.Decimal) (decimal.Decimal, bool) {
	if len(vals) == 0 {
		return decimal.Zero, false
	}
	min := vals[0]
	for _, v := range vals[1:] {
		if v.LessThan(min) {
			min = v
		}
	}
	return min, true
}

// distinctCount returns the number of numerically distinct values in
// vals. Comparison is by value, so 10 and 10.00 are the same sample.
func distinctCount(vals []decimal.Decimal) int {
	distinct := 0
	for i, v := range vals {
		dup := false
		for j := 0; j < i; j++ {
			if vals[j].Equal(v) {
				dup = true
				break
			}
		}
		if !dup {
			distinct++
		}
	}
	return distinct
}

// round2 rounds to two decimal places, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// intPtr, floatPtr, and decPtr build metric pointers.
func intPtr(v int) *int                         { return &v }
func floatPtr(v float64) *float64               { return &v }
func decPtr(v decimal.Decimal) *decimal.Decimal { return &v }
