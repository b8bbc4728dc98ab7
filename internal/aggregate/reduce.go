// Package aggregate compresses stored albums into fixed-width numeric
// vectors: track features are reduced per album, album and artist counts are
// attached, and every field is scaled into roughly [0, 1].
package aggregate

import "math"

// Sum adds values.
func Sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// Mean is the arithmetic mean of values, or 0 when values is empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// Variance is the population variance of values about mean, or 0 when values
// is empty.
func Variance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		d := mean - v
		total += d * d
	}
	return total / float64(len(values))
}

// sqrt0 is math.Sqrt with negative inputs clamped to zero.
func sqrt0(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Sqrt(x)
}

// rankScore maps a chart position to (0, 1], higher is better. Unranked
// albums (rank 0) score 0.
func rankScore(rank float64) float64 {
	if rank == 0 {
		return 0
	}
	return 1 - sqrt0(rank)/150
}
