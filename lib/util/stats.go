package util

import (
	"math"
)

// ----------------------------------------------------------------------------
// Sample statistics
// ----------------------------------------------------------------------------

// Stats summarises a set of samples
type Stats struct {
	Count        int     `json:"count"`
	Sum          float64 `json:"sum"`
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes count, sum, mean, standard deviation, minimum and maximum
// of the given samples
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	minV := values[0]
	maxV := values[0]

	var sum float64
	for _, v := range values {
		sum += v
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}

	mean := sum / float64(len(values))

	var sumSquaredDiffs float64
	for _, v := range values {
		diff := v - mean
		sumSquaredDiffs += diff * diff
	}

	// population standard deviation
	stdDev := math.Sqrt(sumSquaredDiffs / float64(len(values)))

	minMaxRatio := 1.0
	if maxV > 0 {
		minMaxRatio = minV / maxV
	}

	return Stats{
		Count:        len(values),
		Sum:          sum,
		StdDeviation: stdDev,
		Min:          minV,
		Max:          maxV,
		Mean:         mean,
		MinMaxRatio:  minMaxRatio,
	}
}

// DistributionStats rates how evenly a quantity is spread over buckets
// (e.g. bytes over connections)
type DistributionStats struct {
	Stats
	// DistributionQuality is 1 for a perfectly even spread and approaches 0
	// the more skewed the buckets are
	DistributionQuality float64 `json:"distribution_quality"`
}

// NewDistributionStats computes quality metrics for the spread of per-bucket values
func NewDistributionStats(perBucket []float64) DistributionStats {
	stats := NewStats(perBucket)

	// coefficient of variation
	var cv float64
	if stats.Mean > 0 {
		cv = stats.StdDeviation / stats.Mean
	}

	// lower CV and higher min/max ratio indicate better distribution
	quality := (1.0-math.Min(1.0, cv))*0.5 + stats.MinMaxRatio*0.5
	if stats.Count == 0 {
		quality = 0
	}

	return DistributionStats{
		Stats:               stats,
		DistributionQuality: quality,
	}
}
