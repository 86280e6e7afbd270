package util

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewStats(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		s := NewStats(nil)
		if s.Count != 0 || s.Mean != 0 {
			t.Errorf("expected zero stats, got %+v", s)
		}
	})

	t.Run("Values", func(t *testing.T) {
		s := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
		if s.Count != 8 {
			t.Errorf("expected count 8, got %d", s.Count)
		}
		if !almostEqual(s.Sum, 40) {
			t.Errorf("expected sum 40, got %f", s.Sum)
		}
		if !almostEqual(s.Mean, 5) {
			t.Errorf("expected mean 5, got %f", s.Mean)
		}
		if !almostEqual(s.StdDeviation, 2) {
			t.Errorf("expected std deviation 2, got %f", s.StdDeviation)
		}
		if s.Min != 2 || s.Max != 9 {
			t.Errorf("expected min 2 max 9, got %f %f", s.Min, s.Max)
		}
		if !almostEqual(s.MinMaxRatio, 2.0/9.0) {
			t.Errorf("unexpected min/max ratio %f", s.MinMaxRatio)
		}
	})
}

func TestNewDistributionStats(t *testing.T) {
	even := NewDistributionStats([]float64{10, 10, 10, 10})
	if !almostEqual(even.DistributionQuality, 1) {
		t.Errorf("expected quality 1 for an even spread, got %f", even.DistributionQuality)
	}

	skewed := NewDistributionStats([]float64{1, 100, 1, 100})
	if skewed.DistributionQuality >= even.DistributionQuality {
		t.Errorf("skewed spread should rate lower: %f >= %f", skewed.DistributionQuality, even.DistributionQuality)
	}

	if empty := NewDistributionStats(nil); empty.DistributionQuality != 0 {
		t.Errorf("expected quality 0 without samples, got %f", empty.DistributionQuality)
	}
}
