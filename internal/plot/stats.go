package plot

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ComputeStats summarises values. An empty series yields zero stats, and the
// geometric mean is zero when any value is not positive.
func ComputeStats(values []float64) RunStats {
	if len(values) == 0 {
		return RunStats{}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	s := RunStats{
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
	}
	if sorted[0] > 0 {
		s.Geomean = stat.GeometricMean(sorted, nil)
	}
	if math.IsNaN(s.Geomean) || math.IsInf(s.Geomean, 0) {
		s.Geomean = 0
	}
	return s
}

// ratio returns b/a, or 0 when a is zero.
func ratio(a, b float64) float64 {
	if a == 0 {
		return 0
	}
	return b / a
}
