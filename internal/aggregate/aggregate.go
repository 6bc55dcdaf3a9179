// Package aggregate provides the built-in reducers that collapse one
// round's observed signal vector into a scalar summary.
package aggregate

import (
	"math"
	"sort"

	"episkopos/internal/plugin"
)

// cleaner filters a sample according to the configured nan policy
// before the reducer runs.
type cleaner func(values []float64) []float64

func cleanerFrom(p plugin.Params) (cleaner, error) {
	policy, err := p.String("nan_policy", "omit")
	if err != nil {
		return nil, err
	}
	if policy == "omit" {
		return dropNonFinite, nil
	}
	return keepAll, nil
}

func keepAll(values []float64) []float64 { return values }

func dropNonFinite(values []float64) []float64 {
	kept := make([]float64, 0, len(values))
	for _, v := range values {
		if isFinite(v) {
			kept = append(kept, v)
		}
	}
	return kept
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sortAscNaNLast orders ascending with NaN after +Inf, so trimming and
// positional weighting see NaN at the top end when the policy keeps it.
func sortAscNaNLast(values []float64) {
	sort.Slice(values, func(i, j int) bool {
		a, b := values[i], values[j]
		if math.IsNaN(a) {
			return false
		}
		if math.IsNaN(b) {
			return true
		}
		return a < b
	})
}
