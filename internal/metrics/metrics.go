// Package metrics provides summary statistics and frontier analysis
// over simulation outputs.
package metrics

import (
	"errors"
	"fmt"
	"math"
)

// ErrShapeMismatch marks grid inputs whose dimensions disagree.
var ErrShapeMismatch = errors.New("shape mismatch")

// Mean is the plain arithmetic mean. NaN propagates; an empty sample
// is NaN.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdPop is the population standard deviation (zero delta degrees of
// freedom). NaN propagates; an empty sample is NaN.
func StdPop(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	m := Mean(values)
	ss := 0.0
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)))
}

// StdSample is the sample standard deviation (one delta degree of
// freedom). Samples smaller than two are NaN.
func StdSample(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return math.NaN()
	}
	m := Mean(values)
	ss := 0.0
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// Summary is a mean with its dispersion and a Wald 95% confidence
// half-width.
type Summary struct {
	Mean  float64
	Std   float64
	Count int
	SEM   float64
	CI95  float64
}

// Summarize drops NaN observations and summarizes the rest with the
// sample standard deviation. The count reports the observations kept.
func Summarize(values []float64) Summary {
	kept := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		kept = append(kept, v)
	}
	s := Summary{
		Mean:  Mean(kept),
		Std:   StdSample(kept),
		Count: len(kept),
	}
	s.SEM = s.Std / math.Sqrt(float64(max(s.Count, 1)))
	s.CI95 = 1.96 * s.SEM
	return s
}

// SummarizeBy groups values by key and summarizes each group.
func SummarizeBy(keys []string, values []float64) (map[string]Summary, error) {
	if len(keys) != len(values) {
		return nil, fmt.Errorf("%w: %d keys for %d values", ErrShapeMismatch, len(keys), len(values))
	}
	groups := make(map[string][]float64)
	for i, key := range keys {
		groups[key] = append(groups[key], values[i])
	}
	out := make(map[string]Summary, len(groups))
	for key, group := range groups {
		out[key] = Summarize(group)
	}
	return out, nil
}

// Sign maps a value to -1, 0, or +1; NaN stays NaN.
func Sign(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return math.NaN()
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// SignMap applies Sign elementwise.
func SignMap(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = Sign(v)
	}
	return out
}

// FrontierPoint is the smallest penalty strength at which utility
// turns positive for one damping setting, NaN when it never does.
type FrontierPoint struct {
	Alpha   float64
	PhiStar float64
}

// FirstZeroCrossingFrontier scans each alpha column of deltaU, indexed
// as deltaU[phi][alpha] with phis ascending, for the first positive
// entry and linearly interpolates the zero crossing against the
// previous row. A column that starts positive reports the first phi.
func FirstZeroCrossingFrontier(alphas, phis []float64, deltaU [][]float64) ([]FrontierPoint, error) {
	if len(deltaU) != len(phis) {
		return nil, fmt.Errorf("%w: %d rows for %d phis", ErrShapeMismatch, len(deltaU), len(phis))
	}
	for i, row := range deltaU {
		if len(row) != len(alphas) {
			return nil, fmt.Errorf("%w: row %d has %d columns for %d alphas", ErrShapeMismatch, i, len(row), len(alphas))
		}
	}

	points := make([]FrontierPoint, len(alphas))
	for j, alpha := range alphas {
		points[j] = FrontierPoint{Alpha: alpha, PhiStar: math.NaN()}
		i1 := -1
		for i := range phis {
			if deltaU[i][j] > 0 {
				i1 = i
				break
			}
		}
		if i1 < 0 {
			continue
		}
		i0 := max(0, i1-1)
		y0, y1 := deltaU[i0][j], deltaU[i1][j]
		x0, x1 := phis[i0], phis[i1]
		if y1 == y0 {
			points[j].PhiStar = x1
			continue
		}
		t := (0 - y0) / (y1 - y0)
		points[j].PhiStar = x0 + t*(x1-x0)
	}
	return points, nil
}
