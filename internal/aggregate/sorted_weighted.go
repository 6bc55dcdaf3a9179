package aggregate

import (
	"math"
	"sort"

	"episkopos/internal/plugin"
)

// SortedWeighted sorts the sample ascending and takes a weighted
// average against a positional weight profile stretched to the sample
// size. Heavier weights near the end emphasize the upper tail.
type SortedWeighted struct {
	weights []float64
	clean   cleaner
}

func NewSortedWeighted(p plugin.Params) (plugin.Aggregator, error) {
	clean, err := cleanerFrom(p)
	if err != nil {
		return nil, err
	}
	weights, _, err := p.Floats("weights")
	if err != nil {
		return nil, err
	}
	return SortedWeighted{weights: weights, clean: clean}, nil
}

func (a SortedWeighted) Reduce(values []float64) float64 {
	kept := a.clean(values)
	n := len(kept)
	if n == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), kept...)
	sortAscNaNLast(sorted)
	w := stretchWeights(a.weights, n)
	total := 0.0
	for i, v := range sorted {
		total += w[i] * v
	}
	return total
}

// stretchWeights adapts the configured profile to n positions:
// negatives clip to zero, a mismatched length is resampled linearly
// over [0, 1], and a profile summing to zero falls back to uniform.
// The result is normalized to sum to one.
func stretchWeights(weights []float64, n int) []float64 {
	if len(weights) == 0 {
		return uniformWeights(n)
	}
	w := make([]float64, len(weights))
	for i, v := range weights {
		if v < 0 {
			v = 0
		}
		w[i] = v
	}
	if len(w) != n {
		w = resample(w, n)
	}
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	if sum <= 0 {
		return uniformWeights(n)
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

func uniformWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

// resample maps the profile onto n evenly spaced positions over [0, 1]
// by linear interpolation. A single-point profile extends as a
// constant.
func resample(w []float64, n int) []float64 {
	xs := linspace01(len(w))
	out := make([]float64, n)
	for i, x := range linspace01(n) {
		out[i] = interp(x, xs, w)
	}
	return out
}

func linspace01(n int) []float64 {
	xs := make([]float64, n)
	if n == 1 {
		return xs
	}
	for i := range xs {
		xs[i] = float64(i) / float64(n-1)
	}
	return xs
}

func interp(x float64, xs, ys []float64) float64 {
	if x <= xs[0] {
		return ys[0]
	}
	last := len(xs) - 1
	if x >= xs[last] {
		return ys[last]
	}
	j := sort.SearchFloat64s(xs, x)
	if xs[j] == x {
		return ys[j]
	}
	t := (x - xs[j-1]) / (xs[j] - xs[j-1])
	return ys[j-1] + t*(ys[j]-ys[j-1])
}
