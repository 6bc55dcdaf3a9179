package aggregate

import (
	"math"

	"episkopos/internal/plugin"
)

// Median reduces a sample to its median, averaging the two middle
// observations for even sizes.
type Median struct {
	clean cleaner
}

func NewMedian(p plugin.Params) (plugin.Aggregator, error) {
	clean, err := cleanerFrom(p)
	if err != nil {
		return nil, err
	}
	return Median{clean: clean}, nil
}

func (a Median) Reduce(values []float64) float64 {
	kept := a.clean(values)
	if len(kept) == 0 {
		return math.NaN()
	}
	for _, v := range kept {
		if math.IsNaN(v) {
			return math.NaN()
		}
	}
	sorted := append([]float64(nil), kept...)
	sortAscNaNLast(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
