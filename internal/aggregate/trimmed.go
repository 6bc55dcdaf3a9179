package aggregate

import (
	"math"

	"episkopos/internal/plugin"
)

// TrimmedMean drops the k smallest and k largest observations before
// averaging, with k rounded half-to-even from trim_ratio times the
// sample size. A trim that would consume the whole sample degrades to
// the plain mean.
type TrimmedMean struct {
	ratio float64
	clean cleaner
}

func NewTrimmedMean(p plugin.Params) (plugin.Aggregator, error) {
	clean, err := cleanerFrom(p)
	if err != nil {
		return nil, err
	}
	ratio, err := p.Float("trim_ratio", 0.10)
	if err != nil {
		return nil, err
	}
	if !isFinite(ratio) {
		ratio = 0
	}
	ratio = math.Min(math.Max(ratio, 0), 0.5)
	return TrimmedMean{ratio: ratio, clean: clean}, nil
}

func (a TrimmedMean) Reduce(values []float64) float64 {
	kept := a.clean(values)
	n := len(kept)
	if n == 0 {
		return math.NaN()
	}
	k := int(math.RoundToEven(a.ratio * float64(n)))
	if 2*k >= n {
		return mean(kept)
	}
	sorted := append([]float64(nil), kept...)
	sortAscNaNLast(sorted)
	return mean(sorted[k : n-k])
}
