package aggregate

import "episkopos/internal/plugin"

// Mean reduces a sample to its arithmetic mean.
type Mean struct {
	clean cleaner
}

func NewMean(p plugin.Params) (plugin.Aggregator, error) {
	clean, err := cleanerFrom(p)
	if err != nil {
		return nil, err
	}
	return Mean{clean: clean}, nil
}

func (a Mean) Reduce(values []float64) float64 {
	return mean(a.clean(values))
}
