package aggregate

import "episkopos/internal/plugin"

// Register seeds the built-in aggregators. Names already registered
// are kept.
func Register(r *plugin.Registry) {
	r.SeedAggregators(map[string]plugin.AggregatorFactory{
		"mean":            NewMean,
		"median":          NewMedian,
		"trimmed":         NewTrimmedMean,
		"sorted_weighted": NewSortedWeighted,
	}, false)
}
