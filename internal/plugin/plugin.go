// Package plugin defines the three interchangeable strategy roles the
// engine drives (aggregator, signal model, mechanism) and the
// registry that resolves them by name. Strategies are constructed once
// per run by factories that decode their parameters from the config;
// the constructed values must be safe for concurrent use by independent
// repeats, since every mutable input (latent state, scratch state,
// generator) is passed in per call.
package plugin

import "math/rand/v2"

// Aggregator reduces a vector of observed signals to one scalar. When
// no valid values remain after the aggregator's cleaning policy it
// returns NaN rather than failing.
type Aggregator interface {
	Reduce(values []float64) float64
}

// SignalModel produces the observed per-client signal vector from the
// latent state, drawing any noise from the supplied generator. The
// returned slice has the same length as the input and never aliases it.
type SignalModel interface {
	Observe(latent []float64, g *rand.Rand) []float64
}

// Mechanism computes the round's monitoring metrics from the latent
// state, the observed signals, and the aggregate. The scratch state is
// owned by the enclosing repeat; mechanisms may stash round-level
// values there.
type Mechanism interface {
	Assess(scratch State, latent, observed []float64, aggregate float64, g *rand.Rand) Metrics
}

// Metrics carries the per-round scalars every mechanism must produce.
// GainProxy and CostProxy are non-negative and never both strictly
// positive: they split the monitoring value by sign.
type Metrics struct {
	MonitoringValue float64
	GainProxy       float64
	CostProxy       float64
	UtilityDelta    float64
}

// State is per-repeat scratch storage seeded with the repeat index.
type State map[string]any
