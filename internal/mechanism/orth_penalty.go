package mechanism

import (
	"math"
	"math/rand/v2"

	"episkopos/internal/plugin"
)

// OrthPenalty scores a round by the component of the observed signal
// that is orthogonal to the population state. Both vectors are centered,
// the signal is decomposed against the state direction, and the average
// absolute orthogonal magnitude becomes a utility penalty. A mixing
// ratio pi blends the state back into the signal before the
// decomposition, and small orthogonality is forgiven while the
// aggregate stays non-negative.
//
// Parameters: pi (default 0.2, clamped to [0, 1]), eta (default 1),
// phi (default 1), benign_threshold (default 0.1), neutralize_benign
// (default true). The alpha parameter in the same config section
// belongs to the state update rule, not to this assessment.
type OrthPenalty struct {
	pi               float64
	eta              float64
	phi              float64
	benignThreshold  float64
	neutralizeBenign bool
}

func NewOrthPenalty(p plugin.Params) (plugin.Mechanism, error) {
	pi, err := p.Float("pi", 0.2)
	if err != nil {
		return nil, err
	}
	eta, err := p.Float("eta", 1.0)
	if err != nil {
		return nil, err
	}
	phi, err := p.Float("phi", 1.0)
	if err != nil {
		return nil, err
	}
	threshold, err := p.Float("benign_threshold", 0.10)
	if err != nil {
		return nil, err
	}
	neutralize, err := p.Bool("neutralize_benign", true)
	if err != nil {
		return nil, err
	}
	pi = math.Min(math.Max(pi, 0), 1)
	return OrthPenalty{
		pi:               pi,
		eta:              eta,
		phi:              phi,
		benignThreshold:  threshold,
		neutralizeBenign: neutralize,
	}, nil
}

func (mech OrthPenalty) Assess(_ plugin.State, latent, observed []float64, aggregate float64, _ *rand.Rand) plugin.Metrics {
	sEff := make([]float64, len(observed))
	for i := range sEff {
		sEff[i] = (1-mech.pi)*observed[i] + mech.pi*mech.eta*latent[i]
	}

	orthMag := orthMagnitude(sEff, latent)
	deltaU := -mech.phi * orthMag
	if mech.neutralizeBenign && aggregate >= 0 && orthMag <= mech.benignThreshold {
		deltaU = 0
	}

	// A NaN aggregate fails both comparisons, leaving zero proxies
	// while the monitoring value itself carries the NaN.
	gain, cost := 0.0, 0.0
	if aggregate > 0 {
		gain = aggregate
	}
	if -aggregate > 0 {
		cost = -aggregate
	}
	return plugin.Metrics{
		MonitoringValue: aggregate,
		GainProxy:       gain,
		CostProxy:       cost,
		UtilityDelta:    deltaU,
	}
}

// orthMagnitude averages |orth_i| over the finite entries of the
// orthogonal component, 0 when none are finite.
func orthMagnitude(s, u []float64) float64 {
	orth := orthComponent(s, u)
	sum, count := 0.0, 0
	for _, v := range orth {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += math.Abs(v)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// orthComponent returns the part of s orthogonal to u after centering
// both. A directionless u (constant, zero spread) leaves the whole
// centered s orthogonal.
func orthComponent(s, u []float64) []float64 {
	su := centered(s)
	uu := centered(u)
	denom := dot(uu, uu)
	if denom <= 0 {
		return su
	}
	scale := dot(su, uu) / denom
	out := make([]float64, len(su))
	for i := range out {
		out[i] = su[i] - scale*uu[i]
	}
	return out
}

func centered(x []float64) []float64 {
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	m := sum / float64(len(x))
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v - m
	}
	return out
}

func dot(a, b []float64) float64 {
	total := 0.0
	for i := range a {
		total += a[i] * b[i]
	}
	return total
}
