package signal

import (
	"fmt"
	"math"
	"math/rand/v2"

	"episkopos/internal/plugin"
)

// Affine observes each client's latent state through a linear channel
// with additive Gaussian noise. One noise draw is consumed per client
// even at zero sigma, so observation streams stay aligned across noise
// settings.
//
// Parameters: scale (default 1), bias (default 0), noise (default 0.5,
// alias noise_sigma, scalar or one sigma per client), clip (optional
// [low, high] pair, null for an open bound). The vector noise length is
// checked against the population size by config validation.
type Affine struct {
	scale float64
	bias  float64
	sigma []float64
	lo    float64
	hi    float64
}

func NewAffine(p plugin.Params) (plugin.SignalModel, error) {
	scale, err := p.Float("scale", 1.0)
	if err != nil {
		return nil, err
	}
	bias, err := p.Float("bias", 0.0)
	if err != nil {
		return nil, err
	}
	sigma, ok, err := p.Floats("noise")
	if err != nil {
		return nil, err
	}
	if !ok {
		sigma, ok, err = p.Floats("noise_sigma")
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		sigma = []float64{0.5}
	}
	if len(sigma) == 0 {
		return nil, fmt.Errorf("%w: noise must be a scalar or a non-empty list", plugin.ErrInvalidParam)
	}
	lo, hi, err := clipBounds(p)
	if err != nil {
		return nil, err
	}
	return Affine{scale: scale, bias: bias, sigma: sigma, lo: lo, hi: hi}, nil
}

func (s Affine) Observe(latent []float64, g *rand.Rand) []float64 {
	out := make([]float64, len(latent))
	for i, u := range latent {
		sigma := s.sigma[0]
		if len(s.sigma) > 1 {
			sigma = s.sigma[i]
		}
		v := s.scale*u + s.bias + sigma*g.NormFloat64()
		// NaN passes through untouched; the aggregator's policy
		// decides its fate.
		out[i] = math.Min(math.Max(v, s.lo), s.hi)
	}
	return out
}

func clipBounds(p plugin.Params) (lo, hi float64, err error) {
	lo, hi = math.Inf(-1), math.Inf(1)
	raw, ok := p["clip"]
	if !ok || raw == nil {
		return lo, hi, nil
	}
	pair, ok := raw.([]any)
	if !ok || len(pair) != 2 {
		return 0, 0, fmt.Errorf("%w: clip must be a [low, high] pair", plugin.ErrInvalidParam)
	}
	if pair[0] != nil {
		lo, ok = asFloat(pair[0])
		if !ok {
			return 0, 0, fmt.Errorf("%w: clip low must be numeric or null, got %T", plugin.ErrInvalidParam, pair[0])
		}
	}
	if pair[1] != nil {
		hi, ok = asFloat(pair[1])
		if !ok {
			return 0, 0, fmt.Errorf("%w: clip high must be numeric or null, got %T", plugin.ErrInvalidParam, pair[1])
		}
	}
	return lo, hi, nil
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return 0, false
	}
}
