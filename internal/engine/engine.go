// Package engine runs the deterministic round loop for one repeat at a
// time. Backends schedule repeats; the arithmetic lives here so every
// backend produces identical rows.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"episkopos/internal/config"
	"episkopos/internal/dynamics"
	"episkopos/internal/metrics"
	"episkopos/internal/plugin"
	"episkopos/internal/stream"
	"episkopos/internal/table"
)

// stateStep scales alpha into the per-round damping 1 - stateStep*alpha
// of the latent state update.
const stateStep = 0.05

// Executor holds one run's resolved strategies and derivation root.
// It is safe for concurrent RunRepeat calls because repeats share no
// mutable state.
type Executor struct {
	cfg   *config.Config
	root  stream.Root
	sig   plugin.SignalModel
	agg   plugin.Aggregator
	mech  plugin.Mechanism
	alpha float64
	pi    float64
	log   *slog.Logger
}

type Option func(*Executor)

// WithRoot overrides the derivation root, which otherwise comes from
// the configured seed. Sweeps use this to give each experiment an
// independent sub-root.
func WithRoot(root stream.Root) Option {
	return func(e *Executor) { e.root = root }
}

func WithLogger(log *slog.Logger) Option {
	return func(e *Executor) { e.log = log }
}

// New resolves the configured strategies against the registry and
// prepares an executor. Resolution failures surface before any stream
// is derived.
func New(cfg *config.Config, reg *plugin.Registry, opts ...Option) (*Executor, error) {
	agg, err := reg.NewAggregator(cfg.Aggregator.Kind, cfg.Aggregator.Params)
	if err != nil {
		return nil, fmt.Errorf("resolve aggregator: %w", err)
	}
	sig, err := reg.NewSignalModel(cfg.Signals.Model, cfg.Signals.Params)
	if err != nil {
		return nil, fmt.Errorf("resolve signal model: %w", err)
	}
	mech, err := reg.NewMechanism(cfg.Mechanism.Policy, cfg.Mechanism.Params)
	if err != nil {
		return nil, fmt.Errorf("resolve mechanism: %w", err)
	}
	alpha, err := cfg.Mechanism.Params.Float("alpha", 0.5)
	if err != nil {
		return nil, fmt.Errorf("mechanism alpha: %w", err)
	}
	pi, err := cfg.Mechanism.Params.Float("pi", 0.2)
	if err != nil {
		return nil, fmt.Errorf("mechanism pi: %w", err)
	}

	e := &Executor{
		cfg:   cfg,
		root:  cfg.SeedRoot(),
		sig:   sig,
		agg:   agg,
		mech:  mech,
		alpha: alpha,
		pi:    pi,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Repeats returns the configured repeat count.
func (e *Executor) Repeats() int { return e.cfg.Engine.Repeats }

// RunRepeat runs all rounds of one repeat and returns its rows in
// round order. The latent state starts from standard normal draws on
// the repeat stream; each round observes, reduces, assesses, records,
// and then blends the aggregate into the state with damping
// 1 - 0.05*alpha. Rounds are strictly sequential because each state
// feeds the next.
func (e *Executor) RunRepeat(ctx context.Context, repeat int) ([]table.Row, error) {
	n := e.cfg.Engine.Clients
	rounds := e.cfg.Engine.Rounds

	gRep := e.root.Repeat(repeat)
	u := make([]float64, n)
	for i := range u {
		u[i] = gRep.NormFloat64()
	}
	scratch := plugin.State{"repeat": repeat}

	rows := make([]table.Row, 0, rounds)
	for t := 0; t < rounds; t++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		gRound := e.root.Round(repeat, t)
		s := e.sig.Observe(u, gRound)
		m := e.agg.Reduce(s)
		mx := e.mech.Assess(scratch, u, s, m, gRound)

		rows = append(rows, table.Row{
			Repeat:          repeat,
			Round:           t,
			N:               n,
			Aggregator:      e.cfg.Aggregator.Kind,
			Mechanism:       e.cfg.Mechanism.Policy,
			Signal:          e.cfg.Signals.Model,
			Alpha:           e.alpha,
			Pi:              e.pi,
			MonitoringValue: mx.MonitoringValue,
			GainProxy:       mx.GainProxy,
			CostProxy:       mx.CostProxy,
			UtilityDelta:    mx.UtilityDelta,
			SignalMean:      metrics.Mean(s),
			SignalStd:       metrics.StdPop(s),
			StateMean:       metrics.Mean(u),
			StateStd:        metrics.StdPop(u),
		})

		if e.log != nil && (t+1)%e.cfg.Execution.LogEvery == 0 {
			e.log.Debug("round complete",
				"repeat", repeat, "round", t,
				"monitoring_value", mx.MonitoringValue, "utility_delta", mx.UtilityDelta)
		}

		u = dynamics.LinearDampedTowardScalar(e.alpha, stateStep, m)(u)
	}
	return rows, nil
}
