package sweep

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"episkopos/internal/backend"
	"episkopos/internal/config"
	"episkopos/internal/engine"
	"episkopos/internal/plugin"
	"episkopos/internal/stream"
	"episkopos/internal/table"
)

// Runner executes a sweep's experiments through the configured
// backend.
type Runner struct {
	Catalog  *plugin.Registry
	Backends *backend.Registry
	Log      *slog.Logger
}

// Request carries one sweep invocation. Workers bounds how many
// experiments run at once; <= 1 runs them sequentially.
type Request struct {
	Spec    *Spec
	Workers int
}

// ExperimentResult is one experiment's outcome in the combined result.
type ExperimentResult struct {
	Experiment
	Rows int `json:"rows"`
}

// Result is the combined sweep outcome: one table holding every
// experiment's rows, labeled and sorted, plus per-experiment results
// in grid order.
type Result struct {
	Table       *table.Table
	Experiments []ExperimentResult
}

// Run expands the grid and executes every experiment. Results land in
// an index-addressed slice, so output order never depends on
// completion order.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	spec := req.Spec
	experiments := Expand(spec.Axes)
	root := spec.Base.SeedRoot()

	if r.Log != nil {
		r.Log.Info("sweep start", "experiments", len(experiments), "workers", req.Workers)
	}

	parts := make([]*table.Table, len(experiments))
	results := make([]ExperimentResult, len(experiments))

	g, ctx := errgroup.WithContext(ctx)
	limit := req.Workers
	if limit <= 1 {
		limit = 1
	}
	g.SetLimit(limit)
	for i, exp := range experiments {
		g.Go(func() error {
			tbl, err := r.runExperiment(ctx, spec.Base, exp, root)
			if err != nil {
				return fmt.Errorf("experiment %s: %w", exp.Label, err)
			}
			parts[i] = tbl
			results[i] = ExperimentResult{Experiment: exp, Rows: tbl.Len()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows []table.Row
	for _, part := range parts {
		rows = append(rows, part.Rows...)
	}
	return &Result{Table: table.New(rows), Experiments: results}, nil
}

// runExperiment clones the base, applies the overrides, and runs the
// resulting configuration under the experiment's derived seed root.
// Plugins resolve from the merged config, so grids over plugin names
// select different strategies per experiment.
func (r *Runner) runExperiment(ctx context.Context, base *config.Config, exp Experiment, root stream.Root) (*table.Table, error) {
	cfg := base.Clone()
	for _, ov := range exp.Overrides {
		if err := cfg.Set(ov.Key, ov.Value); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	expRoot := root.Sub(stream.TagSweep, uint64(exp.Index))
	ex, err := engine.New(cfg, r.Catalog, engine.WithRoot(expRoot), engine.WithLogger(r.Log))
	if err != nil {
		return nil, err
	}
	b, err := r.Backends.Resolve(cfg.Execution.Backend)
	if err != nil {
		return nil, err
	}

	tbl, err := b.Run(ctx, backend.Job{
		Repeats:   cfg.Engine.Repeats,
		Workers:   cfg.Execution.ParallelWorkers,
		RunRepeat: ex.RunRepeat,
		Config:    cfg,
		Root:      expRoot,
	})
	if err != nil {
		return nil, err
	}
	for i := range tbl.Rows {
		tbl.Rows[i].Experiment = exp.Label
	}
	if r.Log != nil {
		r.Log.Debug("experiment complete", "label", exp.Label, "rows", tbl.Len())
	}
	return tbl, nil
}
