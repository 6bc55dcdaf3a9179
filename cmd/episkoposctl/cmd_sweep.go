package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"episkopos/internal/config"
	"episkopos/internal/sweep"
	"episkopos/pkg/episkopos"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a config grid as labeled experiments",
		Long: `sweep expands a parameter grid into experiments, runs each one on its
own derived seed stream, and writes the combined labeled table plus a
manifest and a per-experiment summary CSV.

Grid axes come from the spec file's sweep.grid section, from repeated
--grid flags, or both.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := loadSweepSpec(cmd)
			if err != nil {
				return err
			}
			client, err := newClient(cmd, spec.Base.Store.Kind, spec.Base.Store.Path)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			workers, err := cmd.Flags().GetInt("experiments-workers")
			if err != nil {
				return err
			}
			summaryValue, err := cmd.Flags().GetString("summary-value")
			if err != nil {
				return err
			}

			summary, err := client.Sweep(cmd.Context(), episkopos.SweepRequest{
				Spec:               spec,
				OutPath:            out,
				ExperimentsWorkers: workers,
				SummaryColumn:      summaryValue,
			})
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"experiments": summary.Experiments,
					"rows":        summary.Rows,
					"table":       summary.TablePath,
					"summary":     summary.SummaryPath,
					"manifest":    summary.ManifestPath,
					"elapsed_sec": summary.Elapsed.Seconds(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sweep complete: experiments=%d rows=%d table=%s elapsed=%s\n",
				summary.Experiments, summary.Rows, summary.TablePath, summary.Elapsed.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringP("config", "c", "", "sweep spec YAML path")
	cmd.Flags().StringP("out", "o", "", "combined table path (default <results-dir>/logs/sweep.<format>)")
	cmd.Flags().StringArray("grid", nil, `grid axis KEY=SPEC (comma list or {"start":..,"stop":..,"num":..})`)
	cmd.Flags().Int("experiments-workers", 1, "experiments run concurrently")
	cmd.Flags().String("summary-value", "", "table column summarized per experiment (default utility_delta)")
	cmd.Flags().String("backend", "sequential", "execution backend for every experiment")
	cmd.Flags().Int("workers", 0, "parallel worker count inside each experiment")
	cmd.Flags().Int64("seed", 20250901, "seed root for stream derivation")
	cmd.Flags().String("format", "parquet", "table format: parquet|csv")
	return cmd
}

func loadSweepSpec(cmd *cobra.Command) (*sweep.Spec, error) {
	flags := cmd.Flags()
	path, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	spec := &sweep.Spec{Base: config.Default()}
	if path != "" {
		spec, err = sweep.Load(path)
		if err != nil {
			return nil, err
		}
	}

	grids, err := flags.GetStringArray("grid")
	if err != nil {
		return nil, err
	}
	for _, axis := range grids {
		key, raw, ok := strings.Cut(axis, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("grid flag wants KEY=SPEC, got %q", axis)
		}
		values, err := sweep.ParseSpecValue(raw)
		if err != nil {
			return nil, fmt.Errorf("grid %s: %w", key, err)
		}
		spec.Axes = append(spec.Axes, sweep.Axis{Key: key, Values: values})
	}

	if err := applySweepFlags(cmd, spec.Base); err != nil {
		return nil, err
	}
	return spec, nil
}

func applySweepFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	bindings := []struct {
		flag string
		key  string
		get  func(string) (any, error)
	}{
		{"backend", "execution.backend", func(name string) (any, error) { return flags.GetString(name) }},
		{"workers", "execution.parallel_workers", func(name string) (any, error) { return flags.GetInt(name) }},
		{"seed", "meta.seed_root", func(name string) (any, error) { return flags.GetInt64(name) }},
		{"format", "logging.out_format", func(name string) (any, error) { return flags.GetString(name) }},
	}
	for _, b := range bindings {
		if !flags.Changed(b.flag) {
			continue
		}
		value, err := b.get(b.flag)
		if err != nil {
			return err
		}
		if err := cfg.Set(b.key, value); err != nil {
			return fmt.Errorf("flag --%s: %w", b.flag, err)
		}
	}
	return nil
}
