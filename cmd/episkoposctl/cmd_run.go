package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"episkopos/internal/config"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation and record its artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(cmd)
			if err != nil {
				return err
			}
			client, err := newClient(cmd, cfg.Store.Kind, cfg.Store.Path)
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
			summary, err := client.Run(cmd.Context(), cfg, out)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"run_id":      summary.RunID,
					"rows":        summary.Rows,
					"table":       summary.TablePath,
					"provenance":  summary.ProvenancePath,
					"run_dir":     summary.RunDir,
					"backend":     summary.Backend,
					"elapsed_sec": summary.Elapsed.Seconds(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s complete: rows=%d table=%s elapsed=%s\n",
				summary.RunID, summary.Rows, summary.TablePath, summary.Elapsed.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringP("config", "c", "", "run config YAML path")
	cmd.Flags().StringP("out", "o", "", "output table path (default <results-dir>/logs/run.<format>)")
	cmd.Flags().String("backend", "sequential", "execution backend: sequential|parallel|cluster")
	cmd.Flags().Int("workers", 0, "parallel worker count (0 uses all CPUs)")
	cmd.Flags().Int("clients", 200, "client population size")
	cmd.Flags().Int("rounds", 50, "rounds per repeat")
	cmd.Flags().Int("repeats", 5, "independent repeats")
	cmd.Flags().String("signal-model", "affine", "signal model name")
	cmd.Flags().Float64("scale", 1.0, "signal scale parameter")
	cmd.Flags().Float64("bias", 0.0, "signal bias parameter")
	cmd.Flags().Float64("noise", 0.5, "signal noise sigma")
	cmd.Flags().String("aggregator", "mean", "aggregator kind")
	cmd.Flags().Float64("trim-ratio", 0.10, "trim ratio for the trimmed aggregator")
	cmd.Flags().String("policy", "orth_penalty", "mechanism policy name")
	cmd.Flags().Float64("alpha", 0.5, "mechanism monitoring intensity")
	cmd.Flags().Float64("pi", 0.2, "mechanism penalty rate")
	cmd.Flags().Float64("phi", 1.0, "mechanism orthogonality penalty weight")
	cmd.Flags().Int64("seed", 20250901, "seed root for stream derivation")
	cmd.Flags().String("experiment", "baseline", "experiment label for the run record")
	cmd.Flags().String("format", "parquet", "table format: parquet|csv")
	cmd.Flags().Int("precision", 6, "float precision for csv output (<=0 keeps full precision)")
	return cmd
}

// loadRunConfig resolves the effective config: the file (or defaults)
// with the flags the user actually set layered on top.
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg := config.Default()
	if path != "" {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	str := func(name string) (any, error) { return flags.GetString(name) }
	integer := func(name string) (any, error) { return flags.GetInt(name) }
	float := func(name string) (any, error) { return flags.GetFloat64(name) }

	bindings := []struct {
		flag string
		key  string
		get  func(string) (any, error)
	}{
		{"backend", "execution.backend", str},
		{"workers", "execution.parallel_workers", integer},
		{"clients", "engine.clients", integer},
		{"rounds", "engine.rounds", integer},
		{"repeats", "engine.repeats", integer},
		{"signal-model", "signals.model", str},
		{"scale", "signals.scale", float},
		{"bias", "signals.bias", float},
		{"noise", "signals.noise", float},
		{"aggregator", "aggregator.kind", str},
		{"trim-ratio", "aggregator.trim_ratio", float},
		{"policy", "mechanism.policy", str},
		{"alpha", "mechanism.alpha", float},
		{"pi", "mechanism.pi", float},
		{"phi", "mechanism.phi", float},
		{"seed", "meta.seed_root", func(name string) (any, error) { return flags.GetInt64(name) }},
		{"experiment", "meta.experiment", str},
		{"format", "logging.out_format", str},
		{"precision", "logging.float_precision", integer},
		{"store", "store.kind", str},
		{"store-path", "store.path", str},
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
