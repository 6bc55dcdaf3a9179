package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"episkopos/internal/logging"
	"episkopos/pkg/episkopos"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "episkoposctl",
		Short: "Deterministic simulation of monitoring mechanisms",
		Long: `episkoposctl runs seed-reproducible simulations of monitoring and
aggregation mechanisms over synthetic client populations.

Runs write a result table with full provenance, sweeps fan a config
grid out into labeled experiments, and every run lands in a local
history store for listing and export.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("log-json", false, "log in JSON instead of text")
	rootCmd.PersistentFlags().Bool("json", false, "print results as JSON")
	rootCmd.PersistentFlags().String("results-dir", "results", "directory for run artifacts and default outputs")
	rootCmd.PersistentFlags().String("store", "", "run-history store: memory|sqlite (default sqlite)")
	rootCmd.PersistentFlags().String("store-path", "", "sqlite database path (default <results-dir>/runs.db)")

	rootCmd.AddCommand(
		newRunCmd(),
		newSweepCmd(),
		newListCmd(),
		newRunsCmd(),
		newExportCmd(),
		newWorkerCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func buildLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logJSON, _ := cmd.Flags().GetBool("log-json")
	level := "info"
	if verbose {
		level = "debug"
	}
	return logging.New(level, logJSON, cmd.ErrOrStderr())
}

// newClient builds the API client. storeKind and storePath may come
// from the run config or from the persistent flags, depending on the
// command.
func newClient(cmd *cobra.Command, storeKind, storePath string) (*episkopos.Client, error) {
	resultsDir, err := cmd.Flags().GetString("results-dir")
	if err != nil {
		return nil, err
	}
	return episkopos.New(episkopos.Options{
		ResultsDir: resultsDir,
		StoreKind:  storeKind,
		StorePath:  storePath,
		Logger:     buildLogger(cmd),
	})
}

func newClientFromFlags(cmd *cobra.Command) (*episkopos.Client, error) {
	storeKind, err := cmd.Flags().GetString("store")
	if err != nil {
		return nil, err
	}
	storePath, err := cmd.Flags().GetString("store-path")
	if err != nil {
		return nil, err
	}
	return newClient(cmd, storeKind, storePath)
}

func jsonOutput(cmd *cobra.Command) bool {
	jsonOut, _ := cmd.Flags().GetBool("json")
	return jsonOut
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			v := version
			if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
				v = bi.Main.Version
			}
			if jsonOutput(cmd) {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": v})
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "episkoposctl version %s\n", v)
		},
	}
}
