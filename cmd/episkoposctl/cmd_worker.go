package main

import (
	"github.com/spf13/cobra"

	"episkopos/internal/backend"
	"episkopos/internal/catalog"
	"episkopos/internal/engine"
	"episkopos/internal/stream"
)

// newWorkerCmd is the receiving end of the cluster backend: the parent
// process re-invokes this binary with "worker", ships one task on
// stdin, and reads the repeat's rows back from stdout.
func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "Execute one repeat from a task on stdin",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := backend.ReadTask(cmd.InOrStdin())
			if err != nil {
				return err
			}
			ex, err := engine.New(task.Config, catalog.New(),
				engine.WithRoot(stream.FromState(task.RootState)))
			if err != nil {
				return err
			}
			rows, err := ex.RunRepeat(cmd.Context(), task.Repeat)
			if err != nil {
				return err
			}
			return backend.WriteResult(cmd.OutOrStdout(), backend.TaskResult{Rows: rows})
		},
	}
}
