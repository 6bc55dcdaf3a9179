package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"episkopos/pkg/episkopos"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy a run's artifacts and table to a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			runID, err := flags.GetString("run-id")
			if err != nil {
				return err
			}
			latest, err := flags.GetBool("latest")
			if err != nil {
				return err
			}
			dest, err := flags.GetString("dest")
			if err != nil {
				return err
			}

			client, err := newClientFromFlags(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			summary, err := client.Export(cmd.Context(), episkopos.ExportRequest{
				RunID:  runID,
				Latest: latest,
				Dest:   dest,
			})
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"run_id":    summary.RunID,
					"directory": summary.Directory,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", summary.RunID, summary.Directory)
			return nil
		},
	}
	cmd.Flags().String("run-id", "", "run id to export")
	cmd.Flags().Bool("latest", false, "export the most recent run")
	cmd.Flags().String("dest", "", "destination directory (default exports/)")
	return cmd
}
