package main

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs from the history store",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := cmd.Flags().GetInt("limit")
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

			records, err := client.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"runs":  records,
					"count": len(records),
				})
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "no runs recorded")
				return nil
			}
			for _, rec := range records {
				age := rec.CreatedAtUTC
				if t := rec.CreatedTime(); !t.IsZero() {
					age = humanize.Time(t)
				}
				fmt.Fprintf(out, "%s  rows=%d backend=%s aggregator=%s mechanism=%s %s\n",
					rec.RunID, rec.Rows, rec.Backend, rec.Aggregator, rec.Mechanism, age)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "maximum records to list")
	return cmd
}
