package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered strategies and available backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClientFromFlags(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			cat := client.Catalog(cmd.Context())
			if jsonOutput(cmd) {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"aggregators":   cat.Aggregators,
					"signal_models": cat.SignalModels,
					"mechanisms":    cat.Mechanisms,
					"backends":      cat.Backends,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "aggregators:   %s\n", strings.Join(cat.Aggregators, ", "))
			fmt.Fprintf(out, "signal models: %s\n", strings.Join(cat.SignalModels, ", "))
			fmt.Fprintf(out, "mechanisms:    %s\n", strings.Join(cat.Mechanisms, ", "))
			fmt.Fprintf(out, "backends:      %s\n", strings.Join(cat.Backends, ", "))
			return nil
		},
	}
}
