package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/datawire/cilane/pkg/history"
)

func init() {
	var argLimit int
	cmd := &cobra.Command{
		Use:   "list [flags]",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(flags *cobra.Command, _ []string) error {
			ctx := flags.Context()

			cfg, err := toolConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			runs, err := store.List(ctx, argLimit)
			if err != nil {
				return err
			}
			table := tabwriter.NewWriter(flags.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintf(table, "RUN\tSTARTED\tBRANCH\tDIGEST\tRESULT\n")
			for _, run := range runs {
				status := "passed"
				if run.Failed {
					status = "failed"
				}
				fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%s\n",
					run.ID, run.StartedAt.Format(time.RFC3339), run.Branch,
					run.Digest[:12], status)
			}
			return table.Flush()
		},
	}
	cmd.Flags().IntVarP(&argLimit, "limit", "n", 20,
		"Show at most `N` runs")
	argparserHistory.AddCommand(cmd)
}
