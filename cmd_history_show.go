package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/datawire/cilane/pkg/cliutil"
	"github.com/datawire/cilane/pkg/history"
)

func init() {
	var argDescriptor bool
	cmd := &cobra.Command{
		Use:   "show [flags] RUN_ID",
		Short: "Show one run, with per-lane detail",
		Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(flags *cobra.Command, args []string) error {
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

			run, err := store.Get(ctx, args[0])
			if err != nil {
				return fmt.Errorf("run %q: %w", args[0], err)
			}

			out := flags.OutOrStdout()
			status := "passed"
			if run.Failed {
				status = "failed"
			}
			fmt.Fprintf(out, "run:     %s\n", run.ID)
			fmt.Fprintf(out, "started: %s\n", run.StartedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "branch:  %s\n", run.Branch)
			fmt.Fprintf(out, "digest:  %s\n", run.Digest)
			fmt.Fprintf(out, "result:  %s\n", status)
			fmt.Fprintln(out)

			table := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
			fmt.Fprintf(table, "LANE\tOS\tRESULT\tDURATION\tERROR\n")
			for _, lane := range run.Lanes {
				laneStatus := "passed"
				if lane.Failed {
					laneStatus = "failed"
					if lane.AllowFailure {
						laneStatus = "failed (allowed)"
					}
				}
				fmt.Fprintf(table, "%s\t%s\t%s\t%v\t%s\n",
					lane.Name, lane.OS, laneStatus, lane.Duration, lane.Error)
			}
			if err := table.Flush(); err != nil {
				return err
			}

			if argDescriptor {
				fmt.Fprintln(out)
				fmt.Fprint(out, run.Descriptor)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&argDescriptor, "descriptor", false,
		"Also print the descriptor the run was made from")
	argparserHistory.AddCommand(cmd)
}
