package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datawire/cilane/pkg/cliutil"
	"github.com/datawire/cilane/pkg/pipeline"
)

func init() {
	var argFile string
	cmd := &cobra.Command{
		Use:   "trigger [flags] BRANCH",
		Short: "Check whether a branch triggers the pipeline",
		Long: "Evaluate the descriptor's branch filter against BRANCH.  Exits 0 if a " +
			"push to BRANCH would trigger a run, non-zero otherwise; `except` " +
			"entries win over `only` entries, and a descriptor without a filter " +
			"triggers on every branch.",
		Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(flags *cobra.Command, args []string) error {
			p, err := pipeline.ParseFile(argFile)
			if err != nil {
				return err
			}
			branch := args[0]
			if !p.Branches.Allowed(branch) {
				return fmt.Errorf("branch %q does not trigger this pipeline", branch)
			}
			fmt.Fprintf(flags.OutOrStdout(), "branch %q triggers this pipeline\n", branch)
			return nil
		},
	}
	cmd.Flags().StringVarP(&argFile, "file", "f", ".cilane.yml",
		"Read the pipeline descriptor from `IN_PIPELINEFILE`")
	argparser.AddCommand(cmd)
}
