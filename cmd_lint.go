package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datawire/cilane/pkg/cliutil"
	"github.com/datawire/cilane/pkg/pipeline"
)

func init() {
	var argCanonical bool
	cmd := &cobra.Command{
		Use:   "lint [flags] IN_PIPELINEFILE",
		Short: "Validate a pipeline descriptor",
		Long: "Parse and validate the descriptor without running anything.  All " +
			"problems are reported at once.  With --canonical, the descriptor's " +
			"canonical normal form is written to stdout; two descriptors with the " +
			"same semantics have byte-identical canonical forms, which makes diffs " +
			"between pipeline versions reviewable.",
		Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(flags *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			p, err := pipeline.Parse(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if argCanonical {
				canon, err := p.Canonical()
				if err != nil {
					return err
				}
				if _, err := flags.OutOrStdout().Write(canon); err != nil {
					return err
				}
				return nil
			}
			digest, err := p.Digest()
			if err != nil {
				return err
			}
			fmt.Fprintf(flags.OutOrStdout(), "%s: ok (%d lanes, digest %s)\n",
				args[0], len(p.Lanes()), digest[:12])
			return nil
		},
	}
	cmd.Flags().BoolVar(&argCanonical, "canonical", false,
		"Write the canonical normal form to stdout")
	argparser.AddCommand(cmd)
}
