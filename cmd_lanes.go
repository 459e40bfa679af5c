package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/datawire/cilane/pkg/cliutil"
	"github.com/datawire/cilane/pkg/pipeline"
)

func init() {
	var argOutput string
	cmd := &cobra.Command{
		Use:   "lanes [flags] IN_PIPELINEFILE",
		Short: "List the expanded matrix lanes",
		Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(flags *cobra.Command, args []string) error {
			p, err := pipeline.ParseFile(args[0])
			if err != nil {
				return err
			}
			switch argOutput {
			case "yaml":
				bs, err := yaml.Marshal(p.Lanes())
				if err != nil {
					return err
				}
				if _, err := flags.OutOrStdout().Write(bs); err != nil {
					return err
				}
			case "table":
				table := tabwriter.NewWriter(flags.OutOrStdout(), 0, 8, 2, ' ', 0)
				fmt.Fprintf(table, "LANE\tOS\tDIST\tVERSION\tALLOW_FAILURE\n")
				for _, lane := range p.Lanes() {
					fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%v\n",
						lane.DisplayName(), lane.OS, lane.Dist, lane.Version,
						p.Matrix.FailureAllowed(lane))
				}
				if err := table.Flush(); err != nil {
					return err
				}
			default:
				return fmt.Errorf("invalid --output %q (must be \"table\" or \"yaml\")", argOutput)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&argOutput, "output", "o", "table",
		"Output `FORMAT`: \"table\" or \"yaml\"")
	argparser.AddCommand(cmd)
}
