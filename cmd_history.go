package main

import (
	"github.com/spf13/cobra"

	"github.com/datawire/cilane/pkg/cliutil"
)

var argparserHistory = &cobra.Command{
	Use:   "history {[flags]|SUBCOMMAND...}",
	Short: "Inspect past runs",

	Args: cliutil.OnlySubcommands,
	RunE: cliutil.RunSubcommands,
}

func init() {
	argparser.AddCommand(argparserHistory)
}
