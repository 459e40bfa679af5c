package main

import (
	"github.com/spf13/cobra"

	"github.com/datawire/cilane/pkg/cliutil"
)

var argparserCache = &cobra.Command{
	Use:   "cache {[flags]|SUBCOMMAND...}",
	Short: "Manage per-lane cache snapshots",

	Args: cliutil.OnlySubcommands,
	RunE: cliutil.RunSubcommands,
}

func init() {
	argparser.AddCommand(argparserCache)
}
