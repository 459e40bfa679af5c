// Command cilane runs matrix CI pipelines, as described by a Travis-style
// YAML descriptor, on the local machine.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/datawire/dlib/dlog"
	"github.com/google/go-containerregistry/pkg/logs"
	"github.com/spf13/cobra"

	"github.com/datawire/cilane/pkg/cliutil"
	"github.com/datawire/cilane/pkg/runnerconfig"
)

var argparser = &cobra.Command{
	Use:   "cilane {[flags]|SUBCOMMAND...}",
	Short: "Run matrix CI pipelines locally",

	Args: cliutil.OnlySubcommands,
	RunE: cliutil.RunSubcommands,

	SilenceErrors: true, // main() will handle this after .ExecuteContext() returns
	SilenceUsage:  true, // our FlagErrorFunc will handle it
}

var argConfigFile string

func init() {
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)
	argparser.PersistentFlags().StringVar(&argConfigFile, "config", "",
		"Read tool configuration from `CONFIG_FILE` instead of the default locations")
}

// toolConfig loads the runner-level configuration, honoring the global
// --config flag.
func toolConfig() (*runnerconfig.Config, error) {
	return runnerconfig.Load(argConfigFile)
}

func main() {
	ctx := context.Background()

	logs.Warn = dlog.StdLogger(ctx, dlog.LogLevelWarn)
	logs.Progress = dlog.StdLogger(ctx, dlog.LogLevelInfo)
	logs.Debug = dlog.StdLogger(ctx, dlog.LogLevelDebug)

	if err := argparser.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(argparser.ErrOrStderr(), "%s: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}
