package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datawire/cilane/pkg/cachedir"
	"github.com/datawire/cilane/pkg/cliutil"
	"github.com/datawire/cilane/pkg/fsutil"
	"github.com/datawire/cilane/pkg/pipeline"
	"github.com/datawire/cilane/pkg/reproducible"
)

func init() {
	var argFile string
	cmd := &cobra.Command{
		Use:   "save [flags] LANE",
		Short: "Snapshot the descriptor's cache paths for a lane",
		Long: "Build a snapshot of the descriptor's cache directives (builtin cache " +
			"names plus explicit directories) and store it under the lane's key in " +
			"the cache directory.  Timestamps are clamped (honoring " +
			"SOURCE_DATE_EPOCH), so saving unchanged contents rewrites nothing.",
		Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(flags *cobra.Command, args []string) error {
			ctx := flags.Context()

			p, err := pipeline.ParseFile(argFile)
			if err != nil {
				return err
			}
			cfg, err := toolConfig()
			if err != nil {
				return err
			}

			dirs := cachedir.Paths(p.Cache)
			if len(dirs) == 0 {
				return fmt.Errorf("%s: descriptor has no cache directives", argFile)
			}
			layer, err := cachedir.Snapshot(ctx, dirs, reproducible.Now())
			if err != nil {
				return err
			}

			snapFile := cachedir.SnapshotFile(cfg.CacheDir, args[0])
			if old, err := fsutil.OpenSnapshot(snapFile); err == nil {
				if equal, err := fsutil.SnapshotsEqualExceptTimestamps(old, layer); err == nil && equal {
					fmt.Fprintf(flags.OutOrStdout(), "%s: unchanged\n", snapFile)
					return nil
				}
			}
			if err := fsutil.WriteSnapshotFile(layer, snapFile); err != nil {
				return err
			}
			fmt.Fprintf(flags.OutOrStdout(), "%s: saved\n", snapFile)
			return nil
		},
	}
	cmd.Flags().StringVarP(&argFile, "file", "f", ".cilane.yml",
		"Read the pipeline descriptor from `IN_PIPELINEFILE`")
	argparserCache.AddCommand(cmd)
}
