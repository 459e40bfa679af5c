package main

import (
	"github.com/spf13/cobra"

	"github.com/datawire/cilane/pkg/cachedir"
	"github.com/datawire/cilane/pkg/cliutil"
	"github.com/datawire/cilane/pkg/fsutil"
)

func init() {
	var argRoot string
	cmd := &cobra.Command{
		Use:   "restore [flags] LANE",
		Short: "Restore a lane's cache snapshot",
		Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(flags *cobra.Command, args []string) error {
			ctx := flags.Context()

			cfg, err := toolConfig()
			if err != nil {
				return err
			}
			layer, err := fsutil.OpenSnapshot(cachedir.SnapshotFile(cfg.CacheDir, args[0]))
			if err != nil {
				return err
			}
			return cachedir.Restore(ctx, layer, argRoot)
		},
	}
	cmd.Flags().StringVar(&argRoot, "root", "/",
		"Unpack the snapshot under `DIR` instead of /")
	argparserCache.AddCommand(cmd)
}
