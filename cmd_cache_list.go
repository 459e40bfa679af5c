package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/datawire/cilane/pkg/fsutil"
)

func init() {
	cmd := &cobra.Command{
		Use:     "list [flags]",
		Aliases: []string{"ls"},
		Short:   "List stored cache snapshots",
		Args:    cobra.NoArgs,
		RunE: func(flags *cobra.Command, _ []string) error {
			cfg, err := toolConfig()
			if err != nil {
				return err
			}
			entries, err := os.ReadDir(cfg.CacheDir)
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}

			table := tabwriter.NewWriter(flags.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintf(table, "LANE\tSIZE\tDIGEST\n")
			for _, entry := range entries {
				if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tar") {
					continue
				}
				info, err := entry.Info()
				if err != nil {
					return err
				}
				digest := "?"
				if layer, err := fsutil.OpenSnapshot(filepath.Join(cfg.CacheDir, entry.Name())); err == nil {
					if d, err := layer.Digest(); err == nil {
						digest = d.String()
					}
				}
				fmt.Fprintf(table, "%s\t%d\t%s\n",
					strings.TrimSuffix(entry.Name(), ".tar"), info.Size(), digest)
			}
			return table.Flush()
		},
	}
	argparserCache.AddCommand(cmd)
}
