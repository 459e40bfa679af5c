package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/datawire/cilane/pkg/cliutil"
	"github.com/datawire/cilane/pkg/history"
	"github.com/datawire/cilane/pkg/pipeline"
	"github.com/datawire/cilane/pkg/runner"
)

func init() {
	var (
		argBranch      string
		argLanes       []string
		argWorkDir     string
		argOnlyStage   string
		argNoCache     bool
		argNoHistory   bool
		argMaxParallel int
	)
	cmd := &cobra.Command{
		Use:   "run [flags] IN_PIPELINEFILE",
		Short: "Run a pipeline's matrix lanes",
		Long: "Parse the pipeline descriptor, expand the build matrix, and run every " +
			"lane on this machine.  Lanes run in parallel and are isolated from each " +
			"other; within a lane the lifecycle stages (before_install, install, " +
			"before_script, script, then after_success or after_failure) run strictly " +
			"in order, and the first failing command aborts the lane's remaining " +
			"stages." +
			"\n\n" +
			"The run fails if any lane fails, except for lanes matched by the " +
			"descriptor's matrix.allow_failures selectors; those lanes' failures are " +
			"reported but tolerated.",
		Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(flags *cobra.Command, args []string) error {
			ctx := flags.Context()

			descriptor, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			p, err := pipeline.Parse(descriptor)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			cfg, err := toolConfig()
			if err != nil {
				return err
			}

			opts := runner.Options{
				Branch:      argBranch,
				WorkDir:     argWorkDir,
				Shell:       cfg.Shell,
				MaxParallel: cfg.MaxParallel,
				Lanes:       argLanes,
				OnlyStage:   argOnlyStage,
				Descriptor:  string(descriptor),
			}
			if argMaxParallel > 0 {
				opts.MaxParallel = argMaxParallel
			}
			if !argNoCache {
				opts.CacheDir = cfg.CacheDir
			}
			if !argNoHistory {
				store, err := history.Open(cfg.HistoryDB)
				if err != nil {
					return err
				}
				defer func() {
					_ = store.Close()
				}()
				opts.History = store
			}

			result, err := runner.Run(ctx, p, opts)
			if err != nil {
				return err
			}
			if result.Skipped {
				fmt.Fprintf(flags.OutOrStdout(), "branch %q does not trigger this pipeline\n", argBranch)
				return nil
			}

			printRunSummary(flags.OutOrStdout(), result)
			if result.Failed() {
				return fmt.Errorf("run %s failed", result.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&argBranch, "branch", "",
		"Check the descriptor's branch filter against `BRANCH` before running")
	cmd.Flags().StringArrayVar(&argLanes, "lane", nil,
		"Run only the lane named `LANE` (repeatable)")
	cmd.Flags().StringVar(&argOnlyStage, "only-stage", "",
		"Run only the lifecycle stage named `STAGE` in each lane")
	cmd.Flags().StringVar(&argWorkDir, "workdir", "",
		"Run each lane in its own subdirectory of `DIR` instead of the current directory")
	cmd.Flags().BoolVar(&argNoCache, "no-cache", false,
		"Skip cache snapshot restore/save")
	cmd.Flags().BoolVar(&argNoHistory, "no-history", false,
		"Don't record this run in the history database")
	cmd.Flags().IntVar(&argMaxParallel, "max-parallel", 0,
		"Run at most `N` lanes at once (0 = no limit)")
	argparser.AddCommand(cmd)
}

func printRunSummary(out io.Writer, result *runner.RunResult) {
	table := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintf(table, "LANE\tOS\tRESULT\tDURATION\n")
	for _, lane := range result.Lanes {
		status := "passed"
		if lane.Err != nil {
			status = "failed"
			if lane.AllowFailure {
				status = "failed (allowed)"
			}
		}
		fmt.Fprintf(table, "%s\t%s\t%s\t%v\n",
			lane.Lane.DisplayName(), lane.Lane.OS, status,
			lane.Duration.Round(time.Millisecond))
	}
	_ = table.Flush()
}
