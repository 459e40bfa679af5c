// Package runner deals with executing a pipeline: every matrix lane, in
// parallel, each stepping through the lifecycle stage sequence.
//
// Lanes are isolated workers.  They share no mutable state, they are not
// cancelled when a sibling fails, and their results are only combined at the
// end, when allow_failures decides which failures count.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/datawire/cilane/pkg/cachedir"
	"github.com/datawire/cilane/pkg/envfile"
	"github.com/datawire/cilane/pkg/fsutil"
	"github.com/datawire/cilane/pkg/history"
	"github.com/datawire/cilane/pkg/lifecycle"
	"github.com/datawire/cilane/pkg/pipeline"
	"github.com/datawire/cilane/pkg/reproducible"
)

// Options configures a run.
type Options struct {
	// Branch is the branch this run is for; the descriptor's branch
	// filter is checked against it.  Empty skips the filter.
	Branch string

	// WorkDir is where lanes run; each lane gets its own subdirectory.
	// Empty means the current directory is shared by all lanes.
	WorkDir string

	// CacheDir is where cache snapshots live.  Empty disables caching.
	CacheDir string

	// Shell runs the pipeline's command strings; empty means "/bin/sh".
	Shell string

	// MaxParallel caps how many lanes run at once; 0 means all of them.
	MaxParallel int

	// Lanes restricts the run to the named lanes; empty runs the whole
	// matrix.
	Lanes []string

	// OnlyStage restricts each lane to the named lifecycle stage; empty
	// runs the whole sequence.  The after_* hooks only run when named
	// explicitly.
	OnlyStage string

	// History, if set, records the run when it finishes.
	History *history.Store

	// Descriptor is the original descriptor text, recorded to history.
	Descriptor string
}

// LaneResult is the outcome of one lane.
type LaneResult struct {
	Lane         pipeline.Lane
	AllowFailure bool
	Err          error
	Duration     time.Duration
}

// RunResult is the outcome of a whole run.
type RunResult struct {
	ID      uuid.UUID
	Skipped bool // branch filter said not to run
	Lanes   []LaneResult
}

// Failed reports the overall status: failed iff some lane not covered by
// allow_failures failed.  Tolerated failures are visible in Lanes but do not
// fail the run.
func (r *RunResult) Failed() bool {
	for _, lane := range r.Lanes {
		if lane.Err != nil && !lane.AllowFailure {
			return true
		}
	}
	return false
}

// goosFor maps a descriptor `os` value to the matching runtime.GOOS.
func goosFor(descriptorOS string) string {
	if descriptorOS == "osx" {
		return "darwin"
	}
	return descriptorOS
}

func wantLane(opts *Options, lane pipeline.Lane) bool {
	if len(opts.Lanes) == 0 {
		return true
	}
	for _, name := range opts.Lanes {
		if name == lane.DisplayName() || name == lane.Name {
			return true
		}
	}
	return false
}

// Run executes the pipeline and returns the per-lane results.  The returned
// error is reserved for infrastructure problems (bad descriptor env, broken
// history database); command failures are reported in the result, because a
// failing lane is a normal outcome, not an error in the runner.
func Run(ctx context.Context, p *pipeline.Pipeline, opts Options) (*RunResult, error) {
	result := &RunResult{
		ID: uuid.New(),
	}

	if opts.Branch != "" && !p.Branches.Allowed(opts.Branch) {
		dlog.Infof(ctx, "branch %q does not trigger this pipeline; skipping", opts.Branch)
		result.Skipped = true
		return result, nil
	}

	var fileEnv []string
	if p.EnvFile != "" {
		var err error
		fileEnv, err = envfile.Load(p.EnvFile)
		if err != nil {
			return nil, err
		}
	}

	if opts.OnlyStage != "" {
		if _, ok := lifecycle.KnownStage(opts.OnlyStage); !ok {
			return nil, fmt.Errorf("unknown stage %q", opts.OnlyStage)
		}
	}

	if len(opts.Lanes) > 0 {
		known := sets.NewString()
		for _, lane := range p.Lanes() {
			known.Insert(lane.DisplayName())
			if lane.Name != "" {
				known.Insert(lane.Name)
			}
		}
		for _, name := range opts.Lanes {
			if !known.Has(name) {
				return nil, fmt.Errorf("no matrix lane named %q", name)
			}
		}
	}

	lanes := make([]pipeline.Lane, 0, len(p.Lanes()))
	for _, lane := range p.Lanes() {
		if wantLane(&opts, lane) {
			lanes = append(lanes, lane)
		}
	}

	var sem chan struct{}
	if opts.MaxParallel > 0 {
		sem = make(chan struct{}, opts.MaxParallel)
	}

	var mu sync.Mutex
	results := make([]LaneResult, 0, len(lanes))

	grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{})
	for _, lane := range lanes {
		lane := lane
		grp.Go(lane.DisplayName(), func(ctx context.Context) error {
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			laneResult := runLane(ctx, p, lane, fileEnv, &opts)
			mu.Lock()
			results = append(results, laneResult)
			mu.Unlock()
			// A lane's failure must not cancel its siblings, so it is
			// recorded rather than returned.
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	result.Lanes = results

	if opts.History != nil {
		if err := recordHistory(ctx, p, opts, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func runLane(
	ctx context.Context,
	p *pipeline.Pipeline,
	lane pipeline.Lane,
	fileEnv []string,
	opts *Options,
) LaneResult {
	start := time.Now()
	laneResult := LaneResult{
		Lane:         lane,
		AllowFailure: p.Matrix.FailureAllowed(lane),
	}

	if goos := goosFor(lane.OS); goos != runtime.GOOS {
		dlog.Warnf(ctx, "lane wants os %q but this host is %q; running anyway", lane.OS, runtime.GOOS)
	}

	laneResult.Err = func() error {
		laneEnv, err := pipeline.MergeEnv(fileEnv, p.Env, lane.Env)
		if err != nil {
			return err
		}
		env := append(os.Environ(), laneEnv...)
		env = append(env,
			"CILANE_LANE="+lane.DisplayName(),
			"CILANE_OS="+lane.OS,
			"CILANE_BRANCH="+opts.Branch,
		)

		dir := opts.WorkDir
		if dir != "" {
			dir = filepath.Join(dir, cachedir.Key(lane.DisplayName()))
			if err := os.MkdirAll(dir, 0o777); err != nil {
				return err
			}
		}

		restoreCache(ctx, p, lane, opts)

		inv := &lifecycle.Invoker{
			Shell: opts.Shell,
			Dir:   dir,
			Env:   env,
		}
		var runErr error
		if opts.OnlyStage != "" {
			stage, _ := lifecycle.KnownStage(opts.OnlyStage)
			runErr = inv.RunOnly(ctx, lifecycle.HooksFromPipeline(p), stage)
		} else {
			runErr = inv.Run(ctx, lifecycle.HooksFromPipeline(p))
		}

		// Caches are saved even for failing lanes; a failed test run
		// still downloaded its dependencies.
		saveCache(ctx, p, lane, opts)

		return runErr
	}()

	laneResult.Duration = time.Since(start)
	if laneResult.Err != nil {
		dlog.Errorf(ctx, "lane failed: %v", laneResult.Err)
	} else {
		dlog.Infof(ctx, "lane passed in %v", laneResult.Duration.Round(time.Millisecond))
	}
	return laneResult
}

// restoreCache is best-effort: a missing or corrupt snapshot logs and moves
// on.
func restoreCache(ctx context.Context, p *pipeline.Pipeline, lane pipeline.Lane, opts *Options) {
	if opts.CacheDir == "" || len(cachedir.Paths(p.Cache)) == 0 {
		return
	}
	snapFile := cachedir.SnapshotFile(opts.CacheDir, lane.DisplayName())
	if _, err := os.Stat(snapFile); err != nil {
		dlog.Debugf(ctx, "cache: no snapshot at %q", snapFile)
		return
	}
	layer, err := fsutil.OpenSnapshot(snapFile)
	if err != nil {
		dlog.Warnf(ctx, "cache: unreadable snapshot %q: %v", snapFile, err)
		return
	}
	if err := cachedir.Restore(ctx, layer, "/"); err != nil {
		dlog.Warnf(ctx, "cache: restore from %q failed: %v", snapFile, err)
		return
	}
	dlog.Infof(ctx, "cache: restored from %q", snapFile)
}

func saveCache(ctx context.Context, p *pipeline.Pipeline, lane pipeline.Lane, opts *Options) {
	if opts.CacheDir == "" {
		return
	}
	dirs := cachedir.Paths(p.Cache)
	if len(dirs) == 0 {
		return
	}
	layer, err := cachedir.Snapshot(ctx, dirs, reproducible.Now())
	if err != nil {
		dlog.Warnf(ctx, "cache: snapshot failed: %v", err)
		return
	}
	snapFile := cachedir.SnapshotFile(opts.CacheDir, lane.DisplayName())
	if old, err := fsutil.OpenSnapshot(snapFile); err == nil {
		if equal, err := fsutil.SnapshotsEqualExceptTimestamps(old, layer); err == nil && equal {
			dlog.Debugf(ctx, "cache: snapshot unchanged; keeping %q", snapFile)
			return
		}
	}
	if err := fsutil.WriteSnapshotFile(layer, snapFile); err != nil {
		dlog.Warnf(ctx, "cache: writing snapshot %q failed: %v", snapFile, err)
		return
	}
	dlog.Infof(ctx, "cache: saved %q", snapFile)
}

func recordHistory(ctx context.Context, p *pipeline.Pipeline, opts Options, result *RunResult) error {
	digest, err := p.Digest()
	if err != nil {
		return err
	}
	rec := history.RunRecord{
		ID:         result.ID.String(),
		StartedAt:  time.Now(),
		Branch:     opts.Branch,
		Descriptor: opts.Descriptor,
		Digest:     digest,
		Failed:     result.Failed(),
	}
	for _, lane := range result.Lanes {
		laneRec := history.LaneRecord{
			Name:         lane.Lane.DisplayName(),
			OS:           lane.Lane.OS,
			AllowFailure: lane.AllowFailure,
			Failed:       lane.Err != nil,
			Duration:     lane.Duration,
		}
		if lane.Err != nil {
			laneRec.Error = lane.Err.Error()
		}
		rec.Lanes = append(rec.Lanes, laneRec)
	}
	return opts.History.Record(ctx, rec)
}
