package runner_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/cilane/pkg/history"
	"github.com/datawire/cilane/pkg/pipeline"
	"github.com/datawire/cilane/pkg/runner"
)

func laneResult(t *testing.T, result *runner.RunResult, name string) runner.LaneResult {
	t.Helper()
	for _, lane := range result.Lanes {
		if lane.Lane.DisplayName() == name {
			return lane
		}
	}
	t.Fatalf("no result for lane %q", name)
	return runner.LaneResult{}
}

func TestRunAllLanesPass(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	workDir := t.TempDir()
	p := &pipeline.Pipeline{
		Matrix: pipeline.Matrix{
			Include: []pipeline.Lane{
				{OS: "linux", Version: "3.7"},
				{OS: "linux", Version: "3.8"},
			},
		},
		Script: []string{"touch ran"},
	}
	require.NoError(t, p.Validate())

	result, err := runner.Run(ctx, p, runner.Options{WorkDir: workDir})
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.False(t, result.Failed())
	require.Len(t, result.Lanes, 2)

	// Each lane ran in its own subdirectory.
	for _, name := range []string{"linux-3.7", "linux-3.8"} {
		assert.FileExists(t, filepath.Join(workDir, name, "ran"))
		assert.NoError(t, laneResult(t, result, name).Err)
	}
}

func TestRunAllowFailures(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	p := &pipeline.Pipeline{
		Matrix: pipeline.Matrix{
			Include: []pipeline.Lane{
				{OS: "linux"},
				{OS: "osx"},
			},
			AllowFailures: []pipeline.Selector{
				{"os": "osx"},
			},
		},
		Script: []string{`test "$CILANE_OS" != osx`},
	}
	require.NoError(t, p.Validate())

	result, err := runner.Run(ctx, p, runner.Options{WorkDir: t.TempDir()})
	require.NoError(t, err)
	require.Len(t, result.Lanes, 2)

	osxResult := laneResult(t, result, "osx")
	assert.Error(t, osxResult.Err)
	assert.True(t, osxResult.AllowFailure)
	assert.NoError(t, laneResult(t, result, "linux").Err)

	// The osx lane failed but its failure is tolerated.
	assert.False(t, result.Failed())
}

func TestRunFailureIsolation(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	workDir := t.TempDir()
	p := &pipeline.Pipeline{
		Matrix: pipeline.Matrix{
			Include: []pipeline.Lane{
				{Name: "bad", OS: "linux"},
				{Name: "good", OS: "linux", Env: []string{"OK=1"}},
			},
		},
		Script: []string{`test "$OK" = 1`, "touch ran"},
	}
	require.NoError(t, p.Validate())

	result, err := runner.Run(ctx, p, runner.Options{WorkDir: workDir})
	require.NoError(t, err)
	require.Len(t, result.Lanes, 2)

	// The bad lane's failure neither cancelled the good lane nor surfaced
	// as a Run error.
	assert.Error(t, laneResult(t, result, "bad").Err)
	assert.NoError(t, laneResult(t, result, "good").Err)
	assert.FileExists(t, filepath.Join(workDir, "good", "ran"))
	assert.True(t, result.Failed())
}

func TestRunBranchFilter(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	p := &pipeline.Pipeline{
		Matrix: pipeline.Matrix{
			Include: []pipeline.Lane{{OS: "linux"}},
		},
		Script:   []string{"false"}, // must not run
		Branches: pipeline.Branches{Only: []string{"master", "develop"}},
	}
	require.NoError(t, p.Validate())

	result, err := runner.Run(ctx, p, runner.Options{Branch: "feature/new-parser"})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Empty(t, result.Lanes)

	result, err = runner.Run(ctx, p, runner.Options{Branch: "develop", WorkDir: t.TempDir()})
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.True(t, result.Failed())
}

func TestRunLaneSelection(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	p := &pipeline.Pipeline{
		Matrix: pipeline.Matrix{
			Include: []pipeline.Lane{
				{OS: "linux", Version: "3.7"},
				{OS: "linux", Version: "3.8"},
			},
		},
		Script: []string{"true"},
	}
	require.NoError(t, p.Validate())

	result, err := runner.Run(ctx, p, runner.Options{
		WorkDir: t.TempDir(),
		Lanes:   []string{"linux-3.8"},
	})
	require.NoError(t, err)
	require.Len(t, result.Lanes, 1)
	assert.Equal(t, "linux-3.8", result.Lanes[0].Lane.DisplayName())

	// A lane name that matches nothing is almost certainly a typo, not a
	// request to run zero lanes.
	_, err = runner.Run(ctx, p, runner.Options{
		WorkDir: t.TempDir(),
		Lanes:   []string{"linux-3.9"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no matrix lane named "linux-3.9"`)
}

func TestRunOnlyStage(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	workDir := t.TempDir()
	p := &pipeline.Pipeline{
		Matrix: pipeline.Matrix{
			Include: []pipeline.Lane{{OS: "linux"}},
		},
		Install:      []string{"touch installed"},
		Script:       []string{"touch scripted"},
		AfterSuccess: []string{"touch after"},
	}
	require.NoError(t, p.Validate())

	result, err := runner.Run(ctx, p, runner.Options{
		WorkDir:   workDir,
		OnlyStage: "script",
	})
	require.NoError(t, err)
	assert.False(t, result.Failed())

	assert.FileExists(t, filepath.Join(workDir, "linux", "scripted"))
	assert.NoFileExists(t, filepath.Join(workDir, "linux", "installed"))
	assert.NoFileExists(t, filepath.Join(workDir, "linux", "after"))

	_, err = runner.Run(ctx, p, runner.Options{
		WorkDir:   t.TempDir(),
		OnlyStage: "scrtip",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown stage "scrtip"`)
}

func TestRunEnvPrecedence(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	envFile := filepath.Join(t.TempDir(), "ci.env")
	require.NoError(t, os.WriteFile(envFile, []byte("FROM_FILE=yes\nSHARED=file\n"), 0o600))

	p := &pipeline.Pipeline{
		Env:     []string{"SHARED=global"},
		EnvFile: envFile,
		Matrix: pipeline.Matrix{
			Include: []pipeline.Lane{
				{OS: "linux", Env: []string{"SHARED=lane"}},
			},
		},
		Script: []string{
			`test "$FROM_FILE" = yes`,
			`test "$SHARED" = lane`,
			`test "$CILANE_LANE" = linux`,
			`test "$CILANE_BRANCH" = master`,
		},
	}
	require.NoError(t, p.Validate())

	result, err := runner.Run(ctx, p, runner.Options{
		Branch:  "master",
		WorkDir: t.TempDir(),
	})
	require.NoError(t, err)
	assert.False(t, result.Failed())
}

func TestRunCacheRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	cacheDir := t.TempDir()
	cachedData := filepath.Join(t.TempDir(), "deepnog_data")

	p := &pipeline.Pipeline{
		Matrix: pipeline.Matrix{
			Include: []pipeline.Lane{{OS: "linux"}},
		},
		Script: []string{"mkdir -p " + cachedData, "echo weights > " + filepath.Join(cachedData, "model")},
		Cache: pipeline.Cache{
			Directories: []string{cachedData},
		},
	}
	require.NoError(t, p.Validate())

	result, err := runner.Run(ctx, p, runner.Options{
		WorkDir:  t.TempDir(),
		CacheDir: cacheDir,
	})
	require.NoError(t, err)
	require.False(t, result.Failed())
	assert.FileExists(t, filepath.Join(cacheDir, "linux.tar"))

	// Wipe the cached directory; the next run must get it back from the
	// snapshot before its script runs.
	require.NoError(t, os.RemoveAll(cachedData))

	p.Script = []string{"test -f " + filepath.Join(cachedData, "model")}
	result, err = runner.Run(ctx, p, runner.Options{
		WorkDir:  t.TempDir(),
		CacheDir: cacheDir,
	})
	require.NoError(t, err)
	assert.False(t, result.Failed())
}

func TestRunRecordsHistory(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, store.Close())
	}()

	p := &pipeline.Pipeline{
		Matrix: pipeline.Matrix{
			Include: []pipeline.Lane{
				{OS: "linux", Version: "3.8"},
			},
		},
		Script: []string{"false"},
	}
	require.NoError(t, p.Validate())

	descriptor := "script:\n- false\n"
	result, err := runner.Run(ctx, p, runner.Options{
		Branch:     "master",
		WorkDir:    t.TempDir(),
		History:    store,
		Descriptor: descriptor,
	})
	require.NoError(t, err)
	assert.True(t, result.Failed())

	rec, err := store.Get(ctx, result.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "master", rec.Branch)
	assert.Equal(t, descriptor, rec.Descriptor)
	assert.True(t, rec.Failed)
	require.Len(t, rec.Lanes, 1)
	assert.Equal(t, "linux-3.8", rec.Lanes[0].Name)
	assert.True(t, rec.Lanes[0].Failed)
	assert.NotEmpty(t, rec.Lanes[0].Error)

	digest, err := p.Digest()
	require.NoError(t, err)
	assert.Equal(t, digest, rec.Digest)
}
