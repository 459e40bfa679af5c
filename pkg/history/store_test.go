package history_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/cilane/pkg/history"
)

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	store, err := history.Open(filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, store.Close())
	}()

	started := time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)
	rec := history.RunRecord{
		ID:         "run-1",
		StartedAt:  started,
		Branch:     "master",
		Descriptor: "script:\n- make check\n",
		Digest:     "0123abcd",
		Failed:     true,
		Lanes: []history.LaneRecord{
			{
				Name:     "linux-bionic-3.8",
				OS:       "linux",
				Failed:   false,
				Duration: 42 * time.Second,
			},
			{
				Name:         "osx-xcode11-3.8",
				OS:           "osx",
				AllowFailure: true,
				Failed:       true,
				Error:        "stage script: exit status 1",
				Duration:     97 * time.Second,
			},
		},
	}
	require.NoError(t, store.Record(ctx, rec))

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, &rec, got)
}

func TestStoreList(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, store.Close())
	}()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, store.Record(ctx, history.RunRecord{
			ID:        id,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			Branch:    "develop",
		}))
	}

	runs, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// Newest first.
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
	// List omits lane detail.
	assert.Empty(t, runs[0].Lanes)
}

func TestStoreGetMissing(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, store.Close())
	}()

	_, err = store.Get(ctx, "no-such-run")
	assert.Error(t, err)
}

func TestStoreReopen(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	dbPath := filepath.Join(t.TempDir(), "history.db")

	store, err := history.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, history.RunRecord{
		ID:        "run-1",
		StartedAt: time.Now().UTC().Truncate(time.Second),
		Branch:    "master",
	}))
	require.NoError(t, store.Close())

	// Applying the schema on an existing database must be a no-op.
	store, err = history.Open(dbPath)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, store.Close())
	}()

	runs, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
}
