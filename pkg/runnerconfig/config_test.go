package runnerconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/cilane/pkg/runnerconfig"
)

func TestLoadDefaults(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("CILANE_DATA_DIR", dataDir)
	// Point the search path at an empty directory so a developer's real
	// config can't leak in.
	t.Setenv("CILANE_CONFIG_DIR", t.TempDir())

	cfg, err := runnerconfig.Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataDir, "cache"), cfg.CacheDir)
	assert.Equal(t, filepath.Join(dataDir, "history.db"), cfg.HistoryDB)
	assert.Equal(t, "/bin/sh", cfg.Shell)
	assert.Equal(t, 0, cfg.MaxParallel)
}

func TestLoadFile(t *testing.T) {
	t.Setenv("CILANE_DATA_DIR", t.TempDir())

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
cache_dir: /var/cache/cilane
shell: /bin/bash
max_parallel: 4
`), 0o644))

	cfg, err := runnerconfig.Load(configFile)
	require.NoError(t, err)
	assert.Equal(t, "/var/cache/cilane", cfg.CacheDir)
	assert.Equal(t, "/bin/bash", cfg.Shell)
	assert.Equal(t, 4, cfg.MaxParallel)
	// Unset keys keep their defaults.
	assert.Equal(t, filepath.Join(os.Getenv("CILANE_DATA_DIR"), "history.db"), cfg.HistoryDB)
}

func TestLoadExplicitFileMustExist(t *testing.T) {
	t.Parallel()

	_, err := runnerconfig.Load(filepath.Join(t.TempDir(), "no-such.yaml"))
	assert.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	t.Parallel()

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("{not yaml"), 0o644))

	_, err := runnerconfig.Load(configFile)
	assert.Error(t, err)
}
