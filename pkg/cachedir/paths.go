package cachedir

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/datawire/cilane/pkg/pipeline"
)

// builtinDir returns the conventional directory for a builtin cache name.
func builtinDir(name, home string) string {
	switch name {
	case "pip":
		return filepath.Join(home, ".cache", "pip")
	case "ccache":
		return filepath.Join(home, ".ccache")
	case "npm":
		return filepath.Join(home, ".npm")
	case "cargo":
		return filepath.Join(home, ".cargo", "registry")
	case "packages":
		return filepath.Join(home, ".cache", "packages")
	default:
		return ""
	}
}

// Paths resolves a cache directive to the concrete list of directories to
// persist.  Environment variables in explicit directory entries are
// expanded, so descriptors may say things like `$HOME/deepnog_data`.
func Paths(cache pipeline.Cache) []string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/"
	}

	var dirs []string
	for _, name := range cache.Names {
		if dir := builtinDir(name, home); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	for _, dir := range cache.Directories {
		dirs = append(dirs, os.ExpandEnv(dir))
	}
	return dirs
}

// Key converts a lane name to a filesystem-safe snapshot key.  Snapshots are
// per-lane; two lanes never share one.
func Key(laneName string) string {
	mangle := func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}
	return strings.Map(mangle, laneName)
}

// SnapshotFile returns where the snapshot for the given lane lives under
// cacheDir.
func SnapshotFile(cacheDir, laneName string) string {
	return filepath.Join(cacheDir, Key(laneName)+".tar")
}
