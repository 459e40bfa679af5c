package envfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/cilane/pkg/envfile"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	filename := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(filename, []byte(`
# deployment credentials
ZEBRA=last
API_TOKEN="secret value"
EMPTY=
`), 0o600))

	env, err := envfile.Load(filename)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"API_TOKEN=secret value",
		"EMPTY=",
		"ZEBRA=last",
	}, env)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := envfile.Load(filepath.Join(t.TempDir(), "no-such.env"))
	assert.Error(t, err)
}
