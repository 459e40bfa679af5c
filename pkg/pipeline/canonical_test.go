package pipeline_test

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/cilane/pkg/pipeline"
)

const canonicalInput = `
language: python
env:
  - PYTHONIOENCODING=UTF8
  - DATA_DIR=$HOME/deepnog_data
matrix:
  include:
    - os: linux
      dist: bionic
      python: "3.8"
    - os: osx
      osx_image: xcode11
      python: "3.8"
      env:
        - INSTALL_METHOD=pip
  allow_failures:
    - os: osx
before_install:
  - ./tools/install-conda.sh
install:
  - pip install .
before_script:
  - flake8 deepnog
script:
  - pytest --cov=deepnog
after_success:
  - ./tools/upload-coverage.sh
cache:
  names:
    - pip
    - packages
  directories:
    - $HOME/deepnog_data
branches:
  only:
    - master
    - develop
`

func TestCanonical(t *testing.T) {
	t.Parallel()

	p, err := pipeline.Parse([]byte(canonicalInput))
	require.NoError(t, err)

	canon, err := p.Canonical()
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"))
	g.Assert(t, "canonical", canon)
}

func TestCanonicalMinimal(t *testing.T) {
	t.Parallel()

	p, err := pipeline.Parse([]byte(`
matrix:
  include:
    - os: linux
script:
  - make check
`))
	require.NoError(t, err)

	canon, err := p.Canonical()
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"))
	g.Assert(t, "canonical-minimal", canon)
}

func TestDigestStable(t *testing.T) {
	t.Parallel()

	// Reordering an env list doesn't change the semantics, so it must not
	// change the digest either.
	reordered, err := pipeline.Parse([]byte(`
language: python
env:
  - DATA_DIR=$HOME/deepnog_data
  - PYTHONIOENCODING=UTF8
matrix:
  include:
    - os: linux
      dist: bionic
      python: "3.8"
    - os: osx
      osx_image: xcode11
      python: "3.8"
      env:
        - INSTALL_METHOD=pip
  allow_failures:
    - os: osx
before_install:
  - ./tools/install-conda.sh
install:
  - pip install .
before_script:
  - flake8 deepnog
script:
  - pytest --cov=deepnog
after_success:
  - ./tools/upload-coverage.sh
cache:
  names:
    - packages
    - pip
  directories:
    - $HOME/deepnog_data
branches:
  only:
    - develop
    - master
`))
	require.NoError(t, err)

	original, err := pipeline.Parse([]byte(canonicalInput))
	require.NoError(t, err)

	origDigest, err := original.Digest()
	require.NoError(t, err)
	reordDigest, err := reordered.Digest()
	require.NoError(t, err)

	assert.Equal(t, origDigest, reordDigest)
	assert.Len(t, origDigest, 64)
}

func TestDigestChanges(t *testing.T) {
	t.Parallel()

	a, err := pipeline.Parse([]byte(`
matrix:
  include:
    - os: linux
script:
  - make check
`))
	require.NoError(t, err)
	b, err := pipeline.Parse([]byte(`
matrix:
  include:
    - os: linux
script:
  - make test
`))
	require.NoError(t, err)

	aDigest, err := a.Digest()
	require.NoError(t, err)
	bDigest, err := b.Digest()
	require.NoError(t, err)

	assert.NotEqual(t, aDigest, bDigest)
}
