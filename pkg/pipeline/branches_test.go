package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datawire/cilane/pkg/pipeline"
)

func TestBranchesAllowed(t *testing.T) {
	t.Parallel()

	testcases := map[string]struct {
		Branches pipeline.Branches
		Branch   string
		Output   bool
	}{
		"empty-allows-all": {
			Branches: pipeline.Branches{},
			Branch:   "feature/anything",
			Output:   true,
		},
		"only-hit": {
			Branches: pipeline.Branches{Only: []string{"master", "develop"}},
			Branch:   "develop",
			Output:   true,
		},
		"only-miss": {
			Branches: pipeline.Branches{Only: []string{"master", "develop"}},
			Branch:   "feature/new-parser",
			Output:   false,
		},
		"except-hit": {
			Branches: pipeline.Branches{Except: []string{"gh-pages"}},
			Branch:   "gh-pages",
			Output:   false,
		},
		"except-miss": {
			Branches: pipeline.Branches{Except: []string{"gh-pages"}},
			Branch:   "master",
			Output:   true,
		},
		"except-wins-over-only": {
			Branches: pipeline.Branches{
				Only:   []string{"master"},
				Except: []string{"master"},
			},
			Branch: "master",
			Output: false,
		},
	}

	for tcName, tc := range testcases {
		tc := tc
		t.Run(tcName, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.Output, tc.Branches.Allowed(tc.Branch))
		})
	}
}
