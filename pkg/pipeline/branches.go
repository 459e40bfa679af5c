package pipeline

import (
	"k8s.io/apimachinery/pkg/util/sets"
)

// Allowed reports whether a push to the named branch triggers a run.
//
//   - An `except` entry always disqualifies the branch.
//   - Otherwise, an empty `only` list allows every branch.
//   - Otherwise, the branch must be listed in `only`.
func (b Branches) Allowed(branch string) bool {
	if sets.NewString(b.Except...).Has(branch) {
		return false
	}
	if len(b.Only) == 0 {
		return true
	}
	return sets.NewString(b.Only...).Has(branch)
}
