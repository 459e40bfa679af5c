package pipeline

import (
	"fmt"

	"github.com/datawire/dlib/derror"
	"k8s.io/apimachinery/pkg/util/sets"
)

// knownOSes is the set of `os` values a matrix lane may name.
var knownOSes = sets.NewString("linux", "osx", "windows")

// knownCaches is the set of builtin cache names; each maps to a conventional
// directory (see package cachedir).
var knownCaches = sets.NewString("pip", "ccache", "packages", "npm", "cargo")

// Validate checks the descriptor for problems that are better reported at
// parse time than at run time.  All problems are reported at once, not just
// the first.
func (p *Pipeline) Validate() error {
	var errs derror.MultiError

	if len(p.Matrix.Include) == 0 {
		errs = append(errs, fmt.Errorf("pipeline has no matrix lanes (matrix.include is empty)"))
	}

	seen := sets.NewString()
	for i, lane := range p.Matrix.Include {
		if lane.OS == "" {
			errs = append(errs, fmt.Errorf("matrix.include[%d]: lane has no \"os\"", i))
		} else if !knownOSes.Has(lane.OS) {
			errs = append(errs, fmt.Errorf("matrix.include[%d]: unknown os %q (must be one of %v)",
				i, lane.OS, knownOSes.List()))
		}
		if lane.OSXImage != "" && lane.OS != "osx" {
			errs = append(errs, fmt.Errorf("matrix.include[%d]: osx_image is only valid with os: osx", i))
		}
		name := lane.DisplayName()
		if seen.Has(name) {
			errs = append(errs, fmt.Errorf("matrix.include[%d]: duplicate lane %q", i, name))
		}
		seen.Insert(name)

		if _, err := MergeEnv(lane.Env); err != nil {
			errs = append(errs, fmt.Errorf("matrix.include[%d]: %w", i, err))
		}
	}

	if _, err := MergeEnv(p.Env); err != nil {
		errs = append(errs, err)
	}

	for i, sel := range p.Matrix.AllowFailures {
		if len(sel) == 0 {
			errs = append(errs, fmt.Errorf("matrix.allow_failures[%d]: empty selector", i))
			continue
		}
		for _, field := range sets.StringKeySet(sel).List() {
			if !selectorFields.Has(field) {
				errs = append(errs, fmt.Errorf("matrix.allow_failures[%d]: unknown field %q (must be one of %v)",
					i, field, selectorFields.List()))
			}
		}
	}

	for i, name := range p.Cache.Names {
		if !knownCaches.Has(name) {
			errs = append(errs, fmt.Errorf("cache.names[%d]: unknown cache %q (must be one of %v)",
				i, name, knownCaches.List()))
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
