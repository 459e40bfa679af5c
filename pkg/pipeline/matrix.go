package pipeline

import (
	"k8s.io/apimachinery/pkg/util/sets"
)

// Selector matches matrix lanes field-wise; `os: linux` matches every Linux
// lane.  Fields not named by the selector are ignored.
type Selector map[string]string

// selectorFields is the set of lane fields a selector may constrain.
var selectorFields = sets.NewString("name", "os", "dist", "osx_image", "language", "python")

// fieldMap exposes the lane's matrix fields under their descriptor names,
// for selector matching.
func (l Lane) fieldMap() map[string]string {
	return map[string]string{
		"name":      l.Name,
		"os":        l.OS,
		"dist":      l.Dist,
		"osx_image": l.OSXImage,
		"language":  l.Language,
		"python":    l.Version,
	}
}

// Matches reports whether every field the selector names has the given value
// on the lane.
func (s Selector) Matches(l Lane) bool {
	fields := l.fieldMap()
	for field, want := range s {
		if fields[field] != want {
			return false
		}
	}
	return len(s) > 0
}

// FailureAllowed reports whether the lane's failure is tolerated: whether any
// allow_failures selector matches it.  A tolerated lane still runs and still
// reports its own result; only the overall run status ignores it.
func (m Matrix) FailureAllowed(l Lane) bool {
	for _, sel := range m.AllowFailures {
		if sel.Matches(l) {
			return true
		}
	}
	return false
}

// LaneEnv returns the lane's effective environment: global descriptor env
// merged with the lane's own env (the lane wins).
func (p *Pipeline) LaneEnv(l Lane) ([]string, error) {
	return MergeEnv(p.Env, l.Env)
}

// Lanes returns the expanded matrix.
func (p *Pipeline) Lanes() []Lane {
	return p.Matrix.Include
}
