// Package pipeline deals with parsing and validating Travis-style pipeline
// descriptors.
package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"
)

// Pipeline is a parsed pipeline descriptor.
//
// The descriptor is a flat configuration document: a build matrix, global
// environment variables, ordered per-stage shell command lists, cache
// directives, and a branch trigger filter.  None of the fields have any
// mutation semantics; a Pipeline is set once at parse time and read by the
// runner.
type Pipeline struct {
	Language string   `json:"language,omitempty"`
	Env      []string `json:"env,omitempty"`
	EnvFile  string   `json:"env_file,omitempty"`

	BeforeInstall []string `json:"before_install,omitempty"`
	Install       []string `json:"install,omitempty"`
	BeforeScript  []string `json:"before_script,omitempty"`
	Script        []string `json:"script,omitempty"`
	AfterSuccess  []string `json:"after_success,omitempty"`
	AfterFailure  []string `json:"after_failure,omitempty"`

	Matrix   Matrix   `json:"matrix,omitempty"`
	Cache    Cache    `json:"cache,omitempty"`
	Branches Branches `json:"branches,omitempty"`
}

// Matrix is the build matrix: the list of lanes to run, plus selectors for
// lanes whose failures are tolerated.
type Matrix struct {
	Include       []Lane     `json:"include,omitempty"`
	AllowFailures []Selector `json:"allow_failures,omitempty"`
}

// Lane is one entry in the build matrix: one OS/interpreter-version
// combination, run as an independent job.
type Lane struct {
	Name     string `json:"name,omitempty"`
	OS       string `json:"os"`
	Dist     string `json:"dist,omitempty"`
	OSXImage string `json:"osx_image,omitempty"`
	Language string `json:"language,omitempty"`
	Version  string `json:"python,omitempty"`

	Env []string `json:"env,omitempty"`
}

// Cache names paths whose contents persist between runs of the same lane.
// Persistence is best-effort; a cache miss is never an error.
type Cache struct {
	// Builtin cache names ("pip", "ccache", "packages", ...); each maps
	// to a conventional directory.
	Names []string `json:"names,omitempty"`
	// Explicit directories, used as-is (environment variables such as
	// $HOME are expanded).
	Directories []string `json:"directories,omitempty"`
}

// Branches restricts which branches trigger a run.  An empty filter allows
// every branch; `except` wins over `only`.
type Branches struct {
	Only   []string `json:"only,omitempty"`
	Except []string `json:"except,omitempty"`
}

// Parse parses and validates a pipeline descriptor.  Unknown fields are
// rejected, so typos in stage names surface as parse errors rather than as
// silently-skipped commands.
func Parse(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(data, &p, yaml.DisallowUnknownFields); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParseFile is Parse on the contents of the named file.
func ParseFile(filename string) (*Pipeline, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	p, err := Parse(data)
	if err != nil {
		return nil, &fs.PathError{
			Op:   "parse pipeline",
			Path: filename,
			Err:  err,
		}
	}
	return p, nil
}

// DisplayName returns the lane's name, synthesizing one from the matrix
// fields for lanes that don't set one.
func (l Lane) DisplayName() string {
	if l.Name != "" {
		return l.Name
	}
	parts := []string{l.OS}
	if l.Dist != "" {
		parts = append(parts, l.Dist)
	}
	if l.OSXImage != "" {
		parts = append(parts, l.OSXImage)
	}
	if l.Version != "" {
		parts = append(parts, l.Version)
	}
	return strings.Join(parts, "-")
}

// MergeEnv merges `KEY=VALUE` lists; later lists win on a per-KEY basis.
// The result is sorted by KEY, for determinism.
func MergeEnv(envs ...[]string) ([]string, error) {
	merged := make(map[string]string)
	for _, env := range envs {
		for _, kv := range env {
			key, val, ok := strings.Cut(kv, "=")
			if !ok || key == "" {
				return nil, fmt.Errorf("invalid environment entry %q (must be KEY=VALUE)", kv)
			}
			merged[key] = val
		}
	}
	ret := make([]string, 0, len(merged))
	for key, val := range merged {
		ret = append(ret, key+"="+val)
	}
	sort.Strings(ret)
	return ret, nil
}
