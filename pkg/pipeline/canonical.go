package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"gopkg.in/yaml.v2"
)

// canonicalDoc mirrors Pipeline with a fixed field order for emission.
// gopkg.in/yaml.v2 emits struct fields in declaration order, which is what
// makes the canonical form deterministic.  Optional sections are pointers so
// that empty ones are omitted rather than emitted as "{}".
type canonicalDoc struct {
	Language string   `yaml:"language,omitempty"`
	Env      []string `yaml:"env,omitempty"`
	EnvFile  string   `yaml:"env_file,omitempty"`

	BeforeInstall []string `yaml:"before_install,omitempty"`
	Install       []string `yaml:"install,omitempty"`
	BeforeScript  []string `yaml:"before_script,omitempty"`
	Script        []string `yaml:"script,omitempty"`
	AfterSuccess  []string `yaml:"after_success,omitempty"`
	AfterFailure  []string `yaml:"after_failure,omitempty"`

	Matrix   *canonicalMatrix   `yaml:"matrix,omitempty"`
	Cache    *canonicalCache    `yaml:"cache,omitempty"`
	Branches *canonicalBranches `yaml:"branches,omitempty"`
}

type canonicalMatrix struct {
	Include       []canonicalLane     `yaml:"include,omitempty"`
	AllowFailures []map[string]string `yaml:"allow_failures,omitempty"`
}

type canonicalLane struct {
	Name     string   `yaml:"name"`
	OS       string   `yaml:"os"`
	Dist     string   `yaml:"dist,omitempty"`
	OSXImage string   `yaml:"osx_image,omitempty"`
	Language string   `yaml:"language,omitempty"`
	Version  string   `yaml:"python,omitempty"`
	Env      []string `yaml:"env,omitempty"`
}

type canonicalCache struct {
	Names       []string `yaml:"names,omitempty"`
	Directories []string `yaml:"directories,omitempty"`
}

type canonicalBranches struct {
	Only   []string `yaml:"only,omitempty"`
	Except []string `yaml:"except,omitempty"`
}

// Canonical renders the descriptor in its canonical normal form: lane names
// made explicit, environment lists merged-and-sorted, fixed key order.  Two
// descriptors with the same semantics have byte-identical canonical forms.
func (p *Pipeline) Canonical() ([]byte, error) {
	var doc canonicalDoc
	doc.Language = p.Language
	doc.EnvFile = p.EnvFile

	var err error
	if doc.Env, err = MergeEnv(p.Env); err != nil {
		return nil, err
	}
	if len(doc.Env) == 0 {
		doc.Env = nil
	}

	doc.BeforeInstall = p.BeforeInstall
	doc.Install = p.Install
	doc.BeforeScript = p.BeforeScript
	doc.Script = p.Script
	doc.AfterSuccess = p.AfterSuccess
	doc.AfterFailure = p.AfterFailure

	matrix := &canonicalMatrix{}
	for _, lane := range p.Matrix.Include {
		env, err := MergeEnv(lane.Env)
		if err != nil {
			return nil, err
		}
		if len(env) == 0 {
			env = nil
		}
		matrix.Include = append(matrix.Include, canonicalLane{
			Name:     lane.DisplayName(),
			OS:       lane.OS,
			Dist:     lane.Dist,
			OSXImage: lane.OSXImage,
			Language: lane.Language,
			Version:  lane.Version,
			Env:      env,
		})
	}
	for _, sel := range p.Matrix.AllowFailures {
		matrix.AllowFailures = append(matrix.AllowFailures, sel)
	}
	if len(matrix.Include) > 0 || len(matrix.AllowFailures) > 0 {
		doc.Matrix = matrix
	}

	if len(p.Cache.Names) > 0 || len(p.Cache.Directories) > 0 {
		cache := &canonicalCache{
			Names:       append([]string(nil), p.Cache.Names...),
			Directories: append([]string(nil), p.Cache.Directories...),
		}
		sort.Strings(cache.Names)
		sort.Strings(cache.Directories)
		doc.Cache = cache
	}

	if len(p.Branches.Only) > 0 || len(p.Branches.Except) > 0 {
		branches := &canonicalBranches{
			Only:   append([]string(nil), p.Branches.Only...),
			Except: append([]string(nil), p.Branches.Except...),
		}
		sort.Strings(branches.Only)
		sort.Strings(branches.Except)
		doc.Branches = branches
	}

	return yaml.Marshal(doc)
}

// Digest returns a hex sha256 of the canonical form, used to key cache
// snapshots and history rows to a specific descriptor.
func (p *Pipeline) Digest() (string, error) {
	canon, err := p.Canonical()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}
