// Package envfile deals with `env_file` descriptor entries: dotenv-style
// files of KEY=VALUE pairs.
package envfile

import (
	"fmt"
	"sort"

	"github.com/joho/godotenv"
)

// Load reads a dotenv file and returns its pairs as a sorted KEY=VALUE list,
// ready for pipeline.MergeEnv.  Descriptor env entries override file
// entries, so callers must merge the file first.
func Load(filename string) ([]string, error) {
	vars, err := godotenv.Read(filename)
	if err != nil {
		return nil, fmt.Errorf("env_file %q: %w", filename, err)
	}
	ret := make([]string, 0, len(vars))
	for key, val := range vars {
		ret = append(ret, key+"="+val)
	}
	sort.Strings(ret)
	return ret, nil
}
