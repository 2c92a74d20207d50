// Package backendcfg loads an optional YAML target-backend profile for
// component C9: target triples, a default optimization level, and
// whether fast-math flags should be applied. Grounded on the teacher's
// gopkg.in/yaml.v3 struct-tag unmarshal style in
// internal/eval_harness/models.go's LoadModelsConfig. Load does not
// consult environment variables: the emitter reads RAYZOR_LLVM_OPT and
// RAYZOR_DUMP_LLVM_IR (spec §6) itself, and nothing in this module
// combines those with a loaded Config.
package backendcfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of a backend profile file.
type Config struct {
	Targets           []string `yaml:"targets"`
	DefaultOptLevel   string   `yaml:"default_opt_level"` // "0","1","2","3"
	FastMath          bool     `yaml:"fast_math"`
	ObjectOutputDir   string   `yaml:"object_output_dir"`
}

// Default returns the zero-configuration profile: host target only,
// default optimization, fast-math on (matching spec §4.8's "fast-math
// flags ... are applied to every floating op" as the unconditional
// default).
func Default() Config {
	return Config{
		Targets:         []string{"host"},
		DefaultOptLevel: "2",
		FastMath:        true,
		ObjectOutputDir: ".",
	}
}

// Load reads and parses a YAML backend profile from path. A missing file
// is not an error: callers get Default() back, since this config is
// optional (spec §6's env vars are the only inputs the emitter strictly
// requires).
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading backend config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing backend config %q: %w", path, err)
	}
	return cfg, nil
}
