package cors

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	PresetExact    = "exact"
	PresetWildcard = "wildcard"
	PresetTrusted  = "trusted"
)

// Presets lists the accepted policy names.
var Presets = []string{PresetExact, PresetWildcard, PresetTrusted}

// Config describes a Policy. It can be loaded from a YAML file:
//
//	policy: trusted
//	origins: ["https://chores2d.tiiny.site"]
//	suffixes: ["tiiny.site"]
type Config struct {
	Policy   string   `yaml:"policy"`
	Origins  []string `yaml:"origins,omitempty"`
	Suffixes []string `yaml:"suffixes,omitempty"`
}

// LoadConfig reads a YAML Config from path.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading CORS configuration %s", path)
	}

	conf := &Config{}
	if err := yaml.Unmarshal(b, conf); err != nil {
		return nil, errors.Wrapf(err, "invalid CORS configuration %s", path)
	}
	return conf, nil
}
