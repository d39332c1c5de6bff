package agent

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pulseops/pulser/pkg/errors"
)

// Manifest is the YAML document describing a custom agent table.
//
//	agents:
//	  - key: claudia
//	    description: Primary orchestration agent
//	    triggers: [organize, manage]
//	  - key: shogun
//	    description: UI automation agent
//	    triggers: [dns, domain]
//	    fallback: claudia
type Manifest struct {
	Agents []Descriptor `yaml:"agents"`
}

// LoadManifest reads an agent manifest and builds a registry from it,
// preserving document order.
func LoadManifest(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CodeConfig, "read agent manifest", err).
			WithContext("path", path)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.New(errors.CodeConfig, "parse agent manifest", err).
			WithContext("path", path)
	}

	return NewRegistry(m.Agents...)
}
