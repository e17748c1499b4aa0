package engine

import (
	"os"

	"gopkg.in/yaml.v3"
)

// StyleWeights is the evaluation-blend knob behind the UCI Style_*
// option family: a signed aggression term, read from an optional YAML
// profile and folded into the static evaluation at search time.
type StyleWeights struct {
	Aggression int `yaml:"aggression"` // per-mille adjustment to the raw eval
	Positional int `yaml:"positional"` // reserved for a future positional/material blend
}

// LoadStyleProfile reads a styles.yaml-shaped file naming one or more
// named profiles; path may point directly at a single profile document
// (top-level aggression/positional keys).
func LoadStyleProfile(path string) (*StyleWeights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var weights StyleWeights
	if err := yaml.Unmarshal(data, &weights); err != nil {
		return nil, err
	}

	return &weights, nil
}
