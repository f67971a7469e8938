package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FromFile loads the YAML file at the given path on top of the defaults.
func FromFile(path string) (Configuration, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(b)
	if err != nil {
		return cfg, fmt.Errorf("read config at %s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes YAML on top of the defaults.
// Unknown keys are rejected so that a misspelled option does not silently
// fall back to its default.
func Parse(data []byte) (Configuration, error) {
	cfg := Defaults()

	m := map[string]any{}

	if err := yaml.Unmarshal(data, &m); err != nil {
		return cfg, err
	}

	if len(m) == 0 {
		return cfg, nil
	}

	// The JSON tags of Configuration are the single source of key names.
	b, err := json.Marshal(m)
	if err != nil {
		return cfg, fmt.Errorf("convert yaml to json: %w", err)
	}

	d := json.NewDecoder(bytes.NewReader(b))
	d.DisallowUnknownFields()

	if err := d.Decode(&cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
