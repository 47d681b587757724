package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromFile loads configuration from a file, detecting the format by extension
// (.yaml, .yml or .json, case-insensitive).
func FromFile(path string) (Config, error) {
	var parse func([]byte) (Config, error)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parse = FromYAML
	case ".json":
		parse = FromJSON
	default:
		return Config{}, fmt.Errorf("unsupported config file extension %q: %s", ext, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// FromYAML parses YAML data into a Config. An empty document yields an
// empty Config.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses JSON data into a Config.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}
