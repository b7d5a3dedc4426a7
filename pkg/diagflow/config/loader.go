package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the config file at path and resolves it into application
// settings. An empty path or a missing file is not an error: diagflow runs
// on defaults plus DIAGFLOW_* environment overrides, so a config file is
// strictly optional.
func Load(path string) (App, error) {
	if path == "" {
		return Resolve(New(nil)), nil
	}
	c, err := FromFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Resolve(New(nil)), nil
		}
		return App{}, err
	}
	return Resolve(c), nil
}

// parsers maps config file extensions to their decoders.
var parsers = map[string]func([]byte) (Config, error){
	".yaml": FromYAML,
	".yml":  FromYAML,
	".json": FromJSON,
}

// FromFile parses the file at path into a raw Config, picking the decoder
// by extension.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	parse, ok := parsers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return Config{}, fmt.Errorf("unsupported config file extension: %s", filepath.Ext(path))
	}
	return parse(data)
}

// FromYAML parses YAML config data. Nested mappings, like the ai section,
// decode to map[string]any and are reachable through Config.Section.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses JSON config data. Numbers decode as float64; Config.Int
// folds integral floats back to int.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}
