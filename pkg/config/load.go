package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadLayerConfig loads a single layer document from a YAML file and applies
// defaults. It does not validate; call Validate separately so prior
// persisted state can participate in the checks.
func LoadLayerConfig(path string) (*LayerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layer config %q: %w", path, err)
	}

	var cfg LayerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse layer config %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadLayerConfigsFromDir loads every .yaml/.yml file in dir as a layer
// document, in lexicographic filename order so repeated loads see the same
// sequence. Subdirectories are not descended into.
func LoadLayerConfigsFromDir(dir string) ([]LayerConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory %q: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !isYAMLFile(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	configs := make([]LayerConfig, 0, len(paths))
	for _, path := range paths {
		cfg, err := LoadLayerConfig(path)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *cfg)
	}
	return configs, nil
}

func isYAMLFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
