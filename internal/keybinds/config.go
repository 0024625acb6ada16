package keybinds

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the keybinding override file inside the config directory
const FileName = "keybinds.yaml"

// Config is the user's keybinding overrides: context -> key -> action. An
// empty action unbinds the key.
type Config struct {
	Bindings map[Context]map[string]Action `yaml:"bindings"`
}

// LoadConfig loads keybinding overrides from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("invalid %s format: %w", filepath.Base(path), err)
	}
	return &config, nil
}

// ApplyConfig applies user overrides on top of registry
func ApplyConfig(registry *Registry, config *Config) error {
	for context, keys := range config.Bindings {
		if !IsKnownContext(context) {
			return fmt.Errorf("unknown context %q", context)
		}
		for key, action := range keys {
			if err := ValidateKey(key); err != nil {
				return fmt.Errorf("context %s: %w", context, err)
			}
			if action == "" {
				registry.Unregister(context, key)
				continue
			}
			if !IsKnownAction(action) {
				return fmt.Errorf("context %s: unknown action %q for key %q", context, action, key)
			}
			registry.Register(context, key, action)
		}
	}
	return nil
}

// Load returns the default registry with the overrides in dir applied. A
// missing file is not an error.
func Load(dir string) (*Registry, error) {
	registry := NewDefaultRegistry()

	config, err := LoadConfig(filepath.Join(dir, FileName))
	if os.IsNotExist(err) {
		return registry, nil
	}
	if err != nil {
		return registry, err
	}
	if err := ApplyConfig(registry, config); err != nil {
		return NewDefaultRegistry(), err
	}
	return registry, nil
}
