package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default returns the configuration produced by defaults alone, rooted at
// dataDir.
func Default(dataDir string) (*Config, error) {
	dataDir = DataDir(dataDir)
	v, err := newViper(filepath.Join(dataDir, "does-not-exist.yaml"), dataDir)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal defaults: %w", err)
	}
	return &cfg, nil
}

// Marshal renders cfg as YAML. Secrets are masked unless reveal is set.
func Marshal(cfg *Config, reveal bool) ([]byte, error) {
	out := *cfg
	if !reveal {
		out.Security.JWTSecret = mask(out.Security.JWTSecret)
		out.Insights.APIKey = mask(out.Insights.APIKey)
	}
	return yaml.Marshal(&out)
}

// WriteFile writes cfg to path, refusing to overwrite an existing file.
func WriteFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := Marshal(cfg, true)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// ReadFile parses a YAML config file without env or defaults applied.
func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) < 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
