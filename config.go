package tmxmap

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config describes a directory of maps for a MapManager.
//
// Example:
//
//	base_dir: assets/maps
//	extensions: [".tmx"]
//	strict: false
//	limits:
//	  max_cells: 1048576
type Config struct {
	BaseDir    string   `yaml:"base_dir"`
	Extensions []string `yaml:"extensions"`
	Strict     bool     `yaml:"strict"` // treat any diagnostic as a load error
	Limits     *Limits  `yaml:"limits"`
}

// LoadConfig reads a YAML manager config. Relative base dirs resolve
// against the config file's directory.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("tmx: config %q: %w", path, err)
	}
	cfg.BaseDir = resolvePath(filepath.Dir(path), cfg.BaseDir)
	return cfg, nil
}

// ParseConfig decodes a YAML manager config and fills in defaults.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.BaseDir == "" {
		cfg.BaseDir = "."
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".tmx"}
	}
	return &cfg, nil
}

func (c *Config) options() []Option {
	if c.Limits == nil {
		return nil
	}
	return []Option{WithLimits(*c.Limits)}
}
