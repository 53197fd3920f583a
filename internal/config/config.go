package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	BackendSystem = "system"
	BackendFile   = "file"
	BackendMemory = "memory"

	DefaultService = "com.strongbox"
	DefaultKeyEnv  = "STRONGBOX_FILE_KEY"
)

// Config holds CLI configuration loaded from ~/.strongbox/config.yaml.
type Config struct {
	Backend     string `yaml:"backend"`
	Service     string `yaml:"service"`
	AccessGroup string `yaml:"access_group"`
	File        File   `yaml:"file"`
	AuditLog    string `yaml:"audit_log"`
	Metadata    string `yaml:"metadata"`
}

// File configures the encrypted file backend.
type File struct {
	Path   string `yaml:"path"`
	KeyEnv string `yaml:"key_env"`
}

// DefaultPath returns the default config file path: ~/.strongbox/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".strongbox", "config.yaml")
}

// Load reads a YAML config file from path. If the file does not exist,
// it returns a Config with defaults applied and no error. An empty or
// all-comment file behaves the same way.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendSystem
	}
	if c.Service == "" {
		c.Service = DefaultService
	}
	if c.File.KeyEnv == "" {
		c.File.KeyEnv = DefaultKeyEnv
	}
}

// Validate checks the backend selection.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSystem, BackendMemory:
		// ok
	case BackendFile:
		if c.File.Path == "" {
			return fmt.Errorf("file.path is required for the file backend")
		}
	default:
		return fmt.Errorf("backend must be %q, %q, or %q, got %q", BackendSystem, BackendFile, BackendMemory, c.Backend)
	}
	return nil
}
