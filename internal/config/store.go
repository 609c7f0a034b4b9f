package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Store defines persistence operations for app settings.
type Store interface {
	Load() (*Config, error)
	Save(*Config) error
}

// TOMLStore persists settings in a single TOML file on disk.
type TOMLStore struct {
	path string
}

// NewTOMLStore creates a TOML-backed settings store.
func NewTOMLStore(path string) *TOMLStore {
	return &TOMLStore{path: path}
}

// Path returns the backing file.
func (s *TOMLStore) Path() string {
	return s.path
}

// Load reads settings from disk or returns defaults when missing.
func (s *TOMLStore) Load() (*Config, error) {
	cfg, _, _, err := Load(s.path)
	return cfg, err
}

// Save validates and writes settings, creating parent directories.
func (s *TOMLStore) Save(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("save config: nil config")
	}
	normalized := *cfg
	if err := normalized.normalize(); err != nil {
		return err
	}
	if err := normalized.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := toml.Marshal(normalized)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
