package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Paths contains per-user directories owned by the application.
type Paths struct {
	DataDir string `toml:"data_dir"`
}

// Engine configures the external speech recognition engine invocation.
type Engine struct {
	Command         string   `toml:"command"`
	PrefixArgs      []string `toml:"prefix_args"`
	Dir             string   `toml:"dir"`
	Language        string   `toml:"language"`
	Model           string   `toml:"model"`
	ModelDir        string   `toml:"model_dir"`
	TimeoutSeconds  int      `toml:"timeout_seconds"`
	StagingDir      string   `toml:"staging_dir"`
	JobPrefix       string   `toml:"job_prefix"`
	DefaultExt      string   `toml:"default_ext"`
	DiagnosticLimit int      `toml:"diagnostic_limit"`
	ExtraPathDirs   []string `toml:"extra_path_dirs"`
}

// Timeout returns the wall-clock budget for one engine run.
func (e Engine) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// Chat configures the LAN broadcast chat.
type Chat struct {
	Enabled       bool   `toml:"enabled"`
	Port          int    `toml:"port"`
	BroadcastAddr string `toml:"broadcast_addr"`
	DefaultName   string `toml:"default_name"`
	MaxTextLength int    `toml:"max_text_length"`
}

// Web configures browser mode.
type Web struct {
	Bind string `toml:"bind"`
	Root string `toml:"root"`
}

// Window configures the desktop window chrome.
type Window struct {
	Title         string `toml:"title"`
	Width         int    `toml:"width"`
	Height        int    `toml:"height"`
	CompactWidth  int    `toml:"compact_width"`
	CompactHeight int    `toml:"compact_height"`
	MinWidth      int    `toml:"min_width"`
	MinHeight     int    `toml:"min_height"`
	AlwaysOnTop   bool   `toml:"always_on_top"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Dir    string `toml:"dir"`
}

// Config encapsulates all configuration values for appshell.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Engine  Engine  `toml:"engine"`
	Chat    Chat    `toml:"chat"`
	Web     Web     `toml:"web"`
	Window  Window  `toml:"window"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. An empty path
// selects the default location; a missing file yields defaults.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

// EnsureDirectories creates the directories the application writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Engine.Dir, c.Engine.ModelDir, c.Engine.StagingDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LockPath is the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "appshell.lock")
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if strings.TrimSpace(path) == "" {
		path = defaultConfigPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path is a directory: %s", expanded)
	}
	return expanded, true, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
