// Package config resolves ripcord's configuration: an optional YAML
// file under the ripcord home directory, with defaults for everything
// it omits.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all recognized options.
type Config struct {
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Session    SessionConfig    `yaml:"session"`
}

// CheckpointConfig controls the checkpoint store.
type CheckpointConfig struct {
	Enabled bool `yaml:"enabled"`
	// Directory is the root under which one hidden repository per
	// workspace is provisioned.
	Directory string `yaml:"directory"`
	// Keep is the default retention for pruning.
	Keep int `yaml:"keep"`
}

// SessionConfig controls the session sandbox.
type SessionConfig struct {
	Enabled bool `yaml:"enabled"`
	// StatePath is the SQLite file holding one record per session id.
	StatePath string `yaml:"state_path"`
	// WorktreeDirectory is the root under which linked worktrees are
	// attached, one per session.
	WorktreeDirectory string `yaml:"worktree_directory"`
}

// Load reads the config file from the ripcord home directory, creating
// the directory and applying defaults as needed. A missing file is not
// an error; a malformed one is.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(filepath.Join(home, ".ripcord"))
}

// LoadFrom resolves configuration rooted at dir instead of the user's
// home, for tests and alternate installations.
func LoadFrom(dir string) (*Config, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	cfg := defaults(dir)

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config.yaml: %w", err)
	}

	if cfg.Checkpoint.Directory == "" {
		cfg.Checkpoint.Directory = defaults(dir).Checkpoint.Directory
	}
	if cfg.Session.StatePath == "" {
		cfg.Session.StatePath = defaults(dir).Session.StatePath
	}
	if cfg.Session.WorktreeDirectory == "" {
		cfg.Session.WorktreeDirectory = defaults(dir).Session.WorktreeDirectory
	}
	return cfg, nil
}

func defaults(dir string) *Config {
	return &Config{
		Checkpoint: CheckpointConfig{
			Enabled:   true,
			Directory: filepath.Join(dir, "checkpoints"),
			Keep:      50,
		},
		Session: SessionConfig{
			Enabled:           true,
			StatePath:         filepath.Join(dir, "sessions.db"),
			WorktreeDirectory: filepath.Join(dir, "worktrees"),
		},
	}
}
