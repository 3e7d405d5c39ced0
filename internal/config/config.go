// Package config loads the daemon configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultPollIntervalSec = 60

// Config holds the reexd daemon settings. All fields have defaults; the
// config file is optional.
type Config struct {
	// DatabasePath is the sqlite file shared with reexctl.
	DatabasePath string `yaml:"database_path"`
	// PollIntervalSec is the remote task poll period per folder.
	PollIntervalSec int `yaml:"poll_interval_sec"`
	// ConsulAddr enables consul:// remote URL resolution when set.
	ConsulAddr string `yaml:"consul_addr"`
	Verbose    bool   `yaml:"verbose"`
}

// PollInterval returns the poll period as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// Default returns the configuration used when no file is given.
func Default() Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "/tmp"
	}
	return Config{
		DatabasePath:    filepath.Join(homeDir, ".reexd", "reexd.db"),
		PollIntervalSec: defaultPollIntervalSec,
	}
}

// Load reads a YAML config file and fills unset fields with defaults.
// A missing file is not an error; defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = Default().DatabasePath
	}
	if cfg.PollIntervalSec <= 0 {
		cfg.PollIntervalSec = defaultPollIntervalSec
	}

	return cfg, nil
}
