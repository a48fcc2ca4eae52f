// # internal/config/config.go
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ProjectRoot string  `toml:"project_root"`
	Entry       string  `toml:"entry"`
	Output      string  `toml:"output"`
	Exclude     Exclude `toml:"exclude"`
	Watch       Watch   `toml:"watch"`
	History     History `toml:"history"`
	Metrics     Metrics `toml:"metrics"`
	Report      Report  `toml:"report"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"` // Glob patterns, e.g. **/*_test.py
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type History struct {
	Path string `toml:"path"` // SQLite file; empty disables run history
}

type Metrics struct {
	Addr string `toml:"addr"` // Listen address; empty disables the server
}

type Report struct {
	DOT string `toml:"dot"` // Module-graph DOT file path
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = "."
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".git", "__pycache__", ".venv", "venv", "node_modules"}
	}
}
