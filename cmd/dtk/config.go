package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the dtk configuration file (~/.config/dtk/config.yaml).
// Booleans are pointers so we can distinguish "not set" from false.
type Config struct {
	// Write defaults
	Author   string `yaml:"author"`
	Tool     string `yaml:"tool"`
	Engine   string `yaml:"engine"`
	Compress *bool  `yaml:"compress"`
	Hash     *bool  `yaml:"hash"`
	Fallback *bool  `yaml:"fallback"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
	Root          string `yaml:"root"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "dtk", "config.yaml")
}

// loadConfig reads the config file at path. A missing file yields a zero
// Config unless required is set.
func loadConfig(path string, required bool) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyGlobalConfig applies config file defaults to the root flags when they
// were not set explicitly.
func applyGlobalConfig(c *cli.Command, cfg Config, g *globals) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		g.logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		g.logFormat = cfg.LogFormat
	}
}

// applyWriteConfig applies config file defaults to write command variables.
func applyWriteConfig(c *cli.Command, cfg Config, w *writeFlags) {
	if cfg.Author != "" && !c.IsSet("author") {
		w.author = cfg.Author
	}
	if cfg.Tool != "" && !c.IsSet("tool") {
		w.tool = cfg.Tool
	}
	if cfg.Engine != "" && !c.IsSet("engine") {
		w.engine = cfg.Engine
	}
	if cfg.Compress != nil && !c.IsSet("uncompressed") {
		w.uncompressed = !*cfg.Compress
	}
	if cfg.Hash != nil && !c.IsSet("hash") {
		w.hash = *cfg.Hash
	}
	if cfg.Fallback != nil && !c.IsSet("fallback") {
		w.fallback = *cfg.Fallback
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr, root *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.Root != "" && !c.IsSet("root") {
		*root = cfg.Root
	}
}
