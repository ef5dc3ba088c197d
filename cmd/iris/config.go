package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config is the iris configuration file (~/.config/iris/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	SlidesDir string `yaml:"slides_dir"`

	// Serve defaults
	ServerAddress string   `yaml:"server_address"`
	RateLimit     *float64 `yaml:"rate_limit"`
	LogFile       string   `yaml:"log_file"`
	LogLevel      string   `yaml:"log_level"`

	// Fetch defaults
	ChunkBytes *int64 `yaml:"chunk_bytes"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "iris", "config.yaml")
}

// loadConfig reads the config file, returning a zero Config if it does not
// exist.
func loadConfig() Config {
	var cfg Config
	path := configPath()
	if path == "" {
		return cfg
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	_ = yaml.Unmarshal(raw, &cfg)
	return cfg
}

// applyServeConfig applies config defaults to serve flags the user did not
// set explicitly.
func applyServeConfig(c *cli.Command, cfg Config, addr, dir, logFile, logLevel *string, rps *float64) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.SlidesDir != "" && !c.IsSet("dir") {
		*dir = cfg.SlidesDir
	}
	if cfg.LogFile != "" && !c.IsSet("log-file") {
		*logFile = cfg.LogFile
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		*logLevel = cfg.LogLevel
	}
	if cfg.RateLimit != nil && !c.IsSet("rate-limit") {
		*rps = *cfg.RateLimit
	}
}

// applyFetchConfig applies config defaults to fetch flags.
func applyFetchConfig(c *cli.Command, cfg Config, chunk *int64) {
	if cfg.ChunkBytes != nil && !c.IsSet("chunk") {
		*chunk = *cfg.ChunkBytes
	}
}
