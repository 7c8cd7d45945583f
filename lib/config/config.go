// Copyright 2026 The Fbox Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvVar is the environment variable naming the config file for Load.
const EnvVar = "FBOX_CONFIG"

// Config is the configuration for the fbox server.
type Config struct {
	// ListenAddress is the TCP address the HTTP server binds
	// (e.g., "0.0.0.0:3030").
	ListenAddress string `yaml:"listen_address"`

	// SeedPassword is the server-wide secret mixed into session seed
	// derivation. Two servers with different passwords derive different
	// session identities from the same pairing phrase. Required.
	SeedPassword string `yaml:"seed_password"`

	// LogLevel is the minimum slog level: debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`
}

// Default returns a Config with development defaults. The seed password
// is intentionally left empty; Validate forces operators to set one.
func Default() Config {
	return Config{
		ListenAddress: "127.0.0.1:3030",
		LogLevel:      "info",
	}
}

// Load reads the config file named by the FBOX_CONFIG environment
// variable.
func Load() (Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Config{}, fmt.Errorf("%s is not set", EnvVar)
	}
	return LoadFile(path)
}

// LoadFile reads and validates a config file. Defaults apply for any
// field the file omits.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg.ListenAddress = expandVariables(cfg.ListenAddress)
	cfg.SeedPassword = expandVariables(cfg.SeedPassword)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for completeness.
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("listen_address is required")
	}
	if c.SeedPassword == "" {
		return fmt.Errorf("seed_password is required")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel into a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
}

// variablePattern matches ${VAR} and ${VAR:-default}.
var variablePattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandVariables expands ${VAR} and ${VAR:-default} from the
// environment. An unset variable without a default expands to empty.
func expandVariables(s string) string {
	return variablePattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := variablePattern.FindStringSubmatch(match)
		if value, ok := os.LookupEnv(groups[1]); ok {
			return value
		}
		return groups[3]
	})
}
