// Copyright 2026 The Fbox Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if cfg.ListenAddress != "127.0.0.1:3030" {
		t.Errorf("listen address: got %q", cfg.ListenAddress)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level: got %q", cfg.LogLevel)
	}
	if cfg.SeedPassword != "" {
		t.Error("default config carries a seed password")
	}
	// The default alone must not validate; operators set the password.
	if err := cfg.Validate(); err == nil {
		t.Error("default config validated without a seed password")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfigFile(t, strings.Join([]string{
		`listen_address: "0.0.0.0:8080"`,
		`seed_password: "hunter2"`,
		`log_level: debug`,
	}, "\n"))

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.ListenAddress != "0.0.0.0:8080" {
		t.Errorf("listen address: got %q", cfg.ListenAddress)
	}
	if cfg.SeedPassword != "hunter2" {
		t.Errorf("seed password: got %q", cfg.SeedPassword)
	}
	if level, err := cfg.SlogLevel(); err != nil || level != slog.LevelDebug {
		t.Errorf("slog level: got (%v, %v), want debug", level, err)
	}
}

func TestLoadFileAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `seed_password: "hunter2"`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.ListenAddress != "127.0.0.1:3030" {
		t.Errorf("listen address: got %q, want the default", cfg.ListenAddress)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level: got %q, want the default", cfg.LogLevel)
	}
}

func TestLoadFileRequiresSeedPassword(t *testing.T) {
	path := writeConfigFile(t, `listen_address: ":8080"`)

	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "seed_password") {
		t.Errorf("LoadFile: got %v, want a seed_password error", err)
	}
}

func TestLoadFileRejectsUnknownLogLevel(t *testing.T) {
	path := writeConfigFile(t, strings.Join([]string{
		`seed_password: "hunter2"`,
		`log_level: shouting`,
	}, "\n"))

	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "log_level") {
		t.Errorf("LoadFile: got %v, want a log_level error", err)
	}
}

func TestLoadFileExpandsEnvironment(t *testing.T) {
	t.Setenv("FBOX_TEST_SECRET", "from-env")
	path := writeConfigFile(t, strings.Join([]string{
		`listen_address: "${FBOX_TEST_ADDR:-127.0.0.1:9000}"`,
		`seed_password: "${FBOX_TEST_SECRET}"`,
	}, "\n"))

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.SeedPassword != "from-env" {
		t.Errorf("seed password: got %q, want the environment value", cfg.SeedPassword)
	}
	if cfg.ListenAddress != "127.0.0.1:9000" {
		t.Errorf("listen address: got %q, want the fallback default", cfg.ListenAddress)
	}
}

func TestLoadRequiresEnvVar(t *testing.T) {
	t.Setenv(EnvVar, "")
	os.Unsetenv(EnvVar)

	if _, err := Load(); err == nil {
		t.Error("Load succeeded without the config environment variable")
	}
}

func TestLoadUsesEnvVar(t *testing.T) {
	path := writeConfigFile(t, `seed_password: "hunter2"`)
	t.Setenv(EnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SeedPassword != "hunter2" {
		t.Errorf("seed password: got %q", cfg.SeedPassword)
	}
}

func TestSlogLevelTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		cfg := Config{LogLevel: tt.in}
		got, err := cfg.SlogLevel()
		if err != nil || got != tt.want {
			t.Errorf("SlogLevel(%q): got (%v, %v), want %v", tt.in, got, err, tt.want)
		}
	}
}
