// Copyright 2026 The Fbox Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the fbox
// server.
//
// Configuration is loaded from a single file specified by either the
// FBOX_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. This ensures deterministic, auditable
// configuration with no hidden overrides.
//
// Variable expansion is performed on string fields after loading:
// ${VAR} and ${VAR:-default} patterns are expanded from the
// environment. No other environment variables override config values.
//
// Key exports:
//
//   - [Config] -- listen address, seed password, log level
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other fbox packages.
package config
