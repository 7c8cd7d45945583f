// Copyright 2026 The Fbox Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers. These centralize
// the raw stderr output that is legitimate before the structured logger
// exists: fatal error reporting from main().
package process
