// Copyright 2026 The Fbox Authors
// SPDX-License-Identifier: Apache-2.0

// Package session implements the pairing and relay broker: the component
// that turns anonymous duplex connections into paired file-sharing
// sessions and moves file bytes between them.
//
// The package is organized around the connection data flow:
//
//   - transport.go: the message-based duplex Transport contract and the
//     in-process channel transport used by tests
//   - connection.go: the per-connection actor (outbound queue + forwarder
//     goroutine) and the internal/external event multiplexer
//   - protocol.go: the tagged-JSON wire protocol (requests and responses)
//   - mnemonic.go: pairing phrase generation and seed derivation
//   - registry.go: the pending-connection and live-session registries
//   - session.go: shared per-session state and broadcast helpers
//   - service.go: the pairing state machine driven by each connection's
//     event loop
//   - relay.go: the file relay pairing one download request with one
//     upload stream
//
// Lock ordering: a session's lock may be held while a registry lock is
// acquired (empty-session removal), but never the reverse. Registry
// lookups copy the *Session out and release the registry lock before the
// session lock is taken.
package session
