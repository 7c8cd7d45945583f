// Copyright 2026 The Fbox Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the session broker over HTTP. It owns the
// routing layer and the transport framing, both of which the broker in
// package session treats as external collaborators:
//
//   - POST /v1/sessions — generate a pairing phrase (diagnostic)
//   - GET  /v1/sessions/socket — upgrade to the WebSocket pairing protocol
//   - GET  /v1/sessions/files/{id} — stream a relayed file download
//   - POST /v1/sessions/files/{id} — feed a relayed file upload
//
// All responses pass through permissive CORS and request-logging
// middleware, and the server shuts down gracefully via the standard
// http.Server lifecycle.
package server
