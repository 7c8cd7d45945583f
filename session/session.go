// Copyright 2026 The Fbox Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"sync"

	"github.com/google/uuid"
)

// Session is the shared state of one pairing: its derived seed identity,
// member connections, advertised files, and in-flight relays. All fields
// are guarded by mu; operations on different sessions proceed in
// parallel, operations on the same session are mutually exclusive.
//
// Sessions never merge with each other, only absorb individual pending
// connections, so broker code holds at most one session lock at a time
// and lock-ordering deadlock between two sessions cannot arise.
type Session struct {
	mu sync.RWMutex

	seed          []byte
	connections   map[ConnectionID]*Connection
	files         map[uuid.UUID]FileInfo
	pendingRelays map[uuid.UUID]*queue[[]byte]
}

// newSession creates a session containing its creator as first member.
func newSession(seed []byte, host *Connection) *Session {
	return &Session{
		seed:          seed,
		connections:   map[ConnectionID]*Connection{host.ID(): host},
		files:         make(map[uuid.UUID]FileInfo),
		pendingRelays: make(map[uuid.UUID]*queue[[]byte]),
	}
}

// fileList snapshots the advertised files. Caller holds mu.
func (s *Session) fileList() []FileInfo {
	files := make([]FileInfo, 0, len(s.files))
	for _, file := range s.files {
		files = append(files, file)
	}
	return files
}

// broadcastExternal queues response on every member. Caller holds mu;
// sends never block, so holding the lock across the broadcast is safe.
func (s *Session) broadcastExternal(response Response) {
	for _, member := range s.connections {
		member.SendExternal(response)
	}
}

// broadcastExternalExcept queues response on every member except the
// named one. Caller holds mu.
func (s *Session) broadcastExternalExcept(excluded ConnectionID, response Response) {
	for id, member := range s.connections {
		if id == excluded {
			continue
		}
		member.SendExternal(response)
	}
}
