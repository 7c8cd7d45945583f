// Copyright 2026 The Fbox Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "sync"

// pendingRegistry maps pairing phrases to connections that have not yet
// joined a session. Guarded by its own lock only; never held while a
// session lock is acquired.
type pendingRegistry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

func newPendingRegistry() *pendingRegistry {
	return &pendingRegistry{connections: make(map[string]*Connection)}
}

// addUnique registers connection under a phrase produced by generate,
// regenerating on collision with a currently pending phrase. Collisions
// are not errors. Returns the phrase actually registered.
func (r *pendingRegistry) addUnique(generate func() string, connection *Connection) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	phrase := generate()
	for {
		if _, taken := r.connections[phrase]; !taken {
			break
		}
		phrase = generate()
	}
	r.connections[phrase] = connection
	return phrase
}

// take atomically removes and returns the connection pending under
// phrase. Exactly one caller wins a race on the same phrase.
func (r *pendingRegistry) take(phrase string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	connection, ok := r.connections[phrase]
	if ok {
		delete(r.connections, phrase)
	}
	return connection, ok
}

func (r *pendingRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// sessionRegistry maps raw session seeds to live sessions. A registered
// session always has at least one member: the last member's teardown
// removes the session inside the same critical section that observed
// the member set become empty.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*Session)}
}

func (r *sessionRegistry) put(seed []byte, session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[string(seed)] = session
}

func (r *sessionRegistry) get(seed []byte) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[string(seed)]
	return session, ok
}

func (r *sessionRegistry) remove(seed []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, string(seed))
}

func (r *sessionRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
