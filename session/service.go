// Copyright 2026 The Fbox Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"log/slog"
	"sync/atomic"
)

// maxFileCount caps advertised files per session. An AddFile that would
// bring the count up to the cap is rejected.
const maxFileCount = 10

// Config holds configuration for creating a new Service.
type Config struct {
	// SeedPassword is the server-wide secret mixed into session seed
	// derivation, so that a pairing phrase reused against another
	// server derives a different session identity.
	SeedPassword string

	Logger *slog.Logger
}

// Service is the session broker. It owns the pending-connection and
// live-session registries, assigns connection IDs, and drives one event
// loop per connection via HandleConnection.
type Service struct {
	logger       *slog.Logger
	seedPassword string

	// connectionIDs is owned by this Service rather than being process
	// global, so independent Service instances (tests in particular)
	// never share counter state.
	connectionIDs atomic.Uint64

	pending  *pendingRegistry
	sessions *sessionRegistry
}

// NewService creates a session broker.
func NewService(config Config) *Service {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:       logger,
		seedPassword: config.SeedPassword,
		pending:      newPendingRegistry(),
		sessions:     newSessionRegistry(),
	}
}

// GeneratePhrase returns a pairing phrase without registering anything.
// Serves the diagnostic phrase endpoint.
func (s *Service) GeneratePhrase() string {
	return GeneratePhrase()
}

// HandleConnection runs the pairing state machine for one connection.
// Blocks until the transport closes, then tears the connection's broker
// state down exactly once. The caller typically invokes it from the
// goroutine already dedicated to the connection (an HTTP handler).
func (s *Service) HandleConnection(transport Transport) {
	connection := newConnection(ConnectionID(s.connectionIDs.Add(1)), transport, s.logger)
	phrase := s.pending.addUnique(GeneratePhrase, connection)
	var local *Session

	connection.SendExternal(Created{Phrase: phrase})

	for {
		next, ok := connection.next()
		if !ok {
			break
		}
		switch message := next.internal.(type) {
		case sessionCreated:
			local = message.session
			continue
		case peerDisconnected:
			connection.logger.Debug("peer disconnected", "peer_id", uint64(message.id))
			continue
		}

		switch request := next.request.(type) {
		case ConnectRequest:
			local = s.handleConnect(connection, phrase, local, request)
		case AddFileRequest:
			s.handleAddFile(connection, local, request)
		case RemoveFileRequest:
			s.handleRemoveFile(connection, local, request)
		}
	}

	s.removeConnection(connection, phrase, local)
	connection.shutdown()
	transport.Close()
}

// handleConnect pairs the caller with the pending connection advertising
// the requested phrase. Returns the caller's (possibly new) session.
func (s *Service) handleConnect(connection *Connection, ownPhrase string, local *Session, request ConnectRequest) *Session {
	// A malformed phrase and a self-referencing phrase get the same
	// rejection as an unknown one, leaking nothing about which it was.
	if !phraseWithinBounds(request.Phrase) || request.Phrase == ownPhrase {
		connection.SendExternal(PeerNotFound{})
		return local
	}

	peer, ok := s.pending.take(request.Phrase)
	if !ok {
		connection.SendExternal(PeerNotFound{})
		return local
	}

	if local != nil {
		// The caller is already in a session: pull the peer in.
		local.mu.Lock()
		local.connections[peer.ID()] = peer
		seed := local.seed
		files := local.fileList()
		local.mu.Unlock()

		// The session reference must reach the peer's loop before the
		// Connected response reaches its client, or a prompt file
		// operation could race ahead of the peer learning its session.
		peer.SendInternal(sessionCreated{session: local})
		peer.SendExternal(Connected{ConnectionID: peer.ID(), Seed: EncodeSeed(seed), Files: files})
		return local
	}

	// The caller is still pending: it stops being recruitable the
	// moment it forms a session of its own.
	s.pending.take(ownPhrase)

	seed := DeriveSeed(ownPhrase, s.seedPassword)
	session := newSession(seed, connection)
	session.connections[peer.ID()] = peer
	s.sessions.put(seed, session)

	encoded := EncodeSeed(seed)
	peer.SendInternal(sessionCreated{session: session})
	peer.SendExternal(Connected{ConnectionID: peer.ID(), Seed: encoded, Files: []FileInfo{}})
	connection.SendExternal(Connected{ConnectionID: connection.ID(), Seed: encoded, Files: []FileInfo{}})

	s.logger.Info("session created",
		"seed", encoded,
		"host_id", uint64(connection.ID()),
		"peer_id", uint64(peer.ID()),
	)
	return session
}

func (s *Service) handleAddFile(connection *Connection, local *Session, request AddFileRequest) {
	if local == nil {
		connection.SendExternal(SessionNotFound{})
		return
	}

	local.mu.Lock()
	defer local.mu.Unlock()

	if len(local.files)+1 >= maxFileCount {
		connection.SendExternal(FileCountLimitReached{})
		return
	}
	if _, exists := local.files[request.ID]; exists {
		connection.SendExternal(FileAlreadyExists{})
		return
	}

	file := FileInfo{
		ID:           request.ID,
		Name:         request.Name,
		MimeType:     request.MimeType,
		Size:         request.Size,
		ConnectionID: connection.ID(),
	}
	local.files[file.ID] = file
	local.broadcastExternal(FileAdded{File: file})
}

func (s *Service) handleRemoveFile(connection *Connection, local *Session, request RemoveFileRequest) {
	if local == nil {
		connection.SendExternal(SessionNotFound{})
		return
	}

	local.mu.Lock()
	defer local.mu.Unlock()

	// Removing an unknown id is a no-op, not an error.
	if _, exists := local.files[request.ID]; !exists {
		return
	}
	delete(local.files, request.ID)
	local.broadcastExternal(FileRemoved{ID: request.ID})
}

// removeConnection tears down one connection's broker state after its
// event loop has exited. If the connection was still pending, removing
// its phrase is the whole teardown. Otherwise the connection leaves its
// session: its files are withdrawn (broadcast to the remaining members
// only), remaining members are told, and an emptied session is removed
// from the registry inside the same critical section that observed it
// empty, so no joiner ever sees a dangling empty session.
func (s *Service) removeConnection(connection *Connection, phrase string, local *Session) {
	s.pending.take(phrase)
	if local == nil {
		return
	}

	local.mu.Lock()
	defer local.mu.Unlock()

	delete(local.connections, connection.ID())

	var owned []FileInfo
	for _, file := range local.files {
		if file.ConnectionID == connection.ID() {
			owned = append(owned, file)
		}
	}
	for _, file := range owned {
		delete(local.files, file.ID)
		local.broadcastExternalExcept(connection.ID(), FileRemoved{ID: file.ID})
	}

	for _, member := range local.connections {
		member.SendInternal(peerDisconnected{id: connection.ID()})
	}

	if len(local.connections) == 0 {
		s.sessions.remove(local.seed)
		s.logger.Info("session removed", "seed", EncodeSeed(local.seed))
	}
}
