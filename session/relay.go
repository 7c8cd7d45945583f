// Copyright 2026 The Fbox Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"io"

	"github.com/google/uuid"
)

// Relay errors. All surface to the HTTP collaborator as rejections and
// are never retried by the broker.
var (
	// ErrSessionNotFound means the decoded seed matched no live session.
	ErrSessionNotFound = errors.New("session: session not found")

	// ErrFileNotFound means the session holds no such file, or its
	// owner is no longer a member.
	ErrFileNotFound = errors.New("session: file not found")

	// ErrRelayPending means a relay for this file id is already in
	// flight; at most one exists per file id at a time.
	ErrRelayPending = errors.New("session: relay already pending")

	// ErrNoPendingRelay means an upload arrived for a file id with no
	// matching download request.
	ErrNoPendingRelay = errors.New("session: no pending relay")
)

// uploadChunkSize is the read granularity when draining an upload body
// into the relay. Chunks flow through unbuffered beyond the relay
// queue; the whole file is never held in memory.
const uploadChunkSize = 32 * 1024

// Download is the receiving half of a file relay, handed to the HTTP
// collaborator that streams it out as a response body.
type Download struct {
	// File describes the file being relayed; the collaborator uses the
	// name for its Content-Disposition header.
	File FileInfo

	pipe *queue[[]byte]
}

// Chunks yields the relayed bytes in upload order. The channel closes
// when the upload finishes.
func (d *Download) Chunks() <-chan []byte {
	return d.pipe.out
}

// Close releases the relay from the receiving side. Chunks still in
// flight are discarded and later uploaded chunks are dropped at the
// sending side. Safe to call more than once, and after the upload has
// finished.
func (d *Download) Close() {
	d.pipe.stop()
}

// RequestFile starts a relay for a file: it registers the relay's
// sending half under the file id, notifies the file's owner that an
// upload is wanted, and returns the receiving half. Fails without
// mutating the pending-relay map if the session, file, or owner cannot
// be found or a relay for the id is already in flight.
func (s *Service) RequestFile(id uuid.UUID, encodedSeed string) (*Download, error) {
	seed, err := DecodeSeed(encodedSeed)
	if err != nil {
		return nil, err
	}
	session, ok := s.sessions.get(seed)
	if !ok {
		return nil, ErrSessionNotFound
	}

	session.mu.Lock()
	file, ok := session.files[id]
	if !ok {
		session.mu.Unlock()
		return nil, ErrFileNotFound
	}
	owner, ok := session.connections[file.ConnectionID]
	if !ok {
		session.mu.Unlock()
		return nil, ErrFileNotFound
	}
	if _, pending := session.pendingRelays[id]; pending {
		session.mu.Unlock()
		return nil, ErrRelayPending
	}
	pipe := newQueue[[]byte]()
	session.pendingRelays[id] = pipe
	session.mu.Unlock()

	owner.SendExternal(FileRequested{ID: id})
	s.logger.Debug("relay requested", "file_id", id, "owner_id", uint64(file.ConnectionID))

	return &Download{File: file, pipe: pipe}, nil
}

// UploadFile matches an inbound byte stream to the pending relay for the
// file id and forwards it chunk by chunk. The pending relay is consumed
// atomically; an upload with no matching request fails. Once matched,
// the uploader is always drained to EOF: if the downloader has gone
// away, further chunks are logged and dropped rather than aborting the
// upload stream.
func (s *Service) UploadFile(id uuid.UUID, encodedSeed string, data io.Reader) error {
	seed, err := DecodeSeed(encodedSeed)
	if err != nil {
		return err
	}
	session, ok := s.sessions.get(seed)
	if !ok {
		return ErrSessionNotFound
	}

	session.mu.Lock()
	pipe, ok := session.pendingRelays[id]
	if ok {
		delete(session.pendingRelays, id)
	}
	session.mu.Unlock()
	if !ok {
		return ErrNoPendingRelay
	}

	buf := make([]byte, uploadChunkSize)
	var dropped bool
	for {
		n, err := data.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if !pipe.push(chunk) && !dropped {
				dropped = true
				s.logger.Debug("relay receiver gone, dropping chunks", "file_id", id)
			}
		}
		if err != nil {
			if err != io.EOF {
				s.logger.Debug("upload stream ended early", "file_id", id, "error", err)
			}
			break
		}
	}
	pipe.close()
	return nil
}
