// Copyright 2026 The Fbox Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Wire protocol: every message is an externally tagged JSON object
// {"type": <tag>, "content": <payload>} with snake_case tags. Responses
// without a payload omit the content field.

// FileInfo describes one file advertised in a session. The owner is the
// connection that announced it; the owner's departure removes the file.
type FileInfo struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	MimeType     string       `json:"mime_type"`
	Size         uint64       `json:"size"`
	ConnectionID ConnectionID `json:"connection_id"`
}

// Request is a client-to-server protocol message.
type Request interface {
	isRequest()
}

// ConnectRequest asks to pair with the connection advertising Phrase.
type ConnectRequest struct {
	Phrase string `json:"phrase"`
}

// AddFileRequest advertises a file to the caller's session.
type AddFileRequest struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	MimeType string    `json:"mime_type"`
	Size     uint64    `json:"size"`
}

// RemoveFileRequest withdraws a previously advertised file.
type RemoveFileRequest struct {
	ID uuid.UUID `json:"id"`
}

func (ConnectRequest) isRequest()    {}
func (AddFileRequest) isRequest()    {}
func (RemoveFileRequest) isRequest() {}

// Response is a server-to-client protocol message.
type Response interface {
	isResponse()
}

// Created delivers the connection's freshly assigned pairing phrase.
type Created struct {
	Phrase string `json:"phrase"`
}

// Connected tells a member it is now part of a session.
type Connected struct {
	ConnectionID ConnectionID `json:"connection_id"`
	Seed         string       `json:"seed"`
	Files        []FileInfo   `json:"files"`
}

// FileAdded broadcasts a newly advertised file to all members.
type FileAdded struct {
	File FileInfo
}

// FileRemoved broadcasts a withdrawn file to members.
type FileRemoved struct {
	ID uuid.UUID `json:"id"`
}

// FileRequested tells a file's owner that a download is waiting and the
// client should begin uploading.
type FileRequested struct {
	ID uuid.UUID `json:"id"`
}

// PeerNotFound rejects a Connect whose phrase matched no pending
// connection (or was malformed, deliberately indistinguishable).
type PeerNotFound struct{}

// SessionNotFound rejects a file operation from a connection with no
// session.
type SessionNotFound struct{}

// FileCountLimitReached rejects an AddFile that would exceed the
// per-session file ceiling.
type FileCountLimitReached struct{}

// FileAlreadyExists rejects an AddFile reusing an advertised file id.
type FileAlreadyExists struct{}

func (Created) isResponse()               {}
func (Connected) isResponse()             {}
func (FileAdded) isResponse()             {}
func (FileRemoved) isResponse()           {}
func (FileRequested) isResponse()         {}
func (PeerNotFound) isResponse()          {}
func (SessionNotFound) isResponse()       {}
func (FileCountLimitReached) isResponse() {}
func (FileAlreadyExists) isResponse()     {}

type envelope struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

// DecodeRequest parses one inbound frame. Unknown tags and payloads
// that fail to unmarshal are errors; the caller drops them.
func DecodeRequest(data []byte) (Request, error) {
	var raw envelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse request envelope: %w", err)
	}
	switch raw.Type {
	case "connect":
		var request ConnectRequest
		if err := json.Unmarshal(raw.Content, &request); err != nil {
			return nil, fmt.Errorf("parse connect request: %w", err)
		}
		return request, nil
	case "add_file":
		var request AddFileRequest
		if err := json.Unmarshal(raw.Content, &request); err != nil {
			return nil, fmt.Errorf("parse add_file request: %w", err)
		}
		return request, nil
	case "remove_file":
		var request RemoveFileRequest
		if err := json.Unmarshal(raw.Content, &request); err != nil {
			return nil, fmt.Errorf("parse remove_file request: %w", err)
		}
		return request, nil
	default:
		return nil, fmt.Errorf("unknown request type %q", raw.Type)
	}
}

// EncodeResponse serializes a response into its tagged frame.
func EncodeResponse(response Response) ([]byte, error) {
	var tag string
	var content any
	switch r := response.(type) {
	case Created:
		tag, content = "created", r
	case Connected:
		if r.Files == nil {
			// Clients expect an array, never null.
			r.Files = []FileInfo{}
		}
		tag, content = "connected", r
	case FileAdded:
		tag, content = "file_added", r.File
	case FileRemoved:
		tag, content = "file_removed", r
	case FileRequested:
		tag, content = "file_requested", r
	case PeerNotFound:
		tag = "peer_not_found"
	case SessionNotFound:
		tag = "session_not_found"
	case FileCountLimitReached:
		tag = "file_count_limit_reached"
	case FileAlreadyExists:
		tag = "file_already_exists"
	default:
		return nil, fmt.Errorf("unknown response type %T", response)
	}

	raw := envelope{Type: tag}
	if content != nil {
		payload, err := json.Marshal(content)
		if err != nil {
			return nil, fmt.Errorf("marshal %s content: %w", tag, err)
		}
		raw.Content = payload
	}
	return json.Marshal(raw)
}

// EncodeRequest serializes a request into its tagged frame. The server
// never sends requests; this is the client half of the protocol, used
// by tools and tests that drive a connection.
func EncodeRequest(request Request) ([]byte, error) {
	var tag string
	switch request.(type) {
	case ConnectRequest:
		tag = "connect"
	case AddFileRequest:
		tag = "add_file"
	case RemoveFileRequest:
		tag = "remove_file"
	default:
		return nil, fmt.Errorf("unknown request type %T", request)
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal %s content: %w", tag, err)
	}
	return json.Marshal(envelope{Type: tag, Content: payload})
}

// DecodeResponse parses one server frame. The client half of the
// protocol, used by tools and tests.
func DecodeResponse(data []byte) (Response, error) {
	var raw envelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse response envelope: %w", err)
	}
	switch raw.Type {
	case "created":
		var response Created
		if err := json.Unmarshal(raw.Content, &response); err != nil {
			return nil, fmt.Errorf("parse created response: %w", err)
		}
		return response, nil
	case "connected":
		var response Connected
		if err := json.Unmarshal(raw.Content, &response); err != nil {
			return nil, fmt.Errorf("parse connected response: %w", err)
		}
		return response, nil
	case "file_added":
		var file FileInfo
		if err := json.Unmarshal(raw.Content, &file); err != nil {
			return nil, fmt.Errorf("parse file_added response: %w", err)
		}
		return FileAdded{File: file}, nil
	case "file_removed":
		var response FileRemoved
		if err := json.Unmarshal(raw.Content, &response); err != nil {
			return nil, fmt.Errorf("parse file_removed response: %w", err)
		}
		return response, nil
	case "file_requested":
		var response FileRequested
		if err := json.Unmarshal(raw.Content, &response); err != nil {
			return nil, fmt.Errorf("parse file_requested response: %w", err)
		}
		return response, nil
	case "peer_not_found":
		return PeerNotFound{}, nil
	case "session_not_found":
		return SessionNotFound{}, nil
	case "file_count_limit_reached":
		return FileCountLimitReached{}, nil
	case "file_already_exists":
		return FileAlreadyExists{}, nil
	default:
		return nil, fmt.Errorf("unknown response type %q", raw.Type)
	}
}
