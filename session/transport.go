// Copyright 2026 The Fbox Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"sync"
)

// Transport is a reliable, ordered, message-based duplex connection to
// one remote client. The production implementation wraps a WebSocket;
// tests use the in-process channel transport below.
//
// ReadMessage blocks until the next inbound message arrives and returns
// a non-nil error once the connection is closed (by either side). The
// returned error is the sole end-of-stream signal for the connection's
// event loop. WriteMessage and ReadMessage are each called from exactly
// one goroutine (the forwarder and the read pump respectively), so
// implementations need not support concurrent writers or readers.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// ErrTransportClosed is returned by ChanTransport operations after
// either side has closed.
var ErrTransportClosed = errors.New("session: transport closed")

// Compile-time interface check.
var _ Transport = (*ChanTransport)(nil)

// ChanTransport is an in-process Transport for tests. NewTransportPair
// returns two cross-connected ends; what one end writes the other end
// reads, in order. Closing either end fails all subsequent operations
// on both ends.
type ChanTransport struct {
	send chan []byte
	recv chan []byte

	mu     sync.Mutex
	closed chan struct{}
	peer   *ChanTransport
}

// NewTransportPair creates a connected pair of in-process transports.
func NewTransportPair() (*ChanTransport, *ChanTransport) {
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)
	a := &ChanTransport{send: ab, recv: ba, closed: make(chan struct{})}
	b := &ChanTransport{send: ba, recv: ab, closed: make(chan struct{})}
	a.peer = b
	b.peer = a
	return a, b
}

func (t *ChanTransport) ReadMessage() ([]byte, error) {
	select {
	case data := <-t.recv:
		return data, nil
	case <-t.closed:
	case <-t.peer.closed:
	}
	// A close races with buffered messages; prefer draining them so
	// ordered delivery holds up to the close.
	select {
	case data := <-t.recv:
		return data, nil
	default:
		return nil, ErrTransportClosed
	}
}

func (t *ChanTransport) WriteMessage(data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case <-t.closed:
		return ErrTransportClosed
	case <-t.peer.closed:
		return ErrTransportClosed
	case t.send <- buf:
		return nil
	}
}

func (t *ChanTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.closed:
		return nil
	default:
	}
	close(t.closed)
	return nil
}
