// Copyright 2026 The Fbox Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"log/slog"
	"sync"
)

// ConnectionID identifies a connection within the process. IDs are
// assigned from a counter owned by the Service, increase monotonically,
// and are never reused while the process runs.
type ConnectionID uint64

// InternalMessage is a broker-originated control message delivered to a
// connection's own event loop, ahead of any externally received request.
type InternalMessage interface {
	isInternal()
}

// sessionCreated hands the receiving loop its session reference. Sent to
// a pending connection when a peer's Connect claims its phrase.
type sessionCreated struct {
	session *Session
}

// peerDisconnected tells remaining members that a peer left the session.
// Informational: the session state was already updated by the leaving
// connection's teardown.
type peerDisconnected struct {
	id ConnectionID
}

func (sessionCreated) isInternal()   {}
func (peerDisconnected) isInternal() {}

// event is one step of a connection's multiplexed stream: exactly one of
// internal or request is set.
type event struct {
	internal InternalMessage
	request  Request
}

// Connection is the actor owning one duplex transport. It exposes
// fire-and-forget ordered sends (SendExternal, SendInternal) and a
// single totally ordered event stream (next) merging broker control
// messages with parsed client requests.
//
// A forwarder goroutine drains the outbound queue to the transport, so
// a slow remote peer stalls only its own queue and never a producer. A
// read-pump goroutine parses inbound frames and closes the external
// channel when the transport does; that close is the only end-of-stream
// signal the event loop observes.
type Connection struct {
	id     ConnectionID
	logger *slog.Logger

	outbound *queue[[]byte]
	internal *queue[InternalMessage]
	external chan Request

	// internalOut is consumed only by next (single loop goroutine);
	// nil once the internal queue has been released.
	internalOut <-chan InternalMessage
}

func newConnection(id ConnectionID, transport Transport, logger *slog.Logger) *Connection {
	connection := &Connection{
		id:       id,
		logger:   logger.With("connection_id", uint64(id)),
		outbound: newQueue[[]byte](),
		internal: newQueue[InternalMessage](),
		external: make(chan Request),
	}
	connection.internalOut = connection.internal.out
	go connection.forward(transport)
	go connection.readPump(transport)
	return connection
}

// ID returns the connection's process-unique identifier.
func (c *Connection) ID() ConnectionID {
	return c.id
}

// SendExternal encodes response and queues it for the remote peer.
// Best effort: encode and transport failures are logged, never surfaced
// to the caller, and never block.
func (c *Connection) SendExternal(response Response) {
	data, err := EncodeResponse(response)
	if err != nil {
		c.logger.Error("encode response", "error", err)
		return
	}
	c.outbound.push(data)
}

// SendInternal queues a control message for this connection's own event
// loop. Never blocks; messages sent after shutdown are dropped.
func (c *Connection) SendInternal(message InternalMessage) {
	c.internal.push(message)
}

// next returns the connection's next event. An internal message ready at
// the same time as an external request always wins: internal messages
// carry broker facts (the session reference) that must be observed
// before any request that assumes them. Returns false once the external
// stream has ended; the internal queue never ends the stream.
func (c *Connection) next() (event, bool) {
	for {
		select {
		case message, ok := <-c.internalOut:
			if !ok {
				c.internalOut = nil
				continue
			}
			return event{internal: message}, true
		default:
		}

		select {
		case message, ok := <-c.internalOut:
			if !ok {
				c.internalOut = nil
				continue
			}
			return event{internal: message}, true
		case request, ok := <-c.external:
			if !ok {
				return event{}, false
			}
			return event{request: request}, true
		}
	}
}

// shutdown releases the connection's queues after its event loop has
// exited. Later sends from other loops are dropped silently.
func (c *Connection) shutdown() {
	c.internal.stop()
	c.outbound.close()
}

// forward drains the outbound queue to the transport in arrival order.
// After the first write failure the transport is considered dead and
// remaining frames are dropped so producers stay unblocked.
func (c *Connection) forward(transport Transport) {
	var failed bool
	for data := range c.outbound.out {
		if failed {
			continue
		}
		if err := transport.WriteMessage(data); err != nil {
			c.logger.Debug("transport write failed", "error", err)
			failed = true
		}
	}
}

// readPump parses inbound frames into requests. Frames that do not
// decode as a recognized request are dropped; the event loop never sees
// malformed input.
func (c *Connection) readPump(transport Transport) {
	defer close(c.external)
	for {
		data, err := transport.ReadMessage()
		if err != nil {
			c.logger.Debug("transport closed", "error", err)
			return
		}
		request, err := DecodeRequest(data)
		if err != nil {
			c.logger.Debug("dropping malformed frame", "error", err)
			continue
		}
		c.external <- request
	}
}

// queue is an unbounded FIFO with a channel output. Pushes never block,
// which lets broadcasts run under a session lock without any risk of
// blocking on a slow consumer. close delivers buffered items before
// closing out; stop discards them.
type queue[T any] struct {
	mu      sync.Mutex
	items   []T
	done    bool
	discard bool

	wake    chan struct{}
	stopped chan struct{}
	out     chan T
}

func newQueue[T any]() *queue[T] {
	q := &queue[T]{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		out:     make(chan T),
	}
	go q.pump()
	return q
}

// push appends v. Returns false if the queue no longer accepts items.
func (q *queue[T]) push(v T) bool {
	q.mu.Lock()
	if q.done {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.signal()
	return true
}

// close rejects further pushes; buffered items are still delivered, then
// out is closed.
func (q *queue[T]) close() {
	q.mu.Lock()
	q.done = true
	q.mu.Unlock()
	q.signal()
}

// stop rejects further pushes and discards anything buffered, including
// an item the pump is mid-delivery on. Used when the consumer is gone.
func (q *queue[T]) stop() {
	q.mu.Lock()
	if !q.discard {
		q.discard = true
		q.done = true
		q.items = nil
		close(q.stopped)
	}
	q.mu.Unlock()
	q.signal()
}

func (q *queue[T]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue[T]) pump() {
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.done {
			q.mu.Unlock()
			<-q.wake
			q.mu.Lock()
		}
		if q.discard || len(q.items) == 0 {
			q.mu.Unlock()
			close(q.out)
			return
		}
		v := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- v:
		case <-q.stopped:
			close(q.out)
			return
		}
	}
}
