// Copyright 2026 The Fbox Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/fbox-dev/fbox/lib/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestConnection wires a connection to the server end of an
// in-process transport pair and returns the client end alongside it.
func newTestConnection(t *testing.T) (*Connection, *ChanTransport) {
	t.Helper()
	serverEnd, clientEnd := NewTransportPair()
	connection := newConnection(1, serverEnd, discardLogger())
	t.Cleanup(func() {
		clientEnd.Close()
		connection.shutdown()
	})
	return connection, clientEnd
}

func writeRequest(t *testing.T, transport *ChanTransport, request Request) {
	t.Helper()
	data, err := EncodeRequest(request)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	if err := transport.WriteMessage(data); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
}

func TestConnectionDeliversExternalRequests(t *testing.T) {
	t.Parallel()
	connection, client := newTestConnection(t)

	writeRequest(t, client, ConnectRequest{Phrase: "a"})
	writeRequest(t, client, ConnectRequest{Phrase: "b"})

	for _, want := range []string{"a", "b"} {
		next, ok := connection.next()
		if !ok {
			t.Fatal("stream ended early")
		}
		connect, isConnect := next.request.(ConnectRequest)
		if !isConnect || connect.Phrase != want {
			t.Fatalf("got %+v, want connect %q", next, want)
		}
	}
}

func TestConnectionPrefersInternalEvents(t *testing.T) {
	t.Parallel()
	connection, client := newTestConnection(t)

	writeRequest(t, client, ConnectRequest{Phrase: "external"})
	connection.SendInternal(peerDisconnected{id: 9})
	connection.SendInternal(peerDisconnected{id: 10})

	// Let both pumps park with their next item ready, so the
	// multiplexer genuinely chooses rather than seeing one source.
	time.Sleep(50 * time.Millisecond)

	first, ok := connection.next()
	if !ok || first.internal == nil {
		t.Fatalf("first event: got %+v, want internal", first)
	}
	second, ok := connection.next()
	if !ok || second.internal == nil {
		t.Fatalf("second event: got %+v, want internal", second)
	}
	third, ok := connection.next()
	if !ok || third.request == nil {
		t.Fatalf("third event: got %+v, want external", third)
	}
}

func TestConnectionStreamEndsOnTransportClose(t *testing.T) {
	t.Parallel()
	connection, client := newTestConnection(t)

	client.Close()
	if _, ok := connection.next(); ok {
		t.Error("stream did not end after transport close")
	}
}

func TestConnectionInternalNeverEndsStream(t *testing.T) {
	t.Parallel()
	connection, client := newTestConnection(t)

	connection.SendInternal(peerDisconnected{id: 3})
	next, ok := connection.next()
	if !ok || next.internal == nil {
		t.Fatalf("got %+v, want internal event", next)
	}

	// The internal queue being idle must not end the stream; only the
	// transport close below does.
	client.Close()
	if _, ok := connection.next(); ok {
		t.Error("stream did not end after transport close")
	}
}

func TestConnectionDropsMalformedFrames(t *testing.T) {
	t.Parallel()
	connection, client := newTestConnection(t)

	if err := client.WriteMessage([]byte("{{{ not json")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if err := client.WriteMessage([]byte(`{"type":"no_such_thing"}`)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	writeRequest(t, client, RemoveFileRequest{})

	next, ok := connection.next()
	if !ok {
		t.Fatal("stream ended early")
	}
	if _, isRemove := next.request.(RemoveFileRequest); !isRemove {
		t.Fatalf("got %+v, want the remove_file request after the dropped frames", next)
	}
}

func TestSendExternalNeverBlocks(t *testing.T) {
	t.Parallel()
	connection, client := newTestConnection(t)

	// Nobody reads the client end; an unbounded outbound queue must
	// absorb everything without stalling the sender.
	done := make(chan struct{})
	go func() {
		for range 500 {
			connection.SendExternal(PeerNotFound{})
		}
		close(done)
	}()
	testutil.RequireClosed(t, done, 5*time.Second, "queueing 500 sends")

	for range 500 {
		if _, err := client.ReadMessage(); err != nil {
			t.Fatalf("ReadMessage: %v", err)
		}
	}
}

func TestSendExternalPreservesOrder(t *testing.T) {
	t.Parallel()
	connection, client := newTestConnection(t)

	phrases := []string{"one", "two", "three", "four"}
	for _, phrase := range phrases {
		connection.SendExternal(Created{Phrase: phrase})
	}
	for _, want := range phrases {
		data, err := client.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage: %v", err)
		}
		response, err := DecodeResponse(data)
		if err != nil {
			t.Fatalf("DecodeResponse: %v", err)
		}
		created, ok := response.(Created)
		if !ok || created.Phrase != want {
			t.Fatalf("got %+v, want created %q", response, want)
		}
	}
}

func TestQueueFlushDeliversBufferedItems(t *testing.T) {
	t.Parallel()

	q := newQueue[int]()
	for i := range 10 {
		q.push(i)
	}
	q.close()
	if q.push(99) {
		t.Error("push succeeded after close")
	}

	var got []int
	for v := range q.out {
		got = append(got, v)
	}
	if len(got) != 10 {
		t.Fatalf("drained %d items, want 10", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Errorf("item %d: got %d", i, v)
		}
	}
}

func TestQueueStopDiscardsBufferedItems(t *testing.T) {
	t.Parallel()

	q := newQueue[int]()
	for i := range 10 {
		q.push(i)
	}
	q.stop()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-q.out:
			if !ok {
				return
			}
			// A stop racing a delivery may let an item slip out; the
			// channel must still close promptly.
		case <-deadline:
			t.Fatal("queue output did not close after stop")
		}
	}
}
