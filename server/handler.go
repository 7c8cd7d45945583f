// Copyright 2026 The Fbox Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fbox-dev/fbox/session"
)

// handler carries the route implementations.
type handler struct {
	service *session.Service
	logger  *slog.Logger
}

func (h *handler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", h.handleGeneratePhrase)
	mux.HandleFunc("GET /v1/sessions/socket", h.handleSocket)
	mux.HandleFunc("GET /v1/sessions/files/{id}", h.handleDownloadFile)
	mux.HandleFunc("POST /v1/sessions/files/{id}", h.handleUploadFile)
	return h.logRequests(allowCORS(mux))
}

// upgrader accepts any origin: access control rests on possession of
// the pairing phrase, not on the Origin header, and the frontend is
// served from arbitrary hosts.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleSocket upgrades to the pairing protocol and hands the
// connection to the broker. The broker blocks here for the connection's
// whole life and closes the transport itself on the way out.
func (h *handler) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	h.service.HandleConnection(&wsTransport{conn: conn})
}

// handleGeneratePhrase returns a fresh pairing phrase. Diagnostic; the
// phrase is not registered to any connection.
func (h *handler) handleGeneratePhrase(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"phrase": h.service.GeneratePhrase()})
}

// handleDownloadFile starts a relay for the requested file and streams
// the relayed bytes as the response body, flushing per chunk so the
// download progresses while the upload is still running.
func (h *handler) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	download, err := h.service.RequestFile(id, r.URL.Query().Get("session_seed"))
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	defer download.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.File.Name))
	w.Header().Set("Content-Type", "application/octet-stream")

	flusher, _ := w.(http.Flusher)
	for {
		select {
		case chunk, ok := <-download.Chunks():
			if !ok {
				return
			}
			if _, err := w.Write(chunk); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

// handleUploadFile feeds the request body into the pending relay for
// the file id. The uploader gets a 200 even when the downloader has
// disappeared mid-upload; only a missing relay or session is an error.
func (h *handler) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	seed := r.Header.Get("X-Session-Seed")
	if seed == "" {
		http.Error(w, "missing X-Session-Seed header", http.StatusBadRequest)
		return
	}

	switch err := h.service.UploadFile(id, seed, r.Body); {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrNoPendingRelay):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		http.Error(w, "bad request", http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are out; nothing to do but note it.
		slog.Debug("write json response", "error", err)
	}
}

// allowCORS applies the permissive CORS policy of the original service:
// any origin, the standard methods, and the protocol's custom header.
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS, POST, DELETE, PUT")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Session-Seed")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// logRequests logs one line per request. No response-writer wrapping:
// the WebSocket route needs the raw http.Hijacker underneath.
func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"duration", time.Since(start),
		)
	})
}

// wsTransport adapts a WebSocket connection to the broker's Transport.
// The broker's forwarder and read pump give it the single-writer,
// single-reader discipline gorilla requires.
type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == websocket.TextMessage {
			return data, nil
		}
		// Non-text frames are not part of the protocol; skip them.
	}
}

func (t *wsTransport) WriteMessage(data []byte) error {
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
