// Package ws implements the Event Bus (C5) and the Control-Message Handler
// (C14) transport: a per-session-scoped WebSocket hub. Adapted from the
// teacher's internal/adapter/ws/handler.go Hub/conn/Broadcast, which
// broadcasts to all connections (or, per hub_test.go, to one tenant); here
// broadcast is scoped to the connections attached to one session instead
// of one tenant.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// Message is the envelope for all WebSocket frames, inbound and outbound.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Handler processes one inbound frame from a connection attached to
// sessionID. Implemented by the Control-Message Handler (C14).
type Handler func(ctx context.Context, sessionID string, msg Message, ch *Channel)

// frameWriter is the minimal write surface Channel needs; *websocket.Conn
// satisfies it. Extracted so tests can exercise the Control-Message
// Handler against a fake channel without a live connection.
type frameWriter interface {
	Write(ctx context.Context, typ websocket.MessageType, data []byte) error
}

// Channel is a single client connection's write side, handed to C14 so it
// can unicast per-channel errors without reaching into the Hub's internals.
type Channel struct {
	ws        frameWriter
	sessionID string
}

// SendError writes a per-channel `error` event. Serialization or write
// failures are logged and otherwise swallowed — one channel's failure must
// never block another.
func (c *Channel) SendError(ctx context.Context, msg string) {
	c.send(ctx, Message{Type: "error", Payload: mustMarshal(map[string]string{"message": msg})})
}

// Send writes an arbitrary typed event to this channel only.
func (c *Channel) Send(ctx context.Context, eventType string, payload any) {
	c.send(ctx, Message{Type: eventType, Payload: mustMarshal(payload)})
}

func (c *Channel) send(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("ws: marshal failed", "error", err)
		return
	}
	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("ws: write failed", "error", err, "session_id", c.sessionID)
	}
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}

// conn is one attached connection, scoped to the session it was opened
// against.
type conn struct {
	channel   *Channel
	cancel    context.CancelFunc
	sessionID string
}

// Hub manages every active connection, grouped by session id, and fans out
// broadcasts scoped to one session at a time. Message order on a single
// connection is FIFO; ordering across connections is not guaranteed.
type Hub struct {
	mu       sync.RWMutex
	byID     map[*conn]struct{}
	sessions map[string]map[*conn]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		byID:     make(map[*conn]struct{}),
		sessions: make(map[string]map[*conn]struct{}),
	}
}

// HandleWS upgrades the connection, attaches it to sessionID, and runs the
// read loop — every decoded frame is dispatched to handler. The connection
// is removed from the hub when the client disconnects or the context is
// cancelled.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request, sessionID string, handler Handler) {
	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("ws: accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{
		channel:   &Channel{ws: wsConn, sessionID: sessionID},
		cancel:    cancel,
		sessionID: sessionID,
	}

	h.add(c)
	slog.Info("ws: connected", "session_id", sessionID, "remote", r.RemoteAddr)

	defer func() {
		h.remove(c)
		_ = wsConn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := wsConn.Read(ctx)
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.channel.SendError(ctx, "malformed frame: "+err.Error())
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("ws: handler panic recovered", "session_id", sessionID, "panic", r)
					c.channel.SendError(ctx, "internal error handling frame")
				}
			}()
			handler(ctx, sessionID, msg, c.channel)
		}()
	}
}

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byID[c] = struct{}{}
	if h.sessions[c.sessionID] == nil {
		h.sessions[c.sessionID] = make(map[*conn]struct{})
	}
	h.sessions[c.sessionID][c] = struct{}{}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.byID[c]; !ok {
		return
	}
	c.cancel()
	delete(h.byID, c)
	if set, ok := h.sessions[c.sessionID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.sessions, c.sessionID)
		}
	}
}

// BroadcastToSession sends a typed event to every connection attached to
// sessionID. One connection's write failure does not block the others.
func (h *Hub) BroadcastToSession(ctx context.Context, sessionID, eventType string, payload any) {
	msg := Message{Type: eventType, Payload: mustMarshal(payload)}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("ws: marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	conns := make([]*conn, 0, len(h.sessions[sessionID]))
	for c := range h.sessions[sessionID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.channel.ws.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Debug("ws: write failed", "error", err, "session_id", sessionID)
			go h.remove(c)
		}
	}
}

// ConnectionCount returns the number of connections attached to sessionID.
func (h *Hub) ConnectionCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}
