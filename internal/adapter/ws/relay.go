package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/CodeForge/internal/port/messagequeue"
)

// RelayBroadcaster wraps a Hub-scoped broadcast with an optional
// cross-instance relay (§6 expansion): every event is fanned out to this
// instance's own websocket connections exactly as SessionBroadcaster does,
// and additionally published on queue so any other runtime instance
// holding a connection for the same session (behind a shared load
// balancer, one session registry per process) can relay it to its own
// clients. A nil queue behaves exactly like SessionBroadcaster.
type RelayBroadcaster struct {
	hub       *Hub
	sessionID string
	queue     messagequeue.Queue
}

// NewRelayBroadcaster returns a Broadcaster scoped to sessionID that also
// relays through queue when queue is non-nil and connected.
func NewRelayBroadcaster(hub *Hub, sessionID string, queue messagequeue.Queue) *RelayBroadcaster {
	return &RelayBroadcaster{hub: hub, sessionID: sessionID, queue: queue}
}

// BroadcastEvent implements broadcast.Broadcaster.
func (b *RelayBroadcaster) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	b.hub.BroadcastToSession(ctx, b.sessionID, eventType, payload)

	if b.queue == nil || !b.queue.IsConnected() {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("ws: relay marshal failed", "session_id", b.sessionID, "error", err)
		return
	}
	envelope := messagequeue.SessionEventPayload{SessionID: b.sessionID, Type: eventType, Data: data}
	raw, err := json.Marshal(envelope)
	if err != nil {
		slog.Error("ws: relay envelope marshal failed", "session_id", b.sessionID, "error", err)
		return
	}
	if err := b.queue.Publish(ctx, messagequeue.SessionEventSubject(b.sessionID), raw); err != nil {
		slog.Warn("ws: relay publish failed", "session_id", b.sessionID, "error", err)
	}
}

// SubscribeRelay subscribes to every session's relayed events on queue and
// re-broadcasts each one to this instance's own hub connections for that
// session. It never republishes what it receives, so instances never echo
// events back and forth. Call once per process at startup when queue is
// configured.
func SubscribeRelay(ctx context.Context, hub *Hub, queue messagequeue.Queue) (func(), error) {
	return queue.Subscribe(ctx, messagequeue.SubjectSessionEventWildcard, func(ctx context.Context, _ string, data []byte) error {
		var envelope messagequeue.SessionEventPayload
		if err := json.Unmarshal(data, &envelope); err != nil {
			return err
		}
		var payload any
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			payload = json.RawMessage(envelope.Data)
		}
		hub.BroadcastToSession(ctx, envelope.SessionID, envelope.Type, payload)
		return nil
	})
}
