package ws

import "context"

// SessionBroadcaster binds a Hub to one session, implementing
// broadcast.Broadcaster for that session alone — the shape C10/C11/C12
// hold so they never need to know about other sessions' connections.
type SessionBroadcaster struct {
	hub       *Hub
	sessionID string
}

// NewSessionBroadcaster returns a Broadcaster scoped to sessionID.
func NewSessionBroadcaster(hub *Hub, sessionID string) *SessionBroadcaster {
	return &SessionBroadcaster{hub: hub, sessionID: sessionID}
}

// BroadcastEvent sends a typed event to every connection attached to this
// broadcaster's session.
func (b *SessionBroadcaster) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	b.hub.BroadcastToSession(ctx, b.sessionID, eventType, payload)
}
