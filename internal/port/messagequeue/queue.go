// Package messagequeue defines the message queue port (interface) used by
// the cross-instance Event Bus relay (§6 expansion): when more than one
// runtime instance shares a session registry backed by Postgres, a C5
// broadcast emitted on one instance must still reach a client websocket
// attached to a different instance. This port is the relay transport; it
// carries no session semantics of its own.
package messagequeue

import "context"

// Handler processes a message received from the queue.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	// Pending messages are processed; no new messages are accepted.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// SubjectSessionEvent is the subject prefix a relayed C5 broadcast is
// published under. The subject actually used on the wire is
// SessionEventSubject(sessionID); SubjectSessionEventWildcard is what every
// instance subscribes to at startup so it can re-broadcast events for
// sessions owned by a different instance to any websocket it holds for
// that session ID.
const (
	SubjectSessionEvent         = "sessions.events"
	SubjectSessionEventWildcard = "sessions.events.*"
)

// SessionEventSubject returns the subject a given session's events are
// published under.
func SessionEventSubject(sessionID string) string {
	return SubjectSessionEvent + "." + sessionID
}
