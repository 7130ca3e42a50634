// Package database defines the durable-persistence port: the mirror for
// session state, the two conversation logs, and VCS objects. The runtime
// itself is the authoritative in-memory copy (§4.1); this port is the
// durable side of that mirror.
package database

import (
	"context"

	"github.com/Strob0t/CodeForge/internal/domain/conversation"
)

// Store is the port interface for session persistence.
type Store interface {
	// Sessions — one opaque row per session holding the serialized
	// BaseSessionState extension (app or workflow), keyed by session id.
	SaveSessionState(ctx context.Context, sessionID string, projectType string, data []byte) error
	LoadSessionState(ctx context.Context, sessionID string) (projectType string, data []byte, err error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Conversations — full_conversations and compact_conversations, each
	// keyed by session id and holding a JSON array of messages.
	GetConversationState(ctx context.Context, sessionID string) (conversation.State, error)
	SetConversationState(ctx context.Context, sessionID string, state conversation.State) error
	AddConversationMessage(ctx context.Context, sessionID string, msg conversation.Message) error

	// VCS objects — blob/tree/commit rows plus the HEAD pointer, keyed by
	// session id.
	SaveVCSObject(ctx context.Context, sessionID, kind, hash string, data []byte) error
	LoadVCSObjects(ctx context.Context, sessionID string) ([]VCSObjectRow, error)
	SaveHead(ctx context.Context, sessionID, commitHash string) error
	LoadHead(ctx context.Context, sessionID string) (commitHash string, ok bool, err error)
}

// VCSObjectRow is one persisted blob/tree/commit row.
type VCSObjectRow struct {
	Kind string // "blob" | "tree" | "commit"
	Hash string
	Data []byte
}
