// Package service implements the Session Agent's components (C1-C16):
// the in-memory state held per session plus the controllers that drive it.
package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Strob0t/CodeForge/internal/domain/conversation"
	"github.com/Strob0t/CodeForge/internal/port/database"
)

// ConversationStore is the Conversation Store (C2): two parallel message
// logs (full audit, compact working memory) keyed by session, deduplicated
// by ConversationID. Adapted from the teacher's internal/service/
// conversation.go + internal/adapter/postgres/store_conversation.go, which
// were project-scoped CRUD against conversations/conversation_messages
// tables; reworked here to the two-log-per-session shape. Persist failures
// are logged and swallowed — the conversation is reconstructable from the
// in-memory compact log, so durability here is best-effort by design (§4.2),
// unlike the teacher's original, which treated store errors as caller
// errors.
type ConversationStore struct {
	mu        sync.RWMutex
	sessionID string
	state      conversation.State
	db        database.Store
	log       *slog.Logger
}

// NewConversationStore returns a store seeded from db if a row exists for
// sessionID, or an empty state otherwise.
func NewConversationStore(ctx context.Context, sessionID string, db database.Store, log *slog.Logger) *ConversationStore {
	st := conversation.NewState()
	if db != nil {
		if loaded, err := db.GetConversationState(ctx, sessionID); err == nil {
			st = loaded
		}
	}
	return &ConversationStore{sessionID: sessionID, state: st, db: db, log: log}
}

// GetState returns {running, full}, deduplicated.
func (c *ConversationStore) GetState() conversation.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return conversation.State{Running: cloneLog(c.state.Running), Full: cloneLog(c.state.Full)}
}

// SetState replaces both logs wholesale.
func (c *ConversationStore) SetState(ctx context.Context, st conversation.State) {
	c.mu.Lock()
	c.state = st
	snapshot := c.state
	c.mu.Unlock()
	c.persist(ctx, snapshot)
}

// AddMessage upserts msg by ConversationID into both logs.
func (c *ConversationStore) AddMessage(ctx context.Context, msg conversation.Message) {
	c.mu.Lock()
	c.state.Running.Add(msg)
	c.state.Full.Add(msg)
	snapshot := c.state
	c.mu.Unlock()

	if c.db != nil {
		if err := c.db.AddConversationMessage(ctx, c.sessionID, msg); err != nil {
			c.log.Error("conversation: persist message failed", "session_id", c.sessionID, "error", err)
		}
	}
	_ = snapshot
}

// ClearCompact empties the running (compact) log, leaving the full log
// untouched — the `clear_conversation` control frame's effect.
func (c *ConversationStore) ClearCompact(ctx context.Context) {
	c.mu.Lock()
	c.state.Running.Clear()
	snapshot := c.state
	c.mu.Unlock()
	c.persist(ctx, snapshot)
}

func (c *ConversationStore) persist(ctx context.Context, snapshot conversation.State) {
	if c.db == nil {
		return
	}
	if err := c.db.SetConversationState(ctx, c.sessionID, snapshot); err != nil {
		c.log.Error("conversation: persist state failed", "session_id", c.sessionID, "error", err)
	}
}

func cloneLog(l *conversation.Log) *conversation.Log {
	out := conversation.NewLog()
	for _, m := range l.Messages() {
		out.Add(m)
	}
	return out
}
