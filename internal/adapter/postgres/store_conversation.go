package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/CodeForge/internal/domain/conversation"
)

// GetConversationState implements database.Store. A session with no row
// yet returns an empty State rather than an error — every session starts
// with empty logs (§4.2) and persisting them lazily on first write avoids
// a separate provisioning step.
func (s *Store) GetConversationState(ctx context.Context, sessionID string) (conversation.State, error) {
	var runningJSON, fullJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT running, full FROM conversation_states WHERE session_id = $1`, sessionID,
	).Scan(&runningJSON, &fullJSON)
	if err != nil {
		if err == pgx.ErrNoRows {
			return conversation.NewState(), nil
		}
		return conversation.State{}, fmt.Errorf("get conversation state %s: %w", sessionID, err)
	}

	state := conversation.NewState()
	if err := json.Unmarshal(runningJSON, state.Running); err != nil {
		return conversation.State{}, fmt.Errorf("decode running log %s: %w", sessionID, err)
	}
	if err := json.Unmarshal(fullJSON, state.Full); err != nil {
		return conversation.State{}, fmt.Errorf("decode full log %s: %w", sessionID, err)
	}
	return state, nil
}

// SetConversationState implements database.Store, replacing both logs
// wholesale.
func (s *Store) SetConversationState(ctx context.Context, sessionID string, state conversation.State) error {
	runningJSON, err := json.Marshal(state.Running)
	if err != nil {
		return fmt.Errorf("encode running log: %w", err)
	}
	fullJSON, err := json.Marshal(state.Full)
	if err != nil {
		return fmt.Errorf("encode full log: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO conversation_states (session_id, running, full)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (session_id) DO UPDATE SET running = $2, full = $3, updated_at = now()`,
		sessionID, runningJSON, fullJSON)
	if err != nil {
		return fmt.Errorf("set conversation state %s: %w", sessionID, err)
	}
	return nil
}

// AddConversationMessage implements database.Store by read-modify-write:
// load the current state, upsert msg into the full log (the append-only
// audit trail every message belongs to), and persist. Running-log updates
// go through SetConversationState directly since not every message that
// enters the full log belongs in the compacted working log (§4.2).
func (s *Store) AddConversationMessage(ctx context.Context, sessionID string, msg conversation.Message) error {
	state, err := s.GetConversationState(ctx, sessionID)
	if err != nil {
		return err
	}
	state.Full.Add(msg)
	return s.SetConversationState(ctx, sessionID, state)
}
