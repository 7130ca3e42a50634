package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/CodeForge/internal/domain/conversation"
)

func TestConversationStoreAddMessageIsIdempotentByConversationID(t *testing.T) {
	conv := NewConversationStore(context.Background(), "sess-1", nil, discardLogger())

	msg := conversation.Message{ConversationID: "m1", Role: conversation.RoleUser, Content: "hello"}
	conv.AddMessage(context.Background(), msg)
	conv.AddMessage(context.Background(), msg)

	st := conv.GetState()
	assert.Len(t, st.Full.Messages(), 1)
	assert.Len(t, st.Running.Messages(), 1)
}

func TestConversationStoreClearCompactEmptiesRunningOnly(t *testing.T) {
	conv := NewConversationStore(context.Background(), "sess-1", nil, discardLogger())

	for _, id := range []string{"m1", "m2", "m3"} {
		conv.AddMessage(context.Background(), conversation.Message{ConversationID: id, Role: conversation.RoleUser, Content: id})
	}

	conv.ClearCompact(context.Background())

	st := conv.GetState()
	assert.Empty(t, st.Running.Messages())
	require.Len(t, st.Full.Messages(), 3)
	assert.Equal(t, "m1", st.Full.Messages()[0].ConversationID)
	assert.Equal(t, "m2", st.Full.Messages()[1].ConversationID)
	assert.Equal(t, "m3", st.Full.Messages()[2].ConversationID)
}

func TestConversationStoreGetStateReturnsIndependentCopies(t *testing.T) {
	conv := NewConversationStore(context.Background(), "sess-1", nil, discardLogger())
	conv.AddMessage(context.Background(), conversation.Message{ConversationID: "m1", Role: conversation.RoleUser, Content: "hi"})

	first := conv.GetState()
	first.Running.Add(conversation.Message{ConversationID: "m2", Role: conversation.RoleUser, Content: "leaked?"})

	second := conv.GetState()
	assert.Len(t, second.Running.Messages(), 1, "mutating a returned snapshot must not leak into the live state")
}

func TestConversationStorePersistsThroughDB(t *testing.T) {
	db := newFakeDB()
	conv := NewConversationStore(context.Background(), "sess-1", db, discardLogger())

	conv.AddMessage(context.Background(), conversation.Message{ConversationID: "m1", Role: conversation.RoleUser, Content: "hi"})

	persisted, err := db.GetConversationState(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Len(t, persisted.Full.Messages(), 1)
}

func TestNewConversationStoreLoadsExistingRowFromDB(t *testing.T) {
	db := newFakeDB()
	seed := conversation.NewState()
	seed.Full.Add(conversation.Message{ConversationID: "m1", Role: conversation.RoleSystem, Content: "seeded"})
	require.NoError(t, db.SetConversationState(context.Background(), "sess-1", seed))

	conv := NewConversationStore(context.Background(), "sess-1", db, discardLogger())

	st := conv.GetState()
	require.Len(t, st.Full.Messages(), 1)
	assert.Equal(t, "seeded", st.Full.Messages()[0].Content)
}
