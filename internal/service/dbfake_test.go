package service

import (
	"context"
	"sync"

	"github.com/Strob0t/CodeForge/internal/domain/conversation"
	"github.com/Strob0t/CodeForge/internal/port/database"
)

// fakeDB is an in-memory database.Store used by tests that need a real
// durable-mirror round trip without a Postgres instance, the same role
// the cache package's RunComplianceTests helper plays for cache.Cache.
type fakeDB struct {
	mu sync.Mutex

	sessions map[string]fakeSessionRow
	convs    map[string]conversation.State
	objects  map[string][]database.VCSObjectRow
	heads    map[string]string

	saveSessionStateErr error
}

type fakeSessionRow struct {
	projectType string
	data        []byte
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		sessions: make(map[string]fakeSessionRow),
		convs:    make(map[string]conversation.State),
		objects:  make(map[string][]database.VCSObjectRow),
		heads:    make(map[string]string),
	}
}

func (f *fakeDB) SaveSessionState(_ context.Context, sessionID, projectType string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveSessionStateErr != nil {
		return f.saveSessionStateErr
	}
	f.sessions[sessionID] = fakeSessionRow{projectType: projectType, data: append([]byte(nil), data...)}
	return nil
}

func (f *fakeDB) LoadSessionState(_ context.Context, sessionID string) (string, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.sessions[sessionID]
	if !ok {
		return "", nil, errNotFound
	}
	return row.projectType, row.data, nil
}

func (f *fakeDB) DeleteSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sessionID)
	return nil
}

func (f *fakeDB) GetConversationState(_ context.Context, sessionID string) (conversation.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.convs[sessionID]
	if !ok {
		return conversation.State{}, errNotFound
	}
	return st, nil
}

func (f *fakeDB) SetConversationState(_ context.Context, sessionID string, state conversation.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convs[sessionID] = state
	return nil
}

func (f *fakeDB) AddConversationMessage(_ context.Context, sessionID string, msg conversation.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.convs[sessionID]
	if !ok {
		st = conversation.NewState()
	}
	st.Running.Add(msg)
	st.Full.Add(msg)
	f.convs[sessionID] = st
	return nil
}

func (f *fakeDB) SaveVCSObject(_ context.Context, sessionID, kind, hash string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[sessionID] = append(f.objects[sessionID], database.VCSObjectRow{Kind: kind, Hash: hash, Data: data})
	return nil
}

func (f *fakeDB) LoadVCSObjects(_ context.Context, sessionID string) ([]database.VCSObjectRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[sessionID], nil
}

func (f *fakeDB) SaveHead(_ context.Context, sessionID, commitHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heads[sessionID] = commitHash
	return nil
}

func (f *fakeDB) LoadHead(_ context.Context, sessionID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	head, ok := f.heads[sessionID]
	return head, ok, nil
}

type notFoundError struct{}

func (notFoundError) Error() string { return "fakeDB: not found" }

var errNotFound = notFoundError{}
