package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/Strob0t/CodeForge/internal/domain/agentsession"
	"github.com/Strob0t/CodeForge/internal/port/database"
)

// Cloneable is satisfied by any state type whose Clone method returns an
// independent deep copy of itself — both agentsession.AppState and
// agentsession.WorkflowState satisfy it.
type Cloneable[T any] interface {
	Clone() T
}

// StateStore is the State Store (C1): the single authoritative session
// record, held in memory (the session's execution context is single
// threaded per §5) with Postgres as a durable mirror. Grounded on the
// teacher's internal/adapter/postgres/store.go transaction-scoped
// read/write pattern, but the in-memory copy — not the row — is
// authoritative; persistence failures are logged and swallowed rather than
// returned, matching the Conversation Store's best-effort durability (C2).
type StateStore[T Cloneable[T]] struct {
	mu          sync.RWMutex
	state       T
	db          database.Store
	sessionID   string
	projectType string
	log         *slog.Logger

	plugins *PluginManager
	getBase func(T) agentsession.BaseState
}

// NewStateStore returns a StateStore seeded with initial.
func NewStateStore[T Cloneable[T]](sessionID, projectType string, initial T, db database.Store, log *slog.Logger) *StateStore[T] {
	return &StateStore[T]{
		state:       initial,
		db:          db,
		sessionID:   sessionID,
		projectType: projectType,
		log:         log,
	}
}

// SetObservers wires a plugin manager into this store so every mutation
// fires the C15 onStateUpdate hook (§4.14). getBase projects T down to the
// BaseState fields the hook signature carries. Optional: a store with no
// observers set behaves exactly as before.
func (s *StateStore[T]) SetObservers(plugins *PluginManager, getBase func(T) agentsession.BaseState) {
	s.plugins = plugins
	s.getBase = getBase
}

// Get returns a deep-copied snapshot: later mutation of the live state is
// never observed through a previously returned snapshot.
func (s *StateStore[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Set replaces the whole record.
func (s *StateStore[T]) Set(ctx context.Context, whole T) {
	s.mu.Lock()
	before := s.state.Clone()
	s.state = whole
	snapshot := s.state.Clone()
	s.mu.Unlock()
	s.notify(ctx, before, snapshot)
	s.persist(ctx, snapshot)
}

// UpdateField applies mutate to the live state under lock and persists the
// result. mutate receives a pointer to the live value, not a copy.
//
// before and snapshot are both taken via Clone(), the same way Get() reads
// the live state: a plain struct copy of T still shares T's reference
// fields (generatedFilesMap above all) with the live value, so a mutator
// that edits that map in place — FileManager.DeleteFiles does — would
// otherwise leave before
// and snapshot pointing at the identical post-mutation map, and every
// OnStateUpdate observer (§4.14) would see oldState == newState on the
// single most common transition in the system.
func (s *StateStore[T]) UpdateField(ctx context.Context, mutate func(*T)) {
	s.mu.Lock()
	before := s.state.Clone()
	mutate(&s.state)
	snapshot := s.state.Clone()
	s.mu.Unlock()
	s.notify(ctx, before, snapshot)
	s.persist(ctx, snapshot)
}

// BatchUpdate applies every mutator in order under a single lock
// acquisition, then persists once — the batch equivalent of UpdateField.
func (s *StateStore[T]) BatchUpdate(ctx context.Context, mutators ...func(*T)) {
	s.mu.Lock()
	before := s.state.Clone()
	for _, m := range mutators {
		m(&s.state)
	}
	snapshot := s.state.Clone()
	s.mu.Unlock()
	s.notify(ctx, before, snapshot)
	s.persist(ctx, snapshot)
}

func (s *StateStore[T]) notify(ctx context.Context, before, after T) {
	if s.plugins == nil || s.getBase == nil {
		return
	}
	s.plugins.OnStateUpdate(ctx, s.getBase(before), s.getBase(after))
}

func (s *StateStore[T]) persist(ctx context.Context, snapshot T) {
	if s.db == nil {
		return
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		s.log.Error("state store: marshal failed", "session_id", s.sessionID, "error", err)
		return
	}
	if err := s.db.SaveSessionState(ctx, s.sessionID, s.projectType, data); err != nil {
		s.log.Error("state store: persist failed", "session_id", s.sessionID, "error", err)
	}
}
