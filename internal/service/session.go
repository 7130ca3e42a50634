package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Strob0t/CodeForge/internal/vcs"
)

// Session bundles the per-session components the Control-Message Handler
// (C14) and the export API need to reach: the dispatcher (C13, fronting
// whichever controller variant this session runs), the conversation store
// (C2), the cancellation token (C6), the plugin registry (C15), and the
// Version-Control Store (C4) the export endpoint reads
// ExportGitObjects from directly, since pushToGitHub (§4.16) is an HTTP
// operation outside the controller's own tool surface. Built once by the
// Session Lifecycle (C16) and kept for the session's lifetime.
type Session struct {
	ID       string
	Dispatch *Dispatcher
	Conv     *ConversationStore
	Cancel   *CancellationController
	Plugins  *PluginManager
	VCS      *vcs.Store
	Log      *slog.Logger
}

// SessionRegistry is the process-wide in-memory map from session id to
// *Session that the HTTP/WS composition layer consults to route a frame
// to the right session. There is exactly one registry per process; it
// holds no durable state itself — durability is each session's stores'
// job (C1-C4).
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionRegistry returns an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Put registers or replaces the session at id.
func (r *SessionRegistry) Put(id string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = s
}

// Get returns the session at id, or nil if none is registered.
func (r *SessionRegistry) Get(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// Remove drops the session at id from the registry.
func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// IDs returns the session IDs currently registered on this instance.
func (r *SessionRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// SessionIDs implements internal/adapter/mcp.SessionReader's list_sessions
// tool over IDs, adding the ctx/error shape that port expects.
func (r *SessionRegistry) SessionIDs(context.Context) ([]string, error) {
	return r.IDs(), nil
}

// SessionState implements internal/adapter/mcp.SessionReader's
// get_session_state tool: the marshaled State Store snapshot for id, via
// the session's own Dispatcher rather than reaching into its controller
// directly.
func (r *SessionRegistry) SessionState(_ context.Context, id string) ([]byte, error) {
	sess := r.Get(id)
	if sess == nil {
		return nil, fmt.Errorf("session registry: unknown session %q", id)
	}
	return sess.Dispatch.State()
}
