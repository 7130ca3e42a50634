package ws

import "testing"

func TestHubConnectionCountEmpty(t *testing.T) {
	h := NewHub()
	if got := h.ConnectionCount("session-1"); got != 0 {
		t.Fatalf("expected 0 connections, got %d", got)
	}
}

func TestHubBroadcastToSessionNoConnectionsNoop(t *testing.T) {
	h := NewHub()
	// No attached connections: this must not panic, and must not touch
	// other sessions' connection sets.
	h.BroadcastToSession(nil, "session-1", EventGenerationStarted, map[string]string{"x": "y"}) //nolint:staticcheck // nil ctx ok, no I/O happens
	if h.ConnectionCount("session-2") != 0 {
		t.Fatal("expected session-2 untouched")
	}
}
