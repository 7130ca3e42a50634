package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

type mockSessionReader struct {
	states map[string][]byte
	ids    []string
	err    error
}

func (m *mockSessionReader) SessionState(_ context.Context, id string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, ok := m.states[id]
	if !ok {
		return nil, errors.New("session not found")
	}
	return data, nil
}

func (m *mockSessionReader) SessionIDs(_ context.Context) ([]string, error) {
	return m.ids, m.err
}

func TestNewServer(t *testing.T) {
	s := NewServer(ServerConfig{Name: "test", Version: "0.1.0"}, ServerDeps{})
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
	if s.MCPServer() == nil {
		t.Fatal("MCPServer() returned nil")
	}
}

func TestHandleGetSessionState(t *testing.T) {
	deps := ServerDeps{
		Sessions: &mockSessionReader{
			states: map[string][]byte{"s1": []byte(`{"query":"build me a todo app"}`)},
		},
	}
	s := NewServer(ServerConfig{Name: "test", Version: "0.1.0"}, deps)

	ctx := context.Background()
	result, err := s.handleGetSessionState(ctx, mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name:      "get_session_state",
			Arguments: map[string]any{"session_id": "s1"},
		},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	text, ok := result.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	var state map[string]any
	if err := json.Unmarshal([]byte(text.Text), &state); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if state["query"] != "build me a todo app" {
		t.Fatalf("unexpected state: %v", state)
	}
}

func TestHandleGetSessionStateMissingArg(t *testing.T) {
	s := NewServer(ServerConfig{Name: "test", Version: "0.1.0"}, ServerDeps{Sessions: &mockSessionReader{}})

	ctx := context.Background()
	result, err := s.handleGetSessionState(ctx, mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: "get_session_state"},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing session_id")
	}
}

func TestHandleGetSessionStateNilDeps(t *testing.T) {
	s := NewServer(ServerConfig{Name: "test", Version: "0.1.0"}, ServerDeps{})

	ctx := context.Background()
	result, err := s.handleGetSessionState(ctx, mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name:      "get_session_state",
			Arguments: map[string]any{"session_id": "s1"},
		},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result when deps are nil")
	}
}

func TestHandleGetSessionStateNotFound(t *testing.T) {
	s := NewServer(ServerConfig{Name: "test", Version: "0.1.0"}, ServerDeps{Sessions: &mockSessionReader{}})

	ctx := context.Background()
	result, err := s.handleGetSessionState(ctx, mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name:      "get_session_state",
			Arguments: map[string]any{"session_id": "missing"},
		},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for unknown session")
	}
}

func TestHandleListSessions(t *testing.T) {
	deps := ServerDeps{Sessions: &mockSessionReader{ids: []string{"s1", "s2"}}}
	s := NewServer(ServerConfig{Name: "test", Version: "0.1.0"}, deps)

	ctx := context.Background()
	result, err := s.handleListSessions(ctx, mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: "list_sessions"},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	text, ok := result.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	var ids []string
	if err := json.Unmarshal([]byte(text.Text), &ids); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}
}

func TestHandleListSessionsNilDeps(t *testing.T) {
	s := NewServer(ServerConfig{Name: "test", Version: "0.1.0"}, ServerDeps{})

	ctx := context.Background()
	result, err := s.handleListSessions(ctx, mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: "list_sessions"},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result when deps are nil")
	}
}
