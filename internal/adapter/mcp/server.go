// Package mcp exposes a read-only Model Context Protocol surface over the
// session runtime (§6 expansion): get_session_state and list_sessions let
// an MCP-aware client (an IDE, an external debugging agent) inspect a
// running session without ever mutating it. Grounded on mark3labs/mcp-go,
// the same tool-schema library internal/service/tools uses for the
// LLM-facing tool set, here wired to its server half instead.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// SessionReader is the read-only introspection port these tools are
// grounded on: get_session_state and list_sessions never reach a mutating
// method on a running session.
type SessionReader interface {
	// SessionState returns the marshaled State Store snapshot for id, or
	// an error if no session with that id is registered.
	SessionState(ctx context.Context, id string) ([]byte, error)

	// SessionIDs returns every session ID currently registered on this
	// instance.
	SessionIDs(ctx context.Context) ([]string, error)
}

// ServerConfig configures the MCP HTTP listener.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	APIKey  string // empty disables AuthMiddleware
}

// ServerDeps wires the server's tool handlers to the running process.
type ServerDeps struct {
	Sessions SessionReader
}

// Server hosts the MCP tool/resource registry and its HTTP transport.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
	httpSrv   *mcpserver.StreamableHTTPServer
}

// NewServer builds a Server with its tools and resources registered but
// not yet listening; call Start to bind cfg.Addr.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:       cfg,
		deps:      deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying mcp-go server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the server's MCP HTTP handler wrapped in AuthMiddleware,
// for embedding under a caller-owned router (cmd/agentrt mounts this at
// /mcp rather than letting the server own its own listener).
func (s *Server) Handler() http.Handler {
	if s.httpSrv == nil {
		s.httpSrv = mcpserver.NewStreamableHTTPServer(s.mcpServer)
	}
	return AuthMiddleware(s.cfg.APIKey, s.httpSrv)
}

// Start binds cfg.Addr and begins serving MCP requests over streamable
// HTTP as a standalone listener; use Handler instead to mount under an
// existing router.
func (s *Server) Start() error {
	if s.httpSrv == nil {
		s.httpSrv = mcpserver.NewStreamableHTTPServer(s.mcpServer)
	}
	slog.Info("mcp server starting", "addr", s.cfg.Addr)
	go func() {
		if err := s.httpSrv.Start(s.cfg.Addr); err != nil {
			slog.Error("mcp server stopped", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the HTTP transport down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("mcp server shutdown: %w", err)
	}
	return nil
}
