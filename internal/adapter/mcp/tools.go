package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.getSessionStateTool(),
		s.listSessionsTool(),
	)
}

func (s *Server) getSessionStateTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_session_state",
		mcplib.WithDescription("Get the current State Store snapshot for a session by ID"),
		mcplib.WithString("session_id",
			mcplib.Required(),
			mcplib.Description("The session ID to look up"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetSessionState,
	}
}

func (s *Server) listSessionsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_sessions",
		mcplib.WithDescription("List the IDs of sessions currently registered on this instance"),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListSessions,
	}
}

func (s *Server) handleGetSessionState(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Sessions == nil {
		return mcplib.NewToolResultError("session reader not configured"), nil
	}
	args := req.GetArguments()
	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return mcplib.NewToolResultError("session_id is required"), nil
	}
	data, err := s.deps.Sessions.SessionState(ctx, sessionID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to get session state", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleListSessions(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Sessions == nil {
		return mcplib.NewToolResultError("session reader not configured"), nil
	}
	ids, err := s.deps.Sessions.SessionIDs(ctx)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list sessions", err), nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal session ids", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func toolResultJSON(text string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(text)
}
