// Package tools implements the Tool Registry & Dispatcher (C9): named tool
// functions with JSON-schema arguments, routed from the LLM's tool calls to
// their implementations. Adapted from the teacher's
// internal/adapter/mcp/tools.go registration pattern, retargeted from
// mark3labs/mcp-go MCP-server tools to the session's own tool-call loop —
// the same schema-builder dependency, a different caller.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// Error is the {error: string} envelope a tool implementation returns on
// failure. Tools never panic across the dispatch boundary.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// NewError builds a tool Error from a message.
func NewError(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Implementation is a tool's body. args has already passed schema
// validation. A non-nil *Error means failure; the result is otherwise
// returned verbatim to the LLM.
type Implementation func(ctx context.Context, args map[string]any) (result any, toolErr *Error)

// Definition is one tool's declaration: name, description, JSON schema
// (built via mcp-go's schema builders), implementation, and optional
// lifecycle hooks fired around dispatch.
type Definition struct {
	Name        string
	Description string
	mcpTool     mcplib.Tool
	Impl        Implementation
	OnStart     func(args map[string]any)
	OnComplete  func(args map[string]any, result any)
}

// Schema returns the tool's JSON schema, suitable for handing to the LLM
// client as an llm.ToolDef.
func (d Definition) Schema() json.RawMessage {
	b, err := json.Marshal(d.mcpTool.InputSchema)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

func (d Definition) requiredArgs() []string {
	return d.mcpTool.InputSchema.Required
}

func (d Definition) knownArgs() map[string]bool {
	known := make(map[string]bool, len(d.mcpTool.InputSchema.Properties))
	for name := range d.mcpTool.InputSchema.Properties {
		known[name] = true
	}
	return known
}

// validate checks args against the declared JSON schema: every required
// field must be present; unknown fields are rejected so malformed calls
// fail fast rather than silently ignoring typos.
func (d Definition) validate(args map[string]any) error {
	for _, req := range d.requiredArgs() {
		if _, ok := args[req]; !ok {
			return fmt.Errorf("missing required argument %q", req)
		}
	}
	known := d.knownArgs()
	if len(known) == 0 {
		return nil
	}
	for k := range args {
		if !known[k] {
			return fmt.Errorf("unknown argument %q", k)
		}
	}
	return nil
}

// Registry composes a per-context tool set and dispatches calls by name.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry returns a Registry populated from defs. Later entries with a
// duplicate name overwrite earlier ones, mirroring how a context-specific
// tool set (common + variant-only) is assembled.
func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		r.defs[d.Name] = d
	}
	return r
}

// Definitions returns every registered tool, for handing to the LLM client.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	return out
}

// Dispatch validates args against the declared schema, fires OnStart,
// invokes the implementation, fires OnComplete, and returns the result.
// On schema failure the implementation is never invoked and the error is
// returned as a tool Error, the same shape a failing implementation
// returns — from the LLM's perspective both are just "the tool failed".
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (any, *Error) {
	def, ok := r.defs[name]
	if !ok {
		return nil, NewError("unknown tool %q", name)
	}
	if err := def.validate(args); err != nil {
		return nil, NewError("%s: %s", name, err)
	}

	if def.OnStart != nil {
		def.OnStart(args)
	}
	result, toolErr := def.Impl(ctx, args)
	if def.OnComplete != nil {
		def.OnComplete(args, result)
	}
	return result, toolErr
}
