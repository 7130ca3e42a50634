package tools

import (
	"context"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// WorkflowOnlyDefinitions returns the tool set available only to
// workflow-project sessions, wired into the Agentic Workflow Controller
// (C11) (§4.8).
func WorkflowOnlyDefinitions(d Deps) []Definition {
	return []Definition{
		configureWorkflowMetadataTool(d),
	}
}

// configureWorkflowMetadataTool accepts the whole metadata record as one
// JSON object argument rather than one field per scalar, since the
// schema-builder surface grounded in the teacher's usage only covers
// string-typed leaves (mcp.WithString) — the merge semantics (field union,
// last-writer-wins for scalars) live in agentsession.WorkflowMetadata.Merge,
// not here.
func configureWorkflowMetadataTool(d Deps) Definition {
	return Definition{
		Name:        "configure_workflow_metadata",
		Description: "Declare or update the workflow's name, description, params schema, and env/secret/resource bindings.",
		mcpTool: mcplib.NewTool("configure_workflow_metadata",
			mcplib.WithDescription("Declare or update the workflow's name, description, params schema, and env/secret/resource bindings."),
			mcplib.WithString("metadata", mcplib.Required(), mcplib.Description(
				"JSON object: {name, description, paramsSchema, envVars, secrets, resources}. "+
					"resources maps a binding name to {kind: kv|r2|d1|queue|ai, id?}.")),
		),
		Impl: func(ctx context.Context, args map[string]any) (any, *Error) {
			if d.ConfigureWorkflowMetadata == nil {
				return nil, NewError("configure_workflow_metadata: not configured")
			}
			metadata, _ := args["metadata"].(string)
			if err := d.ConfigureWorkflowMetadata(ctx, metadata); err != nil {
				return nil, NewError("configure_workflow_metadata: %s", err)
			}
			return map[string]any{"configured": true}, nil
		},
	}
}
