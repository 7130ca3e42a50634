package tools

import (
	"context"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// AppOnlyDefinitions returns the tool set available only to app-project
// sessions, wired into the Phasic App Controller (C10) (§4.8).
func AppOnlyDefinitions(d Deps) []Definition {
	return []Definition{
		alterBlueprintTool(d),
		regenerateFileTool(d),
	}
}

func alterBlueprintTool(d Deps) Definition {
	return Definition{
		Name:        "alter_blueprint",
		Description: "Replace the structured project plan: a summary and an ordered list of step descriptions.",
		mcpTool: mcplib.NewTool("alter_blueprint",
			mcplib.WithDescription("Replace the structured project plan: a summary and an ordered list of step descriptions."),
			mcplib.WithString("summary", mcplib.Required(), mcplib.Description("One-paragraph summary of the plan.")),
			mcplib.WithString("steps", mcplib.Required(), mcplib.Description("JSON array of step description strings, in execution order.")),
		),
		Impl: func(ctx context.Context, args map[string]any) (any, *Error) {
			if d.AlterBlueprint == nil {
				return nil, NewError("alter_blueprint: not configured")
			}
			summary, _ := args["summary"].(string)
			steps := stringsArg(args, "steps")
			if err := d.AlterBlueprint(ctx, summary, steps); err != nil {
				return nil, NewError("alter_blueprint: %s", err)
			}
			return map[string]any{"altered": true}, nil
		},
	}
}

func regenerateFileTool(d Deps) Definition {
	return Definition{
		Name:        "regenerate_file",
		Description: "Regenerate a single file in place, following new instructions.",
		mcpTool: mcplib.NewTool("regenerate_file",
			mcplib.WithDescription("Regenerate a single file in place, following new instructions."),
			mcplib.WithString("path", mcplib.Required(), mcplib.Description("Relative path of the file to regenerate.")),
			mcplib.WithString("instructions", mcplib.Required(), mcplib.Description("What should change in the regenerated file.")),
		),
		Impl: func(ctx context.Context, args map[string]any) (any, *Error) {
			if d.RegenerateFile == nil {
				return nil, NewError("regenerate_file: not configured")
			}
			path, _ := args["path"].(string)
			instructions, _ := args["instructions"].(string)
			if err := d.RegenerateFile(ctx, path, instructions); err != nil {
				return nil, NewError("regenerate_file: %s", err)
			}
			return map[string]any{"regenerated": path}, nil
		},
	}
}
