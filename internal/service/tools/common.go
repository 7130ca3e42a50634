package tools

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// boolArg and intArg parse the string-typed args the LLM passes (every
// declared argument is a JSON-schema string — see registry.go's validate,
// which only has mcp-go's WithString builder available from the grounding
// source) into the native type an implementation needs. An empty/missing
// value falls back to the given default rather than erroring, since these
// are all optional flags.
func boolArg(args map[string]any, name string, def bool) bool {
	v, ok := args[name].(string)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func intArg(args map[string]any, name string, def int) int {
	v, ok := args[name].(string)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func stringsArg(args map[string]any, name string) []string {
	v, ok := args[name].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return strings.Split(v, ",")
	}
	return out
}

// CommonDefinitions returns the tool set available to every session,
// regardless of project type (§4.8).
func CommonDefinitions(d Deps) []Definition {
	return []Definition{
		generateFilesTool(d),
		webSearchTool(d),
		feedbackTool(d),
		queueRequestTool(d),
		getLogsTool(d),
		deployPreviewTool(d),
		waitForGenerationTool(d),
		waitForDebugTool(d),
		renameProjectTool(d),
		gitTool(d),
		deepDebuggerTool(d),
	}
}

// generateFilesTool writes one or more files in a single commit. Not named
// in §4.8's per-variant tool lists, but required by §4.10's "the LLM must
// call generate_files (producing src/index.ts)" — implemented once, here,
// since both the Phasic App Controller's implement step and the Agentic
// Workflow Controller's single dialogue need the same bulk-write
// primitive.
func generateFilesTool(d Deps) Definition {
	return Definition{
		Name:        "generate_files",
		Description: "Write one or more generated files in a single commit.",
		mcpTool: mcplib.NewTool("generate_files",
			mcplib.WithDescription("Write one or more generated files in a single commit."),
			mcplib.WithString("files", mcplib.Required(), mcplib.Description("JSON object mapping relative file path to file contents.")),
			mcplib.WithString("commit_message", mcplib.Description("Commit message; defaults to \"generate files\".")),
		),
		Impl: func(ctx context.Context, args map[string]any) (any, *Error) {
			if d.GenerateFiles == nil {
				return nil, NewError("generate_files: not configured")
			}
			raw, _ := args["files"].(string)
			var files map[string]string
			if err := json.Unmarshal([]byte(raw), &files); err != nil {
				return nil, NewError("generate_files: invalid files object: %s", err)
			}
			msg, _ := args["commit_message"].(string)
			if msg == "" {
				msg = "generate files"
			}
			if err := d.GenerateFiles(ctx, files, msg); err != nil {
				return nil, NewError("generate_files: %s", err)
			}
			paths := make([]string, 0, len(files))
			for p := range files {
				paths = append(paths, p)
			}
			return map[string]any{"paths": paths}, nil
		},
	}
}

func webSearchTool(d Deps) Definition {
	return Definition{
		Name:        "web_search",
		Description: "Search the web for up-to-date information relevant to the current generation task.",
		mcpTool: mcplib.NewTool("web_search",
			mcplib.WithDescription("Search the web for up-to-date information relevant to the current generation task."),
			mcplib.WithString("query", mcplib.Required(), mcplib.Description("The search query.")),
		),
		Impl: func(ctx context.Context, args map[string]any) (any, *Error) {
			if d.WebSearch == nil {
				return nil, NewError("web_search: not configured")
			}
			q, _ := args["query"].(string)
			result, err := d.WebSearch(ctx, q)
			if err != nil {
				return nil, NewError("web_search: %s", err)
			}
			return map[string]any{"result": result}, nil
		},
	}
}

func feedbackTool(d Deps) Definition {
	return Definition{
		Name:        "feedback",
		Description: "Record free-form feedback about the current session into the conversation log.",
		mcpTool: mcplib.NewTool("feedback",
			mcplib.WithDescription("Record free-form feedback about the current session into the conversation log."),
			mcplib.WithString("message", mcplib.Required(), mcplib.Description("The feedback text.")),
		),
		Impl: func(ctx context.Context, args map[string]any) (any, *Error) {
			if d.QueueUserInput == nil {
				return nil, NewError("feedback: not configured")
			}
			msg, _ := args["message"].(string)
			if err := d.QueueUserInput(ctx, msg); err != nil {
				return nil, NewError("feedback: %s", err)
			}
			return map[string]any{"recorded": true}, nil
		},
	}
}

func queueRequestTool(d Deps) Definition {
	return Definition{
		Name:        "queue_request",
		Description: "Queue a follow-up user request to be merged in at the next safe point.",
		mcpTool: mcplib.NewTool("queue_request",
			mcplib.WithDescription("Queue a follow-up user request to be merged in at the next safe point."),
			mcplib.WithString("text", mcplib.Required(), mcplib.Description("The request text.")),
		),
		Impl: func(ctx context.Context, args map[string]any) (any, *Error) {
			if d.QueueUserInput == nil {
				return nil, NewError("queue_request: not configured")
			}
			text, _ := args["text"].(string)
			if err := d.QueueUserInput(ctx, text); err != nil {
				return nil, NewError("queue_request: %s", err)
			}
			return map[string]any{"queued": true}, nil
		},
	}
}

func getLogsTool(d Deps) Definition {
	return Definition{
		Name:        "get_logs",
		Description: "Fetch accumulated sandbox stdout/stderr, optionally clearing the buffer after read.",
		mcpTool: mcplib.NewTool("get_logs",
			mcplib.WithDescription("Fetch accumulated sandbox stdout/stderr, optionally clearing the buffer after read."),
			mcplib.WithString("reset", mcplib.Description("\"true\" to clear the buffer after reading; default \"false\".")),
			mcplib.WithString("duration_seconds", mcplib.Description("Only return log lines from the last N seconds; 0 means all.")),
		),
		Impl: func(ctx context.Context, args map[string]any) (any, *Error) {
			if d.GetLogs == nil {
				return nil, NewError("get_logs: not configured")
			}
			lines, err := d.GetLogs(ctx, boolArg(args, "reset", false), intArg(args, "duration_seconds", 0))
			if err != nil {
				return nil, NewError("get_logs: %s", err)
			}
			return map[string]any{"lines": lines}, nil
		},
	}
}

func deployPreviewTool(d Deps) Definition {
	return Definition{
		Name:        "deploy_preview",
		Description: "Push the current generated files to the sandbox and wait for a preview URL.",
		mcpTool: mcplib.NewTool("deploy_preview",
			mcplib.WithDescription("Push the current generated files to the sandbox and wait for a preview URL."),
			mcplib.WithString("clear_logs", mcplib.Description("\"true\" to clear sandbox logs before deploying; default \"false\".")),
		),
		Impl: func(ctx context.Context, args map[string]any) (any, *Error) {
			if d.DeployPreview == nil {
				return nil, NewError("deploy_preview: not configured")
			}
			url, err := d.DeployPreview(ctx, boolArg(args, "clear_logs", false))
			if err != nil {
				return nil, NewError("deploy_preview: %s", err)
			}
			return map[string]any{"previewUrl": url}, nil
		},
	}
}

func waitForGenerationTool(d Deps) Definition {
	return Definition{
		Name:        "wait_for_generation",
		Description: "Block until the current generation operation completes or is cancelled.",
		mcpTool: mcplib.NewTool("wait_for_generation",
			mcplib.WithDescription("Block until the current generation operation completes or is cancelled.")),
		Impl: func(ctx context.Context, args map[string]any) (any, *Error) {
			if d.WaitForGeneration == nil {
				return nil, NewError("wait_for_generation: not configured")
			}
			done, err := d.WaitForGeneration(ctx)
			if err != nil {
				return nil, NewError("wait_for_generation: %s", err)
			}
			return map[string]any{"done": done}, nil
		},
	}
}

// waitForDebugTool has a deliberately separate contract from cancellation:
// cancelling the main operation does not abort an in-flight deep-debug
// session (§9), so this tool joins whatever deep_debugger already started.
func waitForDebugTool(d Deps) Definition {
	return Definition{
		Name:        "wait_for_debug",
		Description: "Block until the in-flight deep-debug session produces its transcript.",
		mcpTool: mcplib.NewTool("wait_for_debug",
			mcplib.WithDescription("Block until the in-flight deep-debug session produces its transcript.")),
		Impl: func(ctx context.Context, args map[string]any) (any, *Error) {
			if d.WaitForDebug == nil {
				return nil, NewError("wait_for_debug: not configured")
			}
			transcript, err := d.WaitForDebug(ctx)
			if err != nil {
				return nil, NewError("wait_for_debug: %s", err)
			}
			return map[string]any{"transcript": transcript}, nil
		},
	}
}

func renameProjectTool(d Deps) Definition {
	return Definition{
		Name:        "rename_project",
		Description: "Rename the project, propagating the new name to the sandbox instance.",
		mcpTool: mcplib.NewTool("rename_project",
			mcplib.WithDescription("Rename the project, propagating the new name to the sandbox instance."),
			mcplib.WithString("name", mcplib.Required(), mcplib.Description("The new project name.")),
		),
		Impl: func(ctx context.Context, args map[string]any) (any, *Error) {
			if d.RenameProject == nil {
				return nil, NewError("rename_project: not configured")
			}
			name, _ := args["name"].(string)
			if err := d.RenameProject(ctx, name); err != nil {
				return nil, NewError("rename_project: %s", err)
			}
			return map[string]any{"renamed": true}, nil
		},
	}
}

// gitTool exposes only the safe, read-only subset named in §4.8: log and
// per-file log. The session's only writable VCS is its own embedded store
// (C4); there is no checkout/reset/push surface to expose.
func gitTool(d Deps) Definition {
	return Definition{
		Name:        "git",
		Description: "Read-only git-style history inspection: log, or log for a single file path.",
		mcpTool: mcplib.NewTool("git",
			mcplib.WithDescription("Read-only git-style history inspection: log, or log for a single file path."),
			mcplib.WithString("path", mcplib.Description("If set, scope the log to this file path; otherwise return the full commit log.")),
		),
		Impl: func(ctx context.Context, args map[string]any) (any, *Error) {
			path, _ := args["path"].(string)
			if path != "" {
				if d.GitLogFile == nil {
					return nil, NewError("git: not configured")
				}
				entries, err := d.GitLogFile(ctx, path)
				if err != nil {
					return nil, NewError("git: %s", err)
				}
				return map[string]any{"log": entries}, nil
			}
			if d.GitLog == nil {
				return nil, NewError("git: not configured")
			}
			entries, err := d.GitLog(ctx)
			if err != nil {
				return nil, NewError("git: %s", err)
			}
			return map[string]any{"log": entries}, nil
		},
	}
}

func deepDebuggerTool(d Deps) Definition {
	return Definition{
		Name:        "deep_debugger",
		Description: "Start a focused deep-debug session over the given files and wait for its transcript.",
		mcpTool: mcplib.NewTool("deep_debugger",
			mcplib.WithDescription("Start a focused deep-debug session over the given files and wait for its transcript."),
			mcplib.WithString("focus_paths", mcplib.Description("JSON array (or comma-separated list) of file paths to focus the debug session on.")),
		),
		Impl: func(ctx context.Context, args map[string]any) (any, *Error) {
			if d.StartDeepDebug == nil || d.WaitForDebug == nil {
				return nil, NewError("deep_debugger: not configured")
			}
			if err := d.StartDeepDebug(ctx, stringsArg(args, "focus_paths")); err != nil {
				return nil, NewError("deep_debugger: %s", err)
			}
			transcript, err := d.WaitForDebug(ctx)
			if err != nil {
				return nil, NewError("deep_debugger: %s", err)
			}
			return map[string]any{"transcript": transcript}, nil
		},
	}
}
