// Package sandbox defines the Sandbox Client port (C8): a thin contract
// facade for the external sandbox execution service. No exceptions cross
// this boundary — every method except CreateInstance returns a Result
// carrying Success/Error alongside its transport error.
package sandbox

import "context"

// Result is the generic {success, ...} envelope every sandbox operation
// returns. Error is set only when Success is false.
type Result struct {
	Success bool
	Error   string
}

// LogsResult carries the sandbox's accumulated stdout/stderr.
type LogsResult struct {
	Result
	Lines []string
}

// FilesResult carries file contents read back from the sandbox.
type FilesResult struct {
	Result
	Files map[string]string // path -> contents
}

// AnalysisResult carries static-analysis findings.
type AnalysisResult struct {
	Result
	Findings []string
}

// RuntimeErrorsResult carries runtime errors observed since the last clear.
type RuntimeErrorsResult struct {
	Result
	Errors []string
}

// DeployResult carries the outcome of a deploy call.
type DeployResult struct {
	Result
	PreviewURL string
}

// PreviewStatusResult reports whether the preview is ready.
type PreviewStatusResult struct {
	Result
	Ready bool
}

// Client is the port interface for the external sandbox service.
type Client interface {
	CreateInstance(ctx context.Context) (instanceID string, err error)
	GetFiles(ctx context.Context, instanceID string, paths []string) (FilesResult, error)
	WriteFiles(ctx context.Context, instanceID string, files map[string]string) (Result, error)
	ExecuteCommands(ctx context.Context, instanceID string, cmds []string, timeout int) (Result, error)
	GetLogs(ctx context.Context, instanceID string, reset bool, durationSeconds int) (LogsResult, error)
	RunStaticAnalysis(ctx context.Context, instanceID string, files []string) (AnalysisResult, error)
	FetchRuntimeErrors(ctx context.Context, instanceID string, clear bool) (RuntimeErrorsResult, error)
	UpdateProjectName(ctx context.Context, instanceID, name string) (Result, error)
	Deploy(ctx context.Context, instanceID string) (DeployResult, error)
	PreviewStatus(ctx context.Context, instanceID string) (PreviewStatusResult, error)
}
