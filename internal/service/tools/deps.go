package tools

import "context"

// Deps is the set of session capabilities tool implementations call into.
// It is plain closures rather than concrete service types because the
// services it wraps (FileManager[T], DeploymentManager[T]) are generic
// over the session's variant state — the session-wiring code supplies
// these closures once, at construction, the same way it supplies
// FileManager's getFiles/setFiles accessors.
type Deps struct {
	// Files
	GetFile       func(path string) (contents string, ok bool)
	ListFiles     func() []string
	SaveFile      func(ctx context.Context, path, contents, purpose, commitMessage string) error
	GenerateFiles func(ctx context.Context, files map[string]string, commitMessage string) error
	DeleteFile    func(ctx context.Context, path, commitMessage string) error

	// Deployment
	DeployPreview      func(ctx context.Context, clearLogs bool) (previewURL string, err error)
	WaitForPreview     func(ctx context.Context) (previewURL string, err error)
	WaitForGeneration  func(ctx context.Context) (done bool, err error)
	GetLogs            func(ctx context.Context, reset bool, durationSeconds int) ([]string, error)
	FetchRuntimeErrors func(ctx context.Context, clear bool) ([]string, error)

	// Project / conversation
	RenameProject  func(ctx context.Context, name string) error
	QueueUserInput func(ctx context.Context, text string) error

	// Deep debug (C12); WaitForDebug blocks until the in-flight debug
	// transcript is ready, matching C12's single-flight join semantics.
	StartDeepDebug func(ctx context.Context, focusPaths []string) error
	WaitForDebug   func(ctx context.Context) (transcript string, err error)

	// App-only (C10)
	AlterBlueprint func(ctx context.Context, summary string, steps []string) error
	RegenerateFile func(ctx context.Context, path, instructions string) error

	// Workflow-only (C11)
	ConfigureWorkflowMetadata func(ctx context.Context, jsonMetadata string) error

	// External collaborators with no dedicated port of their own, grounded
	// on the teacher's internal/domain/context.pack as the shape for
	// "opaque external context fetched by reference".
	WebSearch func(ctx context.Context, query string) (string, error)

	// git (safe, read-only subset: full log and per-file log — no diff,
	// show, checkout, reset or push, since the session's only writable VCS
	// is its own C4 store).
	GitLog func(ctx context.Context) ([]string, error)
	GitLogFile func(ctx context.Context, path string) ([]string, error)
}
