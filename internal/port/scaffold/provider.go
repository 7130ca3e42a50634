// Package scaffold defines the Scaffold Provider port (C4.17): given
// project-type-specific inputs, returns the deterministic starter file set.
// Byte contents of scaffolds are an external collaborator's concern per
// spec; this package only fixes the contract shape.
package scaffold

import "github.com/Strob0t/CodeForge/internal/domain/agentsession"

// Request describes the inputs needed to render a scaffold. WorkflowCode
// and Metadata are workflow-only and empty for app scaffolds.
type Request struct {
	ProjectType        agentsession.ProjectType
	WorkflowName        string
	WorkflowClassName   string
	WorkflowCode        string
	Metadata            *agentsession.WorkflowMetadata
}

// Result is the rendered scaffold: the full file set plus metadata useful
// to callers (a displayable tree, inferred dependencies, and files the
// caller should treat specially).
type Result struct {
	AllFiles        map[string]string // path -> contents
	FileTree        []string          // paths, for display
	Deps            []string          // inferred package dependencies
	ImportantFiles  []string          // paths worth surfacing to the user
	DontTouchFiles  []string          // paths the LLM must not regenerate
}

// Provider renders a scaffold deterministically: Render(x) == Render(x)
// byte-for-byte (§8).
type Provider interface {
	Render(req Request) (Result, error)
}
