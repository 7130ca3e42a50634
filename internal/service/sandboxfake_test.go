package service

import (
	"context"
	"sync"

	"github.com/Strob0t/CodeForge/internal/port/sandbox"
)

// fakeSandbox is an in-memory sandbox.Client used to verify the
// Deployment Manager and Deep-Debug Assistant's sequencing without a real
// sandbox HTTP endpoint, mirroring the cache package's own
// compliance-test-by-fake-implementation approach.
type fakeSandbox struct {
	mu sync.Mutex

	instanceCounter int
	writtenFiles    map[string]map[string]string // instanceID -> path -> contents
	executedCmds    map[string][][]string        // instanceID -> per-call command batches
	previewReady    bool
	previewURL      string
	runtimeErrors   []string
	packageJSON     string

	createInstanceErr error
	writeFilesErr     error
	writeFilesResult  sandbox.Result
	deployErr         error
}

func newFakeSandbox() *fakeSandbox {
	return &fakeSandbox{
		writtenFiles:     make(map[string]map[string]string),
		executedCmds:     make(map[string][][]string),
		previewReady:     true,
		previewURL:       "https://preview.example.dev",
		writeFilesResult: sandbox.Result{Success: true},
	}
}

func (f *fakeSandbox) CreateInstance(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createInstanceErr != nil {
		return "", f.createInstanceErr
	}
	f.instanceCounter++
	id := "instance-" + string(rune('0'+f.instanceCounter))
	f.writtenFiles[id] = make(map[string]string)
	return id, nil
}

func (f *fakeSandbox) GetFiles(_ context.Context, instanceID string, paths []string) (sandbox.FilesResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	files := make(map[string]string)
	for _, p := range paths {
		if p == "package.json" {
			files[p] = f.packageJSON
		}
	}
	return sandbox.FilesResult{Result: sandbox.Result{Success: true}, Files: files}, nil
}

func (f *fakeSandbox) WriteFiles(_ context.Context, instanceID string, files map[string]string) (sandbox.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeFilesErr != nil {
		return sandbox.Result{}, f.writeFilesErr
	}
	dst, ok := f.writtenFiles[instanceID]
	if !ok {
		dst = make(map[string]string)
		f.writtenFiles[instanceID] = dst
	}
	for path, contents := range files {
		dst[path] = contents
	}
	return f.writeFilesResult, nil
}

func (f *fakeSandbox) ExecuteCommands(_ context.Context, instanceID string, cmds []string, _ int) (sandbox.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executedCmds[instanceID] = append(f.executedCmds[instanceID], cmds)
	return sandbox.Result{Success: true}, nil
}

func (f *fakeSandbox) GetLogs(_ context.Context, _ string, _ bool, _ int) (sandbox.LogsResult, error) {
	return sandbox.LogsResult{Result: sandbox.Result{Success: true}}, nil
}

func (f *fakeSandbox) RunStaticAnalysis(_ context.Context, _ string, _ []string) (sandbox.AnalysisResult, error) {
	return sandbox.AnalysisResult{Result: sandbox.Result{Success: true}}, nil
}

func (f *fakeSandbox) FetchRuntimeErrors(_ context.Context, _ string, clear bool) (sandbox.RuntimeErrorsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	errs := f.runtimeErrors
	if clear {
		f.runtimeErrors = nil
	}
	return sandbox.RuntimeErrorsResult{Result: sandbox.Result{Success: true}, Errors: errs}, nil
}

func (f *fakeSandbox) UpdateProjectName(_ context.Context, _, _ string) (sandbox.Result, error) {
	return sandbox.Result{Success: true}, nil
}

func (f *fakeSandbox) Deploy(_ context.Context, _ string) (sandbox.DeployResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deployErr != nil {
		return sandbox.DeployResult{}, f.deployErr
	}
	return sandbox.DeployResult{Result: sandbox.Result{Success: true}, PreviewURL: f.previewURL}, nil
}

func (f *fakeSandbox) PreviewStatus(_ context.Context, _ string) (sandbox.PreviewStatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sandbox.PreviewStatusResult{Result: sandbox.Result{Success: true}, Ready: f.previewReady}, nil
}
