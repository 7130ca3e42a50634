package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Strob0t/CodeForge/internal/domain/agentsession"
	"github.com/Strob0t/CodeForge/internal/port/llm"
	"github.com/Strob0t/CodeForge/internal/port/sandbox"
)

// DeepDebugResult is the {success, transcript} | {success, error} outcome
// of one deep-debug run (§4.11).
type DeepDebugResult struct {
	Success    bool
	Transcript string
	Error      string
}

// DeepDebugAssistant is the Deep-Debug Assistant (C12): single-flight
// guarded so only one debug session runs per session at a time; a second
// caller joins the first rather than starting a duplicate. Grounded on
// the single-flight shape already used by internal/resilience.Breaker and
// internal/service.CancellationController for mutex-guarded per-session
// state, generalized here to a join-in-flight pattern via sync.WaitGroup
// since join (not cancel-and-replace) is what §4.11 calls for.
type DeepDebugAssistant[T Cloneable[T]] struct {
	sessionID string
	states    *StateStore[T]
	sandbox   sandbox.Client
	llmc      llm.Client
	log       *slog.Logger

	getBase func(T) agentsession.BaseState
	setBase func(*T, agentsession.BaseState)

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
	result  DeepDebugResult
}

// NewDeepDebugAssistant wires C12 from its collaborators.
func NewDeepDebugAssistant[T Cloneable[T]](
	sessionID string,
	states *StateStore[T],
	sandboxClient sandbox.Client,
	llmc llm.Client,
	log *slog.Logger,
	getBase func(T) agentsession.BaseState,
	setBase func(*T, agentsession.BaseState),
) *DeepDebugAssistant[T] {
	return &DeepDebugAssistant[T]{
		sessionID: sessionID, states: states, sandbox: sandboxClient, llmc: llmc, log: log,
		getBase: getBase, setBase: setBase,
	}
}

// Start launches a debug session over focusPaths if none is already in
// flight; re-entry while one is running is a no-op — the caller is
// expected to join it via Wait (§4.11: "re-entry is forbidden and a
// second call awaits the first"). ctx is accepted for cancellation of the
// Start call itself (there is none to do here) but is never passed to
// run: the debug goroutine runs on its own detached context so a
// stop_generation cancelling the caller's operation context does not
// abort it early.
func (d *DeepDebugAssistant[T]) Start(ctx context.Context, issue string, focusPaths []string) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	d.wg.Add(1)
	d.mu.Unlock()

	go d.run(context.Background(), issue, focusPaths)
	return nil
}

// Wait blocks until the in-flight (or just-finished) session's transcript
// is available.
func (d *DeepDebugAssistant[T]) Wait(ctx context.Context) (string, error) {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-done:
	}

	d.mu.Lock()
	res := d.result
	d.mu.Unlock()

	if !res.Success {
		return "", fmt.Errorf("deep debug: %s", res.Error)
	}
	return res.Transcript, nil
}

// run is the debug procedure (§4.11): fetch runtime errors with
// clear=true, build a focus-path-filtered files index, run a tool-using
// LLM loop (here a single turn, since C12 has no tool set of its own
// beyond reading already-fetched context), persist the transcript.
// Cancellation of the caller's main operation context does not abort this
// goroutine's own context — it was started detached from runCtx on
// purpose, per §9's "cancellation does not propagate to a deep-debug
// session".
func (d *DeepDebugAssistant[T]) run(ctx context.Context, issue string, focusPaths []string) {
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
		d.wg.Done()
	}()

	base := d.getBase(d.states.Get())
	var runtimeErrors []string
	if base.SandboxInstanceID != "" && d.sandbox != nil {
		res, err := d.sandbox.FetchRuntimeErrors(ctx, base.SandboxInstanceID, true)
		if err != nil {
			d.finish(DeepDebugResult{Success: false, Error: fmt.Sprintf("fetch runtime errors: %s", err)})
			return
		}
		runtimeErrors = res.Errors
	}

	files := filterByFocus(base.GeneratedFilesMap, focusPaths)

	prompt := buildDebugPrompt(issue, runtimeErrors, files)
	result, err := d.llmc.ExecuteInference(ctx, llm.InferenceRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		d.finish(DeepDebugResult{Success: false, Error: err.Error()})
		return
	}

	d.states.UpdateField(ctx, func(state *T) {
		b := d.getBase(*state)
		b.LastDeepDebugTranscript = result.Text
		d.setBase(state, b)
	})
	d.finish(DeepDebugResult{Success: true, Transcript: result.Text})
}

func (d *DeepDebugAssistant[T]) finish(res DeepDebugResult) {
	d.mu.Lock()
	d.result = res
	d.mu.Unlock()
}

func filterByFocus(files map[string]agentsession.FileRecord, focusPaths []string) map[string]string {
	out := make(map[string]string)
	for path, rec := range files {
		if len(focusPaths) == 0 || hasAnyPrefix(path, focusPaths) {
			out[path] = rec.FileContents
		}
	}
	return out
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func buildDebugPrompt(issue string, runtimeErrors []string, files map[string]string) string {
	var b strings.Builder
	b.WriteString("Issue: ")
	b.WriteString(issue)
	b.WriteString("\n\nRuntime errors:\n")
	for _, e := range runtimeErrors {
		b.WriteString("- ")
		b.WriteString(e)
		b.WriteString("\n")
	}
	b.WriteString("\nFiles in scope:\n")
	for path := range files {
		b.WriteString("- ")
		b.WriteString(path)
		b.WriteString("\n")
	}
	return b.String()
}
