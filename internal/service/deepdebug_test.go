package service

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/CodeForge/internal/domain/agentsession"
	"github.com/Strob0t/CodeForge/internal/port/llm"
)

type stubLLM struct {
	text string
}

func (s *stubLLM) ExecuteInference(ctx context.Context, req llm.InferenceRequest) (llm.InferenceResult, error) {
	return llm.InferenceResult{Text: s.text}, nil
}

func newTestAppStore() *StateStore[agentsession.AppState] {
	return NewStateStore[agentsession.AppState]("sess-1", "app", agentsession.AppState{}, nil, discardLogger())
}

func TestDeepDebugSingleFlightJoin(t *testing.T) {
	states := newTestAppStore()
	d := NewDeepDebugAssistant[agentsession.AppState](
		"sess-1", states, nil, &stubLLM{text: "diagnosis"}, discardLogger(),
		func(s agentsession.AppState) agentsession.BaseState { return s.BaseState },
		func(s *agentsession.AppState, b agentsession.BaseState) { s.BaseState = b },
	)

	ctx := context.Background()
	if err := d.Start(ctx, "things are broken", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// A second Start call while the first is running must be a no-op, not
	// a second goroutine stomping on d.result.
	if err := d.Start(ctx, "another issue", nil); err != nil {
		t.Fatalf("Start (re-entrant): %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	transcript, err := d.Wait(waitCtx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if transcript != "diagnosis" {
		t.Errorf("got transcript %q, want %q", transcript, "diagnosis")
	}

	if got := states.Get().LastDeepDebugTranscript; got != "diagnosis" {
		t.Errorf("LastDeepDebugTranscript = %q, want %q", got, "diagnosis")
	}
}
