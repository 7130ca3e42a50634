package service

import (
	"context"
	"sync"

	"github.com/Strob0t/CodeForge/internal/port/broadcast"
	"github.com/Strob0t/CodeForge/internal/port/llm"
)

// fakeLLM returns one scripted InferenceResult per call, in order,
// repeating the last one once the script is exhausted — enough to drive
// an AppController/WorkflowController run without a real model backend.
type fakeLLM struct {
	mu      sync.Mutex
	results []llm.InferenceResult
	calls   int
	err     error
}

func (f *fakeLLM) ExecuteInference(_ context.Context, _ llm.InferenceRequest) (llm.InferenceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return llm.InferenceResult{}, f.err
	}
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	if idx < 0 {
		return llm.InferenceResult{}, nil
	}
	return f.results[idx], nil
}

// fakeBroadcaster records every event fired through it, for assertions on
// the event sequence a controller run produced.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []fakeEvent
}

type fakeEvent struct {
	Type    string
	Payload any
}

func (b *fakeBroadcaster) BroadcastEvent(_ context.Context, eventType string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, fakeEvent{Type: eventType, Payload: payload})
}

func (b *fakeBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.Type
	}
	return out
}

var _ broadcast.Broadcaster = (*fakeBroadcaster)(nil)
