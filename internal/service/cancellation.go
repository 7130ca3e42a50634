package service

import (
	"context"
	"sync"
)

// CancellationController is the Cancellation Controller (C6): a single
// reusable cancellation token per in-flight top-level operation. Grounded
// on the small mutex-guarded state-machine shape of
// internal/resilience.Breaker and on context.WithCancel usage throughout
// the teacher's runtime execution path.
type CancellationController struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCancellationController returns an idle controller with no live token.
func NewCancellationController() *CancellationController {
	return &CancellationController{}
}

// GetOrCreate returns the current non-aborted token, or mints a new one
// derived from parent if none is live.
func (c *CancellationController) GetOrCreate(parent context.Context) (context.Context, context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx != nil && c.ctx.Err() == nil {
		return c.ctx, c.cancel
	}

	ctx, cancel := context.WithCancel(parent)
	c.ctx = ctx
	c.cancel = cancel
	return ctx, cancel
}

// Cancel aborts the current token and discards it. Calling Cancel twice is
// a no-op on the second call.
func (c *CancellationController) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel == nil {
		return
	}
	c.cancel()
	c.ctx = nil
	c.cancel = nil
}
