package gitexec

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent git invocations with a weighted semaphore.
// Executors for different workspaces can share one Pool so simultaneous
// checkpoint and session operations cannot exhaust process slots.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a Pool allowing at most limit concurrent invocations.
func NewPool(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit))}
}

// Run acquires a slot, runs fn, and releases the slot. A nil pool runs
// fn directly. Returns ctx.Err() if cancelled while waiting.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	if p == nil || p.sem == nil {
		return fn()
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}
