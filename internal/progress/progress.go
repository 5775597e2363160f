// Package progress reports step counters for multi-step operations.
package progress

import (
	"context"
	"sync"
)

// Reporter receives {completed, total} step counters.
type Reporter interface {
	Report(ctx context.Context, completed, total int)
}

// Func adapts a function to a Reporter.
type Func func(ctx context.Context, completed, total int)

// Report calls f.
func (f Func) Report(ctx context.Context, completed, total int) {
	f(ctx, completed, total)
}

// Nop discards all progress.
var Nop Reporter = Func(func(context.Context, int, int) {})

// Tracker forwards progress for one operation and keeps it monotonic:
// completed never decreases and never exceeds total.
type Tracker struct {
	mu        sync.Mutex
	reporter  Reporter
	completed int
	total     int
}

// NewTracker returns a Tracker for an operation of total steps. A nil
// reporter discards progress.
func NewTracker(r Reporter, total int) *Tracker {
	if r == nil {
		r = Nop
	}
	return &Tracker{reporter: r, total: total}
}

// Start reports the initial 0/total state.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	completed, total := t.completed, t.total
	t.mu.Unlock()
	t.reporter.Report(ctx, completed, total)
}

// Step marks one more step as completed and reports it.
func (t *Tracker) Step(ctx context.Context) {
	t.Set(ctx, t.Completed()+1)
}

// Set reports completed steps. Values below the current count are ignored.
func (t *Tracker) Set(ctx context.Context, completed int) {
	t.mu.Lock()
	if completed > t.total {
		completed = t.total
	}
	if completed <= t.completed {
		t.mu.Unlock()
		return
	}
	t.completed = completed
	total := t.total
	t.mu.Unlock()
	t.reporter.Report(ctx, completed, total)
}

// Completed returns the number of completed steps.
func (t *Tracker) Completed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// Total returns the total number of steps.
func (t *Tracker) Total() int {
	return t.total
}
