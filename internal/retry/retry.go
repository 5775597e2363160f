// Package retry re-runs a command once when it failed on a transient
// package database lock.
package retry

import (
	"context"
	"time"

	"github.com/deixis/aptmcp/internal/metrics"
	"github.com/deixis/aptmcp/internal/runner"
)

// Defaults for the retry policy.
const (
	DefaultMaxRetries = 1
	DefaultDelay      = 1000 * time.Millisecond
)

// Invoker runs one command. Implemented by runner.Runner.
type Invoker interface {
	Run(ctx context.Context, spec runner.CommandSpec) *runner.Outcome
}

// NotifyFunc is called before each retry with the attempt number about to
// run (starting at 2) and the outcome that triggered it.
type NotifyFunc func(attempt int, spec runner.CommandSpec, prev *runner.Outcome)

// Policy wraps an Invoker with the lock-contention retry.
type Policy struct {
	Invoker    Invoker
	MaxRetries int                 // additional attempts; negative disables retries
	Delay      time.Duration       // fixed wait between attempts
	Classify   Classifier          // nil uses LockContention
	Sleep      func(time.Duration) // nil uses time.Sleep
}

// New returns a Policy with the default budget, delay and classifier.
func New(inv Invoker) *Policy {
	return &Policy{
		Invoker:    inv,
		MaxRetries: DefaultMaxRetries,
		Delay:      DefaultDelay,
		Classify:   LockContention,
	}
}

// Decide classifies an outcome. Only processes that ran and exited non-zero
// can be transient; spawn failures, overflows and timeouts are terminal.
func (p *Policy) Decide(out *runner.Outcome) Decision {
	if out.OK() || out.Err.Kind != runner.ExitFailure {
		return Terminal
	}
	classify := p.Classify
	if classify == nil {
		classify = LockContention
	}
	return classify(out.Err.RawStderr)
}

// Run invokes spec and retries while the outcome is transient and budget
// remains. The last outcome is returned whatever its result.
func (p *Policy) Run(ctx context.Context, spec runner.CommandSpec, notify NotifyFunc) *runner.Outcome {
	out := p.Invoker.Run(ctx, spec)
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		if p.Decide(out) != Transient {
			return out
		}
		if notify != nil {
			notify(attempt+1, spec, out)
		}
		metrics.Retries.Inc()
		p.sleep(p.Delay)
		out = p.Invoker.Run(ctx, spec)
	}
	return out
}

func (p *Policy) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if p.Sleep != nil {
		p.Sleep(d)
		return
	}
	time.Sleep(d)
}
