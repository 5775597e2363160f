// Package apt implements the package management operations. Each operation
// composes one or more package manager invocations through the retry policy
// and normalizes their outcomes into a single result. It is consumed by both
// the MCP server and the CLI commands.
package apt

import (
	"context"

	"github.com/deixis/aptmcp/internal/config"
	"github.com/deixis/aptmcp/internal/result"
	"github.com/deixis/aptmcp/internal/retry"
	"github.com/deixis/aptmcp/internal/runner"
)

// Engine holds shared dependencies for all operations.
type Engine struct {
	Config *config.Config
	Retry  *retry.Policy
}

// NewEngine returns an Engine running commands through inv with the default
// retry policy, extended by the configured transient signatures.
func NewEngine(cfg *config.Config, inv retry.Invoker) *Engine {
	if cfg == nil {
		cfg = &config.Config{}
	}
	p := retry.New(inv)
	if len(cfg.Retry.Signatures) > 0 {
		p.Classify = retry.Signatures(cfg.Retry.Signatures...)
	}
	return &Engine{Config: cfg, Retry: p}
}

// privileged builds a spec elevated with the configured privilege prefix.
func (e *Engine) privileged(argv ...string) runner.CommandSpec {
	prefix := e.Config.PrivilegePrefix()
	full := make([]string, 0, len(prefix)+len(argv))
	full = append(full, prefix...)
	full = append(full, argv...)
	return runner.CommandSpec{Argv: full}
}

// local builds a spec run as the current user.
func (e *Engine) local(argv ...string) runner.CommandSpec {
	return runner.CommandSpec{Argv: argv}
}

// exec runs spec through the retry policy. A retry is logged as a warning
// on the request's journal before the next attempt.
func (e *Engine) exec(ctx context.Context, req Request, spec runner.CommandSpec) *runner.Outcome {
	req.journal.enter(result.StateRunning)
	return e.Retry.Run(ctx, spec, func(attempt int, spec runner.CommandSpec, prev *runner.Outcome) {
		req.journal.enter(result.StateRetrying)
		req.Log.Warn("Package database locked, retrying",
			"command", spec.String(),
			"attempt", attempt,
			"delay", e.Retry.Delay.String(),
			"stderr", prev.Detail(),
		)
	})
}

// invoke runs spec once, bypassing the retry policy.
func (e *Engine) invoke(ctx context.Context, spec runner.CommandSpec) *runner.Outcome {
	return e.Retry.Invoker.Run(ctx, spec)
}
