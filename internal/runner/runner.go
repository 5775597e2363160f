// Package runner executes a single external command with bounded output
// capture and reports the result as an Outcome. It never returns a Go error:
// spawn failures, non-zero exits and output overflows are all unsuccessful
// outcomes.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/deixis/aptmcp/internal/metrics"
	"github.com/deixis/aptmcp/internal/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxOutput is the per-stream output limit used when neither the
// CommandSpec nor the runner sets one.
const DefaultMaxOutput = 10 << 20 // 10 MB

// Runner executes commands as child processes.
type Runner struct {
	Timeout   time.Duration     // 0 disables the timeout
	MaxOutput int               // bytes per stream
	Env       map[string]string // applied to every command before spec overrides
}

// Run executes spec and waits for the process to exit.
func (r *Runner) Run(ctx context.Context, spec CommandSpec) *Outcome {
	out := &Outcome{
		RunID:   uuid.New().String(),
		Command: spec.String(),
	}

	ctx, span := tracing.Tracer().Start(ctx, "runner.Run", trace.WithAttributes(
		attribute.String("command", out.Command),
		attribute.String("run.id", out.RunID),
	))
	start := time.Now()
	defer func() {
		out.Duration = time.Since(start)
		label := "success"
		if out.Err != nil {
			label = out.Err.Kind.String()
			span.SetStatus(codes.Error, out.Err.Message)
		}
		metrics.ProcessInvocations.WithLabelValues(label).Inc()
		metrics.ProcessDuration.WithLabelValues(label).Observe(out.Duration.Seconds())
		span.End()
	}()

	if len(spec.Argv) == 0 {
		out.Err = &ErrorInfo{Kind: SpawnFailure, ExitCode: -1, Message: "empty argv"}
		return out
	}

	limit := spec.MaxOutput
	if limit <= 0 {
		limit = r.MaxOutput
	}
	if limit <= 0 {
		limit = DefaultMaxOutput
	}

	// Caller cancellation is not forwarded to the child process.
	procCtx := context.WithoutCancel(ctx)
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		procCtx, cancel = context.WithTimeout(procCtx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(procCtx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Env = r.environ(spec.Env)

	stdout := &limitWriter{limit: limit}
	stderr := &limitWriter{limit: limit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		out.Err = &ErrorInfo{
			Kind:     SpawnFailure,
			ExitCode: -1,
			Message:  fmt.Sprintf("starting %s: %v", spec.Argv[0], err),
		}
		return out
	}
	waitErr := cmd.Wait()

	out.Stdout = stdout.buf.String()
	out.Stderr = stderr.buf.String()

	switch {
	case errors.Is(procCtx.Err(), context.DeadlineExceeded):
		out.Err = &ErrorInfo{
			Kind:      Timeout,
			ExitCode:  -1,
			Message:   fmt.Sprintf("%s timed out after %s", spec.Argv[0], r.Timeout),
			RawStderr: out.Stderr,
		}
	case stdout.overflow || stderr.overflow:
		stream := "stdout"
		if !stdout.overflow {
			stream = "stderr"
		}
		out.Err = &ErrorInfo{
			Kind:      OutputOverflow,
			ExitCode:  exitCode(waitErr),
			Message:   fmt.Sprintf("%s of %s exceeded the output limit of %d bytes", stream, spec.Argv[0], limit),
			RawStderr: out.Stderr,
		}
	case waitErr != nil:
		code := exitCode(waitErr)
		out.Err = &ErrorInfo{
			Kind:      ExitFailure,
			ExitCode:  code,
			Message:   fmt.Sprintf("command failed with exit code %d: %s", code, out.Command),
			RawStderr: out.Stderr,
		}
	}
	return out
}

// environ merges the process environment with runner and spec overrides.
// Keys are appended in sorted order so the result is deterministic; exec
// keeps the last value for duplicated keys.
func (r *Runner) environ(overrides map[string]string) []string {
	env := os.Environ()
	for _, m := range []map[string]string{r.Env, overrides} {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			env = append(env, k+"="+m[k])
		}
	}
	return env
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// limitWriter writes up to limit bytes to buf, then records the overflow
// and discards the rest.
type limitWriter struct {
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (w *limitWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if len(p) > remaining {
		w.overflow = true
		if remaining > 0 {
			w.buf.Write(p[:remaining])
		}
		// Report all bytes as consumed to avoid short write errors from io.Copy.
		return len(p), nil
	}
	return w.buf.Write(p)
}
