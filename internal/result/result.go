// Package result normalizes raw process outcomes into one OperationResult
// per operation and renders it as text.
package result

import (
	"fmt"
	"strings"

	"github.com/deixis/aptmcp/internal/runner"
)

// OperationResult is the terminal artifact of an operation. It is not
// modified once returned.
type OperationResult struct {
	Success bool     `json:"success"`
	Summary string   `json:"summary"`
	Stdout  string   `json:"stdout,omitempty"`
	Stderr  string   `json:"stderr,omitempty"`
	Logs    []string `json:"logs,omitempty"`
}

// Step is one named outcome in an ordered multi-step operation.
type Step struct {
	Name    string // e.g. "update", "upgrade"
	Outcome *runner.Outcome
}

// FromOutcome normalizes a single outcome. The failure summary is suffixed
// with the raw stderr, or the error message when stderr is empty.
func FromOutcome(out *runner.Outcome, success, failure string) *OperationResult {
	r := &OperationResult{
		Success: out.OK(),
		Summary: success,
		Stdout:  out.Stdout,
		Stderr:  out.Stderr,
	}
	if !r.Success {
		r.Summary = fmt.Sprintf("%s: %s", failure, out.Detail())
	}
	return r
}

// FromSteps normalizes an ordered sequence of step outcomes. The first failed
// step decides the result and only its streams are reported. When all steps
// succeed, stdout is labeled per step and non-empty stderr segments are
// joined with newlines.
func FromSteps(steps []Step, success string) *OperationResult {
	if len(steps) == 0 {
		return AggregationFailure("No steps were run", nil)
	}

	for _, s := range steps {
		if !s.Outcome.OK() {
			return &OperationResult{
				Success: false,
				Summary: fmt.Sprintf("Apt %s failed: %s", s.Name, s.Outcome.Detail()),
				Stdout:  s.Outcome.Stdout,
				Stderr:  s.Outcome.Stderr,
			}
		}
	}

	stdout := make([]string, 0, len(steps))
	var stderr []string
	for _, s := range steps {
		stdout = append(stdout, fmt.Sprintf("=== %s ===\n%s", s.Name, strings.TrimRight(s.Outcome.Stdout, "\n")))
		if e := strings.TrimRight(s.Outcome.Stderr, "\n"); strings.TrimSpace(e) != "" {
			stderr = append(stderr, e)
		}
	}

	return &OperationResult{
		Success: true,
		Summary: success,
		Stdout:  strings.Join(stdout, "\n"),
		Stderr:  strings.Join(stderr, "\n"),
	}
}

// AggregationFailure reports an internal fault while sequencing or fanning
// out sub-operations. It never carries stdout.
func AggregationFailure(summary string, err error) *OperationResult {
	if err != nil {
		summary = fmt.Sprintf("%s: %v", summary, err)
	}
	return &OperationResult{Success: false, Summary: summary}
}

// Succeeded builds a successful result with a composed report as stdout.
func Succeeded(summary, stdout string) *OperationResult {
	return &OperationResult{Success: true, Summary: summary, Stdout: stdout}
}

// WithLogs returns a copy of r carrying logs.
func (r *OperationResult) WithLogs(logs []string) *OperationResult {
	cp := *r
	if len(logs) > 0 {
		cp.Logs = append([]string(nil), logs...)
	}
	return &cp
}

// Render formats the result as text: the result line, the summary, then the
// stdout, stderr and logs blocks, each only when non-empty.
func (r *OperationResult) Render() string {
	var b strings.Builder

	if r.Success {
		fmt.Fprintln(&b, "Result: SUCCESS")
	} else {
		fmt.Fprintln(&b, "Result: ERROR")
	}
	fmt.Fprintf(&b, "Summary: %s\n", r.Summary)

	block := func(name, content string) {
		content = strings.TrimRight(content, "\n")
		if strings.TrimSpace(content) == "" {
			return
		}
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "[%s]\n", name)
		fmt.Fprintln(&b, content)
	}
	block("stdout", r.Stdout)
	block("stderr", r.Stderr)
	block("logs", strings.Join(r.Logs, "\n"))

	return b.String()
}
