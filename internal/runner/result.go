package runner

import (
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies why a command did not succeed.
type ErrorKind int

const (
	// SpawnFailure means the executable could not be started at all.
	SpawnFailure ErrorKind = iota + 1
	// ExitFailure means the process ran and exited non-zero.
	ExitFailure
	// OutputOverflow means stdout or stderr exceeded the output limit.
	OutputOverflow
	// Timeout means the process was killed after the configured timeout.
	Timeout
)

func (k ErrorKind) String() string {
	switch k {
	case SpawnFailure:
		return "spawn"
	case ExitFailure:
		return "exit"
	case OutputOverflow:
		return "overflow"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ErrorInfo describes an unsuccessful command. It carries the raw stderr so
// the outcome can be classified without re-parsing.
type ErrorInfo struct {
	Kind      ErrorKind
	ExitCode  int // -1 when the process never exited normally
	Message   string
	RawStderr string
}

func (e *ErrorInfo) Error() string {
	return e.Message
}

// CommandSpec describes one command invocation.
type CommandSpec struct {
	Argv      []string          // executable followed by its arguments
	Env       map[string]string // overrides on top of the runner environment
	MaxOutput int               // per-stream byte limit; 0 uses the runner default
}

// String renders the command line for logs and summaries.
func (s CommandSpec) String() string {
	return strings.Join(s.Argv, " ")
}

// Outcome holds the raw result of one process invocation.
type Outcome struct {
	RunID    string // unique identifier for this invocation
	Command  string
	Err      *ErrorInfo // nil on success
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// OK reports whether the command succeeded.
func (o *Outcome) OK() bool {
	return o.Err == nil
}

// Detail returns the most useful failure text: the trimmed stderr when
// present, otherwise the error message. It is empty for successful outcomes.
func (o *Outcome) Detail() string {
	if o.Err == nil {
		return ""
	}
	if s := strings.TrimSpace(o.Stderr); s != "" {
		return s
	}
	if o.Err.Message != "" {
		return o.Err.Message
	}
	return fmt.Sprintf("%s failed", o.Command)
}
