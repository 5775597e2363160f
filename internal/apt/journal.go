package apt

import (
	"fmt"
	"strings"
	"sync"

	"github.com/deixis/aptmcp/internal/logging"
	"github.com/deixis/aptmcp/internal/result"
	"github.com/google/uuid"
)

// journal is the logger handed to an operation. It tags every message with
// the operation name and id, forwards it to the caller's sink, and keeps
// warnings and errors so they can be returned in the result's logs.
type journal struct {
	id   string
	op   string
	sink logging.Logger

	mu    sync.Mutex
	lines []string
	state result.State
}

func newJournal(op string, sink logging.Logger) *journal {
	if sink == nil {
		sink = logging.Nop
	}
	id := uuid.New().String()
	return &journal{
		id:    id,
		op:    op,
		sink:  logging.With(sink, "operation", op, "op_id", id),
		state: result.StatePending,
	}
}

func (j *journal) Info(msg string, kv ...any) {
	j.sink.Info(msg, kv...)
}

func (j *journal) Warn(msg string, kv ...any) {
	j.record("warn", msg, kv)
	j.sink.Warn(msg, kv...)
}

func (j *journal) Error(msg string, kv ...any) {
	j.record("error", msg, kv)
	j.sink.Error(msg, kv...)
}

func (j *journal) record(level, msg string, kv []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", level, msg)
	for i := 0; i < len(kv); i += 2 {
		var val any
		if i+1 < len(kv) {
			val = kv[i+1]
		}
		fmt.Fprintf(&b, " %v=%v", kv[i], val)
	}

	j.mu.Lock()
	j.lines = append(j.lines, b.String())
	j.mu.Unlock()
}

// Lines returns the recorded warnings and errors in order.
func (j *journal) Lines() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.lines...)
}

// enter moves the operation to next. Re-entering the current state is a
// no-op; invalid moves are reported to the sink and ignored.
func (j *journal) enter(next result.State) {
	if j == nil {
		return
	}
	j.mu.Lock()
	prev := j.state
	if prev == next {
		j.mu.Unlock()
		return
	}
	s, err := prev.Transition(next)
	j.state = s
	j.mu.Unlock()

	if err != nil {
		j.sink.Error("Operation state", "error", err)
		return
	}
	j.sink.Info("Operation state", "from", string(prev), "to", string(next))
}

// State returns the current lifecycle state.
func (j *journal) State() result.State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}
