package result

import "fmt"

// State is the lifecycle state of a single operation:
// pending → running → (retrying)? → succeeded | failed.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateRetrying  State = "retrying"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// transitions lists the allowed next states. retrying → running covers the
// next step of a multi-step operation.
var transitions = map[State][]State{
	StatePending:  {StateRunning, StateFailed},
	StateRunning:  {StateRetrying, StateSucceeded, StateFailed},
	StateRetrying: {StateRunning, StateSucceeded, StateFailed},
}

// Transition validates a move from s to next.
func (s State) Transition(next State) (State, error) {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return next, nil
		}
	}
	return s, fmt.Errorf("invalid state transition %s -> %s", s, next)
}
