package task

// transitions enumerates which states are reachable from each state via
// SetState (administrative transitions) or the claim/complete/fail protocol.
// Terminal states have no outgoing edges — invariant 3 of spec.md §3.
var transitions = map[State]map[State]bool{
	StateAvailable: {StateRunning: true, StateCancelled: true},
	StateScheduled: {StateAvailable: true, StateRunning: true, StateCancelled: true},
	StateRunning:   {StateCompleted: true, StateRetryable: true, StateDiscarded: true, StateCancelled: true},
	StateRetryable: {StateRunning: true, StateAvailable: true, StateCancelled: true},
	StateCompleted: {},
	StateCancelled: {},
	StateDiscarded: {},
}

// CanTransition reports whether to is reachable from from.
func CanTransition(from, to State) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}
	return next[to]
}
