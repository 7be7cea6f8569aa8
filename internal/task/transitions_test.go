package task_test

import (
	"testing"

	"github.com/chang-tasks/chang-go/internal/task"
)

func TestCanTransitionTerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range []task.State{task.StateCompleted, task.StateCancelled, task.StateDiscarded} {
		for _, to := range []task.State{task.StateAvailable, task.StateScheduled, task.StateRunning, task.StateRetryable} {
			if task.CanTransition(s, to) {
				t.Errorf("CanTransition(%q, %q) = true, want false: terminal state has no outgoing edges", s, to)
			}
		}
	}
}

func TestCanTransitionRunningToFinalizeOutcomes(t *testing.T) {
	for _, to := range []task.State{task.StateCompleted, task.StateRetryable, task.StateDiscarded, task.StateCancelled} {
		if !task.CanTransition(task.StateRunning, to) {
			t.Errorf("CanTransition(running, %q) = false, want true", to)
		}
	}
}

func TestCanTransitionRetryableBackToAvailable(t *testing.T) {
	if !task.CanTransition(task.StateRetryable, task.StateAvailable) {
		t.Errorf("CanTransition(retryable, available) = false, want true")
	}
	if task.CanTransition(task.StateRetryable, task.StateCompleted) {
		t.Errorf("CanTransition(retryable, completed) = true, want false: retries must re-enter the claim queue")
	}
}

func TestCanTransitionUnknownFromState(t *testing.T) {
	if task.CanTransition(task.State("bogus"), task.StateAvailable) {
		t.Errorf("CanTransition from an unknown state should be false")
	}
}
