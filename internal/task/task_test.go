package task_test

import (
	"testing"
	"time"

	"github.com/chang-tasks/chang-go/internal/task"
)

func TestStateTerminal(t *testing.T) {
	cases := map[task.State]bool{
		task.StateAvailable: false,
		task.StateScheduled: false,
		task.StateRunning:   false,
		task.StateRetryable: false,
		task.StateCompleted: true,
		task.StateCancelled: true,
		task.StateDiscarded: true,
	}
	for state, want := range cases {
		if got := state.Terminal(); got != want {
			t.Errorf("State(%q).Terminal() = %v, want %v", state, got, want)
		}
	}
}

func TestNewTaskValidate(t *testing.T) {
	tests := []struct {
		name    string
		nt      task.NewTask
		wantErr error
	}{
		{
			name:    "empty kind",
			nt:      task.NewTask{Kind: "", MaxAttempts: 1},
			wantErr: task.ErrEmptyKind,
		},
		{
			name:    "zero max attempts",
			nt:      task.NewTask{Kind: "send_email", MaxAttempts: 0},
			wantErr: task.ErrInvalidMaxAttempts,
		},
		{
			name:    "valid",
			nt:      task.NewTask{Kind: "send_email", MaxAttempts: 1},
			wantErr: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nt.Validate()
			if err != tt.wantErr {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStateForScheduledAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	if got := task.StateForScheduledAt(nil, now); got != task.StateAvailable {
		t.Errorf("nil scheduledAt: got %q, want available", got)
	}
	if got := task.StateForScheduledAt(&future, now); got != task.StateScheduled {
		t.Errorf("future scheduledAt: got %q, want scheduled", got)
	}
	if got := task.StateForScheduledAt(&past, now); got != task.StateAvailable {
		t.Errorf("past scheduledAt: got %q, want available", got)
	}
}

func TestCloneValueDoesNotAliasSlices(t *testing.T) {
	orig := task.Task{
		Tags:        []string{"a", "b"},
		AttemptedBy: []string{"worker-1"},
		Errors:      []task.ErrorRecord{{Message: "boom"}},
	}
	cloned := orig.CloneValue().(task.Task)

	cloned.Tags[0] = "mutated"
	cloned.AttemptedBy[0] = "mutated"
	cloned.Errors[0].Message = "mutated"

	if orig.Tags[0] != "a" {
		t.Errorf("Tags leaked: %v", orig.Tags)
	}
	if orig.AttemptedBy[0] != "worker-1" {
		t.Errorf("AttemptedBy leaked: %v", orig.AttemptedBy)
	}
	if orig.Errors[0].Message != "boom" {
		t.Errorf("Errors leaked: %v", orig.Errors)
	}
}
