package task_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/chang-tasks/chang-go/internal/task"
	"github.com/google/uuid"
)

type emailArgs struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
}

func TestBuilderDefaults(t *testing.T) {
	nt, err := task.NewBuilder().Kind("send_email").Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if nt.MaxAttempts != task.DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", nt.MaxAttempts, task.DefaultMaxAttempts)
	}
	if nt.Queue != task.DefaultQueue {
		t.Errorf("Queue = %q, want %q", nt.Queue, task.DefaultQueue)
	}
	if string(nt.Args) != "null" {
		t.Errorf("Args = %s, want null", nt.Args)
	}
}

func TestBuilderArgsMarshalling(t *testing.T) {
	nt, err := task.NewBuilder().
		Kind("send_email").
		Args(emailArgs{To: "a@example.com", Subject: "hi"}).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var got emailArgs
	if err := json.Unmarshal(nt.Args, &got); err != nil {
		t.Fatalf("unmarshal args: %v", err)
	}
	if got.To != "a@example.com" || got.Subject != "hi" {
		t.Errorf("decoded args = %+v", got)
	}
}

func TestBuilderMissingKindFails(t *testing.T) {
	_, err := task.NewBuilder().Build()
	if err != task.ErrEmptyKind {
		t.Fatalf("Build() error = %v, want ErrEmptyKind", err)
	}
}

func TestBuilderFullChain(t *testing.T) {
	scheduledAt := time.Now().Add(time.Hour)
	dependsOn := uuid.New()
	dependendID := uuid.New()

	nt, err := task.NewBuilder().
		Kind("generate_report").
		Priority(task.MaxPriority).
		Queue("reports").
		MaxAttempts(5).
		ScheduledAt(scheduledAt).
		Tags("monthly", "finance").
		DependsOn(dependsOn).
		DependendID(dependendID).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if nt.Priority != task.MaxPriority {
		t.Errorf("Priority = %d, want %d", nt.Priority, task.MaxPriority)
	}
	if nt.Queue != "reports" {
		t.Errorf("Queue = %q", nt.Queue)
	}
	if nt.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d", nt.MaxAttempts)
	}
	if nt.ScheduledAt == nil || !nt.ScheduledAt.Equal(scheduledAt) {
		t.Errorf("ScheduledAt = %v, want %v", nt.ScheduledAt, scheduledAt)
	}
	if len(nt.Tags) != 2 || nt.Tags[0] != "monthly" {
		t.Errorf("Tags = %v", nt.Tags)
	}
	if nt.DependsOn == nil || *nt.DependsOn != dependsOn {
		t.Errorf("DependsOn = %v, want %v", nt.DependsOn, dependsOn)
	}
	if nt.DependendID == nil || *nt.DependendID != dependendID {
		t.Errorf("DependendID = %v, want %v", nt.DependendID, dependendID)
	}
}

func TestBuilderRawArgsBypassesMarshal(t *testing.T) {
	raw := json.RawMessage(`{"already":"encoded"}`)
	nt, err := task.NewBuilder().Kind("k").RawArgs(raw).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if string(nt.Args) != string(raw) {
		t.Errorf("Args = %s, want %s", nt.Args, raw)
	}
}
