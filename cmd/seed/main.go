// seed inserts a handful of demo tasks into the local dev database,
// exercising the builder, a depends_on chain, and a deliberately-failing
// kind so a runner has something to chew on immediately after startup.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/chang-tasks/chang-go/internal/handlers"
	"github.com/chang-tasks/chang-go/internal/postgres"
	"github.com/chang-tasks/chang-go/internal/task"
)

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	s := postgres.New(pool)

	var inserted int

	// Happy path: a handful of http_request tasks that should complete.
	for _, url := range []string{
		"https://httpbin.org/get",
		"https://httpbin.org/post",
		"https://httpbin.org/status/200",
	} {
		args, err := json.Marshal(handlers.HTTPRequestArgs{Method: "GET", URL: url, TimeoutSeconds: 10})
		if err != nil {
			log.Fatalf("marshal args: %v", err)
		}
		nt, err := task.NewBuilder().
			Kind(handlers.Kind).
			RawArgs(args).
			Queue(task.DefaultQueue).
			Build()
		if err != nil {
			log.Fatalf("build task: %v", err)
		}
		if _, err := s.Insert(ctx, nt); err != nil {
			log.Fatalf("insert task: %v", err)
		}
		inserted++
	}

	// Deliberately-failing task: a 500 response exhausts its two attempts
	// and ends up discarded.
	failArgs, err := json.Marshal(handlers.HTTPRequestArgs{Method: "GET", URL: "https://httpbin.org/status/500", TimeoutSeconds: 10})
	if err != nil {
		log.Fatalf("marshal args: %v", err)
	}
	failingTask, err := task.NewBuilder().
		Kind(handlers.Kind).
		RawArgs(failArgs).
		MaxAttempts(2).
		Queue(task.DefaultQueue).
		Build()
	if err != nil {
		log.Fatalf("build task: %v", err)
	}
	if _, err := s.Insert(ctx, failingTask); err != nil {
		log.Fatalf("insert failing task: %v", err)
	}
	inserted++

	// A two-task depends_on chain: the child only becomes claimable once
	// the parent reaches completed.
	parentArgs, err := json.Marshal(handlers.HTTPRequestArgs{Method: "GET", URL: "https://httpbin.org/get", TimeoutSeconds: 10})
	if err != nil {
		log.Fatalf("marshal args: %v", err)
	}
	parent, err := task.NewBuilder().Kind(handlers.Kind).RawArgs(parentArgs).Queue(task.DefaultQueue).Build()
	if err != nil {
		log.Fatalf("build parent task: %v", err)
	}
	parentID, err := s.Insert(ctx, parent)
	if err != nil {
		log.Fatalf("insert parent task: %v", err)
	}
	inserted++

	childArgs, err := json.Marshal(handlers.HTTPRequestArgs{Method: "GET", URL: "https://httpbin.org/post", TimeoutSeconds: 10})
	if err != nil {
		log.Fatalf("marshal args: %v", err)
	}
	child, err := task.NewBuilder().
		Kind(handlers.Kind).
		RawArgs(childArgs).
		Queue(task.DefaultQueue).
		DependsOn(parentID).
		Build()
	if err != nil {
		log.Fatalf("build child task: %v", err)
	}
	if _, err := s.Insert(ctx, child); err != nil {
		log.Fatalf("insert child task: %v", err)
	}
	inserted++

	fmt.Println("Seed complete")
	fmt.Printf("  Tasks created: %d\n", inserted)
	fmt.Printf("  Parent task:   %s (child waits on it via depends_on)\n", parentID)
	fmt.Println()
	fmt.Println("Start a runner and watch it claim these within one poll interval:")
	fmt.Println()
	fmt.Println("    go run ./cmd/runner")
	fmt.Println()
	fmt.Printf("Inserted at %s\n", time.Now().Format(time.RFC3339))
}
