package main

import (
	"context"
	"slices"
	"testing"

	"comfyctl/internal/comfy"
	"comfyctl/internal/queue"
	"comfyctl/internal/testsupport"
)

func TestQueueListShowsRunningAndPending(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.SetQueue([][2]any{{7, "run-7"}}, [][2]any{{8, "pend-8"}, {9, "pend-9"}})

	out, _, err := env.run(t, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	for _, want := range []string{"run-7", "Running", "pend-8", "pend-9", "Pending"} {
		requireContains(t, out, want)
	}

	out, _, err = env.run(t, "--json", "queue", "list")
	if err != nil {
		t.Fatalf("queue list --json: %v", err)
	}
	var snapshot comfy.QueueSnapshot
	decodeJSON(t, out, &snapshot)
	if len(snapshot.Running) != 1 || snapshot.Running[0] != (comfy.QueueEntry{Number: 7, PromptID: "run-7"}) {
		t.Fatalf("unexpected running entries %+v", snapshot.Running)
	}
	if len(snapshot.Pending) != 2 || snapshot.Pending[1].Number != 9 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

func TestQueueListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := env.run(t, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestQueueDeleteFoundAndNotFound(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.openStore(t)
	testsupport.RecordJob(t, store, "pend-8", "client-a")
	env.server.SetQueue([][2]any{{7, "run-7"}}, [][2]any{{8, "pend-8"}})

	out, _, err := env.run(t, "queue", "delete", "8", "7", "42")
	if err != nil {
		t.Fatalf("queue delete: %v", err)
	}
	requireContains(t, out, "Deleted #8 (pend-8)")
	requireContains(t, out, "Job #7 not pending")
	requireContains(t, out, "Job #42 not pending")

	if got := env.server.Deleted(); !slices.Equal(got, []string{"pend-8"}) {
		t.Fatalf("unexpected deletions %v", got)
	}
	job, err := store.GetByPromptID(context.Background(), "pend-8")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if job.Status != queue.StatusDeleted {
		t.Fatalf("expected deleted, got %s", job.Status)
	}
}

func TestQueueDeleteRejectsBadNumber(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := env.run(t, "queue", "delete", "eight"); err == nil {
		t.Fatal("expected error for non-numeric queue number")
	}
}

func TestQueueClearRemainingAndInterrupt(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.SetQueue([][2]any{{1, "run-1"}}, [][2]any{{2, "pend-2"}, {3, "pend-3"}})

	out, _, err := env.run(t, "queue", "remaining")
	if err != nil {
		t.Fatalf("queue remaining: %v", err)
	}
	requireContains(t, out, "3 jobs remaining")

	out, _, err = env.run(t, "queue", "clear")
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Cleared 2 pending jobs")
	if env.server.Cleared() != 1 {
		t.Fatalf("expected one clear call, got %d", env.server.Cleared())
	}

	out, _, err = env.run(t, "interrupt")
	if err != nil {
		t.Fatalf("interrupt: %v", err)
	}
	requireContains(t, out, "Interrupt sent")
	if env.server.Interrupted() != 1 {
		t.Fatalf("expected one interrupt call, got %d", env.server.Interrupted())
	}
}
