package testsupport

import (
	"context"
	"testing"

	"comfyctl/internal/config"
	"comfyctl/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// RecordJob inserts a queued job with the given prompt id.
func RecordJob(t testing.TB, store *queue.Store, promptID, clientID string) *queue.Job {
	t.Helper()

	job, err := store.Record(context.Background(), queue.NewJob{
		PromptID:   promptID,
		ClientID:   clientID,
		PromptText: "prompt for " + promptID,
		Seed:       42,
	})
	if err != nil {
		t.Fatalf("store.Record: %v", err)
	}
	return job
}
