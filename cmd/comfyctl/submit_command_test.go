package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"comfyctl/internal/queue"
	"comfyctl/internal/stream"
)

func TestSubmitQueuesAndRecordsJobs(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "submit", "--steps", "12", "a red fox", "a blue bird")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "Queued 2 of 2 prompts")
	requireContains(t, out, "prompt-1")

	prompts := env.server.Prompts()
	if len(prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(prompts))
	}
	if prompts[0].ClientID == "" || prompts[0].ClientID != prompts[1].ClientID {
		t.Fatalf("expected one stable client id, got %q and %q", prompts[0].ClientID, prompts[1].ClientID)
	}
	text := prompts[1].Graph["6"].(map[string]any)["inputs"].(map[string]any)["text"]
	if text != "a blue bird" {
		t.Fatalf("unexpected prompt text %v", text)
	}
	sampler := prompts[0].Graph["3"].(map[string]any)["inputs"].(map[string]any)
	if sampler["steps"].(float64) != 12 {
		t.Fatalf("unexpected steps %v", sampler["steps"])
	}
	if sampler["seed"].(float64) < 1 {
		t.Fatalf("unexpected seed %v", sampler["seed"])
	}

	store := env.openStore(t)
	jobs, err := store.List(context.Background(), queue.ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 ledger jobs, got %d", len(jobs))
	}
	for _, job := range jobs {
		if job.Status != queue.StatusQueued || job.ClientID != prompts[0].ClientID {
			t.Fatalf("unexpected job %+v", job)
		}
	}
}

func TestSubmitReadsPromptsFile(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(t.TempDir(), "prompts.txt")
	content := "# landscapes\nmisty mountains\n\n  desert at dusk  \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write prompts: %v", err)
	}

	if _, _, err := env.run(t, "submit", "--prompts-file", path); err != nil {
		t.Fatalf("submit: %v", err)
	}
	prompts := env.server.Prompts()
	if len(prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(prompts))
	}
	save := prompts[1].Graph["9"].(map[string]any)["inputs"].(map[string]any)
	if save["filename_prefix"] != "desert at dusk" {
		t.Fatalf("unexpected prefix %v", save["filename_prefix"])
	}
}

func TestSubmitStopOnError(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.RejectNext("Prompt outputs failed validation")

	_, stderr, err := env.run(t, "submit", "--stop-on-error", "first", "second")
	if err == nil {
		t.Fatal("expected error")
	}
	requireContains(t, err.Error(), "batch stopped at prompt 1")
	requireContains(t, stderr, "Prompt outputs failed validation")
	if got := len(env.server.Prompts()); got != 0 {
		t.Fatalf("expected no accepted prompts, got %d", got)
	}
}

func TestSubmitContinuesPastRejection(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.RejectNext("bad prompt")

	out, _, err := env.run(t, "submit", "first", "second")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "Queued 1 of 2 prompts")
}

func TestSubmitRequiresPrompt(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := env.run(t, "submit"); err == nil || !strings.Contains(err.Error(), "no prompts") {
		t.Fatalf("expected no prompts error, got %v", err)
	}
}

func TestSubmitMissingTemplateFails(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.Remove(env.cfg.Workflow.TemplatePath); err != nil {
		t.Fatalf("remove template: %v", err)
	}
	_, _, err := env.run(t, "submit", "anything")
	if err == nil || !strings.Contains(err.Error(), "workflow template") {
		t.Fatalf("expected template error, got %v", err)
	}
}

func TestSubmitWatchTracksUntilQueueDrains(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "--json", "submit", "--watch", "a lighthouse")
	if err != nil {
		t.Fatalf("submit --watch: %v", err)
	}
	var got submitOutput
	decodeJSON(t, out, &got)
	if len(got.Report.Submitted) != 1 {
		t.Fatalf("expected one submission, got %+v", got.Report)
	}
	if got.Tracking == nil || got.Tracking.Reason != stream.ReasonCompleted {
		t.Fatalf("expected completed tracking, got %+v", got.Tracking)
	}
	if got.Tracking.PromptID != "prompt-1" {
		t.Fatalf("unexpected tracked prompt %q", got.Tracking.PromptID)
	}

	job, err := env.openStore(t).GetByPromptID(context.Background(), "prompt-1")
	if err != nil {
		t.Fatalf("lookup job: %v", err)
	}
	if job.Status != queue.StatusCompleted {
		t.Fatalf("expected completed after sync, got %s", job.Status)
	}
	if len(job.Outputs) != 1 || job.Outputs[0] != "ComfyUI_00001_.png" {
		t.Fatalf("unexpected outputs %v", job.Outputs)
	}
}
