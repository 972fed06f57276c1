package preflight

import (
	"context"

	"github.com/google/uuid"

	"comfyctl/internal/comfy"
	"comfyctl/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every check for cfg against client.
func RunAll(ctx context.Context, cfg *config.Config, client *comfy.Client) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckTemplate(cfg.Workflow.TemplatePath, cfg.Workflow.Titles),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if client == nil {
		return results
	}
	results = append(results, CheckServer(ctx, client))
	results = append(results, CheckStream(ctx, client.StreamURL("doctor-"+uuid.NewString()), cfg.HandshakeTimeout()))
	return results
}

// Failed counts failed results.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}
