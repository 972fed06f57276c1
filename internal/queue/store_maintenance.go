package queue

import (
	"context"
	"fmt"

	"comfyctl/internal/comfy"
)

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Change is one status transition applied by Reconcile.
type Change struct {
	PromptID string `json:"prompt_id"`
	From     Status `json:"from"`
	To       Status `json:"to"`
}

// ReconcileReport lists the transitions Reconcile applied.
type ReconcileReport struct {
	Checked int      `json:"checked"`
	Changes []Change `json:"changes"`
}

// Reconcile correlates ledger jobs with the server's queue snapshot and
// history by prompt id. Running and pending entries map to running and
// queued; history records map to completed or failed with their outputs.
// Jobs the server no longer knows about become missing, except those
// already completed, failed or deleted.
func (s *Store) Reconcile(ctx context.Context, snapshot *comfy.QueueSnapshot, history map[string]comfy.HistoryRecord) (ReconcileReport, error) {
	jobs, err := s.List(ctx, ListOptions{})
	if err != nil {
		return ReconcileReport{}, err
	}

	report := ReconcileReport{Checked: len(jobs)}
	for _, job := range jobs {
		next := job.Status
		var outputs []string
		message := job.ErrorMessage

		running, pending := snapshot.Contains(job.PromptID)
		record, inHistory := history[job.PromptID]
		switch {
		case running:
			next = StatusRunning
		case pending:
			next = StatusQueued
		case inHistory:
			next = StatusCompleted
			if record.Failed() {
				next = StatusFailed
				message = "server reported execution error"
			}
			artifacts := record.Artifacts()
			outputs = artifacts.Output
		case !job.Status.IsTerminal():
			next = StatusMissing
		}

		if next == job.Status {
			continue
		}
		if inHistory && !running && !pending {
			err = s.Complete(ctx, job.PromptID, next, outputs, message)
		} else {
			err = s.UpdateStatus(ctx, job.PromptID, next, "")
		}
		if err != nil {
			return report, err
		}
		report.Changes = append(report.Changes, Change{PromptID: job.PromptID, From: job.Status, To: next})
	}
	return report, nil
}
