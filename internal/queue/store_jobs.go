package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record inserts a newly accepted submission as queued.
func (s *Store) Record(ctx context.Context, job NewJob) (*Job, error) {
	if strings.TrimSpace(job.PromptID) == "" {
		return nil, errors.New("record job: prompt id required")
	}
	timestamp := formatTime(time.Now())
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            prompt_id, client_id, number, prompt_text, seed, filename_prefix,
            status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.PromptID,
		job.ClientID,
		job.Number,
		job.PromptText,
		strconv.FormatUint(job.Seed, 10),
		nullableString(job.FilenamePrefix),
		StatusQueued,
		timestamp,
		timestamp,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateJob, job.PromptID)
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.GetByPromptID(ctx, job.PromptID)
}

// GetByPromptID fetches a job, returning ErrJobNotFound when absent.
func (s *Store) GetByPromptID(ctx context.Context, promptID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE prompt_id = ?`, promptID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, promptID)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if len(opts.Statuses) > 0 {
		placeholders := make([]string, len(opts.Statuses))
		for i, status := range opts.Statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY id DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateStatus sets a job's status and error message.
func (s *Store) UpdateStatus(ctx context.Context, promptID string, status Status, message string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ? WHERE prompt_id = ?`,
		status,
		nullableString(message),
		formatTime(time.Now()),
		promptID,
	)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return requireAffected(res, promptID)
}

// Complete marks a job completed or failed and stores its output paths.
func (s *Store) Complete(ctx context.Context, promptID string, status Status, outputs []string, message string) error {
	encoded, err := encodeOutputs(outputs)
	if err != nil {
		return err
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, outputs_json = ?, error_message = ?, updated_at = ? WHERE prompt_id = ?`,
		status,
		encoded,
		nullableString(message),
		formatTime(time.Now()),
		promptID,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return requireAffected(res, promptID)
}

func requireAffected(res interface{ RowsAffected() (int64, error) }, promptID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, promptID)
	}
	return nil
}

// LatestClientID returns the client id of the most recent submission, or ""
// when the ledger is empty.
func (s *Store) LatestClientID(ctx context.Context) (string, error) {
	var clientID string
	err := s.db.QueryRowContext(ctx, `SELECT client_id FROM jobs ORDER BY id DESC LIMIT 1`).Scan(&clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest client id: %w", err)
	}
	return clientID, nil
}

// Clear deletes jobs in the given statuses, or every job when none are
// given, and returns the number removed.
func (s *Store) Clear(ctx context.Context, statuses ...Status) (int64, error) {
	query := `DELETE FROM jobs`
	var args []any
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ",") + `)`
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}
