package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const jobColumns = "id, prompt_id, client_id, number, prompt_text, seed, filename_prefix, status, outputs_json, error_message, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           int64
		promptID     string
		clientID     string
		number       int64
		promptText   string
		seedRaw      string
		prefix       sql.NullString
		statusStr    string
		outputsRaw   sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&id,
		&promptID,
		&clientID,
		&number,
		&promptText,
		&seedRaw,
		&prefix,
		&statusStr,
		&outputsRaw,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	seed, err := strconv.ParseUint(seedRaw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse seed %q: %w", seedRaw, err)
	}
	job := &Job{
		ID:             id,
		PromptID:       promptID,
		ClientID:       clientID,
		Number:         number,
		PromptText:     promptText,
		Seed:           seed,
		FilenamePrefix: prefix.String,
		Status:         Status(statusStr),
		ErrorMessage:   errorMessage.String,
		CreatedAt:      parseTime(createdRaw),
		UpdatedAt:      parseTime(updatedRaw),
	}
	if outputsRaw.Valid && outputsRaw.String != "" {
		if err := json.Unmarshal([]byte(outputsRaw.String), &job.Outputs); err != nil {
			return nil, fmt.Errorf("decode outputs for %s: %w", promptID, err)
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func encodeOutputs(outputs []string) (any, error) {
	if len(outputs) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(outputs)
	if err != nil {
		return nil, fmt.Errorf("encode outputs: %w", err)
	}
	return string(data), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
