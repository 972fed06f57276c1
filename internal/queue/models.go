package queue

import (
	"fmt"
	"strings"
	"time"
)

// Status is a job's last known lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusDeleted   Status = "deleted"
	StatusMissing   Status = "missing"
)

var allStatuses = []Status{
	StatusQueued,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusDeleted,
	StatusMissing,
}

// AllStatuses returns every status in display order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus validates a user-supplied status name.
func ParseStatus(value string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == candidate {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown job status %q", value)
}

// IsTerminal reports whether the server is done with a job in this state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusDeleted:
		return true
	default:
		return false
	}
}

// Job is one submitted prompt.
type Job struct {
	ID             int64     `json:"id"`
	PromptID       string    `json:"prompt_id"`
	ClientID       string    `json:"client_id"`
	Number         int64     `json:"number"`
	PromptText     string    `json:"prompt_text"`
	Seed           uint64    `json:"seed"`
	FilenamePrefix string    `json:"filename_prefix,omitempty"`
	Status         Status    `json:"status"`
	Outputs        []string  `json:"outputs,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewJob holds the fields known at submission time.
type NewJob struct {
	PromptID       string
	ClientID       string
	Number         int64
	PromptText     string
	Seed           uint64
	FilenamePrefix string
}

// ListOptions filters List.
type ListOptions struct {
	Statuses []Status
	// Limit caps the result; zero returns every row.
	Limit int
}
