package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// QueueEntry is one queued job. The server encodes it as a positional array
// whose first two members are the queue number and the prompt id.
type QueueEntry struct {
	Number   int64
	PromptID string
}

type queueEntryObject struct {
	Number   int64  `json:"number"`
	PromptID string `json:"prompt_id"`
}

// UnmarshalJSON decodes the server's positional array form and the object
// form MarshalJSON writes.
func (e *QueueEntry) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		var obj queueEntryObject
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return fmt.Errorf("queue entry: %w", err)
		}
		*e = QueueEntry(obj)
		return nil
	}

	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("queue entry: %w", err)
	}
	if len(fields) < 2 {
		return fmt.Errorf("queue entry: expected at least 2 fields, got %d", len(fields))
	}
	var number json.Number
	if err := json.Unmarshal(fields[0], &number); err != nil {
		return fmt.Errorf("queue entry number: %w", err)
	}
	n, err := number.Int64()
	if err != nil {
		return fmt.Errorf("queue entry number: %w", err)
	}
	var promptID string
	if err := json.Unmarshal(fields[1], &promptID); err != nil {
		return fmt.Errorf("queue entry prompt id: %w", err)
	}
	e.Number = n
	e.PromptID = promptID
	return nil
}

// MarshalJSON writes the entry as an object for CLI JSON output.
func (e QueueEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(queueEntryObject(e))
}

// QueueSnapshot is a point-in-time view of the server queue.
type QueueSnapshot struct {
	Running []QueueEntry `json:"queue_running"`
	Pending []QueueEntry `json:"queue_pending"`
}

// FindPending returns the pending entry with the given queue number.
func (s *QueueSnapshot) FindPending(number int64) (QueueEntry, bool) {
	if s == nil {
		return QueueEntry{}, false
	}
	for _, entry := range s.Pending {
		if entry.Number == number {
			return entry, true
		}
	}
	return QueueEntry{}, false
}

// Contains reports whether promptID is running or pending.
func (s *QueueSnapshot) Contains(promptID string) (running bool, pending bool) {
	if s == nil {
		return false, false
	}
	for _, entry := range s.Running {
		if entry.PromptID == promptID {
			return true, false
		}
	}
	for _, entry := range s.Pending {
		if entry.PromptID == promptID {
			return false, true
		}
	}
	return false, false
}

// Queue fetches the current queue snapshot.
func (c *Client) Queue(ctx context.Context) (*QueueSnapshot, error) {
	var snapshot QueueSnapshot
	if err := c.getJSON(ctx, "/queue", nil, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ClearQueue removes every pending job. The running job is unaffected.
func (c *Client) ClearQueue(ctx context.Context) error {
	return c.postJSON(ctx, "/queue", map[string]any{"clear": true}, nil)
}

// DeletePrompts removes pending jobs by prompt id.
func (c *Client) DeletePrompts(ctx context.Context, promptIDs ...string) error {
	if len(promptIDs) == 0 {
		return errors.New("no prompt ids to delete")
	}
	return c.postJSON(ctx, "/queue", map[string]any{"delete": promptIDs}, nil)
}

// DeleteQueueItem deletes the pending job with the given queue number from
// snapshot. A number that is not pending yields ErrNotFoundInQueue and no
// request is made.
func (c *Client) DeleteQueueItem(ctx context.Context, snapshot *QueueSnapshot, number int64) (string, error) {
	entry, ok := snapshot.FindPending(number)
	if !ok {
		return "", ErrNotFoundInQueue
	}
	if err := c.DeletePrompts(ctx, entry.PromptID); err != nil {
		return "", err
	}
	return entry.PromptID, nil
}

// Interrupt stops the currently running job.
func (c *Client) Interrupt(ctx context.Context) error {
	return c.postJSON(ctx, "/interrupt", nil, nil)
}
