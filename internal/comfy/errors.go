package comfy

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFoundInQueue reports that a queue number is not pending. The job
	// may be running or already finished; callers treat it as an outcome,
	// not a failure.
	ErrNotFoundInQueue = errors.New("prompt not found in pending queue")
	// ErrNoPromptID reports a submission response without a prompt id.
	ErrNoPromptID = errors.New("server response missing prompt_id")
)

// RequestError describes a failed administrative call. Status is zero when
// the request never produced an HTTP response.
type RequestError struct {
	Method string
	Path   string
	Status int
	Reason string
	Err    error
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	if e.Reason == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Reason)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// SubmissionError describes a job the server did not accept.
type SubmissionError struct {
	Status     int
	Reason     string
	NodeErrors map[string]json.RawMessage
	Err        error
}

func (e *SubmissionError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("submit prompt: %v", e.Err)
	case e.Reason != "":
		return fmt.Sprintf("submit prompt: status %d: %s", e.Status, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("submit prompt: status %d: %v", e.Status, e.Err)
	default:
		return fmt.Sprintf("submit prompt: status %d", e.Status)
	}
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// IsRequestStatus reports whether err is a RequestError with the given
// status.
func IsRequestStatus(err error, status int) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Status == status
}
