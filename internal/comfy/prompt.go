package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// PromptResponse is the server's acknowledgement of a queued job.
type PromptResponse struct {
	PromptID   string                     `json:"prompt_id"`
	Number     int64                      `json:"number"`
	NodeErrors map[string]json.RawMessage `json:"node_errors,omitempty"`
}

type promptRequest struct {
	Prompt   any    `json:"prompt"`
	ClientID string `json:"client_id"`
}

// Submit queues graph for execution under clientID. The call has no side
// effect beyond the single POST; a rejected or malformed response yields a
// *SubmissionError with the server's text preserved.
func (c *Client) Submit(ctx context.Context, graph any, clientID string) (*PromptResponse, error) {
	data, err := json.Marshal(promptRequest{Prompt: graph, ClientID: clientID})
	if err != nil {
		return nil, &SubmissionError{Err: fmt.Errorf("encode prompt: %w", err)}
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/prompt", nil, bytes.NewReader(data))
	if err != nil {
		return nil, &SubmissionError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.send(req)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.Status != 0 {
			return nil, &SubmissionError{
				Status:     reqErr.Status,
				Reason:     reqErr.Reason,
				NodeErrors: nodeErrorsFrom(reqErr.Reason),
				Err:        err,
			}
		}
		return nil, &SubmissionError{Err: err}
	}
	defer resp.Body.Close()

	var payload PromptResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &SubmissionError{Status: resp.StatusCode, Err: fmt.Errorf("decode prompt response: %w", err)}
	}
	if strings.TrimSpace(payload.PromptID) == "" {
		return nil, &SubmissionError{Status: resp.StatusCode, Err: ErrNoPromptID}
	}
	return &payload, nil
}

func nodeErrorsFrom(reason string) map[string]json.RawMessage {
	var body struct {
		NodeErrors map[string]json.RawMessage `json:"node_errors"`
	}
	if err := json.Unmarshal([]byte(reason), &body); err != nil {
		return nil
	}
	return body.NodeErrors
}

// PromptInfo summarises GET /prompt.
type PromptInfo struct {
	ExecInfo struct {
		QueueRemaining int `json:"queue_remaining"`
	} `json:"exec_info"`
}

// QueueRemaining returns the number of jobs still to run.
func (p *PromptInfo) QueueRemaining() int {
	return p.ExecInfo.QueueRemaining
}

// PromptStatus reports the server's remaining queue count.
func (c *Client) PromptStatus(ctx context.Context) (*PromptInfo, error) {
	var info PromptInfo
	if err := c.getJSON(ctx, "/prompt", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
