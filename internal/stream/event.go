package stream

import (
	"encoding/json"
	"fmt"
)

// EventType names a progress message.
type EventType string

const (
	EventStatus               EventType = "status"
	EventExecuting            EventType = "executing"
	EventProgress             EventType = "progress"
	EventPreview              EventType = "preview"
	EventExecutionStart       EventType = "execution_start"
	EventExecutionCached      EventType = "execution_cached"
	EventExecuted             EventType = "executed"
	EventExecutionError       EventType = "execution_error"
	EventExecutionInterrupted EventType = "execution_interrupted"
	EventExecutionSuccess     EventType = "execution_success"
)

// Status carries the server's queue depth.
type Status struct {
	QueueRemaining int
}

// Executing names the node now running. A nil Node means the prompt has no
// further nodes to run.
type Executing struct {
	PromptID string
	Node     *string
}

// ProgressUpdate is a step count within the running node.
type ProgressUpdate struct {
	PromptID string
	Node     string
	Value    int
	Max      int
}

// ExecutionError describes a node failure reported by the server.
type ExecutionError struct {
	PromptID         string `json:"prompt_id"`
	NodeID           string `json:"node_id"`
	NodeType         string `json:"node_type"`
	ExceptionType    string `json:"exception_type"`
	ExceptionMessage string `json:"exception_message"`
}

// Event is a decoded frame. Exactly one payload pointer is set for status,
// executing, progress and execution_error events; other types carry only
// PromptID.
type Event struct {
	Type      EventType
	PromptID  string
	Status    *Status
	Executing *Executing
	Progress  *ProgressUpdate
	Error     *ExecutionError
	Preview   []byte
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type statusData struct {
	Status struct {
		ExecInfo struct {
			QueueRemaining *int `json:"queue_remaining"`
		} `json:"exec_info"`
	} `json:"status"`
}

type executingData struct {
	Node     *string `json:"node"`
	PromptID string  `json:"prompt_id"`
}

type progressData struct {
	Value    int    `json:"value"`
	Max      int    `json:"max"`
	PromptID string `json:"prompt_id"`
	Node     string `json:"node"`
}

type promptData struct {
	PromptID string `json:"prompt_id"`
}

// Decode maps a frame onto an Event. Binary frames become previews. Text
// frames of unknown type decode without error and are ignored downstream.
func Decode(frame Frame) (Event, error) {
	if frame.Kind == FrameBinary {
		return Event{Type: EventPreview, Preview: frame.Data}, nil
	}
	var env envelope
	if err := json.Unmarshal(frame.Data, &env); err != nil {
		return Event{}, fmt.Errorf("decode message: %w", err)
	}
	ev := Event{Type: EventType(env.Type)}
	switch ev.Type {
	case EventStatus:
		var data statusData
		if err := unmarshalData(env, &data); err != nil {
			return Event{}, err
		}
		// A status without a queue count leaves Status nil so the session
		// keeps its previous knowledge.
		if remaining := data.Status.ExecInfo.QueueRemaining; remaining != nil {
			ev.Status = &Status{QueueRemaining: *remaining}
		}
	case EventExecuting:
		var data executingData
		if err := unmarshalData(env, &data); err != nil {
			return Event{}, err
		}
		ev.PromptID = data.PromptID
		ev.Executing = &Executing{PromptID: data.PromptID, Node: data.Node}
	case EventProgress:
		var data progressData
		if err := unmarshalData(env, &data); err != nil {
			return Event{}, err
		}
		ev.PromptID = data.PromptID
		ev.Progress = &ProgressUpdate{PromptID: data.PromptID, Node: data.Node, Value: data.Value, Max: data.Max}
	case EventExecutionError:
		var data ExecutionError
		if err := unmarshalData(env, &data); err != nil {
			return Event{}, err
		}
		ev.PromptID = data.PromptID
		ev.Error = &data
	case EventExecutionStart, EventExecutionCached, EventExecuted,
		EventExecutionInterrupted, EventExecutionSuccess:
		var data promptData
		if len(env.Data) > 0 {
			_ = json.Unmarshal(env.Data, &data)
		}
		ev.PromptID = data.PromptID
	}
	return ev, nil
}

func unmarshalData(env envelope, out any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("decode %s message: missing data", env.Type)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s message: %w", env.Type, err)
	}
	return nil
}
