package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldPromptID is the key for server-issued job identifiers.
	FieldPromptID = "prompt_id"
	// FieldClientID is the key for the client identifier bound to the stream.
	FieldClientID = "client_id"
	// FieldNodeID is the key for workflow node identifiers.
	FieldNodeID = "node_id"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

type contextKey string

const (
	promptIDKey contextKey = "prompt_id"
	clientIDKey contextKey = "client_id"
)

// WithPromptID annotates context with the job identifier.
func WithPromptID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, promptIDKey, id)
}

// WithClientID annotates context with the client identifier.
func WithClientID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIDKey, id)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := ctx.Value(clientIDKey).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldClientID, id))
	}
	if id, ok := ctx.Value(promptIDKey).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldPromptID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
