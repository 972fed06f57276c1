package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"comfyctl/internal/logging"
)

// Result summarises a finished session.
type Result struct {
	Reason   Reason   `json:"reason"`
	PromptID string   `json:"prompt_id,omitempty"`
	Node     string   `json:"node,omitempty"`
	Progress Progress `json:"progress"`
	Events   int      `json:"events"`
}

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	Resolver NodeResolver
	Previews PreviewPolicy
	Logger   *slog.Logger
}

// Tracker runs the receive loop for one session at a time.
type Tracker struct {
	resolver NodeResolver
	previews PreviewPolicy
	logger   *slog.Logger
}

// NewTracker constructs a tracker.
func NewTracker(opts TrackerOptions) *Tracker {
	return &Tracker{
		resolver: opts.Resolver,
		previews: opts.Previews,
		logger:   logging.NewComponentLogger(opts.Logger, "tracker"),
	}
}

// Run receives frames from src until the session ends. flag may be nil.
// Cancellation via flag or ctx never touches server state; it only stops
// listening. Transport failures end the session and are returned.
func (t *Tracker) Run(ctx context.Context, src Source, flag *CancelFlag, obs Observer) (Result, error) {
	if flag == nil {
		flag = NewCancelFlag()
	}
	if obs == nil {
		obs = NopObserver{}
	}
	if waker, ok := src.(Waker); ok {
		flag.OnSet(waker.Wake)
		stop := context.AfterFunc(ctx, waker.Wake)
		defer stop()
	}

	session := NewSession(t.resolver, t.previews)
	events := 0
	finish := func(reason Reason, err error) (Result, error) {
		node, _ := session.Node()
		res := Result{
			Reason:   reason,
			PromptID: session.PromptID(),
			Node:     node,
			Progress: session.Progress(),
			Events:   events,
		}
		session.Reset()
		obs.Finished(res)
		return res, err
	}

	for {
		if flag.IsSet() {
			return finish(ReasonCancelled, nil)
		}
		if err := ctx.Err(); err != nil {
			return finish(ReasonCancelled, err)
		}

		frame, err := src.Next()

		if flag.IsSet() {
			return finish(ReasonCancelled, nil)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return finish(ReasonCancelled, ctxErr)
		}
		if err != nil {
			switch {
			case errors.Is(err, ErrIdleTimeout):
				logging.WarnWithContext(t.logger, "progress stream idle", "stream_idle",
					logging.String(logging.FieldPromptID, session.PromptID()),
					logging.String(logging.FieldErrorHint, "the server may still be working; check `comfyctl queue list`"),
					logging.String(logging.FieldImpact, "stopped following progress"))
				return finish(ReasonIdleTimeout, nil)
			default:
				return finish(ReasonTransport, fmt.Errorf("progress stream: %w", err))
			}
		}

		events++
		ev, err := Decode(frame)
		if err != nil {
			t.logger.Debug("skipping undecodable frame", logging.Error(err))
			continue
		}
		if done, reason := session.Apply(ev, obs); done {
			return finish(reason, nil)
		}
	}
}
