package stream

import (
	"log/slog"

	"comfyctl/internal/logging"
)

// Observer receives tracker notifications on the receive goroutine.
type Observer interface {
	PromptStarted(promptID string)
	NodeExecuting(promptID, nodeID, class string)
	Progress(p Progress)
	QueueChanged(remaining int)
	PromptFailed(e ExecutionError)
	Finished(r Result)
}

// NopObserver ignores every notification. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) PromptStarted(string)                 {}
func (NopObserver) NodeExecuting(string, string, string) {}
func (NopObserver) Progress(Progress)                    {}
func (NopObserver) QueueChanged(int)                     {}
func (NopObserver) PromptFailed(ExecutionError)          {}
func (NopObserver) Finished(Result)                      {}

// Observers fans notifications out in order.
type Observers []Observer

func (o Observers) PromptStarted(promptID string) {
	for _, obs := range o {
		obs.PromptStarted(promptID)
	}
}

func (o Observers) NodeExecuting(promptID, nodeID, class string) {
	for _, obs := range o {
		obs.NodeExecuting(promptID, nodeID, class)
	}
}

func (o Observers) Progress(p Progress) {
	for _, obs := range o {
		obs.Progress(p)
	}
}

func (o Observers) QueueChanged(remaining int) {
	for _, obs := range o {
		obs.QueueChanged(remaining)
	}
}

func (o Observers) PromptFailed(e ExecutionError) {
	for _, obs := range o {
		obs.PromptFailed(e)
	}
}

func (o Observers) Finished(r Result) {
	for _, obs := range o {
		obs.Finished(r)
	}
}

// LogObserver writes tracker notifications to a structured logger. Progress
// lines are sampled per node.
type LogObserver struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler
}

// NewLogObserver returns an observer logging through logger.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogObserver{
		logger:  logging.NewComponentLogger(logger, "tracker"),
		sampler: logging.NewProgressSampler(0),
	}
}

func (l *LogObserver) PromptStarted(promptID string) {
	l.sampler.Reset()
	l.logger.Info("tracking prompt",
		logging.String(logging.FieldPromptID, promptID),
		logging.String(logging.FieldEventType, string(EventExecuting)))
}

func (l *LogObserver) NodeExecuting(promptID, nodeID, class string) {
	l.logger.Debug("executing node",
		logging.String(logging.FieldPromptID, promptID),
		logging.String(logging.FieldNodeID, nodeID),
		logging.String("node_class", class))
}

func (l *LogObserver) Progress(p Progress) {
	if !l.sampler.ShouldLog(p.Node, p.Value, p.Max) {
		return
	}
	l.logger.Debug("node progress",
		logging.String(logging.FieldPromptID, p.PromptID),
		logging.String(logging.FieldNodeID, p.Node),
		logging.Int("value", p.Value),
		logging.Int("max", p.Max))
}

func (l *LogObserver) QueueChanged(remaining int) {
	l.logger.Debug("queue changed", logging.Int("queue_remaining", remaining))
}

func (l *LogObserver) PromptFailed(e ExecutionError) {
	logging.WarnWithContext(l.logger, "node execution failed", "execution_error",
		logging.String(logging.FieldPromptID, e.PromptID),
		logging.String(logging.FieldNodeID, e.NodeID),
		logging.String("node_type", e.NodeType),
		logging.String(logging.FieldErrorHint, e.ExceptionMessage),
		logging.String(logging.FieldImpact, "prompt produced no outputs"))
}

func (l *LogObserver) Finished(r Result) {
	l.logger.Info("tracking finished",
		logging.String(logging.FieldPromptID, r.PromptID),
		logging.String("reason", string(r.Reason)),
		logging.Int("events", r.Events))
}
