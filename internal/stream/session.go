package stream

// NodeResolver maps node identifiers to class names for display.
type NodeResolver interface {
	ClassOf(nodeID string) string
}

// PreviewPolicy decides what a binary preview frame does to a session.
type PreviewPolicy string

const (
	PreviewStop   PreviewPolicy = "stop"
	PreviewIgnore PreviewPolicy = "ignore"
)

// State is the tracker's coarse phase.
type State int

const (
	StateIdle State = iota
	StateTracking
)

func (s State) String() string {
	if s == StateTracking {
		return "tracking"
	}
	return "idle"
}

// Reason explains why a session ended.
type Reason string

const (
	ReasonCompleted   Reason = "completed"
	ReasonCancelled   Reason = "cancelled"
	ReasonPreview     Reason = "preview"
	ReasonIdleTimeout Reason = "idle_timeout"
	ReasonTransport   Reason = "transport_error"
)

// Progress is the step counter of the running node, clamped to 0..Max.
type Progress struct {
	PromptID string
	Node     string
	Value    int
	Max      int
}

// Session folds events into tracking state. It is not safe for concurrent
// use; the Tracker owns it on the receive goroutine.
type Session struct {
	resolver NodeResolver
	previews PreviewPolicy

	state     State
	promptID  string
	node      string
	nodeClass string
	progress  Progress

	lastExecNull   bool
	queueKnown     bool
	queueRemaining int
}

// NewSession returns an idle session. A nil resolver leaves classes blank.
func NewSession(resolver NodeResolver, previews PreviewPolicy) *Session {
	if previews == "" {
		previews = PreviewStop
	}
	return &Session{resolver: resolver, previews: previews}
}

// State reports the current phase.
func (s *Session) State() State { return s.state }

// PromptID returns the tracked prompt, if any.
func (s *Session) PromptID() string { return s.promptID }

// Node returns the executing node and its class.
func (s *Session) Node() (string, string) { return s.node, s.nodeClass }

// Progress returns the last step counter.
func (s *Session) Progress() Progress { return s.progress }

// QueueRemaining returns the last reported queue depth and whether one has
// been seen.
func (s *Session) QueueRemaining() (int, bool) { return s.queueRemaining, s.queueKnown }

// Apply folds ev into the session, notifying obs, and reports whether the
// session is over.
func (s *Session) Apply(ev Event, obs Observer) (bool, Reason) {
	if obs == nil {
		obs = NopObserver{}
	}
	switch ev.Type {
	case EventStatus:
		if ev.Status == nil {
			return false, ""
		}
		if !s.queueKnown || s.queueRemaining != ev.Status.QueueRemaining {
			obs.QueueChanged(ev.Status.QueueRemaining)
		}
		s.queueKnown = true
		s.queueRemaining = ev.Status.QueueRemaining
		return s.finishedIfDrained()

	case EventExecuting:
		if ev.Executing == nil {
			return false, ""
		}
		if id := ev.Executing.PromptID; id != "" && id != s.promptID {
			s.promptID = id
			s.state = StateTracking
			s.progress = Progress{PromptID: id}
			obs.PromptStarted(id)
		}
		if ev.Executing.Node == nil {
			s.lastExecNull = true
			s.node, s.nodeClass = "", ""
			return s.finishedIfDrained()
		}
		s.lastExecNull = false
		s.node = *ev.Executing.Node
		s.nodeClass = ""
		if s.resolver != nil {
			s.nodeClass = s.resolver.ClassOf(s.node)
		}
		s.progress = Progress{PromptID: s.promptID, Node: s.node}
		obs.NodeExecuting(s.promptID, s.node, s.nodeClass)
		return false, ""

	case EventProgress:
		if ev.Progress == nil {
			return false, ""
		}
		p := ev.Progress
		node := p.Node
		if node == "" {
			node = s.node
		}
		promptID := p.PromptID
		if promptID == "" {
			promptID = s.promptID
		}
		maxSteps := max(p.Max, 0)
		value := min(max(p.Value, 0), maxSteps)
		s.progress = Progress{PromptID: promptID, Node: node, Value: value, Max: maxSteps}
		obs.Progress(s.progress)
		return false, ""

	case EventExecutionError:
		if ev.Error != nil {
			obs.PromptFailed(*ev.Error)
		}
		return false, ""

	case EventPreview:
		if s.previews == PreviewIgnore {
			return false, ""
		}
		s.state = StateIdle
		return true, ReasonPreview
	}
	return false, ""
}

func (s *Session) finishedIfDrained() (bool, Reason) {
	if s.lastExecNull && s.queueKnown && s.queueRemaining == 0 {
		s.state = StateIdle
		return true, ReasonCompleted
	}
	return false, ""
}

// Reset returns the session to idle, forgetting all state.
func (s *Session) Reset() {
	*s = Session{resolver: s.resolver, previews: s.previews}
}
