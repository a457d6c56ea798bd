package types

// EventKind tags a value emitted by a node during execution.
type EventKind string

const (
	// EventNormal carries partial or streamed output; non-terminal.
	EventNormal EventKind = "normal"
	// EventSuccess is terminal: the node, and possibly the whole run,
	// succeeded.
	EventSuccess EventKind = "success"
	// EventFailure is terminal and unrecoverable.
	EventFailure EventKind = "failure"
	// EventRetry signals a transient failure that should be re-attempted.
	EventRetry EventKind = "retry"
	// EventFallback signals that retries are exhausted or the failure is
	// non-retryable, and a default/degraded result is required.
	EventFallback EventKind = "fallback"
)

// Event is a tagged value emitted by a node during execution. Success and
// Failure are specializations of a stop signal: when one is set at the
// engine level, no further node is scheduled in the run.
type Event struct {
	Kind    EventKind           `json:"kind"`
	Results []*WorkflowVariable `json:"results,omitempty"`
	Message string              `json:"message,omitempty"`
	Err     error               `json:"-"`
}

// Stop reports whether the event halts further scheduling when raised to
// the engine level.
func (e Event) Stop() bool {
	return e.Kind == EventSuccess || e.Kind == EventFailure
}

// NewNormalEvent creates a non-terminal streamed-output event.
func NewNormalEvent(results ...*WorkflowVariable) Event {
	return Event{Kind: EventNormal, Results: results}
}

// NewSuccessEvent creates a terminal success event.
func NewSuccessEvent(results ...*WorkflowVariable) Event {
	return Event{Kind: EventSuccess, Results: results}
}

// NewFailureEvent creates a terminal failure event.
func NewFailureEvent(message string, err error) Event {
	return Event{Kind: EventFailure, Message: message, Err: err}
}

// NewRetryEvent creates a transient-failure event.
func NewRetryEvent(message string, err error) Event {
	return Event{Kind: EventRetry, Message: message, Err: err}
}

// NewFallbackEvent creates a fallback event carrying the original
// message and error context.
func NewFallbackEvent(message string, err error) Event {
	return Event{Kind: EventFallback, Message: message, Err: err}
}
