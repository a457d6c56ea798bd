package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Graph construction error codes. These are fatal, surfaced at build time,
// and never retried.
const (
	ErrGraphCycle       ErrorCode = "GRAPH_CYCLE"
	ErrGraphInvalid     ErrorCode = "GRAPH_INVALID"
	ErrGraphEntry       ErrorCode = "GRAPH_ENTRY"
	ErrGraphExit        ErrorCode = "GRAPH_EXIT"
	ErrGraphUnknownNode ErrorCode = "GRAPH_UNKNOWN_NODE"
)

// Node execution error codes.
const (
	ErrThrottle ErrorCode = "THROTTLE"   // rate-limit class, retryable
	ErrCall     ErrorCode = "CALL_ERROR" // downstream dependency failure, goes to fallback
	ErrParse    ErrorCode = "PARSE_ERROR"
	ErrTimeout  ErrorCode = "TIMEOUT"
	ErrCanceled ErrorCode = "CANCELED"
	ErrUnknown  ErrorCode = "UNKNOWN"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	NodeID    string    `json:"node_id,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Retryable: code == ErrThrottle || code == ErrTimeout}
}

// NewGraphError creates a graph-construction error. Graph errors abort the
// run before any node executes and are never retried.
func NewGraphError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithNodeID tags the error with the node it originated from.
func (e *Error) WithNodeID(nodeID string) *Error {
	e.NodeID = nodeID
	return e
}

// IsGraphError reports whether err is a graph-construction error.
func IsGraphError(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code {
	case ErrGraphCycle, ErrGraphInvalid, ErrGraphEntry, ErrGraphExit, ErrGraphUnknownNode:
		return true
	}
	return false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Classify maps a raw error onto the engine taxonomy. Errors that already
// carry a code pass through unchanged; everything else becomes ErrUnknown
// and is not retryable. Node implementations refine this via their own
// exception evaluation hook.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(ErrUnknown, err.Error()).WithCause(err)
}
