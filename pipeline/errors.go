package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the pipeline.
var (
	// ErrHandlerFailed is the base kind for handler failures.
	ErrHandlerFailed = errors.New("pipeline: handler failed")

	// ErrHandlerTimeout indicates a handler exceeded its timeout.
	ErrHandlerTimeout = errors.New("pipeline: handler timeout exceeded")

	// ErrHandlerPanic indicates a handler panicked.
	ErrHandlerPanic = errors.New("pipeline: handler panicked")

	// ErrValidation indicates a payload validator rejected the dispatch
	// payload before the handler was invoked.
	ErrValidation = errors.New("pipeline: payload validation failed")

	// ErrAborted indicates the pipeline was stopped by an explicit abort.
	ErrAborted = errors.New("pipeline: dispatch aborted")

	// ErrUnknownMode indicates an unrecognized execution mode name.
	ErrUnknownMode = errors.New("pipeline: unknown execution mode")
)

// HandlerError wraps an error returned by a handler.
type HandlerError struct {
	// HandlerID is the id of the failing handler.
	HandlerID string

	// Action is the dispatched action name.
	Action string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s failed for action %s: %v", e.HandlerID, e.Action, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error { return e.Err }

// Is allows errors.Is to match HandlerError with ErrHandlerFailed.
func (e *HandlerError) Is(target error) bool { return target == ErrHandlerFailed }

// TimeoutError reports that a handler exceeded its configured timeout.
// It is a subtype of handler failure: errors.Is matches both
// ErrHandlerTimeout and ErrHandlerFailed.
type TimeoutError struct {
	// HandlerID is the id of the timed-out handler.
	HandlerID string

	// Action is the dispatched action name.
	Action string

	// Timeout is the configured limit that was exceeded.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("handler %s timed out after %v for action %s", e.HandlerID, e.Timeout, e.Action)
}

// Is allows errors.Is to match TimeoutError with ErrHandlerTimeout and
// ErrHandlerFailed.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrHandlerTimeout || target == ErrHandlerFailed
}

// PanicError wraps a recovered handler panic.
type PanicError struct {
	// HandlerID is the id of the panicking handler.
	HandlerID string

	// Action is the dispatched action name.
	Action string

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler %s panicked for action %s: %v", e.HandlerID, e.Action, e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic and
// ErrHandlerFailed.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic || target == ErrHandlerFailed
}

// ValidationError reports a payload validator rejection. The handler was
// not invoked but is counted as failed.
type ValidationError struct {
	// HandlerID is the id of the handler whose validator rejected.
	HandlerID string

	// Action is the dispatched action name.
	Action string

	// Err is the validator's error.
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("payload validation failed for handler %s on action %s: %v", e.HandlerID, e.Action, e.Err)
}

// Unwrap returns the validator's error.
func (e *ValidationError) Unwrap() error { return e.Err }

// Is allows errors.Is to match ValidationError with ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// AbortError carries the reason and optional underlying error of an
// explicit pipeline abort.
type AbortError struct {
	// Action is the dispatched action name.
	Action string

	// Reason is the abort reason supplied by the handler.
	Reason string

	// Err is the optional underlying error.
	Err error
}

// Error implements the error interface.
func (e *AbortError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch aborted for action %s: %s: %v", e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("dispatch aborted for action %s: %s", e.Action, e.Reason)
}

// Unwrap returns the underlying error.
func (e *AbortError) Unwrap() error { return e.Err }

// Is allows errors.Is to match AbortError with ErrAborted.
func (e *AbortError) Is(target error) bool { return target == ErrAborted }
