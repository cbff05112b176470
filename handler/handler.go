package handler

import (
	"context"
	"fmt"
)

// Handler processes one action dispatch.
type Handler interface {
	// Handle executes the handler with the dispatch payload and the
	// per-dispatch controller, and returns an Outcome.
	Handle(ctx context.Context, payload any, pc *Controller) Outcome
}

// Func is a function adapter for the Handler interface.
type Func func(ctx context.Context, payload any, pc *Controller) Outcome

// Handle implements Handler.
func (f Func) Handle(ctx context.Context, payload any, pc *Controller) Outcome {
	if f == nil {
		return Errorf("handler function is nil")
	}
	return f(ctx, payload, pc)
}

// Kind classifies a handler outcome.
type Kind uint8

const (
	// KindContinue lets the pipeline proceed to the next handler.
	KindContinue Kind = iota
	// KindAbort stops the pipeline with a reason.
	KindAbort
	// KindReturn stops the pipeline gracefully with a final value.
	KindReturn
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindContinue:
		return "continue"
	case KindAbort:
		return "abort"
	case KindReturn:
		return "return"
	default:
		return "unknown"
	}
}

// Outcome is the checked continuation value returned by a handler.
type Outcome struct {
	// Kind determines how the pipeline proceeds after this handler.
	Kind Kind

	// Err is a handler failure. It is recorded against the handler in the
	// execution result but does not by itself stop a sequential pipeline.
	Err error

	// Reason carries the abort reason when Kind is KindAbort.
	Reason string

	// Value carries the early-return value when Kind is KindReturn.
	Value any
}

// Continue returns a successful continue outcome.
func Continue() Outcome {
	return Outcome{Kind: KindContinue}
}

// Error returns a continue outcome carrying a handler failure.
func Error(err error) Outcome {
	return Outcome{Kind: KindContinue, Err: err}
}

// Errorf returns a continue outcome carrying a formatted handler failure.
func Errorf(format string, args ...any) Outcome {
	return Outcome{Kind: KindContinue, Err: fmt.Errorf(format, args...)}
}

// Abort returns an abort outcome with the given reason.
func Abort(reason string) Outcome {
	return Outcome{Kind: KindAbort, Reason: reason}
}

// AbortWith returns an abort outcome carrying an underlying error.
func AbortWith(reason string, err error) Outcome {
	return Outcome{Kind: KindAbort, Reason: reason, Err: err}
}

// Return returns a graceful early-termination outcome with a final value.
func Return(value any) Outcome {
	return Outcome{Kind: KindReturn, Value: value}
}

// IsAbort returns true if the outcome aborts the pipeline.
func (o Outcome) IsAbort() bool {
	return o.Kind == KindAbort
}

// IsReturn returns true if the outcome terminates the pipeline with a value.
func (o Outcome) IsReturn() bool {
	return o.Kind == KindReturn
}

// Failed returns true if the handler reported an error.
func (o Outcome) Failed() bool {
	return o.Err != nil
}
