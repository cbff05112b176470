// Package handler defines the contract between the pipeline engine and
// registered action handlers.
//
// A handler receives the dispatch payload and a per-dispatch *Controller,
// and returns an Outcome describing how the pipeline should proceed:
//
//   - Continue: the pipeline moves on to the next handler.
//   - Abort: the pipeline stops with a reason (and optional error).
//   - Return: the pipeline stops gracefully with a final value.
//
// Continuation is a checked value rather than implicit control flow, so a
// handler cannot "forget" to stop the pipeline after deciding to abort.
// The same flow decisions are also available as Controller methods for
// handlers that need to record them mid-execution; the executor honors
// whichever was set first.
//
// Handler errors do not stop a sequential pipeline by themselves. A failed
// handler is recorded in the ExecutionResult and the pipeline continues;
// only an explicit Abort stops it. Failure isolation is opt-in per handler.
package handler
