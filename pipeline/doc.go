// Package pipeline executes the handlers of one action dispatch.
//
// The Executor snapshots the sorted, filtered handler list from the
// registry, resolves the effective execution mode, builds a per-dispatch
// handler.Controller, runs the handlers, and assembles an immutable
// ExecutionResult.
//
// # Execution modes
//
//   - Sequential: strict one-at-a-time execution in priority order.
//     Blocking handlers are awaited before the next one starts;
//     non-blocking handlers are initiated in order and settle later.
//     Abort, early return, and priority jumps are honored between
//     invocations.
//   - Parallel: all eligible handlers run concurrently against the same
//     payload snapshot. The dispatch waits for all of them to settle.
//     After an abort, in-flight handlers finish but no further handlers
//     are newly invoked.
//   - Race: all eligible handlers run concurrently; the first to settle
//     (success or error) determines the outcome and the rest are
//     cancelled best-effort through the shared context.
//
// # Failure policy
//
// A handler error never stops a sequential pipeline by itself; it is
// recorded in the result and execution continues. Only an explicit abort
// stops the pipeline. Per-handler timeouts are treated as handler
// failures with a timeout error kind.
package pipeline
