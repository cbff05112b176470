// Package engine provides the public facade of the action pipeline.
//
// An Engine ties together the handler registry, the pipeline executor,
// the guard scheduler, and the statistics tracker behind one API:
//
//	eng := engine.New()
//	defer eng.Close()
//
//	reg, _ := eng.Register("save", handler.Func(saveHandler),
//		registry.WithPriority(10))
//	defer reg.Unregister()
//
//	result, err := eng.DispatchWithResult(ctx, "save", payload)
//
// Dispatch errors follow a two-level policy. Handler failures and
// explicit aborts are part of the ExecutionResult (Success=false,
// Errors populated) and never surface as the returned error. The
// returned error is reserved for engine-level conditions such as a
// closed engine or a cancelled context while a guard held the call.
//
// Registration returns a Registration whose Unregister method is
// idempotent; Pause and Resume temporarily exclude the handler from
// dispatches without losing its place in the registry.
package engine
