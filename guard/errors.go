package guard

import "errors"

// Sentinel errors for the guard scheduler.
var (
	// ErrClosed indicates the scheduler has been closed. Pending guarded
	// calls are released with this error; no trailing executions run.
	ErrClosed = errors.New("guard: scheduler closed")
)
