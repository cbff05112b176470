package engine

import "errors"

// Sentinel errors for the engine facade.
var (
	// ErrEngineClosed indicates the engine has been closed. Registrations
	// and dispatches fail with this error after Close.
	ErrEngineClosed = errors.New("engine: closed")

	// ErrHookVeto indicates a pre-dispatch hook vetoed the dispatch. The
	// dispatch is recorded as aborted; the hook's error is the cause.
	ErrHookVeto = errors.New("engine: dispatch vetoed by pre-dispatch hook")
)
