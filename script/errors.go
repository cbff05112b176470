package script

import "errors"

// Sentinel errors for scripted handlers and conditions.
var (
	// ErrNoHandleFunction indicates the chunk does not define a global
	// handle function.
	ErrNoHandleFunction = errors.New("script: chunk does not define handle(payload)")

	// ErrClosed indicates the script's Lua state has been closed.
	ErrClosed = errors.New("script: state closed")
)
