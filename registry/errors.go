package registry

import "errors"

// Sentinel errors for the registry.
var (
	// ErrNilHandler is returned when a nil handler is registered.
	ErrNilHandler = errors.New("registry: handler cannot be nil")

	// ErrInvalidAction is returned when the action name is empty.
	ErrInvalidAction = errors.New("registry: action name cannot be empty")

	// ErrCapacityExceeded is returned when registering would exceed the
	// configured per-action handler limit.
	ErrCapacityExceeded = errors.New("registry: max handlers exceeded for action")

	// ErrDuplicateHandlerID is returned when a handler id is already in use
	// within the action's handler set.
	ErrDuplicateHandlerID = errors.New("registry: duplicate handler id")
)
