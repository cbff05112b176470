package handler

import "sync"

// Controller is the per-dispatch execution context exposed to handlers.
// It is created when a dispatch starts and discarded when it ends; it is
// never shared across dispatches.
//
// All methods are safe for concurrent use so that handlers running in
// parallel or race mode can share one controller.
type Controller struct {
	mu sync.Mutex

	payload    any
	results    []any
	maxResults int

	aborted     bool
	abortReason string
	abortErr    error

	terminated  bool
	returnValue any

	jumpSet    bool
	jumpTarget int

	sequential bool
}

// NewController creates a controller seeded with the dispatch payload.
// sequential controls whether payload mutation and priority jumps are
// honored; maxResults caps the result list (0 means unlimited, the first
// maxResults values are kept).
func NewController(payload any, sequential bool, maxResults int) *Controller {
	return &Controller{
		payload:    payload,
		sequential: sequential,
		maxResults: maxResults,
	}
}

// Payload returns the current dispatch payload.
func (c *Controller) Payload() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload
}

// ModifyPayload replaces the current payload with fn's return value.
// Mutations are only visible to subsequently invoked handlers in
// sequential mode; in parallel and race modes the payload is a shared
// read-only snapshot and ModifyPayload reports false without applying.
func (c *Controller) ModifyPayload(fn func(current any) any) bool {
	if fn == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sequential {
		return false
	}
	c.payload = fn(c.payload)
	return true
}

// SetResult appends a value to the result list. Once the configured cap is
// reached further values are accepted but not kept.
func (c *Controller) SetResult(value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxResults > 0 && len(c.results) >= c.maxResults {
		return
	}
	c.results = append(c.results, value)
}

// MergeResult folds the current value into the results so far and appends
// the merged value. It is equivalent to SetResult(merge(Results(), value)).
func (c *Controller) MergeResult(value any, merge func(previous []any, current any) any) {
	if merge == nil {
		c.SetResult(value)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	previous := make([]any, len(c.results))
	copy(previous, c.results)

	merged := merge(previous, value)
	if c.maxResults > 0 && len(c.results) >= c.maxResults {
		return
	}
	c.results = append(c.results, merged)
}

// Results returns a snapshot of the result list so far.
func (c *Controller) Results() []any {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]any, len(c.results))
	copy(out, c.results)
	return out
}

// Abort stops the pipeline with a reason. The first abort wins; subsequent
// calls are no-ops. Abort does not interrupt the calling handler's own
// control flow; return an abort Outcome (or simply return) afterward.
func (c *Controller) Abort(reason string) {
	c.AbortWith(reason, nil)
}

// AbortWith stops the pipeline with a reason and an underlying error.
func (c *Controller) AbortWith(reason string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.aborted {
		return
	}
	c.aborted = true
	c.abortReason = reason
	c.abortErr = err
}

// Aborted reports whether the pipeline has been aborted.
func (c *Controller) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// AbortReason returns the abort reason, if any.
func (c *Controller) AbortReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.abortReason
}

// AbortErr returns the error attached to the abort, if any.
func (c *Controller) AbortErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.abortErr
}

// Return terminates the pipeline gracefully with a final value. Distinct
// from Abort: termination is a successful stop. The first return wins.
func (c *Controller) Return(value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminated {
		return
	}
	c.terminated = true
	c.returnValue = value
}

// Terminated reports whether the pipeline has been terminated early.
func (c *Controller) Terminated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminated
}

// ReturnValue returns the early-termination value, if any.
func (c *Controller) ReturnValue() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.returnValue
}

// JumpToPriority requests that the next handler considered is the next
// entry whose priority is at or below target, skipping entries in between.
// Only honored in sequential mode; reports whether the jump was recorded.
func (c *Controller) JumpToPriority(target int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sequential {
		return false
	}
	c.jumpSet = true
	c.jumpTarget = target
	return true
}

// TakeJump consumes a pending priority jump. It is called by the executor
// between handler invocations.
func (c *Controller) TakeJump() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.jumpSet {
		return 0, false
	}
	c.jumpSet = false
	return c.jumpTarget, true
}

// Sequential reports whether the dispatch is running in sequential mode.
func (c *Controller) Sequential() bool {
	return c.sequential
}
