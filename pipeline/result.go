package pipeline

import (
	"sync"
	"time"
)

// HandlerRecord captures the outcome of one handler within a dispatch.
type HandlerRecord struct {
	// ID is the handler id.
	ID string

	// Priority is the handler priority at dispatch time.
	Priority int

	// Executed is true if the handler function was actually invoked.
	Executed bool

	// Skipped is true if the handler was passed over (condition false,
	// paused, jumped over, or not reached after an abort).
	Skipped bool

	// Duration is the invocation time, when timing recording is enabled.
	Duration time.Duration

	// Result is the handler's early-return value, if it produced one.
	Result any

	// Err is the handler's failure, when error recording is enabled.
	Err error
}

// ErrorRecord is one entry of the dispatch's error list.
type ErrorRecord struct {
	// HandlerID is the id of the failing handler.
	HandlerID string

	// Err is the failure.
	Err error

	// Timestamp is when the failure was recorded.
	Timestamp time.Time
}

// ExecutionResult is the immutable record produced at the end of a
// dispatch.
type ExecutionResult struct {
	// Action is the dispatched action name.
	Action string

	// Mode is the effective execution mode.
	Mode Mode

	// Success is true if the dispatch was neither aborted nor had any
	// handler failures. An early return counts as success.
	Success bool

	// Aborted is true if a handler explicitly aborted the pipeline.
	Aborted bool

	// AbortReason is the abort reason, when aborted.
	AbortReason string

	// AbortErr is the optional error attached to the abort.
	AbortErr error

	// Terminated is true if a handler ended the pipeline early with a
	// return value.
	Terminated bool

	// ReturnValue is the early-return value, when terminated.
	ReturnValue any

	// Result is the final collected result: the return value when
	// terminated, otherwise the collector's output.
	Result any

	// Results is the raw ordered result list set by handlers.
	Results []any

	// Handlers holds one record per considered handler.
	Handlers []HandlerRecord

	// HandlersExecuted, HandlersSkipped, and HandlersFailed are aggregate
	// counts over Handlers.
	HandlersExecuted int
	HandlersSkipped  int
	HandlersFailed   int

	// Errors lists every failure observed during the dispatch.
	Errors []ErrorRecord

	// CollectionTimedOut is true if the dispatch stopped waiting for
	// outstanding handlers because the result collection timeout elapsed.
	// Already-scheduled handlers were not stopped; their late results are
	// simply not included.
	CollectionTimedOut bool

	// StartedAt and FinishedAt bound the dispatch.
	StartedAt  time.Time
	FinishedAt time.Time

	// Duration is FinishedAt minus StartedAt.
	Duration time.Duration
}

// AbortError returns a structured abort error, or nil if not aborted.
func (r *ExecutionResult) AbortError() error {
	if !r.Aborted {
		return nil
	}
	return &AbortError{Action: r.Action, Reason: r.AbortReason, Err: r.AbortErr}
}

// recorder accumulates handler and error records during a dispatch.
// Once sealed, late settles from abandoned handlers are dropped so the
// returned ExecutionResult is never mutated after the dispatch finishes.
type recorder struct {
	mu       sync.Mutex
	sealed   bool
	handlers []HandlerRecord
	errors   []ErrorRecord
}

// add appends a record and returns its index, or -1 if sealed.
func (r *recorder) add(rec HandlerRecord) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return -1
	}
	r.handlers = append(r.handlers, rec)
	return len(r.handlers) - 1
}

// update mutates the record at idx under the lock.
func (r *recorder) update(idx int, fn func(*HandlerRecord)) {
	if idx < 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed || idx >= len(r.handlers) {
		return
	}
	fn(&r.handlers[idx])
}

// addError appends to the error list.
func (r *recorder) addError(handlerID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return
	}
	r.errors = append(r.errors, ErrorRecord{
		HandlerID: handlerID,
		Err:       err,
		Timestamp: time.Now(),
	})
}

// seal freezes the recorder and returns its contents.
func (r *recorder) seal() ([]HandlerRecord, []ErrorRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sealed = true
	return r.handlers, r.errors
}
