package registry

import (
	"sync/atomic"
	"time"

	"github.com/actionpipe/actionpipe/handler"
)

// Condition is a predicate evaluated fresh at dispatch time. A handler
// whose condition returns false is skipped, not executed.
type Condition func() bool

// Validator checks the dispatch payload before a handler is invoked.
// A non-nil error counts the handler as failed without invoking it.
type Validator func(payload any) error

// MetricsConfig controls what is recorded per invocation.
type MetricsConfig struct {
	// RecordTiming enables per-invocation duration recording.
	RecordTiming bool

	// RecordErrors enables per-invocation error recording.
	RecordErrors bool
}

// EntryConfig holds the metadata for one registered handler.
type EntryConfig struct {
	// ID uniquely identifies the handler within its action's handler set.
	// Auto-generated if empty.
	ID string

	// Priority determines execution order; higher runs earlier. Default 0.
	Priority int

	// Condition is an optional dispatch-time predicate.
	Condition Condition

	// Blocking controls whether a sequential pipeline awaits this handler's
	// completion before continuing. Default true.
	Blocking bool

	// Once removes the entry after its first processed execution
	// (success, skip, or failure - but not if never reached due to abort).
	Once bool

	// Tags, Category, and Environment are metadata used purely for
	// dispatch-time filtering.
	Tags        []string
	Category    string
	Environment string

	// Timeout bounds a single handler execution. Exceeding it is treated
	// as a failure with a timeout error kind. Zero means no timeout.
	Timeout time.Duration

	// Debounce and Throttle rate-limit dispatch calls for the action this
	// handler is registered on. Guards are keyed by action name, so all
	// handlers on one action share one guard window.
	Debounce time.Duration
	Throttle time.Duration

	// Validator is an optional pre-invocation payload check.
	Validator Validator

	// Metrics controls per-invocation recording.
	Metrics MetricsConfig
}

// DefaultEntryConfig returns a default entry configuration.
func DefaultEntryConfig() EntryConfig {
	return EntryConfig{
		Blocking: true,
		Metrics:  MetricsConfig{RecordTiming: true, RecordErrors: true},
	}
}

// EntryOption configures a handler entry at registration time.
type EntryOption func(*EntryConfig)

// WithID sets an explicit handler id.
func WithID(id string) EntryOption {
	return func(c *EntryConfig) { c.ID = id }
}

// WithPriority sets the handler priority (higher runs earlier).
func WithPriority(p int) EntryOption {
	return func(c *EntryConfig) { c.Priority = p }
}

// WithCondition sets a dispatch-time predicate.
func WithCondition(cond Condition) EntryOption {
	return func(c *EntryConfig) { c.Condition = cond }
}

// NonBlocking marks the handler as fire-and-forget in sequential mode:
// the pipeline initiates it in order but does not await completion before
// the next handler.
func NonBlocking() EntryOption {
	return func(c *EntryConfig) { c.Blocking = false }
}

// Once removes the entry after its first processed execution.
func Once() EntryOption {
	return func(c *EntryConfig) { c.Once = true }
}

// WithTags sets filtering tags.
func WithTags(tags ...string) EntryOption {
	return func(c *EntryConfig) { c.Tags = tags }
}

// WithCategory sets the filtering category.
func WithCategory(category string) EntryOption {
	return func(c *EntryConfig) { c.Category = category }
}

// WithEnvironment sets the filtering environment.
func WithEnvironment(env string) EntryOption {
	return func(c *EntryConfig) { c.Environment = env }
}

// WithTimeout bounds a single handler execution.
func WithTimeout(d time.Duration) EntryOption {
	return func(c *EntryConfig) { c.Timeout = d }
}

// WithDebounce rate-limits dispatches for the handler's action: only the
// last call within a quiet period of d reaches the executor.
func WithDebounce(d time.Duration) EntryOption {
	return func(c *EntryConfig) { c.Debounce = d }
}

// WithThrottle rate-limits dispatches for the handler's action: the first
// call in a window executes immediately, later calls coalesce into one
// trailing execution.
func WithThrottle(d time.Duration) EntryOption {
	return func(c *EntryConfig) { c.Throttle = d }
}

// WithValidator sets a pre-invocation payload check.
func WithValidator(v Validator) EntryOption {
	return func(c *EntryConfig) { c.Validator = v }
}

// WithMetrics sets per-invocation recording flags.
func WithMetrics(m MetricsConfig) EntryOption {
	return func(c *EntryConfig) { c.Metrics = m }
}

// EntryState represents the lifecycle state of a registered entry.
type EntryState int32

const (
	// EntryStateActive means the entry participates in dispatches.
	EntryStateActive EntryState = iota

	// EntryStatePaused means the entry is temporarily skipped at dispatch
	// time without being removed.
	EntryStatePaused

	// EntryStateRemoved means the entry has been unregistered.
	EntryStateRemoved
)

// String returns a human-readable state name.
func (s EntryState) String() string {
	switch s {
	case EntryStateActive:
		return "active"
	case EntryStatePaused:
		return "paused"
	case EntryStateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Entry is one registered handler for one action.
type Entry struct {
	id      string
	action  string
	handler handler.Handler
	config  EntryConfig
	seq     uint64
	state   atomic.Int32
}

func newEntry(id, action string, h handler.Handler, config EntryConfig, seq uint64) *Entry {
	e := &Entry{
		id:      id,
		action:  action,
		handler: h,
		config:  config,
		seq:     seq,
	}
	e.state.Store(int32(EntryStateActive))
	return e
}

// ID returns the handler id.
func (e *Entry) ID() string { return e.id }

// Action returns the action name the entry is registered on.
func (e *Entry) Action() string { return e.action }

// Handler returns the registered handler.
func (e *Entry) Handler() handler.Handler { return e.handler }

// Config returns the entry configuration.
func (e *Entry) Config() EntryConfig { return e.config }

// Priority returns the entry priority.
func (e *Entry) Priority() int { return e.config.Priority }

// State returns the current entry state.
func (e *Entry) State() EntryState {
	return EntryState(e.state.Load())
}

// IsActive returns true if the entry participates in dispatches.
func (e *Entry) IsActive() bool {
	return e.State() == EntryStateActive
}

// Pause temporarily excludes the entry from dispatches. Reports whether
// the state changed.
func (e *Entry) Pause() bool {
	return e.state.CompareAndSwap(int32(EntryStateActive), int32(EntryStatePaused))
}

// Resume reactivates a paused entry. Reports whether the state changed;
// removed entries cannot be resumed.
func (e *Entry) Resume() bool {
	return e.state.CompareAndSwap(int32(EntryStatePaused), int32(EntryStateActive))
}

func (e *Entry) markRemoved() {
	e.state.Store(int32(EntryStateRemoved))
}
