package engine

import (
	"context"
	"sync"
	"time"

	"github.com/actionpipe/actionpipe/guard"
	"github.com/actionpipe/actionpipe/handler"
	"github.com/actionpipe/actionpipe/logging"
	"github.com/actionpipe/actionpipe/pipeline"
	"github.com/actionpipe/actionpipe/registry"
	"github.com/actionpipe/actionpipe/stats"
)

// PreHook runs before a dispatch enters the guards. A non-nil error
// vetoes the dispatch; it is recorded as aborted with the hook's error
// as the cause.
type PreHook func(action string, payload any) error

// PostHook runs after each completed pipeline execution. Guarded
// dispatches that were coalesced away do not trigger post hooks; only
// executions that actually ran do.
type PostHook func(action string, result *pipeline.ExecutionResult)

// Engine is the action pipeline facade.
type Engine struct {
	log      *logging.Logger
	registry *registry.Registry
	modes    *pipeline.ModeResolver
	executor *pipeline.Executor
	guards   *guard.Scheduler
	tracker  *stats.Tracker

	mu        sync.Mutex
	preHooks  []PreHook
	postHooks []PostHook
	panics    map[string]uint64
	closed    bool
	inflight  sync.WaitGroup

	// construction-time settings
	name         string
	defaultMode  pipeline.Mode
	maxHandlers  int
	panicHandler pipeline.PanicHandler
	observers    []stats.Observer
}

// New creates an engine ready for registrations and dispatches.
func New(opts ...Option) *Engine {
	e := &Engine{
		log:         logging.Null,
		name:        "actionpipe",
		defaultMode: pipeline.ModeSequential,
		panics:      make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(e)
	}

	var regOpts []registry.Option
	if e.maxHandlers > 0 {
		regOpts = append(regOpts, registry.WithMaxHandlers(e.maxHandlers))
	}
	e.registry = registry.New(regOpts...)
	e.modes = pipeline.NewModeResolver(e.defaultMode)
	e.executor = pipeline.NewExecutor(e.registry, e.modes,
		pipeline.WithPanicHandler(e.onPanic))
	e.guards = guard.NewScheduler()

	e.tracker = stats.NewTracker()
	for _, o := range e.observers {
		e.tracker.AddObserver(o)
	}

	return e
}

// onPanic counts the panic against the action, then forwards to the
// configured panic handler.
func (e *Engine) onPanic(action, handlerID string, value any, stack []byte) {
	e.mu.Lock()
	e.panics[action]++
	e.mu.Unlock()

	e.log.WithAction(action).WithField("handler", handlerID).
		Error("handler panic recovered: %v", value)

	if e.panicHandler != nil {
		e.panicHandler(action, handlerID, value, stack)
	}
}

// Register adds a handler for an action and returns its Registration.
// Entry options control priority, conditions, guards, and lifecycle.
func (e *Engine) Register(action string, h handler.Handler, opts ...registry.EntryOption) (*Registration, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	e.mu.Unlock()

	entry, err := e.registry.Register(action, h, opts...)
	if err != nil {
		return nil, err
	}

	cfg := entry.Config()
	if cfg.Debounce > 0 {
		e.guards.SetDebounce(action, cfg.Debounce)
	}
	if cfg.Throttle > 0 {
		e.guards.SetThrottle(action, cfg.Throttle)
	}

	e.log.WithAction(action).WithField("handler", entry.ID()).
		Debug("handler registered (priority %d)", entry.Priority())

	return &Registration{engine: e, entry: entry}, nil
}

// Dispatch runs the action's pipeline and discards the result. The
// returned error covers engine-level conditions only; handler failures
// and aborts are not errors here.
func (e *Engine) Dispatch(ctx context.Context, action string, payload any, opts ...DispatchOption) error {
	_, err := e.DispatchWithResult(ctx, action, payload, opts...)
	return err
}

// DispatchWithResult runs the action's pipeline and returns its
// ExecutionResult. Handler failures and explicit aborts are reported in
// the result (Success=false, Errors populated), not as the returned
// error. A guarded call that is coalesced away blocks until the
// surviving execution settles and receives that execution's result.
func (e *Engine) DispatchWithResult(ctx context.Context, action string, payload any, opts ...DispatchOption) (*pipeline.ExecutionResult, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	e.inflight.Add(1)
	pre := make([]PreHook, len(e.preHooks))
	copy(pre, e.preHooks)
	e.mu.Unlock()
	defer e.inflight.Done()

	for _, hook := range pre {
		if verr := hook(action, payload); verr != nil {
			res := e.vetoResult(action, verr)
			e.finish(action, res)
			return res, nil
		}
	}

	var pipeOpts pipeline.Options
	for _, opt := range opts {
		opt(&pipeOpts)
	}

	return e.guards.Dispatch(ctx, action, payload, func(ctx context.Context, payload any) *pipeline.ExecutionResult {
		res := e.executor.Execute(ctx, action, payload, pipeOpts)
		e.finish(action, res)
		return res
	})
}

// vetoResult builds the aborted result for a hook veto.
func (e *Engine) vetoResult(action string, cause error) *pipeline.ExecutionResult {
	return &pipeline.ExecutionResult{
		Action:      action,
		Mode:        e.modes.Resolve(action, nil),
		Aborted:     true,
		AbortReason: ErrHookVeto.Error(),
		AbortErr:    cause,
	}
}

// finish records statistics and runs post hooks for one completed
// execution.
func (e *Engine) finish(action string, res *pipeline.ExecutionResult) {
	e.tracker.Record(stats.Record{
		Action:        action,
		Success:       res.Success,
		Aborted:       res.Aborted,
		HandlerErrors: res.HandlersFailed,
		Duration:      res.Duration,
		Timestamp:     res.FinishedAt,
	})

	e.log.WithAction(action).Debug("dispatch finished (success=%t executed=%d failed=%d)",
		res.Success, res.HandlersExecuted, res.HandlersFailed)

	e.mu.Lock()
	post := make([]PostHook, len(e.postHooks))
	copy(post, e.postHooks)
	e.mu.Unlock()

	for _, hook := range post {
		hook(action, res)
	}
}

// AddPreHook installs a hook run before every dispatch.
func (e *Engine) AddPreHook(h PreHook) {
	if h == nil {
		return
	}
	e.mu.Lock()
	e.preHooks = append(e.preHooks, h)
	e.mu.Unlock()
}

// AddPostHook installs a hook run after every completed execution.
func (e *Engine) AddPostHook(h PostHook) {
	if h == nil {
		return
	}
	e.mu.Lock()
	e.postHooks = append(e.postHooks, h)
	e.mu.Unlock()
}

// SetActionExecutionMode overrides the execution mode for one action.
func (e *Engine) SetActionExecutionMode(action string, mode pipeline.Mode) {
	e.modes.Set(action, mode)
}

// ActionExecutionMode returns the per-action mode override, if any.
func (e *Engine) ActionExecutionMode(action string) (pipeline.Mode, bool) {
	return e.modes.Get(action)
}

// RemoveActionExecutionMode removes a per-action mode override.
func (e *Engine) RemoveActionExecutionMode(action string) {
	e.modes.Remove(action)
}

// SetDebounce installs a debounce window for an action. A zero window
// removes the guard.
func (e *Engine) SetDebounce(action string, window time.Duration) {
	e.guards.SetDebounce(action, window)
}

// SetThrottle installs a throttle window for an action. A zero window
// removes the guard.
func (e *Engine) SetThrottle(action string, window time.Duration) {
	e.guards.SetThrottle(action, window)
}

// ActionStats returns aggregated statistics for one action.
func (e *Engine) ActionStats(action string) (stats.ActionStats, bool) {
	return e.tracker.Action(action)
}

// AllActionStats returns aggregated statistics for every dispatched
// action, sorted by action name.
func (e *Engine) AllActionStats() []stats.ActionStats {
	return e.tracker.All()
}

// ClearExecutionStats resets statistics for one action.
func (e *Engine) ClearExecutionStats(action string) {
	e.tracker.Clear(action)
}

// ClearAllExecutionStats resets all statistics.
func (e *Engine) ClearAllExecutionStats() {
	e.tracker.ClearAll()
}

// PanicCount returns the number of recovered handler panics for an
// action.
func (e *Engine) PanicCount(action string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.panics[action]
}

// ActionInfo describes one action's registered handlers.
type ActionInfo struct {
	// Name is the action name.
	Name string

	// HandlerCount is the number of registered handlers.
	HandlerCount int

	// HandlersByPriority maps priority to handler ids in registration
	// order.
	HandlersByPriority map[int][]string
}

// RegistryInfo is a point-in-time summary of the handler registry.
type RegistryInfo struct {
	// Name is the engine name.
	Name string

	// TotalActions is the number of actions with handlers.
	TotalActions int

	// TotalHandlers is the number of registered handlers.
	TotalHandlers int

	// MaxHandlersPerAction is the configured capacity (0 = unlimited).
	MaxHandlersPerAction int

	// DefaultExecutionMode is the mode for actions without an override.
	DefaultExecutionMode pipeline.Mode

	// Actions lists per-action details sorted by name.
	Actions []ActionInfo
}

// RegistryInfo returns a summary of the current registry contents.
func (e *Engine) RegistryInfo() RegistryInfo {
	info := RegistryInfo{
		Name:                 e.name,
		TotalActions:         e.registry.TotalActions(),
		TotalHandlers:        e.registry.TotalHandlers(),
		MaxHandlersPerAction: e.registry.MaxHandlers(),
		DefaultExecutionMode: e.modes.Default(),
	}
	for _, action := range e.registry.Actions() {
		info.Actions = append(info.Actions, ActionInfo{
			Name:               action,
			HandlerCount:       e.registry.Count(action),
			HandlersByPriority: e.registry.HandlersByPriority(action),
		})
	}
	return info
}

// ActionDetails combines an action's registered handler layout with its
// execution statistics.
type ActionDetails struct {
	ActionInfo

	// Stats is nil until the action has been dispatched at least once.
	Stats *stats.ActionStats
}

// ActionDetails returns the handler layout and statistics for one
// action. The second return is false if the action has neither
// registered handlers nor recorded dispatches.
func (e *Engine) ActionDetails(action string) (ActionDetails, bool) {
	d := ActionDetails{
		ActionInfo: ActionInfo{
			Name:               action,
			HandlerCount:       e.registry.Count(action),
			HandlersByPriority: e.registry.HandlersByPriority(action),
		},
	}
	if s, ok := e.tracker.Action(action); ok {
		d.Stats = &s
	}
	return d, d.HandlerCount > 0 || d.Stats != nil
}

// HandlersByTag returns handler ids carrying the tag, grouped by action.
func (e *Engine) HandlersByTag(tag string) map[string][]string {
	return entryIDs(e.registry.ListByTag(tag))
}

// HandlersByCategory returns handler ids in the category, grouped by
// action.
func (e *Engine) HandlersByCategory(category string) map[string][]string {
	return entryIDs(e.registry.ListByCategory(category))
}

func entryIDs(entries map[string][]*registry.Entry) map[string][]string {
	out := make(map[string][]string, len(entries))
	for action, es := range entries {
		ids := make([]string, 0, len(es))
		for _, entry := range es {
			ids = append(ids, entry.ID())
		}
		out[action] = ids
	}
	return out
}

// Registry exposes the underlying handler registry for advanced use.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Close shuts the engine down: further registrations and dispatches
// fail with ErrEngineClosed, in-flight dispatches are drained, and all
// guard timers are cancelled. Close is idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	if err := e.guards.Close(); err != nil {
		return err
	}
	e.inflight.Wait()

	e.log.Info("engine closed")
	return nil
}
