package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/actionpipe/actionpipe/handler"
	"github.com/actionpipe/actionpipe/registry"
)

// PanicHandler is called when a handler panics. The panic is recovered
// and recorded as a handler failure either way.
type PanicHandler func(action, handlerID string, value any, stack []byte)

// DefaultPanicHandler writes the panic and stack trace to stderr.
func DefaultPanicHandler(action, handlerID string, value any, stack []byte) {
	fmt.Fprintf(os.Stderr, "actionpipe: handler %s panicked for action %s: %v\n%s\n", handlerID, action, value, stack)
}

// Options carries per-dispatch execution options.
type Options struct {
	// Query filters the action's handler set for this dispatch.
	Query *registry.Query

	// Mode overrides the resolved execution mode.
	Mode *Mode

	// Collector configures result collection.
	Collector CollectorConfig

	// AutoAbort installs a dispatch-level deadline on the shared context.
	// Handlers may observe it for cooperative cancellation; when it
	// fires, no further handlers are invoked. Zero means no deadline.
	AutoAbort time.Duration
}

// Executor orchestrates the handlers of one dispatch.
type Executor struct {
	registry     *registry.Registry
	modes        *ModeResolver
	panicHandler PanicHandler
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithPanicHandler sets the panic handler for recovered handler panics.
func WithPanicHandler(h PanicHandler) ExecutorOption {
	return func(x *Executor) {
		if h != nil {
			x.panicHandler = h
		}
	}
}

// NewExecutor creates an executor over the given registry and resolver.
func NewExecutor(reg *registry.Registry, modes *ModeResolver, opts ...ExecutorOption) *Executor {
	x := &Executor{
		registry:     reg,
		modes:        modes,
		panicHandler: DefaultPanicHandler,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Execute runs one dispatch to completion and returns its result.
func (x *Executor) Execute(ctx context.Context, action string, payload any, opts Options) *ExecutionResult {
	start := time.Now()

	entries := x.registry.Snapshot(action, opts.Query)
	mode := x.modes.Resolve(action, opts.Mode)
	collector := NewCollector(opts.Collector)
	pc := handler.NewController(payload, mode == ModeSequential, collector.MaxResults())

	if opts.AutoAbort > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.AutoAbort)
		defer cancel()
	}

	res := &ExecutionResult{
		Action:    action,
		Mode:      mode,
		StartedAt: start,
	}
	rec := &recorder{}

	switch mode {
	case ModeParallel:
		x.runParallel(ctx, action, entries, pc, collector, rec, res)
	case ModeRace:
		x.runRace(ctx, action, entries, pc, rec)
	default:
		x.runSequential(ctx, action, entries, pc, collector, rec, res)
	}

	res.Handlers, res.Errors = rec.seal()
	for _, h := range res.Handlers {
		if h.Executed {
			res.HandlersExecuted++
		}
		if h.Skipped {
			res.HandlersSkipped++
		}
	}
	res.HandlersFailed = len(res.Errors)

	res.Aborted = pc.Aborted()
	res.AbortReason = pc.AbortReason()
	res.AbortErr = pc.AbortErr()
	res.Terminated = pc.Terminated()
	res.ReturnValue = pc.ReturnValue()
	res.Results = pc.Results()
	if res.Terminated {
		res.Result = res.ReturnValue
	} else {
		res.Result = collector.Finalize(res.Results)
	}
	res.Success = !res.Aborted && res.HandlersFailed == 0

	res.FinishedAt = time.Now()
	res.Duration = res.FinishedAt.Sub(res.StartedAt)
	return res
}

// runSequential iterates the sorted entries one at a time.
func (x *Executor) runSequential(ctx context.Context, action string, entries []*registry.Entry, pc *handler.Controller, collector *Collector, rec *recorder, res *ExecutionResult) {
	var wg sync.WaitGroup

	i := 0
	for i < len(entries) {
		select {
		case <-ctx.Done():
			pc.AbortWith("dispatch cancelled", ctx.Err())
		default:
		}
		if pc.Aborted() || pc.Terminated() {
			break
		}

		e := entries[i]
		status, skipped := x.preflight(action, e, pc, rec)
		if skipped {
			if status {
				x.finishOnce(e)
			}
			i++
			continue
		}

		cfg := e.Config()
		if cfg.Blocking {
			idx := rec.add(HandlerRecord{ID: e.ID(), Priority: e.Priority(), Executed: true})
			x.invokeRecorded(ctx, action, e, pc, rec, idx)
			x.finishOnce(e)

			if pc.Aborted() || pc.Terminated() {
				break
			}
			if target, ok := pc.TakeJump(); ok {
				j := i + 1
				for j < len(entries) && entries[j].Priority() > target {
					rec.add(HandlerRecord{ID: entries[j].ID(), Priority: entries[j].Priority(), Skipped: true})
					j++
				}
				i = j
				continue
			}
		} else {
			// Fire-and-forget: initiated in order, settles later, still
			// counted once it settles.
			idx := rec.add(HandlerRecord{ID: e.ID(), Priority: e.Priority(), Executed: true})
			wg.Add(1)
			go func(e *registry.Entry, idx int) {
				defer wg.Done()
				x.invokeRecorded(ctx, action, e, pc, rec, idx)
			}(e, idx)
			x.finishOnce(e)
		}
		i++
	}

	x.awaitSettles(&wg, collector.Timeout(), res)
}

// runParallel invokes all eligible handlers concurrently against the same
// payload snapshot.
func (x *Executor) runParallel(ctx context.Context, action string, entries []*registry.Entry, pc *handler.Controller, collector *Collector, rec *recorder, res *ExecutionResult) {
	var wg sync.WaitGroup

	for _, e := range entries {
		status, skipped := x.preflight(action, e, pc, rec)
		if skipped {
			if status {
				x.finishOnce(e)
			}
			continue
		}

		idx := rec.add(HandlerRecord{ID: e.ID(), Priority: e.Priority()})
		wg.Add(1)
		go func(e *registry.Entry, idx int) {
			defer wg.Done()

			// After an abort, in-flight handlers finish but nothing new
			// is invoked. Entries that never ran stay once-registered.
			if pc.Aborted() {
				rec.update(idx, func(h *HandlerRecord) { h.Skipped = true })
				return
			}

			rec.update(idx, func(h *HandlerRecord) { h.Executed = true })
			x.invokeRecorded(ctx, action, e, pc, rec, idx)
			x.finishOnce(e)
		}(e, idx)
	}

	x.awaitSettles(&wg, collector.Timeout(), res)
}

// runRace invokes all eligible handlers concurrently; the first settle
// wins and the rest are cancelled through the shared context.
func (x *Executor) runRace(ctx context.Context, action string, entries []*registry.Entry, pc *handler.Controller, rec *recorder) {
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var launched []*registry.Entry
	ch := make(chan raceSettle, len(entries))

	for _, e := range entries {
		status, skipped := x.preflight(action, e, pc, rec)
		if skipped {
			if status {
				x.finishOnce(e)
			}
			continue
		}

		idx := rec.add(HandlerRecord{ID: e.ID(), Priority: e.Priority(), Executed: true})
		launched = append(launched, e)
		go func(e *registry.Entry, idx int) {
			started := time.Now()
			out := x.invoke(rctx, action, e, pc)
			ch <- raceSettle{entry: e, idx: idx, out: out, dur: time.Since(started)}
		}(e, idx)
	}

	if len(launched) == 0 {
		return
	}

	// First settle determines the outcome, even if it is an error.
	var winner raceSettle
	select {
	case winner = <-ch:
	case <-ctx.Done():
		pc.AbortWith("dispatch cancelled", ctx.Err())
		cancel()
		x.drainRace(ch, rec, len(launched))
		x.removeOnce(launched)
		return
	}

	x.recordSettle(action, winner.entry, winner.out, winner.dur, rec, winner.idx)
	x.applyOutcome(pc, winner.out)
	cancel()

	x.drainRace(ch, rec, len(launched)-1)
	x.removeOnce(launched)
}

// raceSettle is one handler's settle within a race dispatch.
type raceSettle struct {
	entry *registry.Entry
	idx   int
	out   handler.Outcome
	dur   time.Duration
}

// drainRace collects already-settled losers without waiting for handlers
// that ignore cancellation. Their outcomes are recorded but not applied.
func (x *Executor) drainRace(ch chan raceSettle, rec *recorder, remaining int) {
	grace := time.NewTimer(5 * time.Millisecond)
	defer grace.Stop()

	for remaining > 0 {
		select {
		case s := <-ch:
			rec.update(s.idx, func(h *HandlerRecord) {
				h.Duration = s.dur
				if s.out.Err != nil && !errors.Is(s.out.Err, context.Canceled) {
					h.Err = s.out.Err
				}
			})
			remaining--
		case <-grace.C:
			return
		}
	}
}

// preflight handles paused entries, validators, and conditions before a
// handler is invoked. It returns (processed, skipped): skipped means the
// handler must not be invoked; processed means the entry counts as
// reached for once-removal purposes.
func (x *Executor) preflight(action string, e *registry.Entry, pc *handler.Controller, rec *recorder) (processed, skipped bool) {
	cfg := e.Config()

	if !e.IsActive() {
		rec.add(HandlerRecord{ID: e.ID(), Priority: e.Priority(), Skipped: true})
		return false, true
	}

	if cfg.Validator != nil {
		if verr := cfg.Validator(pc.Payload()); verr != nil {
			ve := &ValidationError{HandlerID: e.ID(), Action: action, Err: verr}
			idx := rec.add(HandlerRecord{ID: e.ID(), Priority: e.Priority()})
			if cfg.Metrics.RecordErrors {
				rec.update(idx, func(h *HandlerRecord) { h.Err = ve })
			}
			rec.addError(e.ID(), ve)
			return true, true
		}
	}

	if cfg.Condition != nil && !cfg.Condition() {
		rec.add(HandlerRecord{ID: e.ID(), Priority: e.Priority(), Skipped: true})
		return true, true
	}

	return true, false
}

// invokeRecorded invokes a handler and records its settle.
func (x *Executor) invokeRecorded(ctx context.Context, action string, e *registry.Entry, pc *handler.Controller, rec *recorder, idx int) {
	started := time.Now()
	out := x.invoke(ctx, action, e, pc)
	x.recordSettle(action, e, out, time.Since(started), rec, idx)
	x.applyOutcome(pc, out)
}

// recordSettle fills a handler record after the handler settled.
func (x *Executor) recordSettle(action string, e *registry.Entry, out handler.Outcome, dur time.Duration, rec *recorder, idx int) {
	cfg := e.Config()

	rec.update(idx, func(h *HandlerRecord) {
		if cfg.Metrics.RecordTiming {
			h.Duration = dur
		}
		if out.Err != nil && cfg.Metrics.RecordErrors {
			h.Err = out.Err
		}
		if out.IsReturn() {
			h.Result = out.Value
		}
	})

	// Failures always reach the error list so they are never silently
	// swallowed, regardless of per-entry recording flags.
	if out.Err != nil {
		rec.addError(e.ID(), out.Err)
	}
}

// applyOutcome merges a handler outcome into the controller.
func (x *Executor) applyOutcome(pc *handler.Controller, out handler.Outcome) {
	switch out.Kind {
	case handler.KindAbort:
		pc.AbortWith(out.Reason, out.Err)
	case handler.KindReturn:
		pc.Return(out.Value)
	}
}

// invoke runs one handler with panic recovery and the entry's timeout.
func (x *Executor) invoke(ctx context.Context, action string, e *registry.Entry, pc *handler.Controller) handler.Outcome {
	cfg := e.Config()
	if cfg.Timeout <= 0 {
		return x.invokeDirect(ctx, action, e, pc)
	}

	tctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	done := make(chan handler.Outcome, 1)
	go func() {
		done <- x.invokeDirect(tctx, action, e, pc)
	}()

	select {
	case out := <-done:
		return out
	case <-tctx.Done():
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return handler.Error(&TimeoutError{HandlerID: e.ID(), Action: action, Timeout: cfg.Timeout})
		}
		return handler.Error(tctx.Err())
	}
}

// invokeDirect runs the handler in the current goroutine with panic
// recovery.
func (x *Executor) invokeDirect(ctx context.Context, action string, e *registry.Entry, pc *handler.Controller) (out handler.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			out = handler.Error(&PanicError{HandlerID: e.ID(), Action: action, Value: r, Stack: stack})

			if x.panicHandler != nil {
				func() {
					defer func() { _ = recover() }()
					x.panicHandler(action, e.ID(), r, stack)
				}()
			}
		}
	}()

	raw := e.Handler().Handle(ctx, pc.Payload(), pc)
	if raw.Err != nil {
		raw.Err = &HandlerError{HandlerID: e.ID(), Action: action, Err: raw.Err}
	}
	return raw
}

// awaitSettles waits for outstanding handlers, bounded by the collection
// timeout.
func (x *Executor) awaitSettles(wg *sync.WaitGroup, timeout time.Duration, res *ExecutionResult) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	if timeout <= 0 {
		<-done
		return
	}

	select {
	case <-done:
	case <-time.After(timeout):
		res.CollectionTimedOut = true
	}
}

// finishOnce removes a processed once-entry from the registry.
func (x *Executor) finishOnce(e *registry.Entry) {
	if e.Config().Once {
		x.registry.Unregister(e.Action(), e.ID())
	}
}

// removeOnce removes all processed once-entries after a race.
func (x *Executor) removeOnce(entries []*registry.Entry) {
	for _, e := range entries {
		x.finishOnce(e)
	}
}
