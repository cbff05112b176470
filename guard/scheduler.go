package guard

import (
	"context"
	"sync"
	"time"

	"github.com/actionpipe/actionpipe/pipeline"
)

// ExecFunc runs one guarded dispatch and produces its result.
type ExecFunc func(ctx context.Context, payload any) *pipeline.ExecutionResult

// windows holds the configured guard windows for one action.
type windows struct {
	debounce time.Duration
	throttle time.Duration
}

// pending is one deferred execution shared by all callers waiting on it.
type pending struct {
	payload any
	run     ExecFunc
	timer   *time.Timer

	done   chan struct{}
	result *pipeline.ExecutionResult
	err    error
}

func (p *pending) settle(result *pipeline.ExecutionResult, err error) {
	p.result = result
	p.err = err
	close(p.done)
}

// throttleState tracks an open throttle window for one action.
type throttleState struct {
	trailing *pending
}

// Scheduler applies per-action debounce and throttle guards in front of
// an executor. It is safe for concurrent use.
type Scheduler struct {
	mu      sync.Mutex
	windows map[string]windows

	debouncing map[string]*pending
	throttling map[string]*throttleState

	closed bool
}

// NewScheduler creates an empty scheduler. Actions have no guards until
// SetDebounce or SetThrottle is called for them.
func NewScheduler() *Scheduler {
	return &Scheduler{
		windows:    make(map[string]windows),
		debouncing: make(map[string]*pending),
		throttling: make(map[string]*throttleState),
	}
}

// SetDebounce installs a debounce window for an action. A zero window
// removes the guard.
func (s *Scheduler) SetDebounce(action string, window time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.windows[action]
	w.debounce = window
	s.setWindows(action, w)
}

// SetThrottle installs a throttle window for an action. A zero window
// removes the guard.
func (s *Scheduler) SetThrottle(action string, window time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.windows[action]
	w.throttle = window
	s.setWindows(action, w)
}

func (s *Scheduler) setWindows(action string, w windows) {
	if w.debounce <= 0 && w.throttle <= 0 {
		delete(s.windows, action)
		return
	}
	s.windows[action] = w
}

// Windows returns the configured windows for an action.
func (s *Scheduler) Windows(action string) (debounce, throttle time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.windows[action]
	return w.debounce, w.throttle
}

// Dispatch routes one call through the action's guards. Unguarded
// actions execute immediately. Guarded callers whose call is coalesced
// block until the surviving execution settles and receive its result.
func (s *Scheduler) Dispatch(ctx context.Context, action string, payload any, run ExecFunc) (*pipeline.ExecutionResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}

	w, guarded := s.windows[action]
	if !guarded {
		s.mu.Unlock()
		return run(ctx, payload), nil
	}

	if w.debounce > 0 {
		return s.debounce(ctx, action, payload, run, w.debounce)
	}
	return s.throttle(ctx, action, payload, run, w.throttle)
}

// debounce resets the action's quiet-period timer and parks the caller
// on the shared trailing execution. Caller holds s.mu.
func (s *Scheduler) debounce(ctx context.Context, action string, payload any, run ExecFunc, window time.Duration) (*pipeline.ExecutionResult, error) {
	p, exists := s.debouncing[action]
	if exists {
		// A newer call supersedes the pending payload and restarts the
		// quiet period. All parked callers stay attached.
		p.payload = payload
		p.run = run
		p.timer.Reset(window)
	} else {
		p = &pending{
			payload: payload,
			run:     run,
			done:    make(chan struct{}),
		}
		s.debouncing[action] = p
		p.timer = time.AfterFunc(window, func() {
			s.fireDebounce(action, p)
		})
	}
	s.mu.Unlock()

	return s.await(ctx, p)
}

// fireDebounce executes the trailing call once the quiet period elapses.
func (s *Scheduler) fireDebounce(action string, p *pending) {
	s.mu.Lock()
	if s.closed || s.debouncing[action] != p {
		s.mu.Unlock()
		return
	}
	delete(s.debouncing, action)
	payload, run := p.payload, p.run
	s.mu.Unlock()

	p.settle(run(context.Background(), payload), nil)
}

// throttle executes leading-edge calls immediately and coalesces the
// rest into one trailing execution at the window boundary. Caller holds
// s.mu.
func (s *Scheduler) throttle(ctx context.Context, action string, payload any, run ExecFunc, window time.Duration) (*pipeline.ExecutionResult, error) {
	st, open := s.throttling[action]
	if !open {
		// Leading edge: open a window and execute right away. The window
		// is tracked until its AfterFunc fires, so a tracked window is an
		// open window even if the boundary time has just passed.
		s.throttling[action] = &throttleState{}
		time.AfterFunc(window, func() {
			s.closeThrottleWindow(action)
		})
		s.mu.Unlock()
		return run(ctx, payload), nil
	}

	if st.trailing == nil {
		st.trailing = &pending{done: make(chan struct{})}
	}
	st.trailing.payload = payload
	st.trailing.run = run
	p := st.trailing
	s.mu.Unlock()

	return s.await(ctx, p)
}

// closeThrottleWindow runs the trailing execution, if any, when the
// window boundary is reached.
func (s *Scheduler) closeThrottleWindow(action string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	st := s.throttling[action]
	if st == nil {
		s.mu.Unlock()
		return
	}
	delete(s.throttling, action)
	s.mu.Unlock()

	if st.trailing == nil {
		return
	}
	p := st.trailing
	p.settle(p.run(context.Background(), p.payload), nil)
}

// await blocks a coalesced caller until the surviving execution settles
// or the caller's context ends.
func (s *Scheduler) await(ctx context.Context, p *pending) (*pipeline.ExecutionResult, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PendingDebounces returns the number of actions with a pending debounce
// timer.
func (s *Scheduler) PendingDebounces() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.debouncing)
}

// Close cancels all pending timers and releases every blocked caller
// with ErrClosed. No trailing executions run after Close.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for action, p := range s.debouncing {
		p.timer.Stop()
		p.settle(nil, ErrClosed)
		delete(s.debouncing, action)
	}
	for action, st := range s.throttling {
		if st.trailing != nil {
			st.trailing.settle(nil, ErrClosed)
		}
		delete(s.throttling, action)
	}
	return nil
}
