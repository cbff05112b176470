// Package stats tracks per-action dispatch statistics.
//
// The Tracker aggregates counters and durations keyed by action name and
// fans every observation out to registered observers, for example a
// metrics exporter. All methods are safe for concurrent use.
package stats

import (
	"sort"
	"sync"
	"time"
)

// Record is one dispatch observation.
type Record struct {
	// Action is the dispatched action name.
	Action string

	// Success is true if the dispatch succeeded.
	Success bool

	// Aborted is true if the dispatch was explicitly aborted.
	Aborted bool

	// HandlerErrors is the number of handler failures in the dispatch.
	HandlerErrors int

	// Duration is the wall time of the dispatch.
	Duration time.Duration

	// Timestamp is when the dispatch finished.
	Timestamp time.Time
}

// Observer receives every dispatch observation as it is recorded.
type Observer interface {
	Observe(Record)
}

// ObserverFunc is a function adapter for Observer.
type ObserverFunc func(Record)

// Observe implements Observer.
func (f ObserverFunc) Observe(r Record) { f(r) }

// ActionStats is the aggregated view for one action.
type ActionStats struct {
	// Action is the action name.
	Action string

	// Dispatches is the total number of dispatches.
	Dispatches uint64

	// Successes counts dispatches with Success true.
	Successes uint64

	// Aborts counts explicitly aborted dispatches.
	Aborts uint64

	// HandlerErrors counts handler failures across all dispatches.
	HandlerErrors uint64

	// TotalDuration is the summed dispatch wall time.
	TotalDuration time.Duration

	// AverageDuration is TotalDuration divided by Dispatches.
	AverageDuration time.Duration

	// LastDispatch is the timestamp of the most recent dispatch.
	LastDispatch time.Time
}

// actionCounters is the mutable per-action aggregate.
type actionCounters struct {
	dispatches    uint64
	successes     uint64
	aborts        uint64
	handlerErrors uint64
	totalDuration time.Duration
	lastDispatch  time.Time
}

// Tracker aggregates dispatch statistics per action.
type Tracker struct {
	mu        sync.RWMutex
	actions   map[string]*actionCounters
	observers []Observer
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		actions: make(map[string]*actionCounters),
	}
}

// AddObserver registers an observer for future observations.
func (t *Tracker) AddObserver(o Observer) {
	if o == nil {
		return
	}

	t.mu.Lock()
	t.observers = append(t.observers, o)
	t.mu.Unlock()
}

// Record folds one dispatch observation into the per-action aggregate
// and fans it out to all observers.
func (t *Tracker) Record(r Record) {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	t.mu.Lock()
	c := t.actions[r.Action]
	if c == nil {
		c = &actionCounters{}
		t.actions[r.Action] = c
	}
	c.dispatches++
	if r.Success {
		c.successes++
	}
	if r.Aborted {
		c.aborts++
	}
	c.handlerErrors += uint64(r.HandlerErrors)
	c.totalDuration += r.Duration
	c.lastDispatch = r.Timestamp

	observers := make([]Observer, len(t.observers))
	copy(observers, t.observers)
	t.mu.Unlock()

	for _, o := range observers {
		o.Observe(r)
	}
}

// Action returns the aggregate for one action.
func (t *Tracker) Action(action string) (ActionStats, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c, ok := t.actions[action]
	if !ok {
		return ActionStats{}, false
	}
	return c.view(action), true
}

// All returns aggregates for every action, sorted by action name.
func (t *Tracker) All() []ActionStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]ActionStats, 0, len(t.actions))
	for action, c := range t.actions {
		out = append(out, c.view(action))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out
}

// Clear resets the aggregate for one action.
func (t *Tracker) Clear(action string) {
	t.mu.Lock()
	delete(t.actions, action)
	t.mu.Unlock()
}

// ClearAll resets all aggregates. Observers stay registered.
func (t *Tracker) ClearAll() {
	t.mu.Lock()
	t.actions = make(map[string]*actionCounters)
	t.mu.Unlock()
}

func (c *actionCounters) view(action string) ActionStats {
	s := ActionStats{
		Action:        action,
		Dispatches:    c.dispatches,
		Successes:     c.successes,
		Aborts:        c.aborts,
		HandlerErrors: c.handlerErrors,
		TotalDuration: c.totalDuration,
		LastDispatch:  c.lastDispatch,
	}
	if c.dispatches > 0 {
		s.AverageDuration = c.totalDuration / time.Duration(c.dispatches)
	}
	return s
}
