package engine

import "github.com/actionpipe/actionpipe/registry"

// Registration is the handle returned by Engine.Register. It identifies
// one handler entry and controls its lifecycle.
type Registration struct {
	engine *Engine
	entry  *registry.Entry
}

// ID returns the handler id.
func (r *Registration) ID() string { return r.entry.ID() }

// Action returns the action the handler is registered for.
func (r *Registration) Action() string { return r.entry.Action() }

// Priority returns the handler priority.
func (r *Registration) Priority() int { return r.entry.Priority() }

// Unregister removes the handler from the registry. It is idempotent;
// the return value reports whether this call removed the entry.
func (r *Registration) Unregister() bool {
	return r.engine.registry.Unregister(r.entry.Action(), r.entry.ID())
}

// Pause temporarily excludes the handler from dispatches. A paused
// handler keeps its registry slot and priority. Reports whether the
// state changed.
func (r *Registration) Pause() bool {
	return r.entry.Pause()
}

// Resume reactivates a paused handler. Reports whether the state
// changed; removed entries cannot be resumed.
func (r *Registration) Resume() bool {
	return r.entry.Resume()
}
