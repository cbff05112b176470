package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/actionpipe/actionpipe/handler"
)

// Registry manages handler entries organized by action name.
// It is thread-safe for concurrent access.
type Registry struct {
	mu      sync.RWMutex
	entries map[string][]*Entry          // action -> entries (sorted)
	byID    map[string]map[string]*Entry // action -> id -> entry

	maxHandlers int // per action; 0 means unlimited
	nextSeq     uint64
	nextAutoID  uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxHandlers limits the number of handlers per action.
func WithMaxHandlers(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxHandlers = n
		}
	}
}

// New creates a new handler registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string][]*Entry),
		byID:    make(map[string]map[string]*Entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts a handler entry for an action, maintaining sort order
// (priority descending, registration order ascending on ties).
func (r *Registry) Register(action string, h handler.Handler, opts ...EntryOption) (*Entry, error) {
	if action == "" {
		return nil, ErrInvalidAction
	}
	if h == nil {
		return nil, ErrNilHandler
	}

	config := DefaultEntryConfig()
	for _, opt := range opts {
		opt(&config)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxHandlers > 0 && len(r.entries[action]) >= r.maxHandlers {
		return nil, fmt.Errorf("%w: %s (limit %d)", ErrCapacityExceeded, action, r.maxHandlers)
	}

	id := config.ID
	if id == "" {
		r.nextAutoID++
		id = fmt.Sprintf("%s-handler-%d", action, r.nextAutoID)
		config.ID = id
	}
	if _, exists := r.byID[action][id]; exists {
		return nil, fmt.Errorf("%w: %s on action %s", ErrDuplicateHandlerID, id, action)
	}

	r.nextSeq++
	entry := newEntry(id, action, h, config, r.nextSeq)

	entries := append(r.entries[action], entry)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].config.Priority != entries[j].config.Priority {
			return entries[i].config.Priority > entries[j].config.Priority
		}
		return entries[i].seq < entries[j].seq
	})
	r.entries[action] = entries

	ids := r.byID[action]
	if ids == nil {
		ids = make(map[string]*Entry)
		r.byID[action] = ids
	}
	ids[id] = entry

	return entry, nil
}

// Unregister removes an entry by id. It is a no-op (not an error) if the
// entry is absent; the return value reports whether anything was removed.
func (r *Registry) Unregister(action, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.byID[action][id]
	if !exists {
		return false
	}

	entries := r.entries[action]
	for i, e := range entries {
		if e.id == id {
			r.entries[action] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(r.entries[action]) == 0 {
		delete(r.entries, action)
	}

	delete(r.byID[action], id)
	if len(r.byID[action]) == 0 {
		delete(r.byID, action)
	}

	entry.markRemoved()
	return true
}

// Get returns an entry by action and id.
func (r *Registry) Get(action, id string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.byID[action][id]
	return entry, exists
}

// Snapshot returns a copy of the action's entries in sorted order,
// filtered by the optional query. The copy never observes registry
// mutations made while a dispatch is running.
func (r *Registry) Snapshot(action string, q *Query) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.entries[action]
	if len(entries) == 0 {
		return nil
	}

	var pred Predicate
	if q != nil {
		pred = q.Predicate()
	}

	result := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if pred != nil && !pred(e) {
			continue
		}
		result = append(result, e)
	}
	return result
}

// Entries returns a copy of all entries for an action in sorted order.
func (r *Registry) Entries(action string) []*Entry {
	return r.Snapshot(action, nil)
}

// Actions returns all action names with registered handlers, sorted.
func (r *Registry) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of handlers registered for an action.
func (r *Registry) Count(action string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[action])
}

// TotalActions returns the number of actions with registered handlers.
func (r *Registry) TotalActions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// TotalHandlers returns the total number of registered handlers.
func (r *Registry) TotalHandlers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, entries := range r.entries {
		total += len(entries)
	}
	return total
}

// MaxHandlers returns the per-action handler limit (0 means unlimited).
func (r *Registry) MaxHandlers() int {
	return r.maxHandlers
}

// ListByTag returns all entries carrying the tag, grouped by action.
func (r *Registry) ListByTag(tag string) map[string][]*Entry {
	return r.listBy(func(e *Entry) bool {
		for _, t := range e.config.Tags {
			if t == tag {
				return true
			}
		}
		return false
	})
}

// ListByCategory returns all entries in the category, grouped by action.
func (r *Registry) ListByCategory(category string) map[string][]*Entry {
	return r.listBy(func(e *Entry) bool {
		return e.config.Category == category
	})
}

func (r *Registry) listBy(match func(*Entry) bool) map[string][]*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string][]*Entry)
	for action, entries := range r.entries {
		for _, e := range entries {
			if match(e) {
				result[action] = append(result[action], e)
			}
		}
	}
	return result
}

// HandlersByPriority returns handler ids for an action grouped by priority.
func (r *Registry) HandlersByPriority(action string) map[int][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.entries[action]
	if len(entries) == 0 {
		return nil
	}

	result := make(map[int][]string)
	for _, e := range entries {
		result[e.config.Priority] = append(result[e.config.Priority], e.id)
	}
	return result
}

// Clear removes all registered handlers.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ids := range r.byID {
		for _, e := range ids {
			e.markRemoved()
		}
	}
	r.entries = make(map[string][]*Entry)
	r.byID = make(map[string]map[string]*Entry)
}
