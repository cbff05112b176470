package pipeline

import (
	"fmt"
	"sync"
)

// Mode selects the concurrency strategy for one dispatch.
type Mode uint8

const (
	// ModeSequential runs handlers one at a time in priority order.
	ModeSequential Mode = iota

	// ModeParallel runs all eligible handlers concurrently and waits for
	// all of them to settle.
	ModeParallel

	// ModeRace runs all eligible handlers concurrently; the first to
	// settle determines the outcome.
	ModeRace
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case ModeSequential:
		return "sequential"
	case ModeParallel:
		return "parallel"
	case ModeRace:
		return "race"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "sequential", "":
		return ModeSequential, nil
	case "parallel":
		return ModeParallel, nil
	case "race":
		return ModeRace, nil
	default:
		return ModeSequential, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// ModeResolver resolves the effective execution mode for an action:
// dispatch override > per-action override > resolver default.
type ModeResolver struct {
	mu        sync.RWMutex
	fallback  Mode
	overrides map[string]Mode
}

// NewModeResolver creates a resolver with the given default mode.
func NewModeResolver(fallback Mode) *ModeResolver {
	return &ModeResolver{
		fallback:  fallback,
		overrides: make(map[string]Mode),
	}
}

// Default returns the registry-wide default mode.
func (r *ModeResolver) Default() Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// Set installs a per-action mode override.
func (r *ModeResolver) Set(action string, mode Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[action] = mode
}

// Get returns the per-action override, if any.
func (r *ModeResolver) Get(action string) (Mode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mode, ok := r.overrides[action]
	return mode, ok
}

// Remove deletes a per-action override.
func (r *ModeResolver) Remove(action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.overrides, action)
}

// Resolve returns the effective mode for a dispatch. A non-nil override
// from the dispatch options wins over everything.
func (r *ModeResolver) Resolve(action string, override *Mode) Mode {
	if override != nil {
		return *override
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if mode, ok := r.overrides[action]; ok {
		return mode
	}
	return r.fallback
}
