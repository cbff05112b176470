package registry

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/actionpipe/actionpipe/handler"
)

func newTestHandler() handler.Handler {
	return handler.Func(func(ctx context.Context, payload any, pc *handler.Controller) handler.Outcome {
		return handler.Continue()
	})
}

func TestNew(t *testing.T) {
	r := New()

	if r == nil {
		t.Fatal("expected non-nil registry")
	}
	if r.TotalHandlers() != 0 {
		t.Errorf("expected 0 handlers, got %d", r.TotalHandlers())
	}
}

func TestRegistry_Register(t *testing.T) {
	r := New()

	e1, err := r.Register("save", newTestHandler())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e1.ID() == "" {
		t.Error("expected auto-generated id")
	}
	if e1.Action() != "save" {
		t.Errorf("expected action save, got %s", e1.Action())
	}

	e2, err := r.Register("save", newTestHandler(), WithID("custom"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e2.ID() != "custom" {
		t.Errorf("expected id custom, got %s", e2.ID())
	}

	if r.TotalHandlers() != 2 {
		t.Errorf("expected 2 handlers, got %d", r.TotalHandlers())
	}
	if r.TotalActions() != 1 {
		t.Errorf("expected 1 action, got %d", r.TotalActions())
	}
}

func TestRegistry_Register_Errors(t *testing.T) {
	r := New()

	if _, err := r.Register("", newTestHandler()); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("expected ErrInvalidAction, got %v", err)
	}
	if _, err := r.Register("save", nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("expected ErrNilHandler, got %v", err)
	}

	if _, err := r.Register("save", newTestHandler(), WithID("dup")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Register("save", newTestHandler(), WithID("dup")); !errors.Is(err, ErrDuplicateHandlerID) {
		t.Errorf("expected ErrDuplicateHandlerID, got %v", err)
	}
}

func TestRegistry_Register_CapacityExceeded(t *testing.T) {
	r := New(WithMaxHandlers(2))

	for i := 0; i < 2; i++ {
		if _, err := r.Register("save", newTestHandler()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if _, err := r.Register("save", newTestHandler()); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("expected ErrCapacityExceeded, got %v", err)
	}

	// Other actions are unaffected.
	if _, err := r.Register("load", newTestHandler()); err != nil {
		t.Errorf("unexpected error for other action: %v", err)
	}
}

func TestRegistry_PriorityOrder(t *testing.T) {
	r := New()

	mustRegister(t, r, "test", WithID("low"), WithPriority(-5))
	mustRegister(t, r, "test", WithID("high"), WithPriority(10))
	mustRegister(t, r, "test", WithID("normal"))
	mustRegister(t, r, "test", WithID("critical"), WithPriority(100))

	entries := r.Entries("test")
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	expectedOrder := []string{"critical", "high", "normal", "low"}
	for i, e := range entries {
		if e.ID() != expectedOrder[i] {
			t.Errorf("position %d: expected %s, got %s", i, expectedOrder[i], e.ID())
		}
	}
}

func TestRegistry_PriorityTies_RegistrationOrder(t *testing.T) {
	r := New()

	mustRegister(t, r, "test", WithID("first"), WithPriority(5))
	mustRegister(t, r, "test", WithID("second"), WithPriority(5))
	mustRegister(t, r, "test", WithID("third"), WithPriority(5))

	entries := r.Entries("test")
	expectedOrder := []string{"first", "second", "third"}
	for i, e := range entries {
		if e.ID() != expectedOrder[i] {
			t.Errorf("position %d: expected %s, got %s", i, expectedOrder[i], e.ID())
		}
	}
}

func TestRegistry_PriorityOrder_Randomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 20; trial++ {
		r := New()
		n := 10 + rng.Intn(20)
		for i := 0; i < n; i++ {
			mustRegister(t, r, "test", WithPriority(rng.Intn(10)-5))
		}

		entries := r.Entries("test")
		for i := 1; i < len(entries); i++ {
			prev, cur := entries[i-1], entries[i]
			if prev.Priority() < cur.Priority() {
				t.Fatalf("trial %d: priorities out of order at %d: %d < %d", trial, i, prev.Priority(), cur.Priority())
			}
			if prev.Priority() == cur.Priority() && prev.seq > cur.seq {
				t.Fatalf("trial %d: registration order violated at %d", trial, i)
			}
		}
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := New()

	e := mustRegister(t, r, "save", WithID("h1"))

	if !r.Unregister("save", "h1") {
		t.Error("expected Unregister to return true")
	}
	if e.State() != EntryStateRemoved {
		t.Errorf("expected removed state, got %v", e.State())
	}
	if r.TotalHandlers() != 0 {
		t.Errorf("expected 0 handlers, got %d", r.TotalHandlers())
	}

	// No-op on absent id.
	if r.Unregister("save", "h1") {
		t.Error("expected Unregister to return false for absent id")
	}
	if r.Unregister("missing", "h1") {
		t.Error("expected Unregister to return false for absent action")
	}
}

func TestRegistry_Snapshot_Filtering(t *testing.T) {
	r := New()

	mustRegister(t, r, "save", WithID("a"), WithTags("ui", "critical"), WithCategory("render"))
	mustRegister(t, r, "save", WithID("b"), WithTags("io"), WithCategory("storage"))
	mustRegister(t, r, "save", WithID("c"), WithTags("ui"), WithEnvironment("production"))

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{"no filter", Query{}, []string{"a", "b", "c"}},
		{"by tag", Query{Tags: []string{"ui"}}, []string{"a", "c"}},
		{"by category", Query{Category: "storage"}, []string{"b"}},
		{"by environment", Query{Environment: "production"}, []string{"c"}},
		{"by ids", Query{HandlerIDs: []string{"a", "b"}}, []string{"a", "b"}},
		{"exclude tags", Query{ExcludeTags: []string{"io"}}, []string{"a", "c"}},
		{"exclude ids", Query{ExcludeHandlerIDs: []string{"a"}}, []string{"b", "c"}},
		{"and composed", Query{Tags: []string{"ui"}, ExcludeHandlerIDs: []string{"c"}}, []string{"a"}},
		{"custom", Query{Custom: func(c EntryConfig) bool { return c.Category == "render" }}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Snapshot("save", &tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d entries, got %d", len(tt.want), len(got))
			}
			for i, e := range got {
				if e.ID() != tt.want[i] {
					t.Errorf("position %d: expected %s, got %s", i, tt.want[i], e.ID())
				}
			}
		})
	}
}

func TestRegistry_Snapshot_CopyOnRead(t *testing.T) {
	r := New()
	mustRegister(t, r, "save", WithID("a"))

	snap := r.Snapshot("save", nil)

	// Mutations after the snapshot must not be observed.
	mustRegister(t, r, "save", WithID("b"), WithPriority(50))
	r.Unregister("save", "a")

	if len(snap) != 1 || snap[0].ID() != "a" {
		t.Errorf("snapshot mutated by concurrent registry changes: %v", snap)
	}
}

func TestRegistry_ListByTag(t *testing.T) {
	r := New()

	mustRegister(t, r, "save", WithID("a"), WithTags("ui"))
	mustRegister(t, r, "load", WithID("b"), WithTags("ui", "io"))
	mustRegister(t, r, "load", WithID("c"), WithTags("io"))

	byTag := r.ListByTag("ui")
	if len(byTag) != 2 {
		t.Fatalf("expected 2 actions with tag ui, got %d", len(byTag))
	}
	if len(byTag["save"]) != 1 || len(byTag["load"]) != 1 {
		t.Errorf("unexpected grouping: %v", byTag)
	}

	byCat := r.ListByCategory("missing")
	if len(byCat) != 0 {
		t.Errorf("expected empty category result, got %v", byCat)
	}
}

func TestRegistry_HandlersByPriority(t *testing.T) {
	r := New()

	mustRegister(t, r, "save", WithID("a"), WithPriority(10))
	mustRegister(t, r, "save", WithID("b"), WithPriority(10))
	mustRegister(t, r, "save", WithID("c"), WithPriority(5))

	byPrio := r.HandlersByPriority("save")
	if len(byPrio[10]) != 2 || len(byPrio[5]) != 1 {
		t.Errorf("unexpected grouping: %v", byPrio)
	}
	if byPrio := r.HandlersByPriority("missing"); byPrio != nil {
		t.Errorf("expected nil for unknown action, got %v", byPrio)
	}
}

func TestRegistry_PauseResume(t *testing.T) {
	r := New()

	e := mustRegister(t, r, "save", WithID("a"))

	e.Pause()
	if e.IsActive() {
		t.Error("expected entry to be paused")
	}
	e.Resume()
	if !e.IsActive() {
		t.Error("expected entry to be active after resume")
	}

	// Removed entries cannot be resumed.
	r.Unregister("save", "a")
	e.Resume()
	if e.State() != EntryStateRemoved {
		t.Errorf("expected removed state, got %v", e.State())
	}
}

func TestRegistry_Clear(t *testing.T) {
	r := New()

	mustRegister(t, r, "save")
	mustRegister(t, r, "load")

	r.Clear()

	if r.TotalHandlers() != 0 || r.TotalActions() != 0 {
		t.Errorf("expected empty registry after Clear, got %d handlers", r.TotalHandlers())
	}
}

func mustRegister(t *testing.T, r *Registry, action string, opts ...EntryOption) *Entry {
	t.Helper()
	e, err := r.Register(action, newTestHandler(), opts...)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return e
}
