package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/actionpipe/actionpipe/handler"
	"github.com/actionpipe/actionpipe/pipeline"
	"github.com/actionpipe/actionpipe/registry"
)

func passthrough(count *atomic.Int32) handler.Func {
	return func(ctx context.Context, payload any, pc *handler.Controller) handler.Outcome {
		count.Add(1)
		return handler.Continue()
	}
}

func TestRegisterAndDispatch(t *testing.T) {
	e := New()
	defer e.Close()

	var count atomic.Int32
	reg, err := e.Register("save", passthrough(&count), registry.WithPriority(10))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if reg.Action() != "save" || reg.ID() == "" {
		t.Errorf("unexpected registration %s/%s", reg.Action(), reg.ID())
	}

	res, err := e.DispatchWithResult(context.Background(), "save", "payload")
	if err != nil {
		t.Fatalf("DispatchWithResult failed: %v", err)
	}
	if !res.Success || count.Load() != 1 {
		t.Errorf("expected one successful execution, got %+v count=%d", res, count.Load())
	}
}

func TestDispatchResultNotErrorOnHandlerFailure(t *testing.T) {
	e := New()
	defer e.Close()

	boom := errors.New("boom")
	if _, err := e.Register("save", handler.Func(func(ctx context.Context, payload any, pc *handler.Controller) handler.Outcome {
		return handler.Error(boom)
	})); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	res, err := e.DispatchWithResult(context.Background(), "save", nil)
	if err != nil {
		t.Fatalf("handler failures must not surface as dispatch errors, got %v", err)
	}
	if res.Success || len(res.Errors) != 1 {
		t.Errorf("failure should be in the result, got %+v", res)
	}
}

func TestDispatchResultNotErrorOnAbort(t *testing.T) {
	e := New()
	defer e.Close()

	e.Register("save", handler.Func(func(ctx context.Context, payload any, pc *handler.Controller) handler.Outcome {
		return handler.Abort("no")
	}))

	res, err := e.DispatchWithResult(context.Background(), "save", nil)
	if err != nil {
		t.Fatalf("aborts must not surface as dispatch errors, got %v", err)
	}
	if !res.Aborted || res.AbortReason != "no" {
		t.Errorf("expected aborted result, got %+v", res)
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	e := New()
	defer e.Close()

	var count atomic.Int32
	reg, _ := e.Register("save", passthrough(&count))

	if !reg.Unregister() {
		t.Error("first Unregister should report removal")
	}
	if reg.Unregister() {
		t.Error("second Unregister should be a no-op")
	}

	e.Dispatch(context.Background(), "save", nil)
	if count.Load() != 0 {
		t.Error("unregistered handler must not run")
	}
}

func TestRegisterUnregisterLeavesTotalsUnchanged(t *testing.T) {
	e := New()
	defer e.Close()

	var count atomic.Int32
	e.Register("save", passthrough(&count))
	before := e.RegistryInfo()

	reg, _ := e.Register("save", passthrough(&count))
	reg.Unregister()

	after := e.RegistryInfo()
	if before.TotalHandlers != after.TotalHandlers || before.TotalActions != after.TotalActions {
		t.Errorf("register/unregister round-trip changed totals: %+v vs %+v", before, after)
	}
}

func TestPauseResume(t *testing.T) {
	e := New()
	defer e.Close()

	var count atomic.Int32
	reg, _ := e.Register("save", passthrough(&count))

	if !reg.Pause() {
		t.Error("Pause should report a state change")
	}
	e.Dispatch(context.Background(), "save", nil)
	if count.Load() != 0 {
		t.Error("paused handler must not run")
	}

	if !reg.Resume() {
		t.Error("Resume should report a state change")
	}
	e.Dispatch(context.Background(), "save", nil)
	if count.Load() != 1 {
		t.Error("resumed handler should run")
	}
}

func TestActionStats(t *testing.T) {
	e := New()
	defer e.Close()

	var count atomic.Int32
	e.Register("save", passthrough(&count))
	e.Register("fail", handler.Func(func(ctx context.Context, payload any, pc *handler.Controller) handler.Outcome {
		return handler.Errorf("nope")
	}))

	e.Dispatch(context.Background(), "save", nil)
	e.Dispatch(context.Background(), "save", nil)
	e.Dispatch(context.Background(), "fail", nil)

	s, ok := e.ActionStats("save")
	if !ok || s.Dispatches != 2 || s.Successes != 2 {
		t.Errorf("unexpected save stats %+v", s)
	}

	s, _ = e.ActionStats("fail")
	if s.Dispatches != 1 || s.Successes != 0 || s.HandlerErrors != 1 {
		t.Errorf("unexpected fail stats %+v", s)
	}

	all := e.AllActionStats()
	if len(all) != 2 {
		t.Errorf("expected 2 actions in stats, got %d", len(all))
	}

	e.ClearExecutionStats("save")
	if _, ok := e.ActionStats("save"); ok {
		t.Error("cleared stats should be gone")
	}
	if _, ok := e.ActionStats("fail"); !ok {
		t.Error("other action stats must survive")
	}
}

func TestOnceReflectedInRegistryInfo(t *testing.T) {
	e := New()
	defer e.Close()

	var count atomic.Int32
	e.Register("init", passthrough(&count), registry.Once())
	e.Register("init", passthrough(&count), registry.WithPriority(-1))

	before := e.RegistryInfo()
	e.Dispatch(context.Background(), "init", nil)
	after := e.RegistryInfo()

	if before.TotalHandlers-after.TotalHandlers != 1 {
		t.Errorf("once handler should reduce the count by one, before=%d after=%d",
			before.TotalHandlers, after.TotalHandlers)
	}
}

func TestExecutionModeManagement(t *testing.T) {
	e := New()
	defer e.Close()

	if _, ok := e.ActionExecutionMode("scroll"); ok {
		t.Error("no override expected initially")
	}

	e.SetActionExecutionMode("scroll", pipeline.ModeParallel)
	mode, ok := e.ActionExecutionMode("scroll")
	if !ok || mode != pipeline.ModeParallel {
		t.Errorf("expected parallel override, got %v %v", mode, ok)
	}

	var count atomic.Int32
	e.Register("scroll", passthrough(&count))
	res, _ := e.DispatchWithResult(context.Background(), "scroll", nil)
	if res.Mode != pipeline.ModeParallel {
		t.Errorf("dispatch should use the override, got %v", res.Mode)
	}

	res, _ = e.DispatchWithResult(context.Background(), "scroll", nil, WithMode(pipeline.ModeSequential))
	if res.Mode != pipeline.ModeSequential {
		t.Errorf("per-dispatch mode should win, got %v", res.Mode)
	}

	e.RemoveActionExecutionMode("scroll")
	if _, ok := e.ActionExecutionMode("scroll"); ok {
		t.Error("override should be removed")
	}
}

func TestDebounceViaEntryOption(t *testing.T) {
	e := New()
	defer e.Close()

	var count atomic.Int32
	e.Register("type", passthrough(&count), registry.WithDebounce(30*time.Millisecond))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Dispatch(context.Background(), "type", nil)
		}()
		time.Sleep(2 * time.Millisecond)
	}
	wg.Wait()

	if count.Load() != 1 {
		t.Errorf("debounced burst should execute once, got %d", count.Load())
	}

	s, _ := e.ActionStats("type")
	if s.Dispatches != 1 {
		t.Errorf("stats should count underlying executions, got %d", s.Dispatches)
	}
}

func TestThrottleViaEntryOption(t *testing.T) {
	e := New()
	defer e.Close()

	var count atomic.Int32
	e.Register("scroll", passthrough(&count), registry.WithThrottle(100*time.Millisecond))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Dispatch(context.Background(), "scroll", nil)
		}()
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	if count.Load() != 2 {
		t.Errorf("throttled burst should execute twice (leading+trailing), got %d", count.Load())
	}

	s, _ := e.ActionStats("scroll")
	if s.Dispatches != 2 {
		t.Errorf("stats should record exactly 2 executions, got %d", s.Dispatches)
	}
}

func TestPreHookVeto(t *testing.T) {
	e := New()
	defer e.Close()

	var count atomic.Int32
	e.Register("save", passthrough(&count))

	veto := errors.New("not allowed")
	e.AddPreHook(func(action string, payload any) error {
		if payload == "blocked" {
			return veto
		}
		return nil
	})

	res, err := e.DispatchWithResult(context.Background(), "save", "blocked")
	if err != nil {
		t.Fatalf("veto should not be a dispatch error, got %v", err)
	}
	if !res.Aborted || !errors.Is(res.AbortErr, veto) {
		t.Errorf("veto should record an aborted result, got %+v", res)
	}
	if count.Load() != 0 {
		t.Error("vetoed dispatch must not run handlers")
	}

	res, _ = e.DispatchWithResult(context.Background(), "save", "allowed")
	if !res.Success || count.Load() != 1 {
		t.Errorf("non-vetoed dispatch should run, got %+v", res)
	}
}

func TestPostHook(t *testing.T) {
	e := New()
	defer e.Close()

	var count atomic.Int32
	e.Register("save", passthrough(&count))

	var mu sync.Mutex
	var seen []string
	e.AddPostHook(func(action string, result *pipeline.ExecutionResult) {
		mu.Lock()
		seen = append(seen, action)
		mu.Unlock()
	})

	e.Dispatch(context.Background(), "save", nil)
	e.Dispatch(context.Background(), "save", nil)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Errorf("post hook should run per execution, got %v", seen)
	}
}

func TestHandlersByTagAndCategory(t *testing.T) {
	e := New()
	defer e.Close()

	var count atomic.Int32
	e.Register("notify", passthrough(&count), registry.WithID("mailer"), registry.WithTags("email"))
	e.Register("notify", passthrough(&count), registry.WithID("texter"), registry.WithTags("sms"))
	e.Register("save", passthrough(&count), registry.WithID("writer"), registry.WithCategory("io"))

	byTag := e.HandlersByTag("email")
	if len(byTag["notify"]) != 1 || byTag["notify"][0] != "mailer" {
		t.Errorf("unexpected tag lookup %v", byTag)
	}

	byCat := e.HandlersByCategory("io")
	if len(byCat["save"]) != 1 || byCat["save"][0] != "writer" {
		t.Errorf("unexpected category lookup %v", byCat)
	}
}

func TestDispatchQueryFilter(t *testing.T) {
	e := New()
	defer e.Close()

	var email, sms atomic.Int32
	e.Register("notify", passthrough(&email), registry.WithTags("email"))
	e.Register("notify", passthrough(&sms), registry.WithTags("sms"))

	e.Dispatch(context.Background(), "notify", nil, WithQuery(&registry.Query{Tags: []string{"sms"}}))

	if email.Load() != 0 || sms.Load() != 1 {
		t.Errorf("query should select handlers, email=%d sms=%d", email.Load(), sms.Load())
	}
}

func TestPanicCount(t *testing.T) {
	e := New(WithPanicHandler(func(action, handlerID string, value any, stack []byte) {}))
	defer e.Close()

	e.Register("save", handler.Func(func(ctx context.Context, payload any, pc *handler.Controller) handler.Outcome {
		panic("boom")
	}))

	e.Dispatch(context.Background(), "save", nil)
	e.Dispatch(context.Background(), "save", nil)

	if got := e.PanicCount("save"); got != 2 {
		t.Errorf("PanicCount = %d, want 2", got)
	}
}

func TestMaxHandlersPerAction(t *testing.T) {
	e := New(WithMaxHandlersPerAction(1))
	defer e.Close()

	var count atomic.Int32
	if _, err := e.Register("save", passthrough(&count)); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if _, err := e.Register("save", passthrough(&count)); !errors.Is(err, registry.ErrCapacityExceeded) {
		t.Errorf("expected capacity error, got %v", err)
	}
	if _, err := e.Register("other", passthrough(&count)); err != nil {
		t.Errorf("capacity is per action, got %v", err)
	}
}

func TestCloseRejectsFurtherUse(t *testing.T) {
	e := New()

	var count atomic.Int32
	e.Register("save", passthrough(&count))

	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close should be idempotent, got %v", err)
	}

	if _, err := e.DispatchWithResult(context.Background(), "save", nil); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("dispatch after Close should fail, got %v", err)
	}
	if _, err := e.Register("save", passthrough(&count)); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("register after Close should fail, got %v", err)
	}
}

func TestRegistryInfoAndActionDetails(t *testing.T) {
	e := New(WithName("test-engine"), WithDefaultMode(pipeline.ModeParallel))
	defer e.Close()

	var count atomic.Int32
	e.Register("save", passthrough(&count), registry.WithID("a"), registry.WithPriority(10))
	e.Register("save", passthrough(&count), registry.WithID("b"), registry.WithPriority(10))

	info := e.RegistryInfo()
	if info.Name != "test-engine" {
		t.Errorf("Name = %q", info.Name)
	}
	if info.DefaultExecutionMode != pipeline.ModeParallel {
		t.Errorf("DefaultExecutionMode = %v", info.DefaultExecutionMode)
	}
	if info.TotalActions != 1 || info.TotalHandlers != 2 {
		t.Errorf("totals = %d/%d", info.TotalActions, info.TotalHandlers)
	}
	if ids := info.Actions[0].HandlersByPriority[10]; len(ids) != 2 || ids[0] != "a" {
		t.Errorf("HandlersByPriority = %v", info.Actions[0].HandlersByPriority)
	}

	d, ok := e.ActionDetails("save")
	if !ok || d.HandlerCount != 2 {
		t.Errorf("ActionDetails before dispatch = %+v %v", d, ok)
	}
	if d.Stats != nil {
		t.Error("no stats expected before any dispatch")
	}

	e.Dispatch(context.Background(), "save", nil)
	d, _ = e.ActionDetails("save")
	if d.Stats == nil || d.Stats.Dispatches != 1 {
		t.Errorf("ActionDetails after dispatch = %+v", d)
	}

	if _, ok := e.ActionDetails("missing"); ok {
		t.Error("unknown action should report not found")
	}
}

func TestPriorityOrderAcrossEngine(t *testing.T) {
	e := New()
	defer e.Close()

	var mu sync.Mutex
	var order []string
	rec := func(name string) handler.Func {
		return func(ctx context.Context, payload any, pc *handler.Controller) handler.Outcome {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return handler.Continue()
		}
	}

	e.Register("save", rec("low"), registry.WithPriority(1))
	e.Register("save", rec("high"), registry.WithPriority(100))
	e.Register("save", rec("mid"), registry.WithPriority(50))

	e.Dispatch(context.Background(), "save", nil)

	want := []string{"high", "mid", "low"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}
