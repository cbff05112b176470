package script

import (
	"context"
	"errors"
	"testing"

	"github.com/actionpipe/actionpipe/handler"
)

func TestNewHandlerRequiresHandleFunction(t *testing.T) {
	if _, err := NewHandler(`x = 1`); !errors.Is(err, ErrNoHandleFunction) {
		t.Errorf("expected ErrNoHandleFunction, got %v", err)
	}
	if _, err := NewHandler(`this is not lua`); err == nil {
		t.Error("invalid chunk should fail to load")
	}
}

func TestHandleContinue(t *testing.T) {
	h, err := NewHandler(`function handle(payload) end`)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	defer h.Close()

	pc := handler.NewController(nil, true, 0)
	out := h.Handle(context.Background(), nil, pc)
	if out.Kind != handler.KindContinue || out.Err != nil {
		t.Errorf("expected plain continue, got %+v", out)
	}
}

func TestHandleAbort(t *testing.T) {
	h, err := NewHandler(`function handle(payload) return {abort = "denied"} end`)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	defer h.Close()

	pc := handler.NewController(nil, true, 0)
	out := h.Handle(context.Background(), nil, pc)
	if !out.IsAbort() || out.Reason != "denied" {
		t.Errorf("expected abort denied, got %+v", out)
	}
}

func TestHandleReturnValue(t *testing.T) {
	h, err := NewHandler(`function handle(payload) return {value = payload.n * 2} end`)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	defer h.Close()

	pc := handler.NewController(nil, true, 0)
	out := h.Handle(context.Background(), map[string]any{"n": 21}, pc)
	if !out.IsReturn() || out.Value != float64(42) {
		t.Errorf("expected return 42, got %+v", out)
	}
}

func TestHandleResult(t *testing.T) {
	h, err := NewHandler(`function handle(payload) return {result = "done"} end`)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	defer h.Close()

	pc := handler.NewController(nil, true, 0)
	out := h.Handle(context.Background(), nil, pc)
	if out.Kind != handler.KindContinue {
		t.Errorf("result should continue, got %+v", out)
	}
	results := pc.Results()
	if len(results) != 1 || results[0] != "done" {
		t.Errorf("expected recorded result, got %v", results)
	}
}

func TestHandleScalarReturnRecordsResult(t *testing.T) {
	h, err := NewHandler(`function handle(payload) return "plain" end`)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	defer h.Close()

	pc := handler.NewController(nil, true, 0)
	h.Handle(context.Background(), nil, pc)
	results := pc.Results()
	if len(results) != 1 || results[0] != "plain" {
		t.Errorf("scalar return should be recorded as a result, got %v", results)
	}
}

func TestHandleLuaErrorIsHandlerFailure(t *testing.T) {
	h, err := NewHandler(`function handle(payload) error("broken") end`)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	defer h.Close()

	pc := handler.NewController(nil, true, 0)
	out := h.Handle(context.Background(), nil, pc)
	if out.Err == nil {
		t.Error("lua error should be a handler failure")
	}
	if out.IsAbort() {
		t.Error("lua error must not abort the pipeline")
	}
}

func TestHandlerClosed(t *testing.T) {
	h, err := NewHandler(`function handle(payload) end`)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	h.Close()
	h.Close() // idempotent

	pc := handler.NewController(nil, true, 0)
	out := h.Handle(context.Background(), nil, pc)
	if !errors.Is(out.Err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", out.Err)
	}
}

func TestSandboxBlocksFileAccess(t *testing.T) {
	for _, src := range []string{
		`function handle(p) dofile("/etc/passwd") end`,
		`function handle(p) loadstring("return 1")() end`,
		`function handle(p) return os.getenv("HOME") end`,
	} {
		h, err := NewHandler(src)
		if err != nil {
			t.Fatalf("NewHandler failed: %v", err)
		}
		pc := handler.NewController(nil, true, 0)
		out := h.Handle(context.Background(), nil, pc)
		if out.Err == nil {
			t.Errorf("sandboxed chunk should fail: %s", src)
		}
		h.Close()
	}
}

func TestCondition(t *testing.T) {
	c, err := NewCondition(`threshold > 10`)
	if err != nil {
		t.Fatalf("NewCondition failed: %v", err)
	}
	defer c.Close()

	if c.Eval() {
		t.Error("unset global should evaluate falsy")
	}

	c.SetGlobal("threshold", 15)
	if !c.Predicate()() {
		t.Error("threshold 15 should satisfy the condition")
	}

	c.SetGlobal("threshold", 5)
	if c.Eval() {
		t.Error("threshold 5 should not satisfy the condition")
	}
}

func TestConditionInvalidExpression(t *testing.T) {
	if _, err := NewCondition(`not valid lua ((`); err == nil {
		t.Error("invalid expression should fail to compile")
	}
}

func TestConditionClosedIsFalse(t *testing.T) {
	c, err := NewCondition(`true`)
	if err != nil {
		t.Fatalf("NewCondition failed: %v", err)
	}
	if !c.Eval() {
		t.Error("true should evaluate true")
	}
	c.Close()
	if c.Eval() {
		t.Error("closed condition must evaluate false")
	}
}

func TestBridgeRoundTrip(t *testing.T) {
	h, err := NewHandler(`function handle(payload)
		return {result = {name = payload.name, tags = payload.tags}}
	end`)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	defer h.Close()

	pc := handler.NewController(nil, true, 0)
	h.Handle(context.Background(), map[string]any{
		"name": "ada",
		"tags": []any{"x", "y"},
	}, pc)

	results := pc.Results()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	m, ok := results[0].(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %T", results[0])
	}
	if m["name"] != "ada" {
		t.Errorf("name = %v", m["name"])
	}
	tags, ok := m["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "x" {
		t.Errorf("tags = %v", m["tags"])
	}
}
