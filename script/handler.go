package script

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/actionpipe/actionpipe/handler"
)

// Handler is a pipeline handler implemented by a Lua chunk. Invocations
// are serialized; close it when the handler is unregistered to release
// the Lua state.
type Handler struct {
	mu     sync.Mutex
	state  *lua.LState
	fn     lua.LValue
	closed bool
}

// NewHandler compiles a Lua chunk defining handle(payload) and wraps it
// as a pipeline handler.
func NewHandler(source string) (*Handler, error) {
	L := newSandboxedState()
	if err := L.DoString(source); err != nil {
		L.Close()
		return nil, fmt.Errorf("script: load chunk: %w", err)
	}

	fn := L.GetGlobal("handle")
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, ErrNoHandleFunction
	}

	return &Handler{state: L, fn: fn}, nil
}

// Handle implements handler.Handler. The Lua function's return value is
// mapped onto the pipeline contract; a Lua error is a handler failure.
func (h *Handler) Handle(ctx context.Context, payload any, pc *handler.Controller) handler.Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return handler.Error(ErrClosed)
	}

	L := h.state
	L.SetContext(ctx)

	if err := L.CallByParam(lua.P{Fn: h.fn, NRet: 1, Protect: true}, ToLua(L, payload)); err != nil {
		return handler.Error(fmt.Errorf("script: %w", err))
	}
	ret := L.Get(-1)
	L.Pop(1)

	return interpret(ret, pc)
}

// interpret maps a Lua return value onto a handler outcome.
func interpret(ret lua.LValue, pc *handler.Controller) handler.Outcome {
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		if ret == lua.LNil {
			return handler.Continue()
		}
		pc.SetResult(FromLua(ret))
		return handler.Continue()
	}

	if reason := tbl.RawGetString("abort"); reason != lua.LNil {
		return handler.Abort(reason.String())
	}
	if value := tbl.RawGetString("value"); value != lua.LNil {
		return handler.Return(FromLua(value))
	}
	if result := tbl.RawGetString("result"); result != lua.LNil {
		pc.SetResult(FromLua(result))
		return handler.Continue()
	}

	pc.SetResult(FromLua(tbl))
	return handler.Continue()
}

// Close releases the Lua state. Subsequent invocations fail.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	h.state.Close()
}

// Condition is a dispatch-time predicate implemented by a Lua
// expression.
type Condition struct {
	mu     sync.Mutex
	state  *lua.LState
	fn     *lua.LFunction
	closed bool
}

// NewCondition compiles a Lua expression into a condition predicate.
// The expression must evaluate to a value; Lua truthiness applies.
func NewCondition(expr string) (*Condition, error) {
	L := newSandboxedState()
	fn, err := L.LoadString("return (" + expr + ")")
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("script: load condition: %w", err)
	}
	return &Condition{state: L, fn: fn}, nil
}

// Eval evaluates the condition. Errors and closed states evaluate to
// false.
func (c *Condition) Eval() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	L := c.state
	L.Push(c.fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return false
	}
	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret)
}

// Predicate returns the condition as a registry entry condition.
func (c *Condition) Predicate() func() bool {
	return c.Eval
}

// SetGlobal exposes a Go value to the condition's environment, so
// host state can participate in the expression.
func (c *Condition) SetGlobal(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.state.SetGlobal(name, ToLua(c.state, value))
}

// Close releases the Lua state. A closed condition evaluates to false.
func (c *Condition) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.state.Close()
}
