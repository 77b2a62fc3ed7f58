// Package hooks runs user-supplied Lua callbacks on presence
// transitions: on_arrive(owner) and on_depart(owner).
package hooks

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	glua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/presenced/internal/eventbus"
)

// Runtime owns a single Lua VM. All script execution happens on one
// goroutine via the work queue; event handlers only enqueue.
type Runtime struct {
	script string

	L    *glua.LState
	work chan func()
}

// NewRuntime creates a runtime for the given script path.
func NewRuntime(script string) *Runtime {
	return &Runtime{
		script: script,
		work:   make(chan func(), 16),
	}
}

// Load initializes the VM, registers the log module and executes the
// script once so its callbacks are defined.
func (r *Runtime) Load() error {
	L := glua.NewState()
	L.PreloadModule("log", logLoader)

	if err := L.DoFile(r.script); err != nil {
		L.Close()
		return fmt.Errorf("failed to load hook script: %w", err)
	}

	r.L = L
	log.Info().Str("script", r.script).Msg("Hook script loaded")
	return nil
}

// Register subscribes the runtime to presence transitions.
func (r *Runtime) Register(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.EventTypeArrive, func(e eventbus.Event) {
		r.enqueue("on_arrive", e.Data)
	})
	bus.Subscribe(eventbus.EventTypeDepart, func(e eventbus.Event) {
		r.enqueue("on_depart", e.Data)
	})
}

// Run drains the work queue until the context is cancelled.
func (r *Runtime) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-r.work:
			fn()
		}
	}
}

// Close releases the VM.
func (r *Runtime) Close() {
	if r.L != nil {
		r.L.Close()
	}
}

func (r *Runtime) enqueue(name string, data map[string]any) {
	select {
	case r.work <- func() { r.call(name, data) }:
	default:
		log.Warn().Str("hook", name).Msg("Hook queue full, dropping event")
	}
}

// call invokes a global Lua function if the script defines it. Must run
// on the Run goroutine.
func (r *Runtime) call(name string, data map[string]any) {
	fn := r.L.GetGlobal(name)
	if fn == glua.LNil {
		return
	}

	r.L.Push(fn)
	r.L.Push(toLuaTable(r.L, data))
	if err := r.L.PCall(1, 0, nil); err != nil {
		log.Error().Err(err).Str("hook", name).Msg("Hook failed")
	}
}

func toLuaTable(L *glua.LState, m map[string]any) *glua.LTable {
	tbl := L.NewTable()
	for k, v := range m {
		L.SetField(tbl, k, toLuaValue(L, v))
	}
	return tbl
}

func toLuaValue(L *glua.LState, v any) glua.LValue {
	switch val := v.(type) {
	case nil:
		return glua.LNil
	case bool:
		return glua.LBool(val)
	case int:
		return glua.LNumber(val)
	case int64:
		return glua.LNumber(val)
	case float64:
		return glua.LNumber(val)
	case string:
		return glua.LString(val)
	default:
		return glua.LString(fmt.Sprintf("%v", v))
	}
}

// logLoader exposes zerolog to hook scripts.
func logLoader(L *glua.LState) int {
	mod := L.NewTable()
	L.SetField(mod, "info", L.NewFunction(func(L *glua.LState) int {
		log.Info().Str("source", "hooks").Msg(L.CheckString(1))
		return 0
	}))
	L.SetField(mod, "warn", L.NewFunction(func(L *glua.LState) int {
		log.Warn().Str("source", "hooks").Msg(L.CheckString(1))
		return 0
	}))
	L.SetField(mod, "debug", L.NewFunction(func(L *glua.LState) int {
		log.Debug().Str("source", "hooks").Msg(L.CheckString(1))
		return 0
	}))
	L.Push(mod)
	return 1
}
