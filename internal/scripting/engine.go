package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/gcbackpack/csgogc/internal/backpack"
	"github.com/gcbackpack/csgogc/internal/core/event"
	"github.com/gcbackpack/csgogc/internal/data"
)

// Hook names a script may define as a global function.
const (
	HookReady       = "on_gc_ready"
	HookItemReceive = "on_item_receive"
	HookItemUpdate  = "on_item_update"
	HookItemRemove  = "on_item_remove"
)

// Engine wraps a single gopher-lua VM running user event hooks.
type Engine struct {
	mu    sync.Mutex // the VM is not goroutine-safe
	vm    *lua.LState
	items *data.ItemTable
	log   *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory and its hooks/ subdirectory.
func NewEngine(scriptsDir string, items *data.ItemTable, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, items: items, log: log.Named("lua")}
	e.registerAPI()

	for _, dir := range []string{scriptsDir, filepath.Join(scriptsDir, "hooks")} {
		if err := e.loadDir(dir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DoString runs a chunk of Lua in the engine, mostly useful for tests and
// one-off tooling.
func (e *Engine) DoString(src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vm.DoString(src)
}

// registerAPI exposes log and catalog helpers to scripts.
func (e *Engine) registerAPI() {
	e.vm.SetGlobal("log", e.vm.NewFunction(func(L *lua.LState) int {
		e.log.Info(L.CheckString(1))
		return 0
	}))
	e.vm.SetGlobal("item_name", e.vm.NewFunction(func(L *lua.LState) int {
		def := uint32(L.CheckInt(1))
		paint := uint32(L.OptInt(2, 0))
		L.Push(lua.LString(e.items.DisplayName(def, paint)))
		return 1
	}))
	e.vm.SetGlobal("sticker_name", e.vm.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(e.items.StickerName(uint32(L.CheckInt(1)))))
		return 1
	}))
}

// Defines reports whether the loaded scripts define hook.
func (e *Engine) Defines(hook string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.vm.GetGlobal(hook).(*lua.LFunction)
	return ok
}

// OnReady calls on_gc_ready(item_count).
func (e *Engine) OnReady(items int) {
	e.call(HookReady, func() []lua.LValue { return []lua.LValue{lua.LNumber(items)} })
}

// OnItemReceive calls on_item_receive(item).
func (e *Engine) OnItemReceive(it *backpack.Item) {
	e.call(HookItemReceive, func() []lua.LValue { return []lua.LValue{e.itemTable(it)} })
}

// OnItemUpdate calls on_item_update(before, after).
func (e *Engine) OnItemUpdate(before, after *backpack.Item) {
	e.call(HookItemUpdate, func() []lua.LValue { return []lua.LValue{e.itemTable(before), e.itemTable(after)} })
}

// OnItemRemove calls on_item_remove(item).
func (e *Engine) OnItemRemove(it *backpack.Item) {
	e.call(HookItemRemove, func() []lua.LValue { return []lua.LValue{e.itemTable(it)} })
}

// Attach runs the hooks for every matching event published on bus.
func (e *Engine) Attach(bus *event.Bus) {
	event.Subscribe(bus, func(ev event.GCReady) { e.OnReady(ev.Items) })
	event.Subscribe(bus, func(ev event.ItemReceive) { e.OnItemReceive(ev.Item) })
	event.Subscribe(bus, func(ev event.ItemUpdate) { e.OnItemUpdate(ev.Before, ev.After) })
	event.Subscribe(bus, func(ev event.ItemRemove) { e.OnItemRemove(ev.Item) })
}

// call invokes a hook if the scripts define it. Errors are logged; a broken
// script never affects the session.
func (e *Engine) call(name string, args func() []lua.LValue) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args()...); err != nil {
		e.log.Error("lua hook error", zap.String("hook", name), zap.Error(err))
	}
}

// itemTable packs an item for scripts. Asset ids are passed as strings as
// they can exceed a Lua number's integer precision.
func (e *Engine) itemTable(it *backpack.Item) lua.LValue {
	if it == nil {
		return lua.LNil
	}
	t := e.vm.NewTable()
	t.RawSetString("asset_id", lua.LString(strconv.FormatUint(it.AssetID, 10)))
	t.RawSetString("def_index", lua.LNumber(it.DefIndex))
	t.RawSetString("position", lua.LNumber(it.Position))
	t.RawSetString("quality", lua.LNumber(it.Quality))
	t.RawSetString("rarity", lua.LNumber(it.Rarity))
	t.RawSetString("origin", lua.LNumber(it.Origin))
	t.RawSetString("name", lua.LString(it.Name))
	t.RawSetString("market_hash_name", lua.LString(it.MarketHashName))
	t.RawSetString("custom_name", lua.LString(it.CustomName))
	t.RawSetString("tradable", lua.LBool(it.Tradable))
	if it.InCasket() {
		t.RawSetString("casket_id", lua.LString(strconv.FormatUint(it.CasketID, 10)))
	}
	if it.Container != nil {
		t.RawSetString("contained_item_count", lua.LNumber(it.Container.ContainedItemCount))
	}
	if it.Paint != nil {
		p := e.vm.NewTable()
		p.RawSetString("index", lua.LNumber(it.Paint.Index))
		p.RawSetString("seed", lua.LNumber(it.Paint.Seed))
		p.RawSetString("wear", lua.LNumber(it.Paint.Wear))
		t.RawSetString("paint", p)
	}
	stickers := e.vm.NewTable()
	for _, s := range it.Stickers {
		st := e.vm.NewTable()
		st.RawSetString("slot", lua.LNumber(s.Slot))
		st.RawSetString("id", lua.LNumber(s.ID))
		st.RawSetString("name", lua.LString(e.items.StickerName(s.ID)))
		st.RawSetString("wear", lua.LNumber(s.Wear))
		stickers.Append(st)
	}
	t.RawSetString("stickers", stickers)
	return t
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}
