package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/gcbackpack/csgogc/internal/backpack"
	"github.com/gcbackpack/csgogc/internal/core/event"
)

const hooks = `
seen = {}
function on_gc_ready(n) table.insert(seen, "ready:" .. n) end
function on_item_receive(it)
  table.insert(seen, "recv:" .. it.asset_id .. ":" .. it.name .. ":" .. #it.stickers)
end
function on_item_update(b, a) table.insert(seen, "upd:" .. b.position .. "->" .. a.position) end
function on_item_remove(it) error("boom") end
`

func newTestEngine(t *testing.T, files map[string]string) *Engine {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	e, err := NewEngine(dir, nil, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func seen(t *testing.T, e *Engine) []string {
	t.Helper()
	tbl, ok := e.vm.GetGlobal("seen").(*lua.LTable)
	require.True(t, ok)
	var out []string
	tbl.ForEach(func(_, v lua.LValue) { out = append(out, v.String()) })
	return out
}

func TestHooksViaBus(t *testing.T) {
	e := newTestEngine(t, map[string]string{"hooks/items.lua": hooks, "notes.txt": "ignored"})
	for _, h := range []string{HookReady, HookItemReceive, HookItemUpdate, HookItemRemove} {
		assert.True(t, e.Defines(h), h)
	}

	bus := event.NewBus()
	e.Attach(bus)

	item := &backpack.Item{
		AssetID:  25000000000123,
		Name:     "AK-47",
		Position: 3,
		Stickers: []backpack.Sticker{{Slot: 1, ID: 76}},
	}
	moved := item.Clone()
	moved.Position = 9

	event.Emit(bus, event.GCReady{Items: 12})
	event.Emit(bus, event.ItemReceive{Item: item})
	event.Emit(bus, event.ItemUpdate{Before: item, After: moved})
	event.Emit(bus, event.ItemRemove{Item: moved})
	bus.Flush()

	assert.Equal(t, []string{
		"ready:12",
		"recv:25000000000123:AK-47:1",
		"upd:3->9",
	}, seen(t, e), "a failing hook is logged and skipped")
}

func TestMissingHooksAreSkipped(t *testing.T) {
	e := newTestEngine(t, nil)
	assert.False(t, e.Defines(HookItemReceive))
	e.OnItemReceive(&backpack.Item{AssetID: 1})
	e.OnReady(0)
}

func TestLoadErrorFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.lua"), []byte("function ("), 0o644))
	_, err := NewEngine(dir, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestCatalogHelpers(t *testing.T) {
	e := newTestEngine(t, nil)
	require.NoError(t, e.DoString(`name = item_name(7, 282) .. "|" .. sticker_name(76)`))
	assert.Equal(t, "|", e.vm.GetGlobal("name").String(), "nil catalog yields empty names")
}
