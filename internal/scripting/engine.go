package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for spawn-time NPC hooks.
// The VM is not goroutine-safe; every call goes through mu.
type Engine struct {
	mu  sync.Mutex
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the core and npc
// subdirectories of scriptsDir. Missing directories are skipped.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	for _, sub := range []string{"core", "npc"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
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

// NpcSpawnContext is what the npc_spawn hook sees for one NPC.
type NpcSpawnContext struct {
	Index    int
	Room     string
	Name     string
	Model    int
	Material int
	Rot      float64
	X        float64
	Z        float64
}

// NpcSpawnResult carries the cosmetic fields a hook may override.
type NpcSpawnResult struct {
	Name     string
	Model    int
	Material int
}

// HasSpawnHook reports whether a script defined npc_spawn.
func (e *Engine) HasSpawnHook() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vm.GetGlobal("npc_spawn") != lua.LNil
}

// DecorateNpc calls the Lua npc_spawn function. Fields the script leaves out
// or sets to an invalid value keep the values from ctx.
func (e *Engine) DecorateNpc(ctx NpcSpawnContext) NpcSpawnResult {
	def := NpcSpawnResult{Name: ctx.Name, Model: ctx.Model, Material: ctx.Material}

	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("npc_spawn")
	if fn == lua.LNil {
		return def
	}

	t := e.vm.NewTable()
	t.RawSetString("index", lua.LNumber(ctx.Index))
	t.RawSetString("room", lua.LString(ctx.Room))
	t.RawSetString("name", lua.LString(ctx.Name))
	t.RawSetString("model", lua.LNumber(ctx.Model))
	t.RawSetString("mat", lua.LNumber(ctx.Material))
	t.RawSetString("rot", lua.LNumber(ctx.Rot))
	t.RawSetString("x", lua.LNumber(ctx.X))
	t.RawSetString("z", lua.LNumber(ctx.Z))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua npc_spawn error", zap.Int("index", ctx.Index), zap.Error(err))
		return def
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		if result != lua.LNil {
			e.log.Warn("lua npc_spawn returned non-table", zap.String("type", result.Type().String()))
		}
		return def
	}

	out := def
	if s, ok := rt.RawGetString("name").(lua.LString); ok && s != "" {
		out.Name = string(s)
	}
	if n, ok := rt.RawGetString("model").(lua.LNumber); ok && n >= 0 {
		out.Model = int(n)
	}
	if n, ok := rt.RawGetString("mat").(lua.LNumber); ok && n >= 0 {
		out.Material = int(n)
	}
	return out
}

// Close releases the VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}
