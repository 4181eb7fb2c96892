package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEngineWith(t *testing.T, src string) *Engine {
	t.Helper()
	dir := t.TempDir()
	if src != "" {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "npc"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "npc", "spawn.lua"), []byte(src), 0o644))
	}
	e, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestDecorateNpc_NoHookKeepsDefaults(t *testing.T) {
	e := newEngineWith(t, "")
	assert.False(t, e.HasSpawnHook())

	got := e.DecorateNpc(NpcSpawnContext{Index: 3, Name: "NPC#3", Model: 1, Material: 2})
	assert.Equal(t, NpcSpawnResult{Name: "NPC#3", Model: 1, Material: 2}, got)
}

func TestDecorateNpc_Overrides(t *testing.T) {
	e := newEngineWith(t, `
function npc_spawn(npc)
  if npc.index % 2 == 0 then
    return { name = "Guard-" .. npc.index, model = 0 }
  end
  return { mat = 3 }
end
`)
	assert.True(t, e.HasSpawnHook())

	even := e.DecorateNpc(NpcSpawnContext{Index: 4, Name: "NPC#4", Model: 1, Material: 2})
	assert.Equal(t, NpcSpawnResult{Name: "Guard-4", Model: 0, Material: 2}, even)

	odd := e.DecorateNpc(NpcSpawnContext{Index: 5, Name: "NPC#5", Model: 1, Material: 2})
	assert.Equal(t, NpcSpawnResult{Name: "NPC#5", Model: 1, Material: 3}, odd)
}

func TestDecorateNpc_ScriptErrorFallsBack(t *testing.T) {
	e := newEngineWith(t, `
function npc_spawn(npc)
  error("broken hook")
end
`)
	got := e.DecorateNpc(NpcSpawnContext{Index: 1, Name: "NPC#1", Model: 1, Material: 1})
	assert.Equal(t, NpcSpawnResult{Name: "NPC#1", Model: 1, Material: 1}, got)
}

func TestDecorateNpc_RejectsNegativeVariants(t *testing.T) {
	e := newEngineWith(t, `
function npc_spawn(npc)
  return { model = -1, mat = -5, name = "" }
end
`)
	got := e.DecorateNpc(NpcSpawnContext{Index: 0, Name: "NPC#0", Model: 2, Material: 1})
	assert.Equal(t, NpcSpawnResult{Name: "NPC#0", Model: 2, Material: 1}, got)
}

func TestNewEngine_SyntaxError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "core"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "core", "bad.lua"), []byte("function ("), 0o644))

	_, err := NewEngine(dir, zap.NewNop())
	assert.Error(t, err)
}
