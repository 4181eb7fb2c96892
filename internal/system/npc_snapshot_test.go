package system

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mmobasics/server/internal/core/ecs"
	"github.com/mmobasics/server/internal/persist"
	"github.com/mmobasics/server/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUsers map[ecs.EntityID]string

func (f fakeUsers) User(id ecs.EntityID) (world.User, bool) {
	name, ok := f[id]
	if !ok {
		return world.User{}, false
	}
	return world.User{ID: id, Name: name, NPC: true}, true
}

type fakeWriter struct {
	calls [][]persist.NpcSnapshot
	err   error
}

func (w *fakeWriter) SaveSnapshots(_ context.Context, rows []persist.NpcSnapshot) error {
	w.calls = append(w.calls, rows)
	return w.err
}

func TestNpcSnapshot_WritesEveryNTicks(t *testing.T) {
	vars := newFakeVars()
	walk := NewNpcWalkSystem("MMOBasics", square100, vars, zap.NewNop())
	users := fakeUsers{}
	for i := uint32(0); i < 3; i++ {
		id := ecs.NewEntityID(i, 0)
		users[id] = fmt.Sprintf("NPC#%d", i)
		vars.place(id, 10, 20)
		walk.Add(id, Velocity{XSpeed: 1, ZSpeed: -1})
	}

	w := &fakeWriter{}
	snap := NewNpcSnapshotSystem(walk, users, w, 3, zap.NewNop())

	for i := 0; i < 7; i++ {
		walk.Update(0)
		snap.Update(0)
	}

	require.Len(t, w.calls, 2)
	rows := w.calls[1]
	require.Len(t, rows, 3)
	assert.Equal(t, "NPC#0", rows[0].NpcName)
	assert.Equal(t, "MMOBasics", rows[0].Room)
	assert.Equal(t, int64(6), rows[0].Tick)
	assert.Equal(t, 16.0, rows[0].X)
	assert.Equal(t, 14.0, rows[0].Z)
	assert.Equal(t, -1.0, rows[0].ZSpeed)
}

func TestNpcSnapshot_SkipsUnknownAndSurvivesWriterError(t *testing.T) {
	vars := newFakeVars()
	walk := NewNpcWalkSystem("MMOBasics", square100, vars, zap.NewNop())
	known := ecs.NewEntityID(1, 0)
	gone := ecs.NewEntityID(2, 0)
	vars.place(known, 1, 1)
	vars.place(gone, 2, 2)
	walk.Add(known, Velocity{})
	walk.Add(gone, Velocity{})

	w := &fakeWriter{err: errors.New("db down")}
	snap := NewNpcSnapshotSystem(walk, fakeUsers{known: "NPC#1"}, w, 1, zap.NewNop())

	assert.NotPanics(t, func() { snap.Update(0) })
	require.Len(t, w.calls, 1)
	assert.Len(t, w.calls[0], 1)
}

func TestNpcSnapshot_Disabled(t *testing.T) {
	walk := NewNpcWalkSystem("MMOBasics", square100, newFakeVars(), zap.NewNop())
	w := &fakeWriter{}
	snap := NewNpcSnapshotSystem(walk, fakeUsers{}, w, 0, zap.NewNop())
	for i := 0; i < 10; i++ {
		snap.Update(0)
	}
	assert.Empty(t, w.calls)
}
