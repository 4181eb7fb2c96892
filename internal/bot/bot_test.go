package bot

import (
	"math/rand"
	"testing"
	"time"

	"github.com/mmobasics/server/internal/config"
	"github.com/mmobasics/server/internal/core/event"
	coresys "github.com/mmobasics/server/internal/core/system"
	"github.com/mmobasics/server/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubTask struct{ cancelled bool }

func (t *stubTask) Cancel() { t.cancelled = true }

type stubScheduler struct {
	fn     func()
	delay  time.Duration
	period time.Duration
	task   *stubTask
}

func (s *stubScheduler) ScheduleAtFixedRate(fn func(), delay, period time.Duration) coresys.Task {
	s.fn, s.delay, s.period = fn, delay, period
	s.task = &stubTask{}
	return s.task
}

func newFleet(t *testing.T, players int) (*Fleet, *world.State, *stubScheduler, *[]world.UserVariablesUpdate) {
	t.Helper()
	events := event.NewDispatcher(zap.NewNop())
	state := world.NewState(events, zap.NewNop())
	room, err := world.NewRoom("MMOBasics", "MMOBasics", world.Bounds{
		Lower: world.Vec2{X: -20, Z: -20},
		Upper: world.Vec2{X: 20, Z: 20},
	}, 10)
	require.NoError(t, err)
	require.NoError(t, state.AddRoom(room))

	var updates []world.UserVariablesUpdate
	event.Subscribe(events, func(ev world.UserVariablesUpdate) { updates = append(updates, ev) })

	sched := &stubScheduler{}
	cfg := config.DemoConfig{Players: players, MoveInterval: 200 * time.Millisecond, Speed: 1.5}
	return NewFleet(state, sched, room, cfg, rand.New(rand.NewSource(3)), zap.NewNop()), state, sched, &updates
}

func TestFleet_StartSendsInitialPosition(t *testing.T) {
	fleet, state, sched, updates := newFleet(t, 3)
	require.NoError(t, fleet.Start())

	assert.Equal(t, 3, state.UserCount())
	require.Len(t, *updates, 3)
	for _, ev := range *updates {
		assert.Equal(t, "MMOBasics", ev.Room)
		names := world.VariableMap(ev.Variables)
		assert.Contains(t, names, "x")
		assert.Contains(t, names, "z")
		assert.Contains(t, names, "rot")
	}
	assert.Equal(t, 200*time.Millisecond, sched.delay)
	assert.Equal(t, 200*time.Millisecond, sched.period)

	// Starting twice does not log in a second set of players.
	require.NoError(t, fleet.Start())
	assert.Equal(t, 3, state.UserCount())
}

func TestFleet_PlayersStayInsideMap(t *testing.T) {
	fleet, state, sched, _ := newFleet(t, 4)
	require.NoError(t, fleet.Start())
	limits := world.Bounds{Lower: world.Vec2{X: -20, Z: -20}, Upper: world.Vec2{X: 20, Z: 20}}

	for i := 0; i < 500; i++ {
		sched.fn()
	}
	for _, p := range fleet.Players() {
		assert.True(t, limits.Contains(p.Pos), "%s at %+v", p.Name, p.Pos)
		assert.GreaterOrEqual(t, p.Heading, 0.0)
		assert.Less(t, p.Heading, 360.0)

		x, err := state.UserVariable(p.ID, "x")
		require.NoError(t, err)
		assert.InDelta(t, p.Pos.X, x.Value, posThreshold+1e-9)
	}
}

func TestFleet_StopDisconnects(t *testing.T) {
	fleet, state, sched, _ := newFleet(t, 2)
	require.NoError(t, fleet.Start())

	fleet.Stop()
	assert.True(t, sched.task.cancelled)
	assert.Zero(t, state.UserCount())
	assert.Empty(t, fleet.Players())
}

func TestDeltaDeg(t *testing.T) {
	tests := []struct {
		a, b, want float64
	}{
		{10, 350, 20},
		{350, 10, -20},
		{90, 90, 0},
		{180, 0, -180},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, deltaDeg(tt.a, tt.b), 1e-9, "deltaDeg(%g, %g)", tt.a, tt.b)
	}
}
