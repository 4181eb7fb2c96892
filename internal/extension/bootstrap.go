package extension

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmobasics/server/internal/core/ecs"
	coresys "github.com/mmobasics/server/internal/core/system"
	"github.com/mmobasics/server/internal/scripting"
	"github.com/mmobasics/server/internal/system"
	"github.com/mmobasics/server/internal/world"
	"go.uber.org/zap"
)

// Population is the ordered set of NPCs created by one bootstrap.
type Population []ecs.EntityID

// Room is the read side of the host room the extension is attached to.
type Room interface {
	Name() string
	Zone() string
	MapLimits() world.Bounds
}

// Host is the slice of the host API the simulation calls into.
type Host interface {
	CreateNPC(name, zone string, forceLogin bool) (ecs.EntityID, error)
	JoinRoom(id ecs.EntityID, room string) error
	SetUserVariables(id ecs.EntityID, vars []world.Variable) error
	UserVariable(id ecs.EntityID, name string) (world.Variable, error)
	SetUserPosition(id ecs.EntityID, pos world.Vec2, room string) error
	User(id ecs.EntityID) (world.User, bool)
}

// Scheduler runs a function at a fixed rate until the task is cancelled.
type Scheduler interface {
	ScheduleAtFixedRate(fn func(), delay, period time.Duration) coresys.Task
}

// SpawnDecorator may rename or restyle an NPC before it is created.
type SpawnDecorator interface {
	DecorateNpc(ctx scripting.NpcSpawnContext) scripting.NpcSpawnResult
}

// Bootstrapper creates a room's NPC population once and starts the walk
// tick. The latch is set before the body runs: a failed bootstrap is not
// retried on the next trigger.
type Bootstrapper struct {
	started atomic.Bool

	room      Room
	host      Host
	scheduler Scheduler
	rnd       *rand.Rand
	maxSpeed  float64
	period    time.Duration
	decorator SpawnDecorator

	snapshots     system.SnapshotWriter
	snapshotEvery int

	log *zap.Logger

	// mu guards the fields below and serializes ticks with Stop.
	mu       sync.Mutex
	walk     *system.NpcWalkSystem
	runner   *coresys.Runner
	registry *ecs.Registry
	task     coresys.Task
	stopped  bool
}

// Started reports whether Bootstrap has been entered.
func (b *Bootstrapper) Started() bool { return b.started.Load() }

// Bootstrap creates size NPCs in the room, publishes their initial state,
// registers them with the proximity index and schedules the walk tick with
// no initial delay. Only the first call does anything; later calls return
// (nil, nil).
func (b *Bootstrapper) Bootstrap(size int, bounds world.Bounds, models, materials int) (Population, error) {
	if !b.started.CompareAndSwap(false, true) {
		return nil, nil
	}
	if err := bounds.Validate(); err != nil {
		return nil, fmt.Errorf("bootstrap room %s: %w", b.room.Name(), err)
	}

	walk := system.NewNpcWalkSystem(b.room.Name(), bounds, b.host, b.log)
	pop := make(Population, 0, size)
	for i := 0; i < size; i++ {
		id, err := b.spawn(i, walk, bounds, models, materials)
		if err != nil {
			return nil, fmt.Errorf("bootstrap room %s: npc %d: %w", b.room.Name(), i, err)
		}
		pop = append(pop, id)
	}

	registry := ecs.NewRegistry()
	registry.Register(walk.Velocities())

	runner := coresys.NewRunner(b.log)
	runner.Register(walk)
	if b.snapshots != nil && b.snapshotEvery > 0 {
		runner.Register(system.NewNpcSnapshotSystem(walk, b.host, b.snapshots, b.snapshotEvery, b.log))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.walk = walk
	b.runner = runner
	b.registry = registry
	if b.stopped {
		return pop, nil
	}
	b.task = b.scheduler.ScheduleAtFixedRate(b.tick, 0, b.period)

	b.log.Info("npc simulation started",
		zap.String("room", b.room.Name()),
		zap.Int("npcs", len(pop)),
		zap.Duration("period", b.period),
	)
	return pop, nil
}

func (b *Bootstrapper) spawn(i int, walk *system.NpcWalkSystem, bounds world.Bounds, models, materials int) (ecs.EntityID, error) {
	pos := world.Vec2{
		X: bounds.Lower.X + b.rnd.Float64()*bounds.Width(),
		Z: bounds.Lower.Z + b.rnd.Float64()*bounds.Depth(),
	}
	rot := b.rnd.Float64() * 360
	model := variant(b.rnd, models)
	mat := variant(b.rnd, materials)
	vel := system.Velocity{
		XSpeed: b.rnd.Float64() * b.maxSpeed,
		ZSpeed: b.rnd.Float64() * b.maxSpeed,
	}

	name := fmt.Sprintf("NPC#%d", i)
	if b.decorator != nil {
		res := b.decorator.DecorateNpc(scripting.NpcSpawnContext{
			Index:    i,
			Room:     b.room.Name(),
			Name:     name,
			Model:    model,
			Material: mat,
			Rot:      rot,
			X:        pos.X,
			Z:        pos.Z,
		})
		name, model, mat = res.Name, res.Model, res.Material
	}

	id, err := b.host.CreateNPC(name, b.room.Zone(), false)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", name, err)
	}
	if err := b.host.JoinRoom(id, b.room.Name()); err != nil {
		return 0, fmt.Errorf("join %s: %w", name, err)
	}

	// Vertical position is resolved by clients from terrain; y stays 0.
	if err := b.host.SetUserVariables(id, []world.Variable{
		world.DoubleVar("x", pos.X),
		world.DoubleVar("y", 0),
		world.DoubleVar("z", pos.Z),
		world.DoubleVar("rot", rot),
		world.IntVar("model", model),
		world.IntVar("mat", mat),
	}); err != nil {
		return 0, fmt.Errorf("publish %s: %w", name, err)
	}
	if err := b.host.SetUserPosition(id, pos, b.room.Name()); err != nil {
		return 0, fmt.Errorf("proximity %s: %w", name, err)
	}

	walk.Add(id, vel)
	return id, nil
}

// variant draws a cosmetic index from [0, n-1). Fewer than two variants
// always yield 0.
func variant(rnd *rand.Rand, n int) int {
	if n < 2 {
		return 0
	}
	return rnd.Intn(n - 1)
}

func (b *Bootstrapper) tick() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped || b.runner == nil {
		return
	}
	b.runner.Tick(b.period)
}

// Stop cancels the walk tick and drops the per-NPC velocities. A tick in
// progress finishes first. Safe to call more than once and before Bootstrap.
func (b *Bootstrapper) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	if b.task != nil {
		b.task.Cancel()
		b.task = nil
	}
	if b.walk != nil {
		for _, id := range b.walk.Population() {
			b.registry.RemoveAll(id)
		}
	}
}

// Population returns the NPCs created by a successful bootstrap.
func (b *Bootstrapper) Population() Population {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.walk == nil {
		return nil
	}
	return Population(b.walk.Population())
}

// Velocity returns an NPC's current velocity.
func (b *Bootstrapper) Velocity(id ecs.EntityID) (system.Velocity, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.walk == nil {
		return system.Velocity{}, false
	}
	return b.walk.Velocity(id)
}

// Running reports whether the walk tick is scheduled.
func (b *Bootstrapper) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.task != nil
}
