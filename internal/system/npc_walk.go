package system

import (
	"fmt"
	"time"

	"github.com/mmobasics/server/internal/core/ecs"
	coresys "github.com/mmobasics/server/internal/core/system"
	"github.com/mmobasics/server/internal/world"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// VariableStore is the host's synchronized-variable API.
type VariableStore interface {
	SetUserVariables(id ecs.EntityID, vars []world.Variable) error
	UserVariable(id ecs.EntityID, name string) (world.Variable, error)
}

// Velocity is an NPC's planar speed per tick. Server-side only.
type Velocity struct {
	XSpeed float64
	ZSpeed float64
}

// NpcWalkSystem moves every NPC of one room by its velocity each tick and
// bounces it off the map limits. Phase 0 (Update).
// Population and velocities are filled before the first tick and afterwards
// touched only from the tick goroutine, so no locks.
type NpcWalkSystem struct {
	room       string
	bounds     world.Bounds
	npcs       []ecs.EntityID
	velocities *ecs.PtrComponentStore[Velocity]
	vars       VariableStore
	log        *zap.Logger
	ticks      int64
}

func NewNpcWalkSystem(room string, bounds world.Bounds, vars VariableStore, log *zap.Logger) *NpcWalkSystem {
	return &NpcWalkSystem{
		room:       room,
		bounds:     bounds,
		velocities: ecs.NewPtrComponentStore[Velocity](),
		vars:       vars,
		log:        log,
	}
}

func (s *NpcWalkSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

// Add appends an NPC to the walking population.
func (s *NpcWalkSystem) Add(id ecs.EntityID, v Velocity) {
	s.npcs = append(s.npcs, id)
	s.velocities.Set(id, &v)
}

// Velocity returns a copy of an NPC's current velocity.
func (s *NpcWalkSystem) Velocity(id ecs.EntityID) (Velocity, bool) {
	v, ok := s.velocities.Get(id)
	if !ok {
		return Velocity{}, false
	}
	return *v, true
}

// Velocities exposes the velocity store so teardown can drop it by entity.
func (s *NpcWalkSystem) Velocities() *ecs.PtrComponentStore[Velocity] { return s.velocities }

// Population returns the NPC IDs in creation order.
func (s *NpcWalkSystem) Population() []ecs.EntityID {
	out := make([]ecs.EntityID, len(s.npcs))
	copy(out, s.npcs)
	return out
}

func (s *NpcWalkSystem) Len() int     { return len(s.npcs) }
func (s *NpcWalkSystem) Ticks() int64 { return s.ticks }

// Update is the scheduled entry point. A failed tick is logged and the
// schedule keeps running.
func (s *NpcWalkSystem) Update(_ time.Duration) {
	if err := s.Step(); err != nil {
		s.log.Warn("npc walk tick failed",
			zap.String("room", s.room),
			zap.Int64("tick", s.ticks),
			zap.Error(err),
		)
	}
}

// Step advances every NPC once. NPCs are independent: one failing NPC does
// not stop the others, and all failures are returned together.
func (s *NpcWalkSystem) Step() error {
	s.ticks++
	var errs error
	for _, id := range s.npcs {
		if err := s.stepOne(id); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (s *NpcWalkSystem) stepOne(id ecs.EntityID) error {
	v, ok := s.velocities.Get(id)
	if !ok {
		return fmt.Errorf("npc %d: no velocity", id)
	}
	x, err := s.readDouble(id, "x")
	if err != nil {
		return err
	}
	z, err := s.readDouble(id, "z")
	if err != nil {
		return err
	}

	newX, xspeed := Reflect(x, v.XSpeed, s.bounds.Lower.X, s.bounds.Upper.X)
	newZ, zspeed := Reflect(z, v.ZSpeed, s.bounds.Lower.Z, s.bounds.Upper.Z)
	v.XSpeed, v.ZSpeed = xspeed, zspeed

	if err := s.vars.SetUserVariables(id, []world.Variable{
		world.DoubleVar("x", newX),
		world.DoubleVar("z", newZ),
	}); err != nil {
		return fmt.Errorf("npc %d: publish position: %w", id, err)
	}
	return nil
}

func (s *NpcWalkSystem) readDouble(id ecs.EntityID, name string) (float64, error) {
	v, err := s.vars.UserVariable(id, name)
	if err != nil {
		return 0, fmt.Errorf("npc %d: %w", id, err)
	}
	d, err := v.Double()
	if err != nil {
		return 0, fmt.Errorf("npc %d: %w", id, err)
	}
	return d, nil
}

// Reflect applies one tick of movement on a single axis. If pos+speed leaves
// [lower, upper] the position stays put and the speed flips sign.
func Reflect(pos, speed, lower, upper float64) (float64, float64) {
	next := pos + speed
	if next < lower || next > upper {
		return pos, -speed
	}
	return next, speed
}
