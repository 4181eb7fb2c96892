// Package extension attaches the NPC simulation to one host room.
package extension

import (
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/mmobasics/server/internal/config"
	"github.com/mmobasics/server/internal/core/event"
	"github.com/mmobasics/server/internal/handler"
	"github.com/mmobasics/server/internal/system"
	"github.com/mmobasics/server/internal/world"
	"go.uber.org/zap"
)

// Option customizes an Extension.
type Option func(*Extension)

// WithRand sets the random source used at bootstrap.
func WithRand(rnd *rand.Rand) Option {
	return func(e *Extension) { e.boot.rnd = rnd }
}

// WithSpawnDecorator lets a script rename or restyle NPCs.
func WithSpawnDecorator(d SpawnDecorator) Option {
	return func(e *Extension) { e.boot.decorator = d }
}

// WithSnapshots saves NPC positions through w every cfg.SnapshotEvery ticks.
func WithSnapshots(w system.SnapshotWriter) Option {
	return func(e *Extension) { e.boot.snapshots = w }
}

// Extension is the room-scoped simulation: the first variables update seen
// in its room starts the NPC population, and every update that moves a user
// is relayed to the room's proximity index.
type Extension struct {
	room   Room
	cfg    config.SimulationConfig
	events *event.Dispatcher
	boot   *Bootstrapper
	relay  *handler.PositionRelay
	log    *zap.Logger

	destroyed atomic.Bool
}

func New(room Room, host Host, sched Scheduler, events *event.Dispatcher, cfg config.SimulationConfig, log *zap.Logger, opts ...Option) *Extension {
	log = log.With(zap.String("room", room.Name()))
	e := &Extension{
		room:   room,
		cfg:    cfg,
		events: events,
		relay:  handler.NewPositionRelay(room.Name(), host, host, log),
		log:    log,
	}
	e.boot = &Bootstrapper{
		room:          room,
		host:          host,
		scheduler:     sched,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
		maxSpeed:      cfg.MaxSpeed,
		period:        cfg.StepInterval,
		snapshotEvery: cfg.SnapshotEvery,
		log:           log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init registers the extension's handlers with the host dispatcher. Map
// limits are read lazily on the first update, not here.
func (e *Extension) Init() {
	event.Subscribe(e.events, e.onVariablesUpdate)
	event.Subscribe(e.events, e.onRoomRemoved)
	event.Subscribe(e.events, e.onUserDisconnected)
	e.log.Info("extension initialized")
}

// Destroy cancels the walk tick. Handlers stay subscribed but ignore
// further events.
func (e *Extension) Destroy() {
	if !e.destroyed.CompareAndSwap(false, true) {
		return
	}
	e.boot.Stop()
	e.log.Info("extension destroyed")
}

// Bootstrapper exposes the simulation state.
func (e *Extension) Bootstrapper() *Bootstrapper { return e.boot }

func (e *Extension) onVariablesUpdate(ev world.UserVariablesUpdate) {
	if e.destroyed.Load() || ev.Room != e.room.Name() {
		return
	}
	if !e.boot.Started() {
		e.startSimulation()
	}
	e.relay.HandleVariablesUpdate(ev)
}

func (e *Extension) startSimulation() {
	pop, err := e.boot.Bootstrap(e.cfg.NpcCount, e.room.MapLimits(), e.cfg.ModelVariants, e.cfg.MaterialVariants)
	if err != nil {
		e.log.Error("npc simulation failed to start, room stays without npcs", zap.Error(err))
		return
	}
	if pop != nil {
		e.log.Debug("npc population created", zap.Int("npcs", len(pop)))
	}
}

func (e *Extension) onRoomRemoved(ev world.RoomRemoved) {
	if ev.Room == e.room.Name() {
		e.Destroy()
	}
}

func (e *Extension) onUserDisconnected(ev world.UserDisconnected) {
	if e.destroyed.Load() {
		return
	}
	for _, id := range e.boot.Population() {
		if id == ev.UserID {
			e.log.Warn("simulated npc disconnected by host", zap.String("npc", ev.Name))
			return
		}
	}
}
