// Package bot drives synthetic players that wander a room and publish their
// position the way a connected client does. They give a room its first
// variables update and keep the position relay busy.
package bot

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/mmobasics/server/internal/config"
	"github.com/mmobasics/server/internal/core/ecs"
	coresys "github.com/mmobasics/server/internal/core/system"
	"github.com/mmobasics/server/internal/world"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Minimum change before a player publishes again.
const (
	posThreshold = 0.02
	yawThreshold = 0.5
)

type Host interface {
	Login(name, zone string) (ecs.EntityID, error)
	JoinRoom(id ecs.EntityID, room string) error
	SetUserVariables(id ecs.EntityID, vars []world.Variable) error
	Disconnect(id ecs.EntityID) error
}

type Room interface {
	Name() string
	Zone() string
	MapLimits() world.Bounds
}

type Scheduler interface {
	ScheduleAtFixedRate(fn func(), delay, period time.Duration) coresys.Task
}

// Player is one synthetic client.
type Player struct {
	ID      ecs.EntityID
	Name    string
	Pos     world.Vec2
	Heading float64 // degrees, 0 faces +z

	lastPos     world.Vec2
	lastHeading float64
}

// Fleet owns the demo players of one room.
type Fleet struct {
	host  Host
	sched Scheduler
	room  Room
	cfg   config.DemoConfig
	rnd   *rand.Rand
	log   *zap.Logger

	mu      sync.Mutex
	players []*Player
	task    coresys.Task
}

func NewFleet(host Host, sched Scheduler, room Room, cfg config.DemoConfig, rnd *rand.Rand, log *zap.Logger) *Fleet {
	return &Fleet{
		host:  host,
		sched: sched,
		room:  room,
		cfg:   cfg,
		rnd:   rnd,
		log:   log.With(zap.String("room", room.Name())),
	}
}

// Start logs the players in, places them at random and sends their first
// position immediately, then moves them every MoveInterval.
func (f *Fleet) Start() error {
	bounds := f.room.MapLimits()
	if err := bounds.Validate(); err != nil {
		return fmt.Errorf("demo players for %s: %w", f.room.Name(), err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.task != nil {
		return nil
	}

	for i := 0; i < f.cfg.Players; i++ {
		name := fmt.Sprintf("%s-demo-%d", f.room.Name(), i)
		id, err := f.host.Login(name, f.room.Zone())
		if err != nil {
			return fmt.Errorf("login %s: %w", name, err)
		}
		if err := f.host.JoinRoom(id, f.room.Name()); err != nil {
			return fmt.Errorf("join %s: %w", name, err)
		}
		p := &Player{
			ID:   id,
			Name: name,
			Pos: world.Vec2{
				X: bounds.Lower.X + f.rnd.Float64()*bounds.Width(),
				Z: bounds.Lower.Z + f.rnd.Float64()*bounds.Depth(),
			},
			Heading: f.rnd.Float64() * 360,
		}
		if err := f.send(p); err != nil {
			return err
		}
		f.players = append(f.players, p)
	}

	f.task = f.sched.ScheduleAtFixedRate(f.step, f.cfg.MoveInterval, f.cfg.MoveInterval)
	f.log.Info("demo players started", zap.Int("players", len(f.players)))
	return nil
}

func (f *Fleet) step() {
	f.mu.Lock()
	defer f.mu.Unlock()

	bounds := f.room.MapLimits()
	var errs error
	for _, p := range f.players {
		p.wander(f.rnd, bounds, f.cfg.Speed)
		if !p.changed() {
			continue
		}
		errs = multierr.Append(errs, f.send(p))
	}
	if errs != nil {
		f.log.Warn("demo player update failed", zap.Error(errs))
	}
}

func (f *Fleet) send(p *Player) error {
	p.lastPos, p.lastHeading = p.Pos, p.Heading
	if err := f.host.SetUserVariables(p.ID, []world.Variable{
		world.DoubleVar("x", p.Pos.X),
		world.DoubleVar("z", p.Pos.Z),
		world.DoubleVar("rot", p.Heading),
	}); err != nil {
		return fmt.Errorf("publish %s: %w", p.Name, err)
	}
	return nil
}

// Stop cancels movement and disconnects the players.
func (f *Fleet) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.task != nil {
		f.task.Cancel()
		f.task = nil
	}
	for _, p := range f.players {
		if err := f.host.Disconnect(p.ID); err != nil {
			f.log.Debug("demo player disconnect", zap.String("name", p.Name), zap.Error(err))
		}
	}
	f.players = nil
}

// Players returns copies of the current players.
func (f *Fleet) Players() []Player {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Player, len(f.players))
	for i, p := range f.players {
		out[i] = *p
	}
	return out
}

// wander turns a little and walks one step, turning back at the map limits.
func (p *Player) wander(rnd *rand.Rand, b world.Bounds, speed float64) {
	p.Heading = normalizeDeg(p.Heading + rnd.NormFloat64()*20)
	rad := p.Heading * math.Pi / 180
	next := world.Vec2{
		X: p.Pos.X + math.Sin(rad)*speed,
		Z: p.Pos.Z + math.Cos(rad)*speed,
	}
	if next.X < b.Lower.X || next.X > b.Upper.X {
		next.X = p.Pos.X
		p.Heading = normalizeDeg(360 - p.Heading)
	}
	if next.Z < b.Lower.Z || next.Z > b.Upper.Z {
		next.Z = p.Pos.Z
		p.Heading = normalizeDeg(180 - p.Heading)
	}
	p.Pos = next
}

func (p *Player) changed() bool {
	dx, dz := p.Pos.X-p.lastPos.X, p.Pos.Z-p.lastPos.Z
	if dx*dx+dz*dz > posThreshold*posThreshold {
		return true
	}
	return math.Abs(deltaDeg(p.Heading, p.lastHeading)) > yawThreshold
}

func normalizeDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// deltaDeg is the shortest signed angle from b to a.
func deltaDeg(a, b float64) float64 {
	d := math.Mod(a-b+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}
