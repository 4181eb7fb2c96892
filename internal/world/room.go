package world

import (
	"fmt"

	"github.com/mmobasics/server/internal/core/ecs"
)

// Room is a map instance with its own proximity index. Name, zone, bounds and
// radius are immutable; membership and positions are guarded by State.
type Room struct {
	name      string
	zone      string
	bounds    Bounds
	aoiRadius float64

	grid      *AOIGrid
	members   map[ecs.EntityID]struct{}
	positions map[ecs.EntityID]Vec2 // only users with a proximity position
}

// NewRoom validates the map limits and builds an empty room.
func NewRoom(name, zone string, bounds Bounds, aoiRadius float64) (*Room, error) {
	if err := bounds.Validate(); err != nil {
		return nil, fmt.Errorf("room %s: %w", name, err)
	}
	if aoiRadius <= 0 {
		return nil, fmt.Errorf("room %s: aoi radius must be positive, got %g", name, aoiRadius)
	}
	return &Room{
		name:      name,
		zone:      zone,
		bounds:    bounds,
		aoiRadius: aoiRadius,
		grid:      NewAOIGrid(aoiRadius),
		members:   make(map[ecs.EntityID]struct{}),
		positions: make(map[ecs.EntityID]Vec2),
	}, nil
}

func (r *Room) Name() string       { return r.name }
func (r *Room) Zone() string       { return r.zone }
func (r *Room) MapLimits() Bounds  { return r.bounds }
func (r *Room) AOIRadius() float64 { return r.aoiRadius }

func (r *Room) leave(id ecs.EntityID) {
	if p, ok := r.positions[id]; ok {
		r.grid.Remove(id, p)
		delete(r.positions, id)
	}
	delete(r.members, id)
}

func (r *Room) setPosition(id ecs.EntityID, p Vec2) {
	if old, ok := r.positions[id]; ok {
		r.grid.Move(id, old, p)
	} else {
		r.grid.Add(id, p)
	}
	r.positions[id] = p
}

// nearby filters grid candidates to the square of side 2*radius around p.
func (r *Room) nearby(self ecs.EntityID, p Vec2) []ecs.EntityID {
	var out []ecs.EntityID
	for _, id := range r.grid.GetNearby(p) {
		if id == self {
			continue
		}
		q := r.positions[id]
		if abs(q.X-p.X) <= r.aoiRadius && abs(q.Z-p.Z) <= r.aoiRadius {
			out = append(out, id)
		}
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
