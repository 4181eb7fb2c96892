package world

import (
	"math"

	"github.com/mmobasics/server/internal/core/ecs"
)

// AOIGrid implements a cell-based Area of Interest index over the ground
// plane. Cell size equals the interest radius so that a 3x3 neighbourhood of
// cells covers every candidate. Guarded by the owning State's lock.
type AOIGrid struct {
	cellSize float64
	cells    map[cellKey]map[ecs.EntityID]struct{}
}

type cellKey struct {
	cx int32
	cz int32
}

func NewAOIGrid(cellSize float64) *AOIGrid {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &AOIGrid{
		cellSize: cellSize,
		cells:    make(map[cellKey]map[ecs.EntityID]struct{}),
	}
}

func (g *AOIGrid) key(p Vec2) cellKey {
	return cellKey{
		cx: int32(math.Floor(p.X / g.cellSize)),
		cz: int32(math.Floor(p.Z / g.cellSize)),
	}
}

// Add places an entity into the grid.
func (g *AOIGrid) Add(id ecs.EntityID, p Vec2) {
	k := g.key(p)
	cell := g.cells[k]
	if cell == nil {
		cell = make(map[ecs.EntityID]struct{})
		g.cells[k] = cell
	}
	cell[id] = struct{}{}
}

// Remove takes an entity out of the grid.
func (g *AOIGrid) Remove(id ecs.EntityID, p Vec2) {
	k := g.key(p)
	cell := g.cells[k]
	if cell != nil {
		delete(cell, id)
		if len(cell) == 0 {
			delete(g.cells, k)
		}
	}
}

// Move updates an entity's cell when its position changes.
func (g *AOIGrid) Move(id ecs.EntityID, from, to Vec2) {
	if g.key(from) == g.key(to) {
		return
	}
	g.Remove(id, from)
	g.Add(id, to)
}

// GetNearby returns all entities in the 3x3 neighbourhood of cells around p.
// Caller does fine-grained distance filtering.
func (g *AOIGrid) GetNearby(p Vec2) []ecs.EntityID {
	c := g.key(p)
	var result []ecs.EntityID
	for dx := int32(-1); dx <= 1; dx++ {
		for dz := int32(-1); dz <= 1; dz++ {
			for id := range g.cells[cellKey{cx: c.cx + dx, cz: c.cz + dz}] {
				result = append(result, id)
			}
		}
	}
	return result
}
