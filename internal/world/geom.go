package world

import (
	"errors"
	"fmt"
)

// ErrInvalidBounds is returned when a map rectangle is empty or inverted.
var ErrInvalidBounds = errors.New("invalid map bounds")

// Vec2 is a position on the ground plane. Height is resolved by clients from
// terrain and is not tracked on the server.
type Vec2 struct {
	X float64
	Z float64
}

// Bounds is the rectangle entities may occupy, inclusive on both ends.
type Bounds struct {
	Lower Vec2
	Upper Vec2
}

// Validate fails unless Lower is strictly below Upper on both axes.
func (b Bounds) Validate() error {
	if !(b.Lower.X < b.Upper.X) || !(b.Lower.Z < b.Upper.Z) {
		return fmt.Errorf("%w: lower=(%g,%g) upper=(%g,%g)",
			ErrInvalidBounds, b.Lower.X, b.Lower.Z, b.Upper.X, b.Upper.Z)
	}
	return nil
}

func (b Bounds) Contains(p Vec2) bool {
	return p.X >= b.Lower.X && p.X <= b.Upper.X &&
		p.Z >= b.Lower.Z && p.Z <= b.Upper.Z
}

func (b Bounds) Width() float64 { return b.Upper.X - b.Lower.X }
func (b Bounds) Depth() float64 { return b.Upper.Z - b.Lower.Z }
