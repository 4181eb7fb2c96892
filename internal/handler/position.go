package handler

import (
	"errors"
	"fmt"

	"github.com/mmobasics/server/internal/core/ecs"
	"github.com/mmobasics/server/internal/world"
	"go.uber.org/zap"
)

// ErrMissingVariable is returned when a position axis is neither in the
// change list nor stored on the user.
var ErrMissingVariable = errors.New("position variable missing")

// ProximityIndex is the host's area-of-interest API.
type ProximityIndex interface {
	SetUserPosition(id ecs.EntityID, pos world.Vec2, room string) error
}

// VariableReader reads a stored synchronized variable.
type VariableReader interface {
	UserVariable(id ecs.EntityID, name string) (world.Variable, error)
}

// PositionRelay forwards x/z variable changes to the proximity index of one
// room so other users' interest queries see the move. Vertical position is
// never tracked: the map is assumed flat server-side. Stateless.
type PositionRelay struct {
	room      string
	proximity ProximityIndex
	vars      VariableReader
	log       *zap.Logger
}

func NewPositionRelay(room string, proximity ProximityIndex, vars VariableReader, log *zap.Logger) *PositionRelay {
	return &PositionRelay{room: room, proximity: proximity, vars: vars, log: log}
}

// Relay forwards the new planar position if x or z changed. When only one
// axis is in the change list the other is taken from the user's stored
// variable.
func (r *PositionRelay) Relay(userID ecs.EntityID, changed []world.Variable) error {
	byName := world.VariableMap(changed)
	xv, hasX := byName["x"]
	zv, hasZ := byName["z"]
	if !hasX && !hasZ {
		return nil
	}

	x, err := r.axis(userID, "x", xv, hasX)
	if err != nil {
		return err
	}
	z, err := r.axis(userID, "z", zv, hasZ)
	if err != nil {
		return err
	}

	if err := r.proximity.SetUserPosition(userID, world.Vec2{X: x, Z: z}, r.room); err != nil {
		return fmt.Errorf("set proximity position of user %d: %w", userID, err)
	}
	return nil
}

func (r *PositionRelay) axis(userID ecs.EntityID, name string, v world.Variable, present bool) (float64, error) {
	if !present {
		stored, err := r.vars.UserVariable(userID, name)
		if err != nil {
			if errors.Is(err, world.ErrVariableNotFound) {
				return 0, fmt.Errorf("%w: %q for user %d", ErrMissingVariable, name, userID)
			}
			return 0, fmt.Errorf("read %q of user %d: %w", name, userID, err)
		}
		v = stored
	}
	d, err := v.Double()
	if err != nil {
		return 0, fmt.Errorf("user %d: %w", userID, err)
	}
	return d, nil
}

// HandleVariablesUpdate is the event-side wrapper: failures are logged and
// dropped, the next movement update corrects a stale position.
func (r *PositionRelay) HandleVariablesUpdate(ev world.UserVariablesUpdate) {
	if err := r.Relay(ev.UserID, ev.Variables); err != nil {
		r.log.Warn("position relay dropped update",
			zap.Uint64("user", uint64(ev.UserID)),
			zap.String("room", r.room),
			zap.Error(err),
		)
	}
}
