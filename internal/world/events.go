package world

import "github.com/mmobasics/server/internal/core/ecs"

// UserVariablesUpdate is dispatched after a batch of variables was stored on
// a user. Room is the user's room at the time of the write ("" when none).
type UserVariablesUpdate struct {
	UserID    ecs.EntityID
	Room      string
	Variables []Variable
}

// RoomRemoved is dispatched after a room was torn down.
type RoomRemoved struct {
	Room string
}

// UserDisconnected is dispatched after a user left the server.
type UserDisconnected struct {
	UserID ecs.EntityID
	Name   string
}
