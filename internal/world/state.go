package world

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mmobasics/server/internal/core/ecs"
	"github.com/mmobasics/server/internal/core/event"
	"go.uber.org/zap"
)

var (
	ErrNameTaken    = errors.New("user name already in use")
	ErrZoneFull     = errors.New("zone is full")
	ErrUserNotFound = errors.New("user not found")
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
	ErrNotInRoom    = errors.New("user is not in room")
)

// User is a connected player or a server-side NPC.
type User struct {
	ID   ecs.EntityID
	Name string
	Zone string
	Room string // "" until the user joins a room
	NPC  bool

	vars map[string]Variable
}

// Option customizes a State.
type Option func(*State)

// WithMaxUsersPerZone caps how many users (players and NPCs) a zone admits.
// Zero means unlimited.
func WithMaxUsersPerZone(n int) Option {
	return func(s *State) { s.maxPerZone = n }
}

// State is the in-process host: users, their synchronized variables, rooms
// and each room's proximity index. Safe for concurrent use. Events are
// dispatched after the lock is released so handlers may call back in.
type State struct {
	mu         sync.Mutex
	pool       *ecs.EntityPool
	users      map[ecs.EntityID]*User
	names      map[string]ecs.EntityID
	zoneCount  map[string]int
	rooms      map[string]*Room
	maxPerZone int

	events *event.Dispatcher
	log    *zap.Logger
}

func NewState(events *event.Dispatcher, log *zap.Logger, opts ...Option) *State {
	s := &State{
		pool:      ecs.NewEntityPool(),
		users:     make(map[ecs.EntityID]*User),
		names:     make(map[string]ecs.EntityID),
		zoneCount: make(map[string]int),
		rooms:     make(map[string]*Room),
		events:    events,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events returns the dispatcher the host publishes on.
func (s *State) Events() *event.Dispatcher { return s.events }

// ---------- Rooms ----------

func (s *State) AddRoom(r *Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[r.name]; ok {
		return fmt.Errorf("%w: %s", ErrRoomExists, r.name)
	}
	s.rooms[r.name] = r
	return nil
}

func (s *State) Room(name string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[name]
	return r, ok
}

// RemoveRoom evicts every member and dispatches RoomRemoved.
func (s *State) RemoveRoom(name string) error {
	s.mu.Lock()
	r, ok := s.rooms[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRoomNotFound, name)
	}
	for id := range r.members {
		if u := s.users[id]; u != nil {
			u.Room = ""
		}
		r.leave(id)
	}
	delete(s.rooms, name)
	s.mu.Unlock()

	event.Dispatch(s.events, RoomRemoved{Room: name})
	return nil
}

// RoomUsers returns the members of a room ordered by ID.
func (s *State) RoomUsers(room string) []ecs.EntityID {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[room]
	if !ok {
		return nil
	}
	ids := make([]ecs.EntityID, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// ---------- Users ----------

// Login creates a player user in a zone.
func (s *State) Login(name, zone string) (ecs.EntityID, error) {
	return s.createUser(name, zone, false, false)
}

// CreateNPC creates a server-side user in a zone. With forceLogin an existing
// user holding the same name is disconnected first; otherwise the name
// collision is an error.
func (s *State) CreateNPC(name, zone string, forceLogin bool) (ecs.EntityID, error) {
	return s.createUser(name, zone, true, forceLogin)
}

func (s *State) createUser(name, zone string, npc, force bool) (ecs.EntityID, error) {
	s.mu.Lock()
	var kicked *User
	if old, ok := s.names[name]; ok {
		if !force {
			s.mu.Unlock()
			return 0, fmt.Errorf("%w: %s", ErrNameTaken, name)
		}
		kicked = s.removeUserLocked(old)
	}
	if s.maxPerZone > 0 && s.zoneCount[zone] >= s.maxPerZone {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: %s (%d users)", ErrZoneFull, zone, s.maxPerZone)
	}
	id := s.pool.Create()
	s.users[id] = &User{
		ID:   id,
		Name: name,
		Zone: zone,
		NPC:  npc,
		vars: make(map[string]Variable),
	}
	s.names[name] = id
	s.zoneCount[zone]++
	s.mu.Unlock()

	if kicked != nil {
		event.Dispatch(s.events, UserDisconnected{UserID: kicked.ID, Name: kicked.Name})
	}
	s.log.Debug("user created",
		zap.String("name", name),
		zap.String("zone", zone),
		zap.Bool("npc", npc),
	)
	return id, nil
}

// Disconnect removes a user from its room, zone and the server.
func (s *State) Disconnect(id ecs.EntityID) error {
	s.mu.Lock()
	u := s.removeUserLocked(id)
	s.mu.Unlock()
	if u == nil {
		return fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	event.Dispatch(s.events, UserDisconnected{UserID: u.ID, Name: u.Name})
	return nil
}

func (s *State) removeUserLocked(id ecs.EntityID) *User {
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	if r := s.rooms[u.Room]; r != nil {
		r.leave(id)
	}
	delete(s.users, id)
	delete(s.names, u.Name)
	s.zoneCount[u.Zone]--
	s.pool.Destroy(id)
	return u
}

// User returns a copy of the user's identity fields.
func (s *State) User(id ecs.EntityID) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, false
	}
	return User{ID: u.ID, Name: u.Name, Zone: u.Zone, Room: u.Room, NPC: u.NPC}, true
}

func (s *State) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// JoinRoom moves a user into a room of its zone, leaving the previous one.
func (s *State) JoinRoom(id ecs.EntityID, room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	r, ok := s.rooms[room]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, room)
	}
	if old := s.rooms[u.Room]; old != nil && old != r {
		old.leave(id)
	}
	r.members[id] = struct{}{}
	u.Room = room
	return nil
}

// ---------- Synchronized variables ----------

// SetUserVariables stores the whole batch under one lock, so readers never
// observe a partial update, then dispatches UserVariablesUpdate.
func (s *State) SetUserVariables(id ecs.EntityID, vars []Variable) error {
	if len(vars) == 0 {
		return nil
	}
	s.mu.Lock()
	u, ok := s.users[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	for _, v := range vars {
		u.vars[v.Name] = v
	}
	room := u.Room
	s.mu.Unlock()

	changed := make([]Variable, len(vars))
	copy(changed, vars)
	event.Dispatch(s.events, UserVariablesUpdate{UserID: id, Room: room, Variables: changed})
	return nil
}

func (s *State) UserVariable(id ecs.EntityID, name string) (Variable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return Variable{}, fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	v, ok := u.vars[name]
	if !ok {
		return Variable{}, fmt.Errorf("%w: %q on user %d", ErrVariableNotFound, name, id)
	}
	return v, nil
}

// ---------- Proximity ----------

// SetUserPosition updates the user's position in the room's proximity index.
// It is independent of the x/z variables.
func (s *State) SetUserPosition(id ecs.EntityID, pos Vec2, room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[room]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, room)
	}
	if _, ok := r.members[id]; !ok {
		return fmt.Errorf("%w: user %d, room %s", ErrNotInRoom, id, room)
	}
	r.setPosition(id, pos)
	return nil
}

// UserPosition returns the user's proximity position in a room.
func (s *State) UserPosition(id ecs.EntityID, room string) (Vec2, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[room]
	if !ok {
		return Vec2{}, false
	}
	p, ok := r.positions[id]
	return p, ok
}

// ProximityList returns the users inside id's area of interest, ordered by ID.
func (s *State) ProximityList(id ecs.EntityID, room string) ([]ecs.EntityID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[room]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, room)
	}
	p, ok := r.positions[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d has no position in %s", ErrNotInRoom, id, room)
	}
	ids := r.nearby(id, p)
	sortIDs(ids)
	return ids, nil
}

func sortIDs(ids []ecs.EntityID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
