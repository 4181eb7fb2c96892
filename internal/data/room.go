package data

import (
	"fmt"
	"os"

	"github.com/mmobasics/server/internal/world"
	"gopkg.in/yaml.v3"
)

// RoomInfo describes one map room, loaded from room_list.yaml.
type RoomInfo struct {
	Name      string  `yaml:"name"`
	Zone      string  `yaml:"zone"`
	LowerX    float64 `yaml:"lower_x"`
	LowerZ    float64 `yaml:"lower_z"`
	UpperX    float64 `yaml:"upper_x"`
	UpperZ    float64 `yaml:"upper_z"`
	AOIRadius float64 `yaml:"aoi_radius"`
	Simulate  bool    `yaml:"simulate"` // attach the NPC extension to this room
}

// Bounds returns the map limits of the room.
func (r RoomInfo) Bounds() world.Bounds {
	return world.Bounds{
		Lower: world.Vec2{X: r.LowerX, Z: r.LowerZ},
		Upper: world.Vec2{X: r.UpperX, Z: r.UpperZ},
	}
}

type roomListFile struct {
	Rooms []RoomInfo `yaml:"rooms"`
}

// RoomTable holds room definitions in file order.
type RoomTable struct {
	rooms  []RoomInfo
	byName map[string]int
}

// LoadRoomTable loads and validates room definitions from a YAML file.
// Degenerate map limits are a configuration error.
func LoadRoomTable(path string) (*RoomTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read room_list %s: %w", path, err)
	}
	return ParseRoomTable(raw)
}

// ParseRoomTable parses room_list.yaml content.
func ParseRoomTable(raw []byte) (*RoomTable, error) {
	var f roomListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse room_list: %w", err)
	}
	t := &RoomTable{
		rooms:  make([]RoomInfo, 0, len(f.Rooms)),
		byName: make(map[string]int, len(f.Rooms)),
	}
	for _, r := range f.Rooms {
		if r.Name == "" || r.Zone == "" {
			return nil, fmt.Errorf("room_list: room needs name and zone (got name=%q zone=%q)", r.Name, r.Zone)
		}
		if _, dup := t.byName[r.Name]; dup {
			return nil, fmt.Errorf("room_list: duplicate room %q", r.Name)
		}
		if err := r.Bounds().Validate(); err != nil {
			return nil, fmt.Errorf("room_list: room %q: %w", r.Name, err)
		}
		if r.AOIRadius <= 0 {
			return nil, fmt.Errorf("room_list: room %q: aoi_radius must be positive, got %g", r.Name, r.AOIRadius)
		}
		t.byName[r.Name] = len(t.rooms)
		t.rooms = append(t.rooms, r)
	}
	return t, nil
}

// Get returns a room by name.
func (t *RoomTable) Get(name string) (RoomInfo, bool) {
	i, ok := t.byName[name]
	if !ok {
		return RoomInfo{}, false
	}
	return t.rooms[i], true
}

// All returns every room in file order.
func (t *RoomTable) All() []RoomInfo {
	out := make([]RoomInfo, len(t.rooms))
	copy(out, t.rooms)
	return out
}

// Count returns the number of loaded rooms.
func (t *RoomTable) Count() int {
	return len(t.rooms)
}
