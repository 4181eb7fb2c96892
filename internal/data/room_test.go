package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mmobasics/server/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRooms = `
rooms:
  - name: MMOBasics
    zone: MMOBasics
    lower_x: -100
    lower_z: -100
    upper_x: 100
    upper_z: 100
    aoi_radius: 15
    simulate: true
  - name: Arena
    zone: MMOBasics
    lower_x: 0
    lower_z: 0
    upper_x: 50
    upper_z: 30
    aoi_radius: 10
`

func TestParseRoomTable(t *testing.T) {
	table, err := ParseRoomTable([]byte(sampleRooms))
	require.NoError(t, err)
	assert.Equal(t, 2, table.Count())

	r, ok := table.Get("MMOBasics")
	require.True(t, ok)
	assert.True(t, r.Simulate)
	assert.Equal(t, world.Bounds{
		Lower: world.Vec2{X: -100, Z: -100},
		Upper: world.Vec2{X: 100, Z: 100},
	}, r.Bounds())

	all := table.All()
	assert.Equal(t, "MMOBasics", all[0].Name)
	assert.Equal(t, "Arena", all[1].Name)
	assert.False(t, all[1].Simulate)

	_, ok = table.Get("Nowhere")
	assert.False(t, ok)
}

func TestParseRoomTable_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"inverted bounds", "rooms:\n  - {name: a, zone: z, lower_x: 10, lower_z: 0, upper_x: 0, upper_z: 10, aoi_radius: 1}\n"},
		{"zero width", "rooms:\n  - {name: a, zone: z, lower_x: 5, lower_z: 0, upper_x: 5, upper_z: 10, aoi_radius: 1}\n"},
		{"missing zone", "rooms:\n  - {name: a, lower_x: 0, lower_z: 0, upper_x: 5, upper_z: 10}\n"},
		{"duplicate", "rooms:\n  - {name: a, zone: z, upper_x: 5, upper_z: 5, aoi_radius: 1}\n  - {name: a, zone: z, upper_x: 5, upper_z: 5, aoi_radius: 1}\n"},
		{"no radius", "rooms:\n  - {name: a, zone: z, upper_x: 5, upper_z: 5}\n"},
		{"not yaml", "rooms: [unclosed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRoomTable([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}

	_, err := ParseRoomTable([]byte(tests[0].yaml))
	assert.ErrorIs(t, err, world.ErrInvalidBounds)
}

func TestLoadRoomTable_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "room_list.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRooms), 0o644))

	table, err := LoadRoomTable(path)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Count())

	_, err = LoadRoomTable(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
