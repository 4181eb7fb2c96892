package persist

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mmobasics/server/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMigrationFiles_Embedded(t *testing.T) {
	files, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		raw, err := migrations.ReadFile(f)
		require.NoError(t, err)
		body := string(raw)
		assert.True(t, strings.Contains(body, "-- +goose Up"), "%s lacks Up section", f)
		assert.True(t, strings.Contains(body, "-- +goose Down"), "%s lacks Down section", f)
	}
}

// Requires a disposable PostgreSQL; set MMOBASICS_TEST_DSN to run.
func TestSnapshotRepo_RoundTrip(t *testing.T) {
	dsn := os.Getenv("MMOBASICS_TEST_DSN")
	if dsn == "" {
		t.Skip("MMOBASICS_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := NewDB(ctx, config.DatabaseConfig{
		DSN:             dsn,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, RunMigrations(ctx, db.Pool, zap.NewNop()))

	repo := NewSnapshotRepo(db)
	room := "test-" + t.Name()
	require.NoError(t, repo.DeleteRoom(ctx, room))

	require.NoError(t, repo.SaveSnapshots(ctx, []NpcSnapshot{
		{Room: room, NpcName: "NPC#0", X: 1, Z: 2, XSpeed: 0.5, ZSpeed: -0.5, Tick: 1},
		{Room: room, NpcName: "NPC#1", X: 3, Z: 4, XSpeed: 1, ZSpeed: 1, Tick: 1},
	}))
	require.NoError(t, repo.SaveSnapshots(ctx, []NpcSnapshot{
		{Room: room, NpcName: "NPC#0", X: 1.5, Z: 2, XSpeed: 0.5, ZSpeed: -0.5, Tick: 2},
	}))

	got, err := repo.LoadRoom(ctx, room)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1.5, got[0].X)
	assert.Equal(t, int64(2), got[0].Tick)
	assert.Equal(t, int64(1), got[1].Tick)

	require.NoError(t, repo.DeleteRoom(ctx, room))
}
