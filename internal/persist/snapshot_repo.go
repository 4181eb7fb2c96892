package persist

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// NpcSnapshot is one NPC's position and velocity at a given tick.
type NpcSnapshot struct {
	Room    string
	NpcName string
	X       float64
	Z       float64
	XSpeed  float64
	ZSpeed  float64
	Tick    int64
}

type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

const upsertSnapshotSQL = `INSERT INTO npc_snapshots (room, npc_name, x, z, xspeed, zspeed, tick, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
ON CONFLICT (room, npc_name) DO UPDATE
SET x = EXCLUDED.x, z = EXCLUDED.z, xspeed = EXCLUDED.xspeed, zspeed = EXCLUDED.zspeed,
    tick = EXCLUDED.tick, updated_at = EXCLUDED.updated_at`

// SaveSnapshots upserts a room's snapshot rows in a single transaction.
func (r *SnapshotRepo) SaveSnapshots(ctx context.Context, rows []NpcSnapshot) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("snapshot begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, s := range rows {
		batch.Queue(upsertSnapshotSQL, s.Room, s.NpcName, s.X, s.Z, s.XSpeed, s.ZSpeed, s.Tick)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("snapshot upsert: %w", err)
	}
	return tx.Commit(ctx)
}

// LoadRoom returns the last saved snapshot of every NPC in a room.
func (r *SnapshotRepo) LoadRoom(ctx context.Context, room string) ([]NpcSnapshot, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT room, npc_name, x, z, xspeed, zspeed, tick
		 FROM npc_snapshots WHERE room = $1 ORDER BY npc_name`, room,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot query: %w", err)
	}
	defer rows.Close()

	var out []NpcSnapshot
	for rows.Next() {
		var s NpcSnapshot
		if err := rows.Scan(&s.Room, &s.NpcName, &s.X, &s.Z, &s.XSpeed, &s.ZSpeed, &s.Tick); err != nil {
			return nil, fmt.Errorf("snapshot scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteRoom drops a room's snapshots, used when a room is torn down.
func (r *SnapshotRepo) DeleteRoom(ctx context.Context, room string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM npc_snapshots WHERE room = $1`, room)
	return err
}
