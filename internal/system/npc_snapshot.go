package system

import (
	"context"
	"time"

	"github.com/mmobasics/server/internal/core/ecs"
	coresys "github.com/mmobasics/server/internal/core/system"
	"github.com/mmobasics/server/internal/persist"
	"github.com/mmobasics/server/internal/world"
	"go.uber.org/zap"
)

// SnapshotWriter stores NPC snapshots.
type SnapshotWriter interface {
	SaveSnapshots(ctx context.Context, rows []persist.NpcSnapshot) error
}

// UserDirectory resolves user identities.
type UserDirectory interface {
	User(id ecs.EntityID) (world.User, bool)
}

// NpcSnapshotSystem periodically saves the walking population's positions
// and velocities. Phase 1 (Persist).
type NpcSnapshotSystem struct {
	walk    *NpcWalkSystem
	users   UserDirectory
	writer  SnapshotWriter
	every   int
	counter int
	timeout time.Duration
	log     *zap.Logger
}

func NewNpcSnapshotSystem(walk *NpcWalkSystem, users UserDirectory, writer SnapshotWriter, every int, log *zap.Logger) *NpcSnapshotSystem {
	return &NpcSnapshotSystem{
		walk:    walk,
		users:   users,
		writer:  writer,
		every:   every,
		timeout: 2 * time.Second,
		log:     log,
	}
}

func (s *NpcSnapshotSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *NpcSnapshotSystem) Update(_ time.Duration) {
	if s.every <= 0 {
		return
	}
	s.counter++
	if s.counter < s.every {
		return
	}
	s.counter = 0

	rows := s.Collect()
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.writer.SaveSnapshots(ctx, rows); err != nil {
		s.log.Warn("npc snapshot failed", zap.String("room", s.walk.room), zap.Error(err))
		return
	}
	s.log.Debug("npc snapshot saved", zap.String("room", s.walk.room), zap.Int("npcs", len(rows)))
}

// Collect builds one row per NPC whose position can currently be read.
func (s *NpcSnapshotSystem) Collect() []persist.NpcSnapshot {
	rows := make([]persist.NpcSnapshot, 0, s.walk.Len())
	for _, id := range s.walk.npcs {
		u, ok := s.users.User(id)
		if !ok {
			continue
		}
		v, ok := s.walk.Velocity(id)
		if !ok {
			continue
		}
		x, err := s.walk.readDouble(id, "x")
		if err != nil {
			continue
		}
		z, err := s.walk.readDouble(id, "z")
		if err != nil {
			continue
		}
		rows = append(rows, persist.NpcSnapshot{
			Room:    s.walk.room,
			NpcName: u.Name,
			X:       x,
			Z:       z,
			XSpeed:  v.XSpeed,
			ZSpeed:  v.ZSpeed,
			Tick:    s.walk.ticks,
		})
	}
	return rows
}
