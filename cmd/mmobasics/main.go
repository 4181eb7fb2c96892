package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mmobasics/server/internal/bot"
	"github.com/mmobasics/server/internal/config"
	"github.com/mmobasics/server/internal/core/event"
	coresys "github.com/mmobasics/server/internal/core/system"
	"github.com/mmobasics/server/internal/data"
	"github.com/mmobasics/server/internal/extension"
	"github.com/mmobasics/server/internal/persist"
	"github.com/mmobasics/server/internal/scripting"
	"github.com/mmobasics/server/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            MMOBasics  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        NPC simulation · Go server         \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("MMOBASICS_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Optional PostgreSQL snapshots
	var snapshots *persist.SnapshotRepo
	if cfg.Database.Enabled {
		printSection("database")
		dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(dbCtx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		if err := persist.RunMigrations(dbCtx, db.Pool, log); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("migrations applied")
		fmt.Println()

		snapshots = persist.NewSnapshotRepo(db)
	}

	// 4. Static data
	printSection("data")
	rooms, err := data.LoadRoomTable(cfg.Data.RoomList)
	if err != nil {
		return fmt.Errorf("load room table: %w", err)
	}
	printStat("rooms", rooms.Count())

	var luaEngine *scripting.Engine
	if cfg.Scripting.Dir != "" {
		luaEngine, err = scripting.NewEngine(cfg.Scripting.Dir, log)
		if err != nil {
			return fmt.Errorf("lua engine: %w", err)
		}
		defer luaEngine.Close()
		if luaEngine.HasSpawnHook() {
			printOK("Lua npc_spawn hook loaded")
		}
	}
	fmt.Println()

	// 5. Host state and room extensions
	printSection("simulation")
	events := event.NewDispatcher(log)
	state := world.NewState(events, log, world.WithMaxUsersPerZone(cfg.Server.MaxUsersPerZone))
	scheduler := coresys.NewScheduler(log)
	defer scheduler.Shutdown()

	var exts []*extension.Extension
	var fleets []*bot.Fleet
	for _, info := range rooms.All() {
		room, err := world.NewRoom(info.Name, info.Zone, info.Bounds(), info.AOIRadius)
		if err != nil {
			return fmt.Errorf("room %s: %w", info.Name, err)
		}
		if err := state.AddRoom(room); err != nil {
			return err
		}
		if !info.Simulate {
			continue
		}

		if snapshots != nil {
			if err := clearStaleSnapshots(ctx, snapshots, info.Name, log); err != nil {
				return err
			}
		}

		var opts []extension.Option
		if luaEngine != nil && luaEngine.HasSpawnHook() {
			opts = append(opts, extension.WithSpawnDecorator(luaEngine))
		}
		if snapshots != nil {
			opts = append(opts, extension.WithSnapshots(snapshots))
		}
		ext := extension.New(room, state, scheduler, events, cfg.Simulation, log, opts...)
		ext.Init()
		exts = append(exts, ext)

		if cfg.Demo.Players > 0 {
			rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
			fleets = append(fleets, bot.NewFleet(state, scheduler, room, cfg.Demo, rnd, log))
		}
	}
	printStat("simulated rooms", len(exts))
	printStat("NPCs per room", cfg.Simulation.NpcCount)

	// Demo players publish their first position right away, which starts
	// the NPC population of their room.
	for _, f := range fleets {
		if err := f.Start(); err != nil {
			return fmt.Errorf("demo players: %w", err)
		}
	}
	printStat("demo players", cfg.Demo.Players*len(fleets))
	fmt.Println()
	printReady("server running, Ctrl+C to stop")
	fmt.Println()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reportStatus(gctx, state, rooms, 30*time.Second, log)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		for _, f := range fleets {
			f.Stop()
		}
		for _, ext := range exts {
			ext.Destroy()
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// clearStaleSnapshots drops rows left by a previous run of the room.
func clearStaleSnapshots(ctx context.Context, repo *persist.SnapshotRepo, room string, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := repo.LoadRoom(ctx, room)
	if err != nil {
		return fmt.Errorf("load snapshots of %s: %w", room, err)
	}
	if len(rows) == 0 {
		return nil
	}
	if err := repo.DeleteRoom(ctx, room); err != nil {
		return fmt.Errorf("clear snapshots of %s: %w", room, err)
	}
	log.Info("cleared previous npc snapshots",
		zap.String("room", room),
		zap.Int("rows", len(rows)),
		zap.Int64("last_tick", rows[0].Tick),
	)
	return nil
}

func reportStatus(ctx context.Context, state *world.State, rooms *data.RoomTable, every time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, info := range rooms.All() {
				log.Info("room status",
					zap.String("room", info.Name),
					zap.Int("users", len(state.RoomUsers(info.Name))),
				)
			}
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
