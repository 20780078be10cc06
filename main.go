package main

import (
	"context"
	"time"

	"github.com/wfunc/partydeck/cards"
	"github.com/wfunc/partydeck/config"
	"github.com/wfunc/partydeck/logger"
	"github.com/wfunc/partydeck/monitor"
	"github.com/wfunc/partydeck/persistence"
	"github.com/wfunc/partydeck/room"
	"github.com/wfunc/partydeck/server"
)

func main() {
	// Initialize logger
	logger.Init()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Card catalog: database-backed when configured, builtin otherwise.
	catalog := cards.BuiltinCatalog()
	if cfg.Database.Enabled {
		store, err := persistence.NewGormPostgreSQL(
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.DBName,
		)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.SeedBuiltin(ctx, catalog); err != nil {
			logger.Log.Fatalf("Failed to seed card catalog: %v", err)
		}
		catalog, err = store.LoadCatalog(ctx)
		if err != nil {
			logger.Log.Fatalf("Failed to load card catalog: %v", err)
		}
		logger.Log.Info("Card catalog loaded from database.")
	}

	mon := monitor.NewMonitor("partydeck")
	mon.StartServer(cfg.Server.MonitorAddress)

	opts := room.Options{
		HandSize:       cfg.Game.HandSize,
		MinSubmissions: cfg.Game.MinSubmissions,
		Capacity:       cfg.Game.RoomCapacity,
	}

	// Initialize Game Server
	gameServer := server.NewGameServer(cfg.Server.HTTPAddress, cfg.Server.RPCAddress, catalog, opts, cfg.Game.TeardownGrace, mon)

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
