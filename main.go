package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"journal/internal/config"
	"journal/internal/content"
	"journal/internal/daemon"
	"journal/internal/database"
	"journal/internal/identity"
	"journal/internal/logger"
	"journal/internal/notifications"
	"journal/internal/project"
	"journal/internal/search"
	"journal/internal/sharing"
)

// application bundles the managers that make up the productivity core. A
// transport layer (HTTP, gRPC) mounts on top of these.
type application struct {
	identity identity.Manager
	projects project.Manager
	contents content.Manager
	sharing  sharing.Manager
	fanout   *notifications.Service
}

func main() {
	if err := run(context.Background()); err != nil {
		panic(err)
	}
}

func run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	cfg := config.NewConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(cfg)

	db := database.NewDatabase()
	if err := db.Connect(ctx, cfg.Database.URL()); err != nil {
		log.Error("failed to initialize database", "error", err)
		return err
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		log.Error("database unreachable", "error", err)
		return err
	}

	var notifier notifications.Notifier = notifications.NopNotifier{}
	if cfg.Redis.Enabled {
		redisNotifier, err := notifications.NewRedisNotifier(cfg.Redis.URL)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			return err
		}
		defer redisNotifier.Close()
		notifier = redisNotifier
	}

	var indexer search.Indexer = search.NopIndexer{}
	if cfg.Search.Enabled {
		meili := search.NewMeili(log, cfg.Search.URL, cfg.Search.APIKey)
		defer meili.Close()
		indexer = meili
	}

	app := application{
		identity: identity.NewManager(log, &db),
		projects: project.NewManager(log, &db, indexer),
		contents: content.NewManager(log, &db, indexer),
		sharing:  sharing.NewManager(log, &db),
		fanout:   notifications.NewService(log, &db, notifier),
	}

	daemons := daemon.NewManager(log)
	daemons.Add("notifications", app.fanout.Run)
	daemons.Start(ctx)

	log.Info("journal core started", "environment", cfg.Server.Environment)

	<-ctx.Done()
	log.Info("shutting down")
	daemons.Wait()
	return nil
}
