package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"trustlabel/internal/api"
	"trustlabel/internal/assignment"
	"trustlabel/internal/audit"
	"trustlabel/internal/config"
	"trustlabel/internal/events"
	"trustlabel/internal/logging"
	"trustlabel/internal/notifier"
	"trustlabel/internal/queue"
	"trustlabel/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, cfgPath, found, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if found {
		logger.Info("config loaded", logging.String("path", cfgPath))
	} else {
		logger.Info("config file not found, using defaults")
	}

	// One daemon per data dir.
	lock := flock.New(filepath.Join(cfg.Paths.DataDir, "trustlabeld.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another trustlabeld is already running for %s", cfg.Paths.DataDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Printf("release daemon lock: %v", err)
		}
	}()

	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()

	bus := events.NewBus()
	defer bus.Close()

	recorder := audit.NewRecorder(store, logger)
	defer recorder.Close()

	strategy, ok := assignment.ParseStrategy(cfg.Queue.AutoAssignStrategy)
	if !ok {
		return fmt.Errorf("unknown auto-assign strategy %q", cfg.Queue.AutoAssignStrategy)
	}
	svc := api.NewQueueService(store, recorder, bus, api.Options{
		AutoAssign: cfg.Queue.AutoAssign,
		Strategy:   strategy,
	}, logger)

	hub := notifier.NewHub(cfg.Notifier.SendBuffer, time.Duration(cfg.Notifier.PingIntervalSeconds)*time.Second, logger)
	defer hub.Close()

	eventCh, unsubscribe := bus.Subscribe(cfg.Notifier.EventBuffer)
	defer unsubscribe()
	hub.Consume(eventCh)

	srv, err := server.New(cfg, svc, hub, logger)
	if err != nil {
		return fmt.Errorf("create api server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start api server: %w", err)
	}
	defer srv.Stop()

	logger.Info("trustlabeld running",
		logging.String("queue_db", store.Path()),
		logging.String("api", srv.Addr()))

	<-ctx.Done()
	logger.Info("trustlabeld shutting down")
	return nil
}
