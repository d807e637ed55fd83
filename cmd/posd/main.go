// posd is the point-of-sale daemon: it owns the local store, serves the
// register UI over HTTP and websocket, and keeps the store converged with
// the cloud account in the background.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pressloop/drycleanpos/internal/config"
	"github.com/pressloop/drycleanpos/internal/database"
	"github.com/pressloop/drycleanpos/internal/handlers"
	"github.com/pressloop/drycleanpos/internal/orders"
	"github.com/pressloop/drycleanpos/internal/remote"
	"github.com/pressloop/drycleanpos/internal/store"
	"github.com/pressloop/drycleanpos/internal/sync"
	"github.com/pressloop/drycleanpos/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("configuration error")
	}
	log := newLogger(cfg.LogLevel)

	db, err := database.Open(cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database init failed")
	}

	st := store.New(db, log)

	hub := websocket.NewHub(log)
	go hub.Run()

	api := remote.NewRetryClient(
		remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Token, log, remote.WithTimeout(cfg.Remote.Timeout)),
		&remote.RetryConfig{
			MaxRetries:     cfg.Sync.MaxRetries,
			InitialBackoff: 300 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			JitterFraction: 0.25,
		},
	)

	adapters := sync.BuildAdapters()
	resolver := sync.NewResolver(st, api, adapters, log)
	engine := sync.NewEngine(st, api, adapters, resolver, sync.Config{
		PushWorkers: cfg.Sync.PushWorkers,
		PullLimit:   cfg.Sync.PullLimit,
	}, hub, log)

	var notifier orders.Notifier
	if cfg.NotifyWebhook != "" {
		notifier = orders.NewWebhookNotifier(cfg.NotifyWebhook, log)
	}
	svc := orders.NewService(st, orders.NewNotificationGate(), notifier, hub, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Sync.SyncOnStartup {
		go func() {
			if _, err := engine.SyncAll(ctx); err != nil {
				log.Warn().Err(err).Msg("startup sync failed")
			}
		}()
	}
	if cfg.Sync.AutoSyncEnabled {
		go engine.RunAutoSync(ctx, cfg.Sync.Interval)
	}

	router := handlers.NewRouter(cfg, st, engine, svc, hub, log)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("posd listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}
