// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/teamboningen/yunoDaifugo/internal/auth"
	"github.com/teamboningen/yunoDaifugo/internal/cache"
	"github.com/teamboningen/yunoDaifugo/internal/config"
	"github.com/teamboningen/yunoDaifugo/internal/database"
	"github.com/teamboningen/yunoDaifugo/internal/fanout"
	"github.com/teamboningen/yunoDaifugo/internal/gateway"
	"github.com/teamboningen/yunoDaifugo/internal/handlers"
	"github.com/teamboningen/yunoDaifugo/internal/store"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	if cfg.SessionPrivateKeyPath != "" {
		err = auth.InitFromPath(cfg.SessionPrivateKeyPath, cfg.SessionPublicKeyPath, cfg.TokenExpiry)
	} else {
		err = auth.Init(cfg.TokenExpiry)
	}
	if err != nil {
		logger.WithError(err).Fatal("failed to initialise session keys")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		rdb       *redis.Client
		roomStore store.Store
	)
	switch cfg.StoreBackend {
	case config.BackendRedis:
		if rdb, err = cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB); err != nil {
			logger.WithError(err).Fatal("redis unavailable")
		}
		roomStore = store.NewRedis(rdb, cfg.RoomTTL)
	case config.BackendPostgres:
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.WithError(err).Fatal("postgres unavailable")
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			logger.WithError(err).Fatal("failed to create schema")
		}
		roomStore = store.NewPostgres(pool)
	default:
		roomStore = store.NewMemory()
	}
	logger.WithField("backend", cfg.StoreBackend).Info("room store ready")

	// the action log is best effort: without Redis the server runs without it
	opts := gateway.Options{
		DefaultRoom:     cfg.DefaultRoom,
		DisconnectGrace: cfg.DisconnectGrace,
		Logger:          logger,
	}
	if rdb == nil {
		if c, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB); err != nil {
			logger.WithError(err).Warn("room action log disabled")
		} else {
			rdb = c
		}
	}
	if rdb != nil {
		defer rdb.Close()
		opts.Actions = cache.NewActionQueue(rdb, cfg.ActionQueue)
	}

	hub := handlers.NewHub(logger)
	opts.Presence = hub
	var emitter gateway.Emitter = hub
	if cfg.NATSURL != "" {
		nc, err := fanout.Connect(cfg.NATSURL, "cardroom-server")
		if err != nil {
			logger.WithError(err).Fatal("nats unavailable")
		}
		defer nc.Drain()
		if _, err := fanout.Subscribe(nc, hub, logger); err != nil {
			logger.WithError(err).Fatal("failed to subscribe to fanout")
		}
		emitter = fanout.NewEmitter(nc, logger)
		logger.WithField("url", nc.ConnectedUrlRedacted()).Info("fanning out events over NATS")
	}

	gw := gateway.New(roomStore, emitter, opts)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.NewRouter(logger, gw, hub, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	hub.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown incomplete")
	}
	gw.Close()
}
