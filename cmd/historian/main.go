// cmd/historian/main.go drains the room action queue from Redis into PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/teamboningen/yunoDaifugo/internal/cache"
	"github.com/teamboningen/yunoDaifugo/internal/config"
	"github.com/teamboningen/yunoDaifugo/internal/database"
	"github.com/teamboningen/yunoDaifugo/internal/historian"

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
	if cfg.DatabaseURL == "" {
		logger.Fatal("historian needs DATABASE_URL or PG_HOST")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).Fatal("redis unavailable")
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("postgres unavailable")
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.WithError(err).Fatal("failed to create schema")
	}

	svc := historian.New(rdb, historian.PostgresSink{Pool: pool}, historian.Options{
		Queue:      cfg.ActionQueue,
		BatchSize:  cfg.HistorianBatchSize,
		FlushDelay: cfg.HistorianFlush,
		Inactivity: cfg.RoomInactivity,
		Logger:     logger,
	})
	if err := svc.Run(ctx); err != nil {
		logger.WithError(err).Error("historian exited")
	}
}
