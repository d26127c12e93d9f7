package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chautari/chautari/internal/app"
	"github.com/chautari/chautari/internal/config"
	"github.com/chautari/chautari/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("chautari-worker", cfg.LogLevel)
	log.Info("starting chautari worker",
		slog.String("environment", cfg.Environment),
		slog.Any("kafka_brokers", cfg.KafkaBrokers),
	)

	worker, err := app.NewWorker(cfg, log)
	if err != nil {
		log.Error("failed to initialize worker", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := worker.Run(ctx); err != nil {
		log.Error("worker error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("chautari worker stopped")
}
