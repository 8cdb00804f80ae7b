package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/adiadia/agent-console/internal/config"
	"github.com/adiadia/agent-console/internal/intake"
	"github.com/adiadia/agent-console/internal/logging"
	"github.com/adiadia/agent-console/internal/metrics"
	"github.com/adiadia/agent-console/internal/persistence/postgres"
	"github.com/adiadia/agent-console/internal/repository"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	logger := logging.NewComponentLogger(cfg.Env, "intake")
	metrics.Init()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if err := postgres.SchemaReady(ctx, pool); err != nil {
		log.Fatalf("schema not ready: %v", err)
	}

	consumer, err := intake.NewConsumer(intake.ConsumerConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Key:      cfg.RedisKey,
	})
	if err != nil {
		log.Fatalf("redis connect failed: %v", err)
	}
	defer consumer.Close()

	w := intake.New(intake.Deps{
		Source: consumer,
		Events: repository.NewEventRepository(pool, logger),
		Logger: logger,
	})

	logger.Info("intake worker started",
		"redis_addr", cfg.RedisAddr,
		"redis_key", cfg.RedisKey,
	)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("intake worker stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("intake worker shut down")
}
