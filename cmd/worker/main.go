package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	zlog "github.com/rs/zerolog/log"

	"github.com/baechuer/task-dispatch/internal/config"
	"github.com/baechuer/task-dispatch/internal/infrastructure/db/postgres"
	"github.com/baechuer/task-dispatch/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/task-dispatch/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	if !cfg.RabbitEnabled {
		zlog.Fatal().Msg("worker requires RABBITMQ_ENABLED=true")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal().Err(err).Msg("db open failed")
	}
	defer db.Close()

	{
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			zlog.Fatal().Err(err).Msg("db ping failed")
		}
	}

	topo := rabbitmq.Topology{
		Primaries:   []string{cfg.QueueHigh, cfg.QueueMedium, cfg.QueueLow},
		DLQ:         cfg.DLQ,
		RetryDelays: cfg.RetryDelays,
	}

	w := rabbitmq.NewWorker(cfg.RabbitURL, topo, postgres.New(db), rabbitmq.WorkerOptions{
		Queues:     cfg.WorkerQueues,
		Prefetch:   cfg.WorkerPrefetch,
		MaxRetries: cfg.MaxRetries,
	})

	if err := w.Run(ctx); err != nil {
		zlog.Fatal().Err(err).Msg("worker stopped with error")
	}
}
