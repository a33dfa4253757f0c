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

	"github.com/baechuer/task-dispatch/internal/application/task"
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

	// With the broker disabled the loop still drains rows (marking them SENT)
	// so they keep serving as an audit log.
	var pub task.Publisher = task.NoopPublisher{}
	if cfg.RabbitEnabled {
		topo := rabbitmq.Topology{
			Primaries:   []string{cfg.QueueHigh, cfg.QueueMedium, cfg.QueueLow},
			DLQ:         cfg.DLQ,
			RetryDelays: cfg.RetryDelays,
		}
		p := rabbitmq.NewPublisher(cfg.RabbitURL, topo)
		if err := p.ConnectWithRetry(ctx, 60); err != nil {
			zlog.Fatal().Err(err).Msg("rabbitmq connect failed")
		}
		defer p.Close()
		pub = p
	} else {
		zlog.Warn().Msg("RABBITMQ_ENABLED=false: outbox rows will be marked SENT without publishing")
	}

	postgres.New(db).RunOutboxPublisher(ctx, pub, postgres.OutboxOptions{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxAttempts:  cfg.OutboxMaxAttempts,
	})
}
