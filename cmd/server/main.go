package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	zlog "github.com/rs/zerolog/log"

	"github.com/baechuer/task-dispatch/internal/application/task"
	"github.com/baechuer/task-dispatch/internal/config"
	"github.com/baechuer/task-dispatch/internal/infrastructure/caching/redis"
	"github.com/baechuer/task-dispatch/internal/infrastructure/db/postgres"
	"github.com/baechuer/task-dispatch/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/task-dispatch/internal/logger"
	"github.com/baechuer/task-dispatch/internal/transport/http/handlers"
	"github.com/baechuer/task-dispatch/internal/transport/http/router"
)

type sysClock struct{}

func (sysClock) Now() time.Time { return time.Now().UTC() }

// App holds the wired dependencies of the HTTP process.
type App struct {
	Config *config.Config
	Server *http.Server
	DB     *sql.DB
}

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

	var pub task.Publisher = task.NoopPublisher{}
	if cfg.RabbitEnabled {
		p := rabbitmq.NewPublisher(cfg.RabbitURL, topologyFromConfig(cfg))
		if err := p.ConnectWithRetry(ctx, 60); err != nil {
			zlog.Fatal().Err(err).Msg("rabbitmq connect failed")
		}
		defer p.Close()
		pub = p
	} else {
		zlog.Warn().Msg("RABBITMQ_ENABLED=false: synchronous publishes are skipped")
	}

	var cache task.Cache
	if cfg.RedisURL != "" {
		c, err := redis.New(cfg.RedisURL)
		if err != nil {
			zlog.Fatal().Err(err).Msg("redis connect failed")
		}
		defer c.Close()
		cache = c
	}

	app := NewApp(cfg, db, pub, cache)

	errCh := make(chan error, 1)
	go func() {
		zlog.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		errCh <- app.Server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		zlog.Info().Msg("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Server.Shutdown(shutCtx); err != nil {
			zlog.Error().Err(err).Msg("shutdown failed")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal().Err(err).Msg("server crashed")
		}
	}
}

func topologyFromConfig(cfg *config.Config) rabbitmq.Topology {
	return rabbitmq.Topology{
		Primaries:   []string{cfg.QueueHigh, cfg.QueueMedium, cfg.QueueLow},
		DLQ:         cfg.DLQ,
		RetryDelays: cfg.RetryDelays,
	}
}

func NewApp(cfg *config.Config, db *sql.DB, pub task.Publisher, cache task.Cache) *App {
	repo := postgres.New(db)

	svc := task.New(repo, sysClock{}, pub, cache, task.QueueNames{
		High:   cfg.QueueHigh,
		Medium: cfg.QueueMedium,
		Low:    cfg.QueueLow,
	})

	h := handlers.NewTasksHandler(svc)
	z := handlers.NewHealthHandler(db)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router.New(h, z),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &App{Config: cfg, Server: srv, DB: db}
}
