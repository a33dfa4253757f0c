package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/baechuer/task-dispatch/internal/application/task"
	"github.com/baechuer/task-dispatch/internal/logger"
)

type OutboxOptions struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// RunOutboxPublisher drains the outbox to the broker until ctx is cancelled.
// Claim, publish and mark happen inside one transaction per tick: if the
// process dies after a publish but before the commit, the row returns to the
// pool and is republished — the worker's conditional claim absorbs the
// duplicate.
func (r *Repo) RunOutboxPublisher(ctx context.Context, pub task.Publisher, opts OutboxOptions) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 20
	}

	log := logger.Logger.With().Str("component", "outbox_publisher").Logger()
	log.Info().
		Dur("poll_interval", opts.PollInterval).
		Int("batch_size", opts.BatchSize).
		Int("max_attempts", opts.MaxAttempts).
		Msg("outbox publisher started")

	for {
		if ctx.Err() != nil {
			log.Info().Msg("stopped")
			return
		}

		n, err := r.processOutboxBatch(ctx, pub, opts)
		if err != nil {
			log.Warn().Err(err).Msg("outbox batch failed")
			sleepCtx(ctx, time.Second)
			continue
		}
		if n == 0 {
			sleepCtx(ctx, opts.PollInterval)
		}
	}
}

func (r *Repo) processOutboxBatch(ctx context.Context, pub task.Publisher, opts OutboxOptions) (int, error) {
	log := logger.Logger.With().Str("component", "outbox_publisher").Logger()

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	batch, err := claimOutboxBatch(ctx, tx, opts.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, tx.Commit()
	}

	for _, item := range batch {
		pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pubErr := pub.Publish(pubCtx, item.RoutingKey, item.Payload)
		cancel()

		if pubErr == nil {
			if err := markOutboxSent(ctx, tx, item.ID, time.Now()); err != nil {
				return 0, err
			}
			log.Info().
				Str("outbox_id", item.ID).
				Str("task_id", item.TaskID).
				Str("queue", item.RoutingKey).
				Msg("published")
			continue
		}

		attempts := item.Attempts + 1
		if attempts >= opts.MaxAttempts {
			if err := markOutboxFailed(ctx, tx, item.ID, attempts, pubErr.Error()); err != nil {
				return 0, err
			}
			log.Error().
				Err(pubErr).
				Str("outbox_id", item.ID).
				Str("task_id", item.TaskID).
				Str("queue", item.RoutingKey).
				Int("attempts", attempts).
				Msg("outbox event moved to FAILED")
			continue
		}

		next := time.Now().UTC().Add(OutboxBackoff(attempts))
		if err := markOutboxRetry(ctx, tx, item.ID, attempts, next, pubErr.Error()); err != nil {
			return 0, err
		}
		log.Warn().
			Err(pubErr).
			Str("outbox_id", item.ID).
			Str("task_id", item.TaskID).
			Str("queue", item.RoutingKey).
			Int("attempts", attempts).
			Time("next_attempt_at", next).
			Msg("outbox publish failed; scheduled retry")
	}

	return len(batch), tx.Commit()
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
