package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/baechuer/task-dispatch/internal/domain"
)

const insertOutboxSQL = `
INSERT INTO outbox_events (
  id, task_id, routing_key, payload, status,
  attempts, next_attempt_at, last_error, created_at, sent_at
) VALUES ($1,$2,$3,$4::jsonb,$5,$6,$7,$8,$9,$10)
`

// InsertOutbox participates in the caller's transaction so the outbox row
// commits together with the task transition.
func (r *txRepo) InsertOutbox(ctx context.Context, ev *domain.OutboxEvent) error {
	// Store JSON as text cast to jsonb for lib/pq compatibility.
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	_, err = r.tx.ExecContext(ctx, insertOutboxSQL,
		ev.ID, ev.TaskID, ev.RoutingKey, string(payload), string(ev.Status),
		ev.Attempts, ev.NextAttemptAt, ev.LastError, ev.CreatedAt, ev.SentAt,
	)
	return err
}

// --- outbox publisher loop helpers ---

type outboxRow struct {
	ID         string
	TaskID     string
	RoutingKey string
	Payload    []byte
	Attempts   int
}

// Due rows, oldest first. SKIP LOCKED lets multiple publisher replicas claim
// disjoint rows with no leader election.
const claimOutboxBatchSQL = `
SELECT id, task_id, routing_key, payload, attempts
FROM outbox_events
WHERE status = 'NEW'
  AND next_attempt_at <= NOW()
ORDER BY created_at ASC
LIMIT $1
FOR UPDATE SKIP LOCKED
`

const markOutboxSentSQL = `
UPDATE outbox_events
SET status = 'SENT',
    sent_at = $2,
    last_error = NULL
WHERE id = $1
`

const markOutboxRetrySQL = `
UPDATE outbox_events
SET attempts = $2,
    next_attempt_at = $3,
    last_error = $4
WHERE id = $1
`

const markOutboxFailedSQL = `
UPDATE outbox_events
SET status = 'FAILED',
    attempts = $2,
    last_error = $3
WHERE id = $1
`

func claimOutboxBatch(ctx context.Context, tx *sql.Tx, limit int) ([]outboxRow, error) {
	rows, err := tx.QueryContext(ctx, claimOutboxBatchSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batch []outboxRow
	for rows.Next() {
		var item outboxRow
		if err := rows.Scan(&item.ID, &item.TaskID, &item.RoutingKey, &item.Payload, &item.Attempts); err != nil {
			return nil, err
		}
		batch = append(batch, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batch, nil
}

func markOutboxSent(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	_, err := tx.ExecContext(ctx, markOutboxSentSQL, id, now.UTC())
	return err
}

func markOutboxRetry(ctx context.Context, tx *sql.Tx, id string, attempts int, next time.Time, lastErr string) error {
	_, err := tx.ExecContext(ctx, markOutboxRetrySQL, id, attempts, next.UTC(), lastErr)
	return err
}

func markOutboxFailed(ctx context.Context, tx *sql.Tx, id string, attempts int, lastErr string) error {
	_, err := tx.ExecContext(ctx, markOutboxFailedSQL, id, attempts, lastErr)
	return err
}

// OutboxBackoff is the publish retry schedule: 0.5s doubling per attempt,
// capped at 60s so a broker outage cannot turn into a storm.
func OutboxBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := 500 * time.Millisecond << (attempts - 1)
	if d > 60*time.Second || d <= 0 {
		return 60 * time.Second
	}
	return d
}
