package infra

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

func OpenDB(dbURL string) (*sql.DB, error) {
	return sql.Open("postgres", dbURL)
}

func PingDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// ResetTasks truncates both tables so every test starts from a clean slate.
func ResetTasks(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := db.ExecContext(ctx, `TRUNCATE TABLE outbox_events, tasks`)
	return err
}

// OutboxStatus returns the outbox row status for a task, or "" when none
// exists yet.
func OutboxStatus(db *sql.DB, taskID string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var status string
	err := db.QueryRowContext(ctx,
		`SELECT status FROM outbox_events WHERE task_id = $1`, taskID).Scan(&status)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return status, err
}
